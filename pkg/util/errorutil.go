package util

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeRoleMismatch       = "ROLE_MISMATCH"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTransport          = "TRANSPORT_ERROR"
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewUnauthenticated reports that no credential is held for the domain.
func NewUnauthenticated(domain string) error {
	return NewDomainError(CodeUnauthenticated, "not authenticated", http.StatusUnauthorized,
		map[string]any{"domain": domain})
}

// NewSessionExpired reports a terminal session failure for the domain.
func NewSessionExpired(domain string) error {
	return NewDomainError(CodeSessionExpired, "session expired", http.StatusUnauthorized,
		map[string]any{"domain": domain})
}

// NewRoleMismatch reports that a login token does not belong to the domain.
// redirect names the domain the token does belong to, or is empty.
func NewRoleMismatch(domain, redirect string) error {
	details := map[string]any{"domain": domain}
	if redirect != "" {
		details["redirect"] = redirect
	}
	return NewDomainError(CodeRoleMismatch, "access denied for this area", http.StatusForbidden, details)
}

func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "invalid credentials", http.StatusUnauthorized, nil)
}

// NewTransportError wraps a failure that is unrelated to authentication.
func NewTransportError(message string, err error) error {
	return &DomainError{
		Code:       CodeTransport,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func IsUnauthenticated(err error) bool { return HasCode(err, CodeUnauthenticated) }
func IsSessionExpired(err error) bool  { return HasCode(err, CodeSessionExpired) }
func IsRoleMismatch(err error) bool    { return HasCode(err, CodeRoleMismatch) }
func IsTransport(err error) bool       { return HasCode(err, CodeTransport) }

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
