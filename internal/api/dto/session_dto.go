package dto

import (
	"time"

	"github.com/spec-kit/storefront-session/internal/domain"
)

// LoginRequest payload for a domain login surface.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse describes a domain session as seen from its stored token.
type SessionResponse struct {
	Domain        domain.Domain       `json:"domain"`
	Authenticated bool                `json:"authenticated"`
	Subject       string              `json:"subject,omitempty"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	Expired       bool                `json:"expired"`
	Capabilities  []domain.Capability `json:"capabilities"`
}

// LoginViewResponse tells a redirected client where and how to sign in.
type LoginViewResponse struct {
	Domain domain.Domain `json:"domain"`
	Action string        `json:"action"`
	Method string        `json:"method"`
}

// NewSessionResponse builds the response for s, or an unauthenticated one when s is nil.
func NewSessionResponse(d domain.Domain, s *domain.Session) SessionResponse {
	resp := SessionResponse{Domain: d, Capabilities: []domain.Capability{}}
	if s == nil {
		return resp
	}
	resp.Authenticated = true
	resp.Subject = s.Subject
	resp.ExpiresAt = s.ExpiresAt
	resp.Expired = s.Expired
	if s.Capabilities != nil {
		resp.Capabilities = s.Capabilities
	}
	return resp
}
