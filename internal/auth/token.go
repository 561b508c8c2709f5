package auth

import (
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/storefront-session/internal/domain"
)

// scopeClaims lists payload keys that may carry the role scope, in priority order.
var scopeClaims = []string{"scope", "scp"}

// Inspector decodes bearer token payloads without verifying signatures.
// Claims obtained here are display and routing hints only; the server that
// receives the token is the authority on whether it is genuine.
type Inspector struct {
	parser *jwt.Parser
}

// NewInspector builds an inspector. Segments are accepted with or without
// base64 padding.
func NewInspector() *Inspector {
	return &Inspector{parser: jwt.NewParser(jwt.WithPaddingAllowed())}
}

// Decode returns the claim set of token, or nil if it cannot be decoded.
func (i *Inspector) Decode(token string) *domain.ClaimSet {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := i.parser.ParseUnverified(token, mapClaims); err != nil {
		return nil
	}

	scope, ok := extractScope(mapClaims)
	if !ok {
		return nil
	}

	claims := &domain.ClaimSet{
		Scope: scope,
		Extra: make(map[string]any, len(mapClaims)),
	}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = timePtr(exp.Time)
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = timePtr(iat.Time)
	}
	for key, val := range mapClaims {
		switch key {
		case "sub", "exp", "iat", "scope", "scp":
			continue
		}
		claims.Extra[key] = val
	}
	return claims
}

// NormalizeScope reduces a claim set's scope to one space-joined, upper-cased string.
func NormalizeScope(claims *domain.ClaimSet) string {
	if claims == nil {
		return ""
	}
	return strings.ToUpper(strings.Join(claims.Scope, " "))
}

// extractScope accepts a scope encoded as a string or as a list of strings.
// A present but malformed scope makes the whole token undecodable.
func extractScope(mapClaims jwt.MapClaims) ([]string, bool) {
	for _, key := range scopeClaims {
		raw, present := mapClaims[key]
		if !present || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			return strings.Fields(v), true
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, false
				}
				out = append(out, strings.Fields(s)...)
			}
			return out, true
		default:
			return nil, false
		}
	}
	return nil, true
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// Expired reports whether the claim set carries an expiry before now.
func Expired(claims *domain.ClaimSet, now time.Time) bool {
	return claims != nil && claims.ExpiresAt != nil && !now.Before(*claims.ExpiresAt)
}
