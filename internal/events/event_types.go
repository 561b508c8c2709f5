package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/storefront-session/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

// SessionChanged is the session-changed topic of domain d. Each domain has
// its own topic; subscribers of one never see another's events.
func SessionChanged(d domain.Domain) EventType {
	return EventType("session_changed:" + d.Slug())
}

// Reason says why a domain's session changed.
type Reason string

const (
	ReasonLogin   Reason = "login"
	ReasonLogout  Reason = "logout"
	ReasonExpired Reason = "expired"
)

// Event represents a session transition of one domain.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Domain    domain.Domain `json:"domain"`
	Reason    Reason        `json:"reason"`
	Subject   string        `json:"subject,omitempty"`
	Origin    string        `json:"origin,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewSessionChanged builds a session-changed event for d.
func NewSessionChanged(d domain.Domain, reason Reason, subject string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      SessionChanged(d),
		Domain:    d,
		Reason:    reason,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
	}
}
