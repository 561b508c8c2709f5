package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/events"
)

// Subscriber is the part of the session controller the audit worker needs.
type Subscriber interface {
	Subscribe(d domain.Domain, handler events.EventHandler) func()
}

// SessionAudit logs every session transition of every domain.
type SessionAudit struct {
	logger *zap.Logger
	stop   []func()
}

// StartSessionAuditWorker registers audit handlers on all domains.
func StartSessionAuditWorker(sessions Subscriber, logger *zap.Logger) *SessionAudit {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &SessionAudit{logger: logger}
	if sessions == nil {
		return a
	}
	for _, d := range domain.All() {
		a.stop = append(a.stop, sessions.Subscribe(d, a.handleSessionChanged))
	}
	return a
}

// Stop unregisters the handlers.
func (a *SessionAudit) Stop() {
	for _, unsubscribe := range a.stop {
		unsubscribe()
	}
	a.stop = nil
}

func (a *SessionAudit) handleSessionChanged(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("domain", string(event.Domain)),
		zap.String("reason", string(event.Reason)),
		zap.Time("at", event.Timestamp),
	}
	if event.Subject != "" {
		fields = append(fields, zap.String("subject", event.Subject))
	}
	if event.Origin != "" {
		fields = append(fields, zap.String("origin", event.Origin))
	}
	a.logger.Info("SessionChanged", fields...)
	return nil
}
