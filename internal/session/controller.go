package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/apiclient"
	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/credstore"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/events"
	"github.com/spec-kit/storefront-session/internal/observability"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// Dependencies bundles the per-domain collaborators of the controller.
type Dependencies struct {
	Clients    map[domain.Domain]*apiclient.Client
	Stores     map[domain.Domain]*credstore.Store
	Inspector  *auth.Inspector
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Controller runs login, logout and forced expiry for every domain and
// announces each transition on the domain's session-changed topic.
type Controller struct {
	clients    map[domain.Domain]*apiclient.Client
	stores     map[domain.Domain]*credstore.Store
	inspector  *auth.Inspector
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewController wires the controller and registers it for forced expiry on every client.
func NewController(deps Dependencies) (*Controller, error) {
	for _, d := range domain.All() {
		if deps.Clients[d] == nil {
			return nil, fmt.Errorf("missing api client for %s", d)
		}
		if deps.Stores[d] == nil {
			return nil, fmt.Errorf("missing credential store for %s", d)
		}
	}
	if deps.Inspector == nil {
		deps.Inspector = auth.NewInspector()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = events.NewInMemoryDispatcher()
	}

	c := &Controller{
		clients:    deps.Clients,
		stores:     deps.Stores,
		inspector:  deps.Inspector,
		dispatcher: deps.Dispatcher,
		logger:     observability.OrNop(deps.Logger).Named("session"),
		metrics:    deps.Metrics,
	}
	for _, client := range c.clients {
		client.OnSessionExpired(c.onExpired)
	}
	return c, nil
}

// Login authenticates at d's login endpoint and commits the returned pair
// only when its claims belong to d. A mismatched pair is dropped and a
// ROLE_MISMATCH error names the domain the token does belong to.
func (c *Controller) Login(ctx context.Context, d domain.Domain, creds domain.Credentials) (*domain.Session, error) {
	client, store, err := c.lookup(d)
	if err != nil {
		return nil, err
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, apperrors.NewValidationError("username and password required", nil)
	}

	pair, err := client.Authenticate(ctx, creds)
	if err != nil {
		if apperrors.IsTransport(err) {
			c.metrics.RecordLogin(d, observability.OutcomeTransport)
		} else {
			c.metrics.RecordLogin(d, observability.OutcomeRejected)
		}
		return nil, err
	}

	claims := c.inspector.Decode(pair.AccessToken)
	if !auth.Allows(claims, d) {
		redirect := ""
		if home, ok := auth.HomeDomain(claims); ok && home != d {
			redirect = string(home)
		}
		c.metrics.RecordLogin(d, observability.OutcomeMismatch)
		c.logger.Info("login rejected for domain",
			zap.String("domain", string(d)),
			zap.String("scope", auth.NormalizeScope(claims)),
			zap.String("redirect", redirect))
		return nil, apperrors.NewRoleMismatch(string(d), redirect)
	}

	store.Set(ctx, pair)
	c.metrics.RecordLogin(d, observability.OutcomeSuccess)
	c.publish(ctx, events.NewSessionChanged(d, events.ReasonLogin, claims.Subject))
	return sessionFrom(d, claims), nil
}

// Logout ends d's session. The server call is best effort; local
// credentials of d are always cleared and no other domain is touched.
func (c *Controller) Logout(ctx context.Context, d domain.Domain) error {
	client, store, err := c.lookup(d)
	if err != nil {
		return err
	}

	pair, ok := store.Get(ctx)
	subject := ""
	if ok {
		if claims := c.inspector.Decode(pair.AccessToken); claims != nil {
			subject = claims.Subject
		}
		if err := client.Revoke(ctx, pair); err != nil {
			c.logger.Warn("server logout failed", zap.String("domain", string(d)), zap.Error(err))
		}
	}

	store.Clear(ctx)
	c.publish(ctx, events.NewSessionChanged(d, events.ReasonLogout, subject))
	return nil
}

// ForceExpire ends d's session after the server refused it, clearing the
// credentials and announcing the expiry. It does nothing when d holds no
// credentials, so an expiry the client already handled is announced once.
func (c *Controller) ForceExpire(ctx context.Context, d domain.Domain) error {
	_, store, err := c.lookup(d)
	if err != nil {
		return err
	}
	pair, ok := store.Get(ctx)
	if !ok {
		return nil
	}
	subject := ""
	if claims := c.inspector.Decode(pair.AccessToken); claims != nil {
		subject = claims.Subject
	}
	if !store.ClearIf(ctx, pair.AccessToken) {
		return nil
	}
	c.logger.Info("session force-expired", zap.String("domain", string(d)))
	c.publish(ctx, events.NewSessionChanged(d, events.ReasonExpired, subject))
	return nil
}

func (c *Controller) onExpired(ctx context.Context, d domain.Domain) {
	c.logger.Info("session expired", zap.String("domain", string(d)))
	c.publish(ctx, events.NewSessionChanged(d, events.ReasonExpired, ""))
}

// Current returns d's session as described by the stored token right now.
func (c *Controller) Current(ctx context.Context, d domain.Domain) (*domain.Session, bool) {
	store, ok := c.stores[d]
	if !ok {
		return nil, false
	}
	pair, ok := store.Get(ctx)
	if !ok {
		return nil, false
	}
	claims := c.inspector.Decode(pair.AccessToken)
	if claims == nil {
		return &domain.Session{Domain: d}, true
	}
	return sessionFrom(d, claims), true
}

// HasCapability decodes d's stored token and evaluates capability. Nothing is
// cached, so a refresh, logout or login is visible on the next call.
func (c *Controller) HasCapability(ctx context.Context, d domain.Domain, capability domain.Capability) bool {
	store, ok := c.stores[d]
	if !ok {
		return false
	}
	return auth.HasCapability(c.inspector.Decode(store.AccessToken(ctx)), capability)
}

// Subscribe registers handler on d's session-changed topic.
func (c *Controller) Subscribe(d domain.Domain, handler events.EventHandler) func() {
	return c.dispatcher.Subscribe(events.SessionChanged(d), handler)
}

// Client returns d's API client.
func (c *Controller) Client(d domain.Domain) (*apiclient.Client, bool) {
	client, ok := c.clients[d]
	return client, ok
}

// Store returns d's credential store.
func (c *Controller) Store(d domain.Domain) (*credstore.Store, bool) {
	store, ok := c.stores[d]
	return store, ok
}

// Inspector returns the token inspector shared by the controller.
func (c *Controller) Inspector() *auth.Inspector {
	return c.inspector
}

func (c *Controller) lookup(d domain.Domain) (*apiclient.Client, *credstore.Store, error) {
	client, ok := c.clients[d]
	if !ok {
		return nil, nil, apperrors.NewValidationError("unknown domain", map[string]any{"domain": string(d)})
	}
	return client, c.stores[d], nil
}

func (c *Controller) publish(ctx context.Context, event events.Event) {
	if err := c.dispatcher.Publish(ctx, event); err != nil {
		c.logger.Warn("session-changed handler failed",
			zap.String("domain", string(event.Domain)),
			zap.String("reason", string(event.Reason)),
			zap.Error(err))
	}
}

func sessionFrom(d domain.Domain, claims *domain.ClaimSet) *domain.Session {
	return &domain.Session{
		Domain:       d,
		Subject:      claims.Subject,
		ExpiresAt:    claims.ExpiresAt,
		Expired:      auth.Expired(claims, time.Now()),
		Capabilities: auth.CapabilitiesOf(claims),
	}
}
