package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/storefront-session/internal/config"
	"github.com/spec-kit/storefront-session/internal/credstore"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/observability"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

const maxResponseBytes = 8 << 20

// ExpiryHook is called after a domain's credentials were cleared because the
// auth server rejected a refresh.
type ExpiryHook func(ctx context.Context, d domain.Domain)

// Options configures a Client.
type Options struct {
	Domain     domain.Domain
	BaseURL    string
	Endpoints  config.Endpoints
	HTTPClient *http.Client
	Store      *credstore.Store
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Client sends requests on behalf of one domain, injecting its bearer token
// and refreshing it at most once per request.
type Client struct {
	domain    domain.Domain
	baseURL   string
	endpoints config.Endpoints
	http      *http.Client
	store     *credstore.Store
	logger    *zap.Logger
	metrics   *observability.Metrics

	// flight coalesces concurrent refreshes; there is one key per client.
	flight singleflight.Group

	hooksMu sync.RWMutex
	hooks   []ExpiryHook
}

// New builds a client for opts.Domain.
func New(opts Options) (*Client, error) {
	if !opts.Domain.Valid() {
		return nil, fmt.Errorf("invalid domain %q", opts.Domain)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("credential store required for %s", opts.Domain)
	}
	if opts.Store.Domain() != opts.Domain {
		return nil, fmt.Errorf("credential store of %s cannot serve %s", opts.Store.Domain(), opts.Domain)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		domain:    opts.Domain,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		endpoints: opts.Endpoints,
		http:      httpClient,
		store:     opts.Store,
		logger:    observability.OrNop(opts.Logger).Named("apiclient").With(zap.String("domain", string(opts.Domain))),
		metrics:   opts.Metrics,
	}, nil
}

// Domain returns the domain the client serves.
func (c *Client) Domain() domain.Domain {
	return c.domain
}

// OnSessionExpired registers fn to run after a rejected refresh.
func (c *Client) OnSessionExpired(fn ExpiryHook) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Do sends req with the domain's bearer token. A 401 triggers one refresh
// (shared with every other request that 401s meanwhile) and one replay; a
// replay that 401s again fails with SESSION_EXPIRED. Other statuses are
// returned as-is, and network failures as TRANSPORT_ERROR.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	pair, authenticated := c.store.Get(ctx)
	if !authenticated {
		c.logger.Warn("sending request without credentials",
			zap.String("method", req.Method), zap.String("path", req.Path))
	}

	resp, err := c.send(ctx, req, pair.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if !authenticated {
		return nil, apperrors.NewUnauthenticated(string(c.domain))
	}

	token, err := c.refresh(ctx, pair.AccessToken)
	if err != nil {
		return nil, err
	}

	retried, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if retried.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("request rejected after refresh",
			zap.String("method", req.Method), zap.String("path", req.Path))
		return nil, apperrors.NewSessionExpired(string(c.domain))
	}
	return retried, nil
}

// refresh returns an access token newer than stale, running at most one
// refresh call per domain at a time.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	if current := c.store.AccessToken(ctx); current != "" && current != stale {
		c.metrics.RecordRefresh(c.domain, observability.OutcomeShared)
		return current, nil
	}

	// The shared call must not die with whichever caller happened to start it.
	ch := c.flight.DoChan(string(c.domain), func() (any, error) {
		return c.doRefresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", apperrors.NewTransportError("request cancelled while waiting for refresh", ctx.Err())
	}
}

func (c *Client) doRefresh(ctx context.Context, stale string) (string, error) {
	pair, ok := c.store.Get(ctx)
	if !ok {
		// Cleared by a logout or an earlier rejected refresh.
		return "", apperrors.NewSessionExpired(string(c.domain))
	}
	if pair.AccessToken != stale {
		c.metrics.RecordRefresh(c.domain, observability.OutcomeShared)
		return pair.AccessToken, nil
	}
	if pair.RefreshToken == "" {
		c.logger.Info("no refresh token held; expiring session")
		return c.expire(ctx, stale)
	}

	c.logger.Info("refreshing credentials")
	req, err := NewJSONRequest(http.MethodPost, c.endpoints.RefreshPath, map[string]string{
		"refreshToken": pair.RefreshToken,
	})
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	resp, err := c.send(ctx, req, "")
	if err != nil {
		c.metrics.RecordRefresh(c.domain, observability.OutcomeTransport)
		c.logger.Warn("refresh call failed; keeping credentials", zap.Error(err))
		return "", err
	}

	switch {
	case resp.OK():
	case isAuthRejection(resp.StatusCode):
		c.metrics.RecordRefresh(c.domain, observability.OutcomeRejected)
		c.logger.Warn("refresh rejected; expiring session", zap.Int("status", resp.StatusCode))
		return c.expire(ctx, stale)
	default:
		c.metrics.RecordRefresh(c.domain, observability.OutcomeTransport)
		c.logger.Warn("refresh failed upstream; keeping credentials", zap.Int("status", resp.StatusCode))
		return "", apperrors.NewTransportError(fmt.Sprintf("refresh returned status %d", resp.StatusCode), nil)
	}

	next, err := parseTokenPair(resp.Body)
	if err != nil {
		c.metrics.RecordRefresh(c.domain, observability.OutcomeTransport)
		return "", apperrors.NewTransportError("malformed refresh response", err)
	}
	if next.RefreshToken == "" {
		next.RefreshToken = pair.RefreshToken
	}
	if !c.store.Swap(ctx, stale, next) {
		c.logger.Info("session changed during refresh; discarding refreshed credentials")
		return c.superseded(ctx)
	}
	c.metrics.RecordRefresh(c.domain, observability.OutcomeSuccess)
	c.logger.Info("credentials refreshed")
	return next.AccessToken, nil
}

// expire clears the pair whose access token is stale and runs the expiry
// hooks. A pair a login or logout replaced meanwhile is left alone.
func (c *Client) expire(ctx context.Context, stale string) (string, error) {
	if !c.store.ClearIf(ctx, stale) {
		return c.superseded(ctx)
	}

	c.hooksMu.RLock()
	hooks := append([]ExpiryHook{}, c.hooks...)
	c.hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, c.domain)
	}
	return "", apperrors.NewSessionExpired(string(c.domain))
}

// superseded resolves a refresh whose pair was replaced or removed while it
// ran: the request goes on with whatever is stored now, or expires.
func (c *Client) superseded(ctx context.Context) (string, error) {
	if current := c.store.AccessToken(ctx); current != "" {
		c.metrics.RecordRefresh(c.domain, observability.OutcomeShared)
		return current, nil
	}
	return "", apperrors.NewSessionExpired(string(c.domain))
}

// Authenticate exchanges credentials at the login endpoint. It does not touch
// the credential store; committing the pair is the caller's decision.
func (c *Client) Authenticate(ctx context.Context, creds domain.Credentials) (domain.CredentialPair, error) {
	req, err := NewJSONRequest(http.MethodPost, c.endpoints.LoginPath, creds)
	if err != nil {
		return domain.CredentialPair{}, apperrors.NewInternalError(err)
	}
	resp, err := c.send(ctx, req, "")
	if err != nil {
		return domain.CredentialPair{}, err
	}
	switch {
	case resp.OK():
	case isAuthRejection(resp.StatusCode):
		return domain.CredentialPair{}, apperrors.NewInvalidCredentials()
	default:
		return domain.CredentialPair{}, apperrors.NewTransportError(fmt.Sprintf("login returned status %d", resp.StatusCode), nil)
	}

	pair, err := parseTokenPair(resp.Body)
	if err != nil {
		return domain.CredentialPair{}, apperrors.NewTransportError("malformed login response", err)
	}
	return pair, nil
}

// Revoke tells the auth server to end the session held by pair.
func (c *Client) Revoke(ctx context.Context, pair domain.CredentialPair) error {
	req, err := NewJSONRequest(http.MethodPost, c.endpoints.LogoutPath, map[string]string{
		"refreshToken": pair.RefreshToken,
	})
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, req, pair.AccessToken)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("logout returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req Request, token string) (*Response, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, apperrors.NewTransportError("build upstream request", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Del("Authorization")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransportError("upstream request failed", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.NewTransportError("read upstream response", err)
	}
	c.metrics.RecordRequest(c.domain, method, httpResp.StatusCode)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}, nil
}

// isAuthRejection reports statuses by which the auth server refuses a
// credential outright, as opposed to failing to answer.
func isAuthRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}
