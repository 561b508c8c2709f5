package http

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/api/http/handlers"
	"github.com/spec-kit/storefront-session/internal/apiclient"
	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/auth/authtest"
	"github.com/spec-kit/storefront-session/internal/config"
	"github.com/spec-kit/storefront-session/internal/credstore"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/guard"
	"github.com/spec-kit/storefront-session/internal/observability"
	"github.com/spec-kit/storefront-session/internal/session"
)

type gateway struct {
	app      *fiber.App
	stores   map[domain.Domain]*credstore.Store
	lastAuth atomic.Value
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	g := &gateway{}

	scopes := map[string]any{"sam": "SELLER_STAFF", "casper": []string{"CUSTOMER"}}
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/auth/token", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var creds domain.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		scope, ok := scopes[creds.Username]
		if !ok {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":        authtest.Token(t, creds.Username, scope),
			"refreshToken": "r-" + creds.Username,
		})
	})
	mux.HandleFunc("/auth/logout", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusNoContent)
	})
	mux.HandleFunc("/auth/refresh", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":        authtest.Token(t, "sam", "SELLER_STAFF"),
			"refreshToken": "r-sam-2",
		})
	})
	mux.HandleFunc("/revoked", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusUnauthorized)
	})
	mux.HandleFunc("/orders", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		g.lastAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("status") == "missing" {
			w.WriteHeader(nethttp.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no such order"}`))
			return
		}
		_, _ = w.Write([]byte(`{"orders":[1,2]}`))
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	g.stores = credstore.ForDomains(credstore.NewMemory(), "test", logger)
	clients := make(map[domain.Domain]*apiclient.Client)
	for _, d := range domain.All() {
		client, err := apiclient.New(apiclient.Options{
			Domain:  d,
			BaseURL: upstream.URL,
			Endpoints: config.Endpoints{
				LoginPath:   "/auth/token",
				RefreshPath: "/auth/refresh",
				LogoutPath:  "/auth/logout",
			},
			HTTPClient: &nethttp.Client{Timeout: 2 * time.Second},
			Store:      g.stores[d],
			Metrics:    metrics,
		})
		require.NoError(t, err)
		clients[d] = client
	}
	inspector := auth.NewInspector()
	controller, err := session.NewController(session.Dependencies{
		Clients:   clients,
		Stores:    g.stores,
		Inspector: inspector,
		Metrics:   metrics,
	})
	require.NoError(t, err)

	g.app = fiber.New()
	RegisterMiddlewares(g.app, logger, metrics, time.Second)
	RegisterRoutes(g.app, RouteConfig{
		Health:   handlers.NewHealthHandler("test", "dev", nil),
		Sessions: handlers.NewSessionHandler(controller),
		Proxy:    handlers.NewProxyHandler(controller),
		Guard:    guard.New(controller),
		Metrics:  metrics,
	})
	return g
}

func (g *gateway) do(t *testing.T, method, target, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := g.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func TestStaffLoginProxyAndLogout(t *testing.T) {
	g := newGateway(t)

	status, body := g.do(t, fiber.MethodPost, "/staff/login", `{"username":"sam","password":"pw"}`)
	require.Equal(t, fiber.StatusOK, status, "%v", body)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["authenticated"])
	assert.Contains(t, data["capabilities"], "ANY_STAFF")

	status, body = g.do(t, fiber.MethodGet, "/staff/api/orders", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["orders"], 2)
	assert.True(t, strings.HasPrefix(g.lastAuth.Load().(string), "Bearer "))

	status, body = g.do(t, fiber.MethodGet, "/staff/api/orders?status=missing", "")
	assert.Equal(t, fiber.StatusNotFound, status, "upstream status relayed unchanged")
	assert.Equal(t, "no such order", body["error"])

	status, _ = g.do(t, fiber.MethodPost, "/staff/logout", "")
	assert.Equal(t, fiber.StatusNoContent, status)

	status, body = g.do(t, fiber.MethodGet, "/staff/session", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["data"].(map[string]any)["authenticated"])

	status, body = g.do(t, fiber.MethodGet, "/staff/api/orders", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "/staff/login", body["error"].(map[string]any)["redirect"])
}

func TestProxyExpiresSessionRejectedAfterRefresh(t *testing.T) {
	g := newGateway(t)

	status, _ := g.do(t, fiber.MethodPost, "/staff/login", `{"username":"sam","password":"pw"}`)
	require.Equal(t, fiber.StatusOK, status)

	status, body := g.do(t, fiber.MethodGet, "/staff/api/revoked", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "SESSION_EXPIRED", errBody["code"])
	assert.Equal(t, "/staff/login", errBody["redirect"])

	_, ok := g.stores[domain.DomainStaff].Get(t.Context())
	assert.False(t, ok, "an expired session is cleared")

	status, body = g.do(t, fiber.MethodGet, "/staff/session", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["data"].(map[string]any)["authenticated"])
}

func TestErrorMetricsUseRoutePattern(t *testing.T) {
	g := newGateway(t)

	status, _ := g.do(t, fiber.MethodPost, "/staff/login", `{"username":"sam","password":"pw"}`)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = g.do(t, fiber.MethodGet, "/staff/api/revoked", "")
	require.Equal(t, fiber.StatusUnauthorized, status)

	resp, err := g.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	exposition := string(raw)
	assert.Contains(t, exposition, `path="/staff/api/*"`)
	assert.NotContains(t, exposition, `path="/staff/api/revoked"`)
}

func TestAdminLoginWithCustomerScopeIsRejected(t *testing.T) {
	g := newGateway(t)

	status, body := g.do(t, fiber.MethodPost, "/admin/login", `{"username":"casper","password":"pw"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "ROLE_MISMATCH", errBody["code"])
	assert.Equal(t, "/customer/login", errBody["redirect"])

	_, ok := g.stores[domain.DomainAdmin].Get(t.Context())
	assert.False(t, ok)

	status, _ = g.do(t, fiber.MethodGet, "/admin/api/orders", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLoginErrors(t *testing.T) {
	g := newGateway(t)

	status, body := g.do(t, fiber.MethodPost, "/customer/login", `{"username":"nobody","password":"pw"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", body["error"].(map[string]any)["code"])

	status, body = g.do(t, fiber.MethodPost, "/customer/login", `not json`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestLoginViewAndUnknownDomain(t *testing.T) {
	g := newGateway(t)

	status, body := g.do(t, fiber.MethodGet, "/admin/login", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "/admin/login", body["data"].(map[string]any)["action"])

	status, body = g.do(t, fiber.MethodGet, "/vendor/login", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestHealthAndMetrics(t *testing.T) {
	g := newGateway(t)

	status, body := g.do(t, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	resp, err := g.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
