package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-session/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CREDENTIAL_BACKEND", "")
	t.Setenv("UPSTREAM_BASE_URL", "http://shop.local:9000/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Credentials.Backend)
	assert.Equal(t, "http://shop.local:9000", cfg.Upstream.BaseURL)
	for _, d := range domain.All() {
		ep := cfg.Upstream.Endpoints[d]
		assert.Equal(t, "/auth/token", ep.LoginPath)
		assert.Equal(t, "/auth/refresh", ep.RefreshPath)
		assert.Equal(t, "/auth/logout", ep.LogoutPath)
	}
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.False(t, cfg.UsesRedis())
}

func TestLoadPerDomainOverride(t *testing.T) {
	t.Setenv("AUTH_ADMIN_LOGIN_PATH", "/admin/auth/token")
	t.Setenv("SESSION_RELAY_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/admin/auth/token", cfg.Upstream.Endpoints[domain.DomainAdmin].LoginPath)
	assert.Equal(t, "/auth/token", cfg.Upstream.Endpoints[domain.DomainStaff].LoginPath)
	assert.True(t, cfg.UsesRedis())
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CREDENTIAL_BACKEND", "cookie")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	t.Setenv("CREDENTIAL_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	_, err := Load()
	require.Error(t, err)
}
