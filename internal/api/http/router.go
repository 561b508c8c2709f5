package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/storefront-session/internal/api/http/handlers"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/guard"
	"github.com/spec-kit/storefront-session/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Sessions *handlers.SessionHandler
	Proxy    *handlers.ProxyHandler
	Guard    *guard.Guard
	Metrics  *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Every domain gets the same surface under
// its own prefix; the api subtree sits behind that domain's guard.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	for _, d := range domain.All() {
		group := app.Group("/" + d.Slug())
		group.Get("/login", cfg.Sessions.LoginView(d))
		group.Post("/login", cfg.Sessions.Login(d))
		group.Post("/logout", cfg.Sessions.Logout(d))
		group.Get("/session", cfg.Sessions.Show(d))

		protected := group.Group("/api", cfg.Guard.Protect(d))
		protected.All("/*", cfg.Proxy.Forward(d))
	}
}
