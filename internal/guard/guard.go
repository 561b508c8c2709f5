package guard

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/credstore"
	"github.com/spec-kit/storefront-session/internal/domain"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// Sessions is the view of the session controller the guard reads from.
type Sessions interface {
	Store(d domain.Domain) (*credstore.Store, bool)
	Inspector() *auth.Inspector
}

// Guard decides whether a domain's protected area may be rendered. It only
// spares the operator pages the server would reject anyway; the server
// remains the authorization boundary.
type Guard struct {
	sessions Sessions
}

// New builds a guard over the controller's per-domain credential stores.
func New(sessions Sessions) *Guard {
	return &Guard{sessions: sessions}
}

// CanEnter re-reads d's stored token and checks it against d's capability.
func (g *Guard) CanEnter(ctx context.Context, d domain.Domain) bool {
	store, ok := g.sessions.Store(d)
	if !ok {
		return false
	}
	token := store.AccessToken(ctx)
	if token == "" {
		return false
	}
	return auth.Allows(g.sessions.Inspector().Decode(token), d)
}

// LoginPath is where a denied navigation into d is sent.
func LoginPath(d domain.Domain) string {
	return "/" + d.Slug() + "/login"
}

// Protect redirects navigation into d's area to d's login view when CanEnter
// is false. JSON callers get a 401 body carrying the same location.
func (g *Guard) Protect(d domain.Domain) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if g.CanEnter(c.UserContext(), d) {
			return c.Next()
		}
		location := LoginPath(d)
		if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMETextHTML {
			return c.Redirect(location, fiber.StatusSeeOther)
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": fiber.Map{
				"code":     apperrors.CodeUnauthenticated,
				"message":  "sign in required",
				"redirect": location,
			},
		})
	}
}
