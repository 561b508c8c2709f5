package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-session/internal/api/dto"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/guard"
	"github.com/spec-kit/storefront-session/internal/session"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// SessionHandler exposes login, logout and session views for every domain.
type SessionHandler struct {
	sessions *session.Controller
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *session.Controller) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// LoginView handles GET /:domain/login, the target of guard redirects.
func (h *SessionHandler) LoginView(d domain.Domain) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"data": dto.LoginViewResponse{Domain: d, Action: guard.LoginPath(d), Method: http.MethodPost},
		})
	}
}

// Login handles POST /:domain/login.
func (h *SessionHandler) Login(d domain.Domain) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req dto.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}

		s, err := h.sessions.Login(c.UserContext(), d, domain.Credentials{
			Username: req.Username,
			Password: req.Password,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.NewSessionResponse(d, s)})
	}
}

// Logout handles POST /:domain/logout.
func (h *SessionHandler) Logout(d domain.Domain) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := h.sessions.Logout(c.UserContext(), d); err != nil {
			return err
		}
		return c.SendStatus(http.StatusNoContent)
	}
}

// Show handles GET /:domain/session.
func (h *SessionHandler) Show(d domain.Domain) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, _ := h.sessions.Current(c.UserContext(), d)
		return c.JSON(fiber.Map{"data": dto.NewSessionResponse(d, s)})
	}
}
