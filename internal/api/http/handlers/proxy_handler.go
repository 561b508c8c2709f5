package handlers

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-session/internal/apiclient"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/session"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// forwardedHeaders are copied from the inbound request to the upstream call.
var forwardedHeaders = []string{fiber.HeaderContentType, fiber.HeaderAccept, "Idempotency-Key"}

// ProxyHandler relays business calls through the domain's API client.
type ProxyHandler struct {
	sessions *session.Controller
}

// NewProxyHandler constructs handler.
func NewProxyHandler(sessions *session.Controller) *ProxyHandler {
	return &ProxyHandler{sessions: sessions}
}

// Forward handles ALL /:domain/api/*. Upstream statuses and bodies are
// relayed unchanged; only auth failures surface as gateway errors.
func (h *ProxyHandler) Forward(d domain.Domain) fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, ok := h.sessions.Client(d)
		if !ok {
			return apperrors.NewNotFound("domain", map[string]any{"domain": string(d)})
		}

		req := apiclient.Request{
			Method: c.Method(),
			Path:   "/" + c.Params("*"),
			Header: http.Header{},
		}
		if body := c.Body(); len(body) > 0 {
			req.Body = append([]byte(nil), body...)
		}
		if raw := string(c.Request().URI().QueryString()); raw != "" {
			query, err := url.ParseQuery(raw)
			if err != nil {
				return apperrors.NewValidationError("invalid query string", nil)
			}
			req.Query = query
		}
		for _, key := range forwardedHeaders {
			if v := c.Get(key); v != "" {
				req.Header.Set(key, v)
			}
		}

		resp, err := client.Do(c.UserContext(), req)
		if apperrors.IsSessionExpired(err) {
			if expireErr := h.sessions.ForceExpire(c.UserContext(), d); expireErr != nil {
				return expireErr
			}
		}
		if err != nil {
			return err
		}

		if ct := resp.Header.Get(fiber.HeaderContentType); ct != "" {
			c.Set(fiber.HeaderContentType, ct)
		}
		return c.Status(resp.StatusCode).Send(resp.Body)
	}
}
