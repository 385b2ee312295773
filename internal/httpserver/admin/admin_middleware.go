package admin

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/open_voice_gateway/internal/app"
	"github.com/ncecere/open_voice_gateway/internal/auth"
	"github.com/ncecere/open_voice_gateway/internal/httpserver/httputil"
)

func adminAuthMiddleware(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !container.AdminAuth.Enabled() {
			return httputil.WriteError(c, fiber.StatusNotFound, "admin API is disabled")
		}
		token, ok := app.BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "admin authorization required")
		}
		if err := container.AdminAuth.Authorize(token); err != nil {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid or expired token")
		}
		return c.Next()
	}
}

type authHandler struct {
	container *app.Container
}

type tokenRequest struct {
	Password string `json:"password"`
}

func (h *authHandler) token(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	token, err := h.container.AdminAuth.Login(req.Password)
	switch {
	case errors.Is(err, auth.ErrAdminDisabled):
		return httputil.WriteError(c, fiber.StatusNotFound, "admin API is disabled")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid credentials")
	case err != nil:
		h.container.Logger.Error("admin token issue failed", "error", err)
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to issue token")
	}
	return c.JSON(token)
}

func userContext(c *fiber.Ctx) context.Context {
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}
