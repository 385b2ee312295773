package public

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ncecere/open_voice_gateway/internal/app"
	"github.com/ncecere/open_voice_gateway/internal/httpserver/httputil"
	"github.com/ncecere/open_voice_gateway/internal/limits"
	"github.com/ncecere/open_voice_gateway/internal/requestctx"
)

// apiKeyAuth validates the Authorization bearer token and injects request metadata.
func apiKeyAuth(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		rc, err := container.BuildRequestContext(c.Get(fiber.HeaderAuthorization), requestID)
		if err != nil {
			if errors.Is(err, app.ErrMissingAPIKey) || errors.Is(err, app.ErrInvalidAPIKey) {
				return httputil.WriteError(c, fiber.StatusUnauthorized, "Invalid or missing API key")
			}
			return httputil.WriteError(c, fiber.StatusInternalServerError, "api key verification failed")
		}

		c.Locals(requestctx.FiberLocalsKey(), rc)
		c.SetUserContext(requestctx.WithContext(userContext(c), rc))
		return c.Next()
	}
}

// metered charges cost tokens before the handler runs. Headers are set on
// both outcomes so rejected callers can see when to retry.
func metered(container *app.Container, cost int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := userContext(c)
		rc, _ := requestctx.FromContext(ctx)
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		headers, err := container.CheckRateLimit(ctx, rc, route, cost)
		httputil.SetRateLimitHeaders(c, headers)
		if err != nil {
			if errors.Is(err, limits.ErrLimitExceeded) {
				return httputil.WriteError(c, fiber.StatusTooManyRequests, "Rate limit exceeded")
			}
			return httputil.WriteError(c, fiber.StatusInternalServerError, "rate limiter unavailable")
		}
		return c.Next()
	}
}

func userContext(c *fiber.Ctx) context.Context {
	if c == nil {
		return context.Background()
	}
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}

func callerIdentity(c *fiber.Ctx) string {
	if rc, ok := requestctx.FromContext(userContext(c)); ok && rc != nil {
		return rc.Identity
	}
	return limits.AnonymousIdentity
}
