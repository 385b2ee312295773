package httputil

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/open_voice_gateway/internal/limits"
	"github.com/ncecere/open_voice_gateway/internal/pipeline"
)

// WriteError standardizes JSON error responses for both admin and public APIs.
func WriteError(c *fiber.Ctx, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

// WriteStageError renders a pipeline failure with the stage it happened in.
// Errors that are not stage errors become a 500.
func WriteStageError(c *fiber.Ctx, err error) error {
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		return WriteError(c, fiber.StatusInternalServerError, "")
	}
	return c.Status(se.Status()).JSON(fiber.Map{
		"error": se.Error(),
		"stage": string(se.Stage),
	})
}

// SetRateLimitHeaders copies advisory limiter state onto the response.
func SetRateLimitHeaders(c *fiber.Ctx, h limits.Headers) {
	for k, v := range h.Map() {
		c.Set(k, v)
	}
}
