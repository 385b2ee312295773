package httputil

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/open_voice_gateway/internal/db"
	"github.com/ncecere/open_voice_gateway/internal/services/benchmarks"
	"github.com/ncecere/open_voice_gateway/internal/services/organizations"
	"github.com/ncecere/open_voice_gateway/internal/services/search"
	"github.com/ncecere/open_voice_gateway/internal/services/sessions"
	"github.com/ncecere/open_voice_gateway/internal/timeutil"
)

// WriteServiceError maps the service sentinels to HTTP statuses. Anything
// unrecognised is a 500 with a generic message.
func WriteServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, sessions.ErrServiceUnavailable),
		errors.Is(err, organizations.ErrServiceUnavailable),
		errors.Is(err, search.ErrUnavailable):
		return WriteError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, sessions.ErrNotFound),
		errors.Is(err, sessions.ErrMessageNotFound),
		errors.Is(err, sessions.ErrAudioNotFound),
		errors.Is(err, organizations.ErrNotFound),
		errors.Is(err, benchmarks.ErrNotFound):
		return WriteError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, sessions.ErrInvalidLanguage),
		errors.Is(err, organizations.ErrInvalidPolicy),
		errors.Is(err, organizations.ErrNameRequired),
		errors.Is(err, search.ErrQueryRequired),
		errors.Is(err, search.ErrInvalidOrg),
		errors.Is(err, timeutil.ErrInvalidDay):
		return WriteError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, search.ErrEmptyEmbedding),
		errors.Is(err, db.ErrEmbeddingDimensions):
		return WriteError(c, fiber.StatusBadGateway, err.Error())
	default:
		return WriteError(c, fiber.StatusInternalServerError, "")
	}
}
