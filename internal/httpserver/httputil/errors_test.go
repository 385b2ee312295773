package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/limits"
	"github.com/ncecere/open_voice_gateway/internal/pipeline"
)

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestWriteStageError(t *testing.T) {
	app := fiber.New()
	app.Get("/stage", func(c *fiber.Ctx) error {
		return WriteStageError(c, &pipeline.StageError{Stage: pipeline.StageTranslate, Kind: pipeline.KindUpstream, Detail: "timeout"})
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return WriteStageError(c, errors.New("boom"))
	})
	app.Get("/limited", func(c *fiber.Ctx) error {
		SetRateLimitHeaders(c, limits.Headers{Limit: 60, Remaining: 0, Reset: 1})
		return WriteError(c, fiber.StatusTooManyRequests, "Rate limit exceeded")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/stage", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	require.Equal(t, map[string]any{"error": "timeout", "stage": "translate"}, decode(t, resp.Body))

	resp, err = app.Test(httptest.NewRequest("GET", "/plain", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := decode(t, resp.Body)
	require.NotContains(t, body, "stage")

	resp, err = app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "60", resp.Header.Get(limits.HeaderLimit))
	require.Equal(t, "0", resp.Header.Get(limits.HeaderRemaining))
	require.Equal(t, "1", resp.Header.Get(limits.HeaderReset))
}
