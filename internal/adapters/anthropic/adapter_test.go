package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/providers/fixtures"
)

func TestTranslateSendsMessagesRequest(t *testing.T) {
	var got messageRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixtures.MustRead("anthropic_message.json"))
	}))
	defer srv.Close()

	adapter, err := New(Options{APIKey: "sk-ant", BaseURL: srv.URL, Model: "claude-3-5-haiku-latest"})
	require.NoError(t, err)
	out, err := adapter.Translate(context.Background(), models.TranslateRequest{Text: "Good morning, how are you?", Source: "en", Target: "de"})
	require.NoError(t, err)
	require.Equal(t, "Guten Morgen, wie geht es dir?", out)

	require.Equal(t, "sk-ant", headers.Get("x-api-key"))
	require.Equal(t, defaultVersion, headers.Get("anthropic-version"))
	require.Equal(t, "claude-3-5-haiku-latest", got.Model)
	require.Contains(t, got.System, "from en to de")
	require.Len(t, got.Messages, 1)
	require.Equal(t, "user", got.Messages[0].Role)
	require.Equal(t, "Good morning, how are you?", got.Messages[0].Content[0].Text)
	require.Equal(t, defaultMaxTokens, got.MaxTokens)
}

func TestTranslateHonoursModelOverrideAndErrors(t *testing.T) {
	var model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body messageRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		model = body.Model
		if body.Model == "broken" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":[],"stop_reason":"max_tokens"}`))
	}))
	defer srv.Close()

	adapter, err := New(Options{APIKey: "k", BaseURL: srv.URL, Model: "claude-default"})
	require.NoError(t, err)

	_, err = adapter.Translate(context.Background(), models.TranslateRequest{Text: "x", Target: "de", Model: "claude-other"})
	require.ErrorContains(t, err, "empty response")
	require.Equal(t, "claude-other", model)

	_, err = adapter.Translate(context.Background(), models.TranslateRequest{Text: "x", Target: "de", Model: "broken"})
	require.ErrorContains(t, err, "anthropic api error 429")

	out, err := adapter.Translate(context.Background(), models.TranslateRequest{Text: "  "})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestNewRequiresKeyAndModel(t *testing.T) {
	_, err := New(Options{Model: "m"})
	require.Error(t, err)
	_, err = New(Options{APIKey: "k"})
	require.Error(t, err)
}

func TestHealthCheckToleratesClientErrors(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	adapter, err := New(Options{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	require.NoError(t, adapter.HealthCheck(context.Background()))

	status = http.StatusServiceUnavailable
	require.ErrorContains(t, adapter.HealthCheck(context.Background()), "503")
}
