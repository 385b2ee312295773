package azureopenai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/providers/fixtures"
)

func TestNewValidatesInputs(t *testing.T) {
	_, err := New(Options{APIKey: "k"})
	require.Error(t, err)
	_, err = New(Options{Endpoint: "https://example.openai.azure.com"})
	require.Error(t, err)
}

func TestTranslateRoutesToDeployment(t *testing.T) {
	var path, apiKey, version string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("Api-Key")
		version = r.URL.Query().Get("api-version")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixtures.MustRead("openai_chat_translation.json"))
	}))
	defer srv.Close()

	adapter, err := New(Options{Endpoint: srv.URL, APIKey: "azure-key", ChatDeployment: "gpt4o-translate"})
	require.NoError(t, err)

	out, err := adapter.Translate(context.Background(), models.TranslateRequest{Text: "Hello world", Source: "en", Target: "de"})
	require.NoError(t, err)
	require.Equal(t, "Hallo Welt", out)
	require.Equal(t, "/openai/deployments/gpt4o-translate/chat/completions", path)
	require.Equal(t, "azure-key", apiKey)
	require.Equal(t, defaultAPIVersion, version)
}
