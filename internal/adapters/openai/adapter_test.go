package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/providers/fixtures"
)

func TestNormalizeBaseURL(t *testing.T) {
	require.Equal(t, "http://llm:8000/v1/", NormalizeBaseURL("http://llm:8000"))
	require.Equal(t, "http://llm:8000/v1/", NormalizeBaseURL("http://llm:8000/v1"))
	require.Equal(t, "http://llm:8000/v1/", NormalizeBaseURL("http://llm:8000/v1/"))
}

func TestNewRequiresKeyOrBaseURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "http://localhost:8000"})
	require.NoError(t, err)
}

func TestTranslateAgainstCompatServer(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixtures.MustRead("openai_chat_translation.json"))
	}))
	defer srv.Close()

	adapter, err := New(Options{BaseURL: srv.URL + "/v1", ChatModel: "llama3"})
	require.NoError(t, err)
	defer adapter.Release()

	out, err := adapter.Translate(context.Background(), models.TranslateRequest{Text: "Hello world", Source: "en", Target: "de"})
	require.NoError(t, err)
	require.Equal(t, "Hallo Welt", out)
	require.Empty(t, auth)
	require.Equal(t, "llama3", body["model"])
	require.InDelta(t, 0.3, body["temperature"], 1e-9)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	require.Contains(t, msgs[0].(map[string]any)["content"], "from en to de")
	require.Equal(t, "Hello world", msgs[1].(map[string]any)["content"])
}

func TestTranslateSendsBearerAndModelOverride(t *testing.T) {
	var auth, model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		model = body.Model
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixtures.MustRead("openai_chat_translation.json"))
	}))
	defer srv.Close()

	adapter, err := New(Options{APIKey: "sk-test", BaseURL: srv.URL, ChatModel: "default-model"})
	require.NoError(t, err)
	_, err = adapter.Translate(context.Background(), models.TranslateRequest{Text: "hi", Source: "en", Target: "fr", Model: "override"})
	require.NoError(t, err)
	require.Equal(t, "Bearer sk-test", auth)
	require.Equal(t, "override", model)
}

func TestTranslateEmptyTextSkipsUpstream(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	adapter, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	out, err := adapter.Translate(context.Background(), models.TranslateRequest{Text: "   "})
	require.NoError(t, err)
	require.Empty(t, out)
	require.Zero(t, calls)
}

func TestTranslateReportsUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"backend down"}}`))
	}))
	defer srv.Close()

	adapter, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = adapter.Translate(context.Background(), models.TranslateRequest{Text: "hi", Source: "en", Target: "de"})
	require.ErrorContains(t, err, "openai-compat 502")
}

func TestTranscribeUsesReportedLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "whisper-1", r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixtures.MustRead("openai_transcription.json"))
	}))
	defer srv.Close()

	adapter, err := New(Options{APIKey: "sk", BaseURL: srv.URL, STTModel: "whisper-1"})
	require.NoError(t, err)
	out, err := adapter.Transcribe(context.Background(), []byte("RIFF...."), "")
	require.NoError(t, err)
	require.Equal(t, "guten morgen", out.Text)
	require.Equal(t, "de", out.Language)
}

func TestEmbedConvertsToFloat32(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixtures.MustRead("openai_embedding.json"))
	}))
	defer srv.Close()

	adapter, err := New(Options{APIKey: "sk", BaseURL: srv.URL, EmbeddingModel: "text-embedding-3-small", EmbeddingDimensions: 768})
	require.NoError(t, err)
	vec, err := adapter.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{0.25, -0.5, 1.0}, vec)
	require.Equal(t, "text-embedding-3-small", body["model"])
	require.EqualValues(t, 768, body["dimensions"])
}

func TestSynthesizeReturnsWAV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/speech", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		require.Equal(t, "wav", body["response_format"])
		require.Equal(t, "nova", body["voice"])
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFDATA"))
	}))
	defer srv.Close()

	adapter, err := New(Options{APIKey: "sk", BaseURL: srv.URL, TTSModel: "tts-1", TTSVoice: "nova"})
	require.NoError(t, err)
	audio, err := adapter.Synthesize(context.Background(), models.SynthesisRequest{Text: "hallo"})
	require.NoError(t, err)
	require.Equal(t, models.AudioFormatWAV, audio.Format)
	require.Equal(t, []byte("RIFFDATA"), audio.Data)
}
