package public

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/app"
	"github.com/ncecere/open_voice_gateway/internal/auth"
	"github.com/ncecere/open_voice_gateway/internal/cache"
	"github.com/ncecere/open_voice_gateway/internal/config"
	"github.com/ncecere/open_voice_gateway/internal/limits"
	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/pipeline"
	"github.com/ncecere/open_voice_gateway/internal/providers"
)

type stubSTT struct{ calls int }

func (s *stubSTT) Transcribe(context.Context, []byte, string) (models.Transcription, error) {
	s.calls++
	return models.Transcription{Text: "hallo welt", Language: "de"}, nil
}

func (s *stubSTT) Release() error { return nil }

type stubTranslator struct{}

func (stubTranslator) Translate(context.Context, models.TranslateRequest) (string, error) {
	return "hello world", nil
}

func (stubTranslator) Release() error { return nil }

type stubTTS struct{}

func (stubTTS) Synthesize(context.Context, models.SynthesisRequest) (models.Audio, error) {
	return models.Audio{Data: []byte("WAVDATA"), Format: models.AudioFormatWAV}, nil
}

func (stubTTS) Release() error { return nil }

type stubResolver struct{ stt *stubSTT }

func (r stubResolver) Transcriber() (*providers.Lease[providers.Transcriber], error) {
	return &providers.Lease[providers.Transcriber]{Provider: r.stt}, nil
}

func (stubResolver) Translator(context.Context, providers.TranslatorOverrides) (*providers.Lease[providers.Translator], error) {
	return &providers.Lease[providers.Translator]{Provider: stubTranslator{}}, nil
}

func (stubResolver) Synthesizer(context.Context, providers.SynthesizerOverrides) (*providers.Lease[providers.Synthesizer], error) {
	return &providers.Lease[providers.Synthesizer]{Provider: stubTTS{}}, nil
}

type testEnv struct {
	app       *fiber.App
	container *app.Container
	stt       *stubSTT
}

func newTestEnv(t *testing.T, keys []string, perMinute int, rdb *redis.Client) *testEnv {
	t.Helper()
	cfg := &config.Config{}
	cfg.Audio.MaxUploadMB = 1
	cfg.Providers.STT = "whisper"
	cfg.Providers.Whisper.Model = "small"
	cfg.Providers.Translate = "local"
	cfg.Providers.Ollama.Model = "ministral:3b"
	cfg.Providers.TTS = "piper"

	stt := &stubSTT{}
	orch, err := pipeline.New(pipeline.Options{Resolver: stubResolver{stt: stt}})
	require.NoError(t, err)

	container := &app.Container{
		Config:      cfg,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Providers:   &providers.Set{Synthesizer: stubTTS{}},
		Pipeline:    orch,
		RateLimiter: limits.NewMemoryLimiter(perMinute),
		Idempotency: cache.NewIdempotencyCache(rdb, cache.DefaultTTL),
		APIKeys:     auth.NewKeySet(keys),
	}
	fiberApp := fiber.New()
	Register(fiberApp, container)
	return &testEnv{app: fiberApp, container: container, stt: stt}
}

func pipelineBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "clip.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF....WAVE"))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func postPipeline(t *testing.T, env *testEnv, fields map[string]string, headers map[string]string) *http.Response {
	t.Helper()
	body, contentType := pipelineBody(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline", body)
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPipelineReturnsJSONEnvelope(t *testing.T) {
	env := newTestEnv(t, nil, 0, nil)

	resp := postPipeline(t, env, map[string]string{"tts": "true"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[models.PipelineResponse](t, resp)
	require.Equal(t, "hallo welt", body.Transcript)
	require.Equal(t, "de", body.SourceLang)
	require.Equal(t, "hello world", body.Translation)
	require.NotNil(t, body.Audio)
	require.Equal(t, models.AudioFormatWAV, body.AudioFormat)
}

func TestPipelineAudioFormatReturnsRawBytes(t *testing.T) {
	env := newTestEnv(t, nil, 0, nil)

	resp := postPipeline(t, env, map[string]string{"response_format": "audio"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "WAVDATA", string(data))
}

func TestPipelineRejectsBadParameters(t *testing.T) {
	env := newTestEnv(t, nil, 0, nil)

	cases := map[string]map[string]string{
		"format":     {"response_format": "xml"},
		"session":    {"session_id": "not-a-uuid"},
		"float knob": {"temperature": "warm"},
		"bool flag":  {"tts": "maybe"},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postPipeline(t, env, fields, nil)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	require.Zero(t, env.stt.calls)
}

func TestPipelineRequiresAPIKeyWhenConfigured(t *testing.T) {
	env := newTestEnv(t, []string{"sk-test"}, 0, nil)

	resp := postPipeline(t, env, nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	require.Equal(t, "Invalid or missing API key", body["error"])

	resp = postPipeline(t, env, nil, map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postPipeline(t, env, map[string]string{"tts": "false"}, map[string]string{"Authorization": "Bearer sk-test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPipelineChargesThreeTokens(t *testing.T) {
	env := newTestEnv(t, nil, 4, nil)

	resp := postPipeline(t, env, map[string]string{"tts": "false"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "4", resp.Header.Get(limits.HeaderLimit))
	require.Equal(t, "1", resp.Header.Get(limits.HeaderRemaining))

	resp = postPipeline(t, env, map[string]string{"tts": "false"}, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "0", resp.Header.Get(limits.HeaderRemaining))
	body := decode[map[string]string](t, resp)
	require.Equal(t, "Rate limit exceeded", body["error"])

	// One token is still enough for a cheap route.
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "0", resp.Header.Get(limits.HeaderRemaining))
}

func TestPipelineReplaysIdempotentResponses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	env := newTestEnv(t, nil, 0, rdb)

	headers := map[string]string{headerIdempotencyKey: "abc-123"}
	first := postPipeline(t, env, map[string]string{"tts": "false"}, headers)
	require.Equal(t, http.StatusOK, first.StatusCode)
	require.Empty(t, first.Header.Get(headerReplayed))
	firstBody := decode[models.PipelineResponse](t, first)

	second := postPipeline(t, env, map[string]string{"tts": "false"}, headers)
	require.Equal(t, http.StatusOK, second.StatusCode)
	require.Equal(t, "true", second.Header.Get(headerReplayed))
	require.Equal(t, firstBody, decode[models.PipelineResponse](t, second))
	require.Equal(t, 1, env.stt.calls)
}

func TestModelsListsConfiguredProviders(t *testing.T) {
	env := newTestEnv(t, nil, 0, nil)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/v1/models", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[models.ModelList](t, resp)
	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
		require.Equal(t, "model", m.Object)
	}
	require.Equal(t, []string{"whisper-small", "ollama/ministral:3b", "piper"}, ids)
}

func TestTranslateEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader(`{"text":"hallo","target":"en"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[models.TranslateResponse](t, resp)
	require.Equal(t, "hello world", body.Text)
	require.Equal(t, "auto", body.DetectedSource)
}

func TestSpeechRejectsEmptyInput(t *testing.T) {
	env := newTestEnv(t, nil, 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", strings.NewReader(`{"input":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryRoutesWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, nil, 0, nil)

	cases := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodGet, "/v1/sessions", "", http.StatusServiceUnavailable},
		{http.MethodPost, "/v1/sessions", `{"source_lang":"de","target_lang":"en"}`, http.StatusServiceUnavailable},
		{http.MethodGet, "/v1/sessions/not-a-uuid", "", http.StatusNotFound},
		{http.MethodPost, "/v1/search", `{"query":"hello"}`, http.StatusServiceUnavailable},
		{http.MethodGet, "/v1/benchmarks/2025-03-01", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			req.Header.Set("Content-Type", "application/json")
			resp, err := env.app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
