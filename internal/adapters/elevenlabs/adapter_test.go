package elevenlabs

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

func TestSynthesizeDefaultsVoiceSettings(t *testing.T) {
	var got speechRequest
	var key, format string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		format = r.URL.Query().Get("output_format")
		key = r.Header.Get("xi-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	adapter, err := New(Options{APIKey: "el-key", VoiceID: "voice-1", BaseURL: srv.URL})
	require.NoError(t, err)
	audio, err := adapter.Synthesize(context.Background(), models.SynthesisRequest{Text: "Hola"})
	require.NoError(t, err)
	require.Equal(t, models.AudioFormatMP3, audio.Format)
	require.Equal(t, "el-key", key)
	require.Equal(t, "mp3_44100_128", format)
	require.Equal(t, "eleven_multilingual_v2", got.ModelID)
	require.Equal(t, 0.5, got.VoiceSettings.Stability)
	require.Equal(t, 0.75, got.VoiceSettings.SimilarityBoost)
}

func TestSynthesizeRequiresVoice(t *testing.T) {
	adapter, err := New(Options{APIKey: "k"})
	require.NoError(t, err)
	_, err = adapter.Synthesize(context.Background(), models.SynthesisRequest{Text: "x"})
	require.ErrorContains(t, err, "no voice_id configured")
}

func TestSynthesizeMapsStatuses(t *testing.T) {
	for status, want := range map[int]string{401: "invalid API key", 429: "rate limit exceeded"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		adapter, err := New(Options{APIKey: "k", VoiceID: "v", BaseURL: srv.URL})
		require.NoError(t, err)
		_, err = adapter.Synthesize(context.Background(), models.SynthesisRequest{Text: "x"})
		require.ErrorContains(t, err, want)
		srv.Close()
	}
}

func TestVoicesListsAccountVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/voices", r.URL.Path)
		require.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write(fixtures.MustRead("elevenlabs_voices.json"))
	}))
	defer srv.Close()

	adapter, err := New(Options{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	voices, err := adapter.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	require.Equal(t, "21m00Tcm4TlvDq8ikWAM", voices[0].Name)
	require.Equal(t, "Rachel", voices[0].Label)
	require.Equal(t, "en", *voices[0].Language)
	require.Nil(t, voices[1].Language)
}
