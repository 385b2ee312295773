package chatterbox

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

func TestSynthesizeOmitsUnsetKnobs(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte("RIFFwav"))
	}))
	defer srv.Close()

	adapter, err := New(Options{BaseURL: srv.URL, Voice: "anna"})
	require.NoError(t, err)

	exag := 0.7
	audio, err := adapter.Synthesize(context.Background(), models.SynthesisRequest{Text: "Hallo", Exaggeration: &exag})
	require.NoError(t, err)
	require.Equal(t, []byte("RIFFwav"), audio.Data)
	require.Equal(t, models.AudioFormatWAV, audio.Format)
	require.Equal(t, "anna", body["voice"])
	require.InDelta(t, 0.7, body["exaggeration"], 1e-9)
	_, hasCFG := body["cfg_weight"]
	require.False(t, hasCFG)
}

func TestVoicesAcceptsBothShapes(t *testing.T) {
	payloads := [][]byte{
		fixtures.MustRead("chatterbox_voices.json"),
		[]byte(`[{"name":"default","language":"en"},{"name":"anna","language":"de"},{"name":"narrator"}]`),
	}
	for _, payload := range payloads {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/voices", r.URL.Path)
			_, _ = w.Write(payload)
		}))
		adapter, err := New(Options{BaseURL: srv.URL})
		require.NoError(t, err)
		voices, err := adapter.Voices(context.Background())
		require.NoError(t, err)
		require.Len(t, voices, 3)
		require.Equal(t, "anna", voices[1].Name)
		require.Equal(t, "de", *voices[1].Language)
		require.Nil(t, voices[2].Language)
		require.Equal(t, "chatterbox", voices[0].Provider)
		srv.Close()
	}
}

func TestUploadVoiceSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "clone", r.FormValue("name"))
		require.Equal(t, "de", r.FormValue("language"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "clone.wav", header.Filename)
		_, _ = w.Write([]byte(`{"status":"ok","name":"clone"}`))
	}))
	defer srv.Close()

	adapter, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	out, err := adapter.UploadVoice(context.Background(), "clone", []byte("RIFF"), "de")
	require.NoError(t, err)
	require.Equal(t, "ok", out["status"])
}

func TestLanguagesAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/languages":
			_, _ = w.Write([]byte(`["en","de","fr"]`))
		case "/memory":
			_, _ = w.Write([]byte(`{"allocated_mb": 1200}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	adapter, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	langs, err := adapter.Languages(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"en", "de", "fr"}, langs)
	require.NoError(t, adapter.HealthCheck(context.Background()))
}
