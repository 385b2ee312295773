package chatterbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ncecere/open_voice_gateway/internal/adapters/restclient"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

type Options struct {
	BaseURL string
	Voice   string
	Timeout time.Duration
}

// Adapter drives a Chatterbox TTS server, including its voice library.
type Adapter struct {
	rest  *restclient.Client
	voice string
}

func New(opts Options) (*Adapter, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("chatterbox: base url required")
	}
	if opts.Voice == "" {
		opts.Voice = "default"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Adapter{rest: restclient.New("chatterbox", base, opts.Timeout), voice: opts.Voice}, nil
}

type speechRequest struct {
	Input        string   `json:"input"`
	Voice        string   `json:"voice"`
	Exaggeration *float64 `json:"exaggeration,omitempty"`
	CFGWeight    *float64 `json:"cfg_weight,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// Synthesize returns WAV audio. Unset knobs are omitted so the server
// defaults apply.
func (a *Adapter) Synthesize(ctx context.Context, req models.SynthesisRequest) (models.Audio, error) {
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = a.voice
	}
	data, _, err := a.rest.PostBytes(ctx, "/v1/audio/speech", speechRequest{
		Input:        req.Text,
		Voice:        voice,
		Exaggeration: req.Exaggeration,
		CFGWeight:    req.CFGWeight,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return models.Audio{}, fmt.Errorf("chatterbox synthesize (voice=%s): %w", voice, err)
	}
	return models.Audio{Data: data, Format: models.AudioFormatWAV}, nil
}

type voiceEntry struct {
	Name     string  `json:"name"`
	Language *string `json:"language"`
}

// Voices lists the server's voice library. Older servers return a bare
// list, newer ones wrap it in {"voices": [...]}.
func (a *Adapter) Voices(ctx context.Context) ([]models.Voice, error) {
	var raw json.RawMessage
	if err := a.rest.GetJSON(ctx, "/voices", &raw); err != nil {
		return nil, fmt.Errorf("chatterbox voices: %w", err)
	}
	entries, err := decodeVoices(raw)
	if err != nil {
		return nil, err
	}
	out := make([]models.Voice, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.Voice{Name: e.Name, Provider: "chatterbox", Language: e.Language})
	}
	return out, nil
}

func decodeVoices(raw json.RawMessage) ([]voiceEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Voices []voiceEntry `json:"voices"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("chatterbox voices: decode: %w", err)
		}
		return wrapped.Voices, nil
	}
	var list []voiceEntry
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("chatterbox voices: decode: %w", err)
	}
	return list, nil
}

// UploadVoice stores a reference clip as a new cloned voice.
func (a *Adapter) UploadVoice(ctx context.Context, name string, audio []byte, language string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("chatterbox: voice name required")
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name+".wav")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	_ = mw.WriteField("name", name)
	if language != "" {
		_ = mw.WriteField("language", language)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := a.rest.Do(ctx, http.MethodPost, "/voices", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("chatterbox upload voice: %w", err)
	}
	defer resp.Body.Close()
	return decodeObject(resp.Body)
}

func (a *Adapter) DeleteVoice(ctx context.Context, name string) (map[string]any, error) {
	resp, err := a.rest.Do(ctx, http.MethodDelete, "/voices/"+url.PathEscape(name), "", nil)
	if err != nil {
		return nil, fmt.Errorf("chatterbox delete voice: %w", err)
	}
	defer resp.Body.Close()
	return decodeObject(resp.Body)
}

func (a *Adapter) Languages(ctx context.Context) ([]string, error) {
	var out []string
	if err := a.rest.GetJSON(ctx, "/languages", &out); err != nil {
		return nil, fmt.Errorf("chatterbox languages: %w", err)
	}
	return out, nil
}

// HealthCheck reads the GPU memory report.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	var mem map[string]any
	return a.rest.GetJSON(ctx, "/memory", &mem)
}

func (a *Adapter) Release() error {
	a.rest.Close()
	return nil
}

func decodeObject(r io.Reader) (map[string]any, error) {
	out := map[string]any{}
	if err := json.NewDecoder(r).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("chatterbox decode response: %w", err)
	}
	return out, nil
}
