package elevenlabs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ncecere/open_voice_gateway/internal/adapters/restclient"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

const (
	BaseURL      = "https://api.elevenlabs.io"
	outputFormat = "mp3_44100_128"

	defaultStability       = 0.5
	defaultSimilarityBoost = 0.75
)

type Options struct {
	APIKey  string
	Model   string
	VoiceID string
	BaseURL string
	Timeout time.Duration
}

// Adapter synthesizes MP3 speech through the ElevenLabs API.
type Adapter struct {
	rest    *restclient.Client
	model   string
	voiceID string
}

func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("elevenlabs: api key required")
	}
	base := opts.BaseURL
	if base == "" {
		base = BaseURL
	}
	if opts.Model == "" {
		opts.Model = "eleven_multilingual_v2"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	rest := restclient.New("elevenlabs", base, opts.Timeout).WithHeader("xi-api-key", opts.APIKey)
	return &Adapter{rest: rest, model: opts.Model, voiceID: opts.VoiceID}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize renders req.Text with req.Voice (an ElevenLabs voice id) or
// the configured default voice.
func (a *Adapter) Synthesize(ctx context.Context, req models.SynthesisRequest) (models.Audio, error) {
	voiceID := strings.TrimSpace(req.Voice)
	if voiceID == "" {
		voiceID = a.voiceID
	}
	if voiceID == "" {
		return models.Audio{}, errors.New("elevenlabs: no voice_id configured")
	}
	settings := voiceSettings{Stability: defaultStability, SimilarityBoost: defaultSimilarityBoost}
	if req.Stability != nil {
		settings.Stability = *req.Stability
	}
	if req.SimilarityBoost != nil {
		settings.SimilarityBoost = *req.SimilarityBoost
	}

	path := "/v1/text-to-speech/" + url.PathEscape(voiceID) + "?output_format=" + outputFormat
	data, _, err := a.rest.PostBytes(ctx, path, speechRequest{Text: req.Text, ModelID: a.model, VoiceSettings: settings})
	if err != nil {
		switch restclient.StatusOf(err) {
		case 401:
			return models.Audio{}, errors.New("elevenlabs 401: invalid API key")
		case 429:
			return models.Audio{}, errors.New("elevenlabs 429: rate limit exceeded")
		}
		return models.Audio{}, fmt.Errorf("elevenlabs synthesize: %w", err)
	}
	return models.Audio{Data: data, Format: models.AudioFormatMP3}, nil
}

type voicesResponse struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

// Voices lists the account's voices. Name carries the voice id since that
// is what synthesis expects.
func (a *Adapter) Voices(ctx context.Context) ([]models.Voice, error) {
	var out voicesResponse
	if err := a.rest.GetJSON(ctx, "/v2/voices?limit=100", &out); err != nil {
		return nil, fmt.Errorf("elevenlabs voices: %w", err)
	}
	voices := make([]models.Voice, 0, len(out.Voices))
	for _, v := range out.Voices {
		voice := models.Voice{Name: v.VoiceID, Label: v.Name, Provider: "elevenlabs"}
		if lang, ok := v.Labels["language"]; ok && lang != "" {
			l := lang
			voice.Language = &l
		}
		voices = append(voices, voice)
	}
	return voices, nil
}

func (a *Adapter) Release() error {
	a.rest.Close()
	return nil
}
