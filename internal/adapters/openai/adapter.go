package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/ncecere/open_voice_gateway/internal/models"
)

const translationTemperature = 0.3

// Options configure the OpenAI adapter. BaseURL points the SDK at any
// OpenAI-compatible server; a trailing /v1 is tolerated.
type Options struct {
	APIKey         string
	BaseURL        string
	Organization   string
	ChatModel      string
	STTModel       string
	TTSModel       string
	TTSVoice       string
	EmbeddingModel string
	// EmbeddingDimensions is sent with embedding requests when positive.
	EmbeddingDimensions int
	Timeout             time.Duration
	Extra               []option.RequestOption
}

// Adapter wraps the official OpenAI SDK for native + compatible deployments.
type Adapter struct {
	client     *openai.Client
	httpClient *http.Client
	opts       Options
}

// New creates an OpenAI adapter. Compatible servers may run without a key
// when a base URL is given.
func New(opts Options) (*Adapter, error) {
	key := strings.TrimSpace(opts.APIKey)
	base := strings.TrimSpace(opts.BaseURL)
	if key == "" && base == "" && len(opts.Extra) == 0 {
		return nil, errors.New("openai: api key required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	requestOpts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if key != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(key))
	} else {
		// Never forward an ambient OPENAI_API_KEY to a third-party server.
		requestOpts = append(requestOpts, option.WithHeaderDel("authorization"))
	}
	if base != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(NormalizeBaseURL(base)))
	}
	if org := strings.TrimSpace(opts.Organization); org != "" {
		requestOpts = append(requestOpts, option.WithOrganization(org))
	}
	requestOpts = append(requestOpts, opts.Extra...)

	client := openai.NewClient(requestOpts...)
	return &Adapter{client: &client, httpClient: httpClient, opts: opts}, nil
}

// NormalizeBaseURL accepts "http://host", "http://host/" or "http://host/v1"
// and returns the SDK form "http://host/v1/".
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	base = strings.TrimSuffix(base, "/v1")
	return base + "/v1/"
}

// Translate asks a chat model for a bare translation of req.Text.
func (a *Adapter) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = a.opts.ChatModel
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(models.TranslationPrompt(req.Source, req.Target)),
			openai.UserMessage(req.Text),
		},
		Temperature: param.NewOpt(translationTemperature),
	}
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", translateError(err, a.opts.BaseURL)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: translation returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Transcribe performs speech-to-text via the OpenAI Audio Transcriptions API.
// The detected language comes from the response when the server reports
// one, otherwise from the hint.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, hint string) (models.Transcription, error) {
	if len(audio) == 0 {
		return models.Transcription{}, errors.New("openai: audio input required")
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(a.opts.STTModel),
	}
	if lang := strings.TrimSpace(hint); lang != "" {
		params.Language = openai.String(lang)
	}
	resp, err := a.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return models.Transcription{}, err
	}
	out := models.Transcription{Text: strings.TrimSpace(resp.Text), Language: strings.TrimSpace(hint)}
	var extra struct {
		Language string `json:"language"`
	}
	if raw := resp.RawJSON(); raw != "" && json.Unmarshal([]byte(raw), &extra) == nil && extra.Language != "" {
		out.Language = extra.Language
	}
	if out.Language == "" {
		out.Language = "unknown"
	}
	return out, nil
}

// Synthesize renders speech as WAV so the gateway can serve it alongside
// the local providers.
func (a *Adapter) Synthesize(ctx context.Context, req models.SynthesisRequest) (models.Audio, error) {
	input := strings.TrimSpace(req.Text)
	if input == "" {
		return models.Audio{}, errors.New("openai: input is required for speech synthesis")
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = a.opts.TTSVoice
	}
	if voice == "" {
		voice = "alloy"
	}
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(a.opts.TTSModel),
		Input:          input,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(models.AudioFormatWAV),
	}
	resp, err := a.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return models.Audio{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Audio{}, fmt.Errorf("openai: read speech body: %w", err)
	}
	return models.Audio{Data: data, Format: models.AudioFormatWAV}, nil
}

// Embed returns the embedding vector for a single text.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("openai: embeddings input required")
	}
	params := openai.EmbeddingNewParams{Model: openai.EmbeddingModel(a.opts.EmbeddingModel)}
	params.Input.OfString = param.NewOpt(text)
	if a.opts.EmbeddingDimensions > 0 {
		params.Dimensions = param.NewOpt(int64(a.opts.EmbeddingDimensions))
	}
	resp, err := a.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai: empty embedding from %s", a.opts.EmbeddingModel)
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// HealthCheck lists models as a cheap readiness check.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.client.Models.List(ctx)
	return err
}

// Release drops pooled connections. Ad-hoc adapters are released after
// every request.
func (a *Adapter) Release() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

func translateError(err error, baseURL string) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("translation failed: openai-compat %d", apiErr.StatusCode)
	}
	if baseURL != "" && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("translation failed: cannot reach API at %s: %w", baseURL, err)
	}
	return err
}
