package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ncecere/open_voice_gateway/internal/adapters/restclient"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

const (
	defaultBaseURL         = "https://api.anthropic.com"
	defaultVersion         = "2023-06-01"
	defaultMaxTokens int32 = 2048
)

// Options configures the native Anthropic adapter.
type Options struct {
	APIKey     string
	BaseURL    string
	Version    string
	Model      string
	MaxTokens  int32
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Adapter translates through the Anthropic Messages API.
type Adapter struct {
	rest *restclient.Client
	opts Options
}

func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("anthropic: api key required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("anthropic: model required")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(opts.Version) == "" {
		opts.Version = defaultVersion
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	rest := restclient.New("anthropic", opts.BaseURL, opts.Timeout).
		WithHeader("x-api-key", opts.APIKey).
		WithHeader("anthropic-version", opts.Version).
		WithHeader("Accept", "application/json").
		WithHTTPClient(opts.HTTPClient)
	return &Adapter{rest: rest, opts: opts}, nil
}

// Translate sends the shared translation prompt as the system field and the
// text as the only user turn.
func (a *Adapter) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = a.opts.Model
	}
	payload := messageRequest{
		Model:  model,
		System: models.TranslationPrompt(req.Source, req.Target),
		Messages: []message{{
			Role:    "user",
			Content: []content{{Type: "text", Text: req.Text}},
		}},
		MaxTokens:   a.opts.MaxTokens,
		Temperature: 0.3,
	}
	var out messageResponse
	if err := a.rest.PostJSON(ctx, "/v1/messages", payload, &out); err != nil {
		return "", fmt.Errorf("anthropic translate (%s): %w", model, err)
	}
	text := strings.TrimSpace(out.JoinText())
	if text == "" {
		return "", fmt.Errorf("anthropic translate (%s): empty response (stop_reason %q)", model, out.StopReason)
	}
	return text, nil
}

// HealthCheck lists models. Only a 5xx or a transport failure counts as
// unhealthy; auth errors still prove the API is reachable.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	err := a.rest.GetJSON(ctx, "/v1/models", nil)
	if status := restclient.StatusOf(err); status > 0 && status < 500 {
		return nil
	}
	return err
}

func (a *Adapter) Release() error {
	a.rest.Close()
	return nil
}

type messageRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int32     `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

type message struct {
	Role    string    `json:"role"`
	Content []content `json:"content"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messageResponse struct {
	ID         string    `json:"id"`
	Content    []content `json:"content"`
	StopReason string    `json:"stop_reason"`
}

func (r messageResponse) JoinText() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
