package ollama

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

type Options struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// Adapter talks to an Ollama server for translation and embeddings.
type Adapter struct {
	rest *restclient.Client
	opts Options
}

func New(opts Options) (*Adapter, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("ollama: base url required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("ollama: invalid base url %q: %w", base, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Adapter{rest: restclient.New("ollama", base, opts.Timeout), opts: opts}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Translate runs a single non-streaming chat turn.
func (a *Adapter) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = a.opts.Model
	}
	options := map[string]any{"temperature": 0.3}
	if req.ContextLength > 0 {
		options["num_ctx"] = req.ContextLength
	}
	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: models.TranslationPrompt(req.Source, req.Target)},
			{Role: "user", Content: req.Text},
		},
		KeepAlive: req.KeepAlive,
		Options:   options,
	}
	var out chatResponse
	if err := a.rest.PostJSON(ctx, "/api/chat", payload, &out); err != nil {
		return "", fmt.Errorf("ollama translate (%s): %w", model, err)
	}
	return strings.TrimSpace(out.Message.Content), nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding for text. An empty vector is an error.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	if err := a.rest.PostJSON(ctx, "/api/embeddings", embedRequest{Model: a.opts.EmbeddingModel, Prompt: text}, &out); err != nil {
		return nil, fmt.Errorf("ollama embed (%s): %w", a.opts.EmbeddingModel, err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding from %s", a.opts.EmbeddingModel)
	}
	return out.Embedding, nil
}

// HealthCheck lists local models, which only succeeds on a live server.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	return a.rest.GetJSON(ctx, "/api/tags", nil)
}

func (a *Adapter) Release() error {
	a.rest.Close()
	return nil
}

func (a *Adapter) Model() string { return a.opts.Model }
