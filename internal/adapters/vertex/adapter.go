package vertex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ncecere/open_voice_gateway/internal/adapters/restclient"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

const (
	cloudPlatformScope       = "https://www.googleapis.com/auth/cloud-platform"
	defaultMaxOutput   int32 = 2048
)

// Options configure the Vertex adapter. Endpoint replaces the derived
// model URL, in which case per-request model overrides are ignored.
type Options struct {
	ProjectID       string
	Location        string
	Publisher       string
	Model           string
	Endpoint        string
	CredentialsJSON []byte
	MaxOutputTokens int32
	Timeout         time.Duration
	// HTTPClient skips the service-account exchange when set.
	HTTPClient *http.Client
}

// Adapter translates with a Gemini model through generateContent.
type Adapter struct {
	rest  *restclient.Client
	model string
	fixed bool
	opts  Options
}

// New creates a Vertex adapter using service-account credentials.
func New(ctx context.Context, opts Options) (*Adapter, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("vertex: project id required")
	}
	if opts.Location == "" {
		return nil, errors.New("vertex: location required")
	}
	if opts.Model == "" {
		return nil, errors.New("vertex: model id required")
	}
	if len(opts.CredentialsJSON) == 0 && opts.HTTPClient == nil {
		return nil, errors.New("vertex: credentials json required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = defaultMaxOutput
	}

	publisher := strings.TrimSpace(opts.Publisher)
	if publisher == "" {
		publisher = "google"
	}

	// base is either the publisher's models collection or a fixed model URL.
	base := fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/%s/models",
		opts.Location, opts.ProjectID, opts.Location, publisher)
	fixed := false
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		base = strings.TrimSuffix(endpoint, ":generateContent")
		fixed = true
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		creds, err := google.CredentialsFromJSON(ctx, opts.CredentialsJSON, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("vertex: load credentials: %w", err)
		}
		httpClient = oauth2.NewClient(ctx, creds.TokenSource)
		httpClient.Timeout = opts.Timeout
	}

	return &Adapter{
		rest:  restclient.New("vertex", base, opts.Timeout).WithHTTPClient(httpClient),
		model: opts.Model,
		fixed: fixed,
		opts:  opts,
	}, nil
}

// Translate sends the shared translation prompt as the system instruction.
func (a *Adapter) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}
	model := a.model
	if m := strings.TrimSpace(req.Model); m != "" && !a.fixed {
		model = m
	}
	temperature := float32(0.3)
	maxOutput := a.opts.MaxOutputTokens
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Text}}}},
		SystemInstruction: &content{
			Role:  "system",
			Parts: []part{{Text: models.TranslationPrompt(req.Source, req.Target)}},
		},
		GenerationConfig: &generationConfig{
			MaxOutputTokens: &maxOutput,
			Temperature:     &temperature,
		},
	}
	var out generateResponse
	if err := a.rest.PostJSON(ctx, a.modelPath(model)+":generateContent", payload, &out); err != nil {
		return "", fmt.Errorf("vertex translate (%s): %w", model, err)
	}
	candidate := out.FirstCandidate()
	if candidate == nil {
		return "", fmt.Errorf("vertex translate (%s): response missing candidates", model)
	}
	text := strings.TrimSpace(candidate.Content.Text())
	if text == "" {
		return "", fmt.Errorf("vertex translate (%s): empty response (finish reason %q)", model, candidate.FinishReason)
	}
	return text, nil
}

// HealthCheck fetches the model resource. Anything below 500 means the
// endpoint is reachable.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	err := a.rest.GetJSON(ctx, a.modelPath(a.model), nil)
	if status := restclient.StatusOf(err); status > 0 && status < 500 {
		return nil
	}
	return err
}

func (a *Adapter) Release() error {
	a.rest.Close()
	return nil
}

func (a *Adapter) modelPath(model string) string {
	if a.fixed {
		return ""
	}
	return "/" + model
}
