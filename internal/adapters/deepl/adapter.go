package deepl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ncecere/open_voice_gateway/internal/adapters/restclient"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

const (
	FreeURL = "https://api-free.deepl.com"
	ProURL  = "https://api.deepl.com"
)

type Options struct {
	APIKey string
	Free   bool
	// BaseURL overrides the free/pro host.
	BaseURL string
	Timeout time.Duration
}

type Adapter struct {
	rest *restclient.Client
}

func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("deepl: api key required")
	}
	base := opts.BaseURL
	if base == "" {
		base = ProURL
		if opts.Free {
			base = FreeURL
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	rest := restclient.New("deepl", base, opts.Timeout).
		WithHeader("Authorization", "DeepL-Auth-Key "+opts.APIKey)
	return &Adapter{rest: rest}, nil
}

type translateRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
}

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// Translate calls /v2/translate. A source of "auto" or "unknown" lets
// DeepL detect the language.
func (a *Adapter) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}
	payload := translateRequest{
		Text:       []string{req.Text},
		TargetLang: strings.ToUpper(req.Target),
	}
	if src := strings.ToLower(strings.TrimSpace(req.Source)); src != "" && src != "auto" && src != "unknown" {
		payload.SourceLang = strings.ToUpper(src)
	}
	var out translateResponse
	if err := a.rest.PostJSON(ctx, "/v2/translate", payload, &out); err != nil {
		switch restclient.StatusOf(err) {
		case 403:
			return "", errors.New("deepl 403: invalid API key")
		case 456:
			return "", errors.New("deepl 456: quota exceeded")
		}
		return "", fmt.Errorf("deepl translate: %w", err)
	}
	if len(out.Translations) == 0 {
		return "", errors.New("deepl: response carried no translations")
	}
	return out.Translations[0].Text, nil
}

func (a *Adapter) Release() error {
	a.rest.Close()
	return nil
}
