package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/adapters/anthropic"
)

func init() {
	RegisterDefinition(Definition{
		Name:        "anthropic",
		Aliases:     []string{"claude"},
		Description: "Anthropic Claude Messages API translation",
		Translator:  buildAnthropicTranslator,
	})
}

func buildAnthropicTranslator(_ context.Context, p Params) (Translator, error) {
	a := p.Config.Providers.Anthropic
	if strings.TrimSpace(a.APIKey) == "" {
		return nil, fmt.Errorf("anthropic provider requires api key (providers.anthropic.api_key)")
	}
	return anthropic.New(anthropic.Options{
		APIKey:    strings.TrimSpace(a.APIKey),
		BaseURL:   strings.TrimSpace(a.BaseURL),
		Version:   strings.TrimSpace(a.Version),
		Model:     strings.TrimSpace(a.Model),
		MaxTokens: a.MaxTokens,
		Timeout:   p.Config.Providers.RequestTimeout,
	})
}
