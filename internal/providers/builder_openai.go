package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/adapters/azureopenai"
	native "github.com/ncecere/open_voice_gateway/internal/adapters/openai"
	"github.com/ncecere/open_voice_gateway/internal/config"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

func init() {
	RegisterDefinition(Definition{
		Name:        "openai",
		Description: "OpenAI API or any OpenAI-compatible endpoint (custom base URL)",
		Transcriber: func(ctx context.Context, p Params) (Transcriber, error) { return buildOpenAI(p, false) },
		Translator:  func(ctx context.Context, p Params) (Translator, error) { return buildOpenAI(p, true) },
		Synthesizer: func(ctx context.Context, p Params) (Synthesizer, error) { return buildOpenAI(p, false) },
		Embedder:    buildOpenAIEmbedder,
	})
	RegisterDefinition(Definition{
		Name:        "azure",
		Description: "Azure OpenAI deployments (chat translation, transcription)",
		Transcriber: func(ctx context.Context, p Params) (Transcriber, error) { return buildAzure(p.Config) },
		Translator:  func(ctx context.Context, p Params) (Translator, error) { return buildAzure(p.Config) },
	})
}

// buildOpenAI allows a keyless adapter only for translation against a
// custom base URL, the OpenAI-compatible local server case.
func buildOpenAI(p Params, allowKeyless bool) (*native.Adapter, error) {
	o := p.Config.Providers.OpenAI
	if strings.TrimSpace(o.APIKey) == "" && (!allowKeyless || strings.TrimSpace(o.BaseURL) == "") {
		return nil, fmt.Errorf("openai provider requires api key (providers.openai.api_key)")
	}
	return native.New(native.Options{
		APIKey:         o.APIKey,
		BaseURL:        o.BaseURL,
		Organization:   o.Organization,
		ChatModel:      o.ChatModel,
		STTModel:       o.STTModel,
		TTSModel:       o.TTSModel,
		TTSVoice:       o.TTSVoice,
		EmbeddingModel: o.EmbeddingModel,
		Timeout:        p.Config.Providers.RequestTimeout,
	})
}

func buildOpenAIEmbedder(_ context.Context, p Params) (Embedder, error) {
	o := p.Config.Providers.OpenAI
	if strings.TrimSpace(o.APIKey) == "" && strings.TrimSpace(o.BaseURL) == "" {
		return nil, fmt.Errorf("openai embeddings require api key or base url")
	}
	return native.New(native.Options{
		APIKey:              o.APIKey,
		BaseURL:             o.BaseURL,
		Organization:        o.Organization,
		EmbeddingModel:      o.EmbeddingModel,
		EmbeddingDimensions: models.EmbeddingDimensions,
		Timeout:             embeddingTimeout,
	})
}

func buildAzure(cfg *config.Config) (*native.Adapter, error) {
	a := cfg.Providers.Azure
	return azureopenai.New(azureopenai.Options{
		Endpoint:       a.Endpoint,
		APIKey:         a.APIKey,
		APIVersion:     a.APIVersion,
		ChatDeployment: a.ChatDeployment,
		STTDeployment:  a.STTDeployment,
		Timeout:        cfg.Providers.RequestTimeout,
	})
}
