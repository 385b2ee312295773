package azureopenai

import (
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	openaiadapter "github.com/ncecere/open_voice_gateway/internal/adapters/openai"
)

const defaultAPIVersion = "2024-07-01-preview"

type Options struct {
	Endpoint       string
	APIKey         string
	APIVersion     string
	ChatDeployment string
	STTDeployment  string
	Timeout        time.Duration
	Extra          []option.RequestOption
}

// New builds an OpenAI adapter routed through an Azure OpenAI resource.
// Deployments stand in for model names on every call.
func New(opts Options) (*openaiadapter.Adapter, error) {
	endpoint := strings.TrimSuffix(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("azure openai endpoint required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("azure openai api key required")
	}
	if opts.APIVersion == "" {
		opts.APIVersion = defaultAPIVersion
	}

	extra := []option.RequestOption{
		azure.WithEndpoint(endpoint, opts.APIVersion),
		azure.WithAPIKey(opts.APIKey),
	}
	extra = append(extra, opts.Extra...)

	return openaiadapter.New(openaiadapter.Options{
		ChatModel: opts.ChatDeployment,
		STTModel:  opts.STTDeployment,
		Timeout:   opts.Timeout,
		Extra:     extra,
	})
}
