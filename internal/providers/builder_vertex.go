package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/adapters/vertex"
	"github.com/ncecere/open_voice_gateway/internal/config"
)

func init() {
	RegisterDefinition(Definition{
		Name:        "vertex",
		Aliases:     []string{"gemini"},
		Description: "Google Vertex AI Gemini translation",
		Translator:  buildVertexTranslator,
	})
}

func buildVertexTranslator(ctx context.Context, p Params) (Translator, error) {
	v := p.Config.Providers.Vertex
	if strings.TrimSpace(v.ProjectID) == "" {
		return nil, fmt.Errorf("vertex provider requires providers.vertex.project_id")
	}
	creds, err := vertexCredentials(v)
	if err != nil {
		return nil, err
	}
	return vertex.New(ctx, vertex.Options{
		ProjectID:       strings.TrimSpace(v.ProjectID),
		Location:        strings.TrimSpace(v.Location),
		Publisher:       strings.TrimSpace(v.Publisher),
		Model:           strings.TrimSpace(v.Model),
		Endpoint:        strings.TrimSpace(v.Endpoint),
		CredentialsJSON: creds,
		Timeout:         p.Config.Providers.RequestTimeout,
	})
}

// vertexCredentials accepts raw JSON or base64. With no format set, JSON
// that does not parse is retried as base64.
func vertexCredentials(v config.VertexConfig) ([]byte, error) {
	source := strings.TrimSpace(v.CredentialsJSON)
	if source == "" {
		return nil, fmt.Errorf("vertex provider requires providers.vertex.credentials_json")
	}
	switch strings.ToLower(v.CredentialsFormat) {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(source)
		if err != nil {
			return nil, fmt.Errorf("vertex credentials base64 decode: %w", err)
		}
		if !json.Valid(decoded) {
			return nil, fmt.Errorf("vertex credentials base64 decode produced invalid JSON")
		}
		return decoded, nil
	case "json", "":
		if json.Valid([]byte(source)) {
			return []byte(source), nil
		}
		if v.CredentialsFormat == "" {
			if decoded, err := base64.StdEncoding.DecodeString(source); err == nil && json.Valid(decoded) {
				return decoded, nil
			}
		}
		return nil, fmt.Errorf("vertex credentials json invalid or truncated")
	default:
		return nil, fmt.Errorf("vertex credentials format %q not supported", v.CredentialsFormat)
	}
}
