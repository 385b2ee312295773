package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/adapters/bedrock"
)

func init() {
	RegisterDefinition(Definition{
		Name:        "bedrock",
		Description: "AWS Bedrock Converse translation",
		Translator:  buildBedrockTranslator,
	})
}

func buildBedrockTranslator(ctx context.Context, p Params) (Translator, error) {
	aws := p.Config.Providers.AWS
	if strings.TrimSpace(aws.BedrockModel) == "" {
		return nil, fmt.Errorf("bedrock provider requires providers.aws.bedrock_model")
	}
	return bedrock.New(ctx, bedrock.Options{
		Region:          aws.Region,
		Profile:         aws.Profile,
		AccessKeyID:     aws.AccessKeyID,
		SecretAccessKey: aws.SecretAccessKey,
		SessionToken:    aws.SessionToken,
		ModelID:         aws.BedrockModel,
	})
}
