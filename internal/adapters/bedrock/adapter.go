package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/ncecere/open_voice_gateway/internal/models"
)

const defaultMaxTokens int32 = 2048

// Options controls how the Bedrock adapter is initialised.
type Options struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	ModelID   string
	MaxTokens int32
}

type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type identityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Adapter translates text with a Bedrock-hosted chat model through the
// Converse API, so any model family with Converse support works.
type Adapter struct {
	client    converseAPI
	stsClient identityAPI
	opts      Options
}

// New creates a Bedrock adapter using the provided credentials/region.
func New(ctx context.Context, opts Options) (*Adapter, error) {
	if opts.Region == "" {
		return nil, errors.New("bedrock region required")
	}
	if opts.ModelID == "" {
		return nil, errors.New("bedrock model id required")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		staticProvider := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)
		loadOpts = append(loadOpts, config.WithCredentialsProvider(staticProvider))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = opts.Region
	}

	return newWithClients(bedrockruntime.NewFromConfig(awsCfg), sts.NewFromConfig(awsCfg), opts), nil
}

func newWithClients(client converseAPI, stsClient identityAPI, opts Options) *Adapter {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Adapter{client: client, stsClient: stsClient, opts: opts}
}

// Translate sends the shared translation prompt as the system block and the
// text as the single user turn.
func (a *Adapter) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}
	modelID := a.opts.ModelID
	if m := strings.TrimSpace(req.Model); m != "" {
		modelID = m
	}

	out, err := a.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: models.TranslationPrompt(req.Source, req.Target)},
		},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.Text}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(0.3),
			MaxTokens:   aws.Int32(a.opts.MaxTokens),
		},
	})
	if err != nil {
		return "", fmt.Errorf("bedrock converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock converse: response carried no message")
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// HealthCheck confirms the credentials resolve to an identity.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.stsClient == nil {
		return errors.New("bedrock sts client not initialised")
	}
	_, err := a.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	return err
}

func (a *Adapter) Release() error { return nil }
