package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/models"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

type fakeIdentity struct{ err error }

func (f fakeIdentity) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{}, f.err
}

func TestTranslateBuildsConverseRequest(t *testing.T) {
	fake := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: " Hola mundo "}},
		}},
	}}
	adapter := newWithClients(fake, fakeIdentity{}, Options{ModelID: "anthropic.claude-3-haiku"})

	out, err := adapter.Translate(context.Background(), models.TranslateRequest{Text: "Hello world", Source: "en", Target: "es"})
	require.NoError(t, err)
	require.Equal(t, "Hola mundo", out)

	require.Equal(t, "anthropic.claude-3-haiku", *fake.input.ModelId)
	require.Len(t, fake.input.System, 1)
	sys := fake.input.System[0].(*types.SystemContentBlockMemberText)
	require.Contains(t, sys.Value, "from en to es")
	require.Equal(t, defaultMaxTokens, *fake.input.InferenceConfig.MaxTokens)
}

func TestTranslateSkipsEmptyText(t *testing.T) {
	fake := &fakeConverse{}
	adapter := newWithClients(fake, fakeIdentity{}, Options{ModelID: "m"})
	out, err := adapter.Translate(context.Background(), models.TranslateRequest{Text: ""})
	require.NoError(t, err)
	require.Empty(t, out)
	require.Nil(t, fake.input)
}

func TestTranslateWrapsErrors(t *testing.T) {
	adapter := newWithClients(&fakeConverse{err: errors.New("throttled")}, fakeIdentity{}, Options{ModelID: "m"})
	_, err := adapter.Translate(context.Background(), models.TranslateRequest{Text: "x"})
	require.ErrorContains(t, err, "throttled")
}

func TestHealthCheckUsesSTS(t *testing.T) {
	adapter := newWithClients(&fakeConverse{}, fakeIdentity{err: errors.New("expired token")}, Options{ModelID: "m"})
	require.ErrorContains(t, adapter.HealthCheck(context.Background()), "expired token")
}
