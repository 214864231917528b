package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRuntime struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeRuntime) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestCompleteAnthropic(t *testing.T) {
	rt := &fakeRuntime{body: `{"content":[{"type":"text","text":"{\"spam\":true,\"details\":\"lookalike domain\"}"}]}`}
	client := NewBedrockClient(rt, "anthropic.claude-3-haiku-20240307-v1:0", 300, 0.1, 0.9, "be strict", zap.NewNop())

	content, err := client.Complete(context.Background(), "sender: x\n")
	require.NoError(t, err)
	assert.Equal(t, `{"spam":true,"details":"lookalike domain"}`, content)

	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", aws.ToString(rt.input.ModelId))
	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(rt.input.Body, &sent))
	assert.Equal(t, anthropicVersion, sent["anthropic_version"])
	assert.Equal(t, "be strict", sent["system"])
	messages := sent["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "sender: x\n", messages[0].(map[string]interface{})["content"])
}

func TestCompleteTitan(t *testing.T) {
	rt := &fakeRuntime{body: `{"results":[{"outputText":"{\"spam\":false,\"details\":\"fine\"}"}]}`}
	client := NewBedrockClient(rt, "amazon.titan-text-express-v1", 300, 0, 1, "rules", zap.NewNop())

	content, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"spam":false,"details":"fine"}`, content)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(rt.input.Body, &sent))
	assert.Equal(t, "rules\n\np", sent["inputText"])
}

func TestCompleteErrors(t *testing.T) {
	client := NewBedrockClient(&fakeRuntime{err: errors.New("throttled")}, "meta.llama3", 10, 0, 1, "", zap.NewNop())
	_, err := client.Complete(context.Background(), "p")
	assert.ErrorContains(t, err, "throttled")

	client = NewBedrockClient(&fakeRuntime{body: `{"results":[]}`}, "amazon.titan-text-lite-v1", 10, 0, 1, "", zap.NewNop())
	_, err = client.Complete(context.Background(), "p")
	assert.EqualError(t, err, "empty response from Titan model")

	client = NewBedrockClient(&fakeRuntime{body: `{"generation":"{}"}`}, "meta.llama3-8b-instruct-v1:0", 10, 0, 1, "", zap.NewNop())
	content, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "{}", content)
}
