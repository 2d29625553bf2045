package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/session"
)

// fakeInvoker records invocations and plays back a fixed response.
type fakeInvoker struct {
	inputs []*bedrockruntime.InvokeModelInput
	body   []byte
	err    error
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func newFakeClient(fake *fakeInvoker) *Client {
	return &Client{
		api:          fake,
		store:        session.NewStore(),
		logger:       zap.NewNop(),
		region:       "us-east-1",
		defaultModel: models.Default().ID,
		maxTokens:    defaultMaxTokens,
		temperature:  0.1,
		topP:         0.9,
	}
}

func TestSendMessageAnthropicPayload(t *testing.T) {
	fake := &fakeInvoker{
		body: []byte(`{"content":[{"text":"4"}],"usage":{"input_tokens":10,"output_tokens":5}}`),
	}
	client := newFakeClient(fake)

	id, err := client.StartNewSession("u1", "")
	require.NoError(t, err)

	result, err := client.SendMessage(context.Background(), id, "2+2?", nil)
	require.NoError(t, err)
	assert.Equal(t, "4", result.Response)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", *in.ModelId)
	assert.Equal(t, "application/json", *in.ContentType)

	var req anthropicRequest
	require.NoError(t, json.Unmarshal(in.Body, &req))
	assert.Equal(t, anthropicVersion, req.AnthropicVersion)
	assert.Equal(t, systemPrompt, req.System, "system messages move to the system field")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "2+2?", req.Messages[0].Content)
	assert.Equal(t, defaultMaxTokens, req.MaxTokens)
	assert.Equal(t, float32(0.1), req.Temperature)

	metrics, err := client.GetUsageMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 15, metrics.TokenCount)
	assert.Equal(t, 1, metrics.APICalls)
	assert.InDelta(t, 0.00015, metrics.CostEstimate, 1e-9)
}

func TestSendMessageTitanPayload(t *testing.T) {
	fake := &fakeInvoker{
		body: []byte(`{"inputTextTokenCount":7,"results":[{"tokenCount":3,"outputText":"ok"}]}`),
	}
	client := newFakeClient(fake)

	id, err := client.StartNewSession("u1", "amazon.titan-text-express-v1")
	require.NoError(t, err)

	result, err := client.SendMessage(context.Background(), id, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Response)

	require.Len(t, fake.inputs, 1)
	var req struct {
		InputText string `json:"inputText"`
		Config    struct {
			MaxTokenCount int     `json:"maxTokenCount"`
			Temperature   float32 `json:"temperature"`
		} `json:"textGenerationConfig"`
	}
	require.NoError(t, json.Unmarshal(fake.inputs[0].Body, &req))
	assert.Equal(t, "AI: "+systemPrompt+"\nUser: hi", req.InputText)
	assert.Equal(t, defaultMaxTokens, req.Config.MaxTokenCount)

	metrics, err := client.GetUsageMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 10, metrics.TokenCount)
}

func TestSummarizeConversationPayload(t *testing.T) {
	fake := &fakeInvoker{
		body: []byte(`{"content":[{"text":"Numbers were discussed."}],"usage":{"input_tokens":8,"output_tokens":4}}`),
	}
	client := newFakeClient(fake)

	id, err := client.StartNewSession("u1", "")
	require.NoError(t, err)

	t.Run("short history short-circuits", func(t *testing.T) {
		summary, err := client.SummarizeConversation(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, core.NotEnoughConversation, summary)
		assert.Empty(t, fake.inputs)
	})

	_, err = client.SendMessage(context.Background(), id, "2+2?", nil)
	require.NoError(t, err)

	summary, err := client.SummarizeConversation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Numbers were discussed.", summary)

	require.Len(t, fake.inputs, 2)
	var req anthropicRequest
	require.NoError(t, json.Unmarshal(fake.inputs[1].Body, &req))
	assert.Equal(t, summaryPrompt, req.System)
	assert.Equal(t, summaryMaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "User: 2+2?")
}

func TestParseAnthropic(t *testing.T) {
	t.Run("missing content blocks", func(t *testing.T) {
		_, _, err := parseAnthropic([]byte(`{"content":[],"usage":{}}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrMalformedResponse)
		assert.Contains(t, err.Error(), "no content blocks")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, _, err := parseAnthropic([]byte(`{nope`))
		assert.ErrorIs(t, err, core.ErrMalformedResponse)
	})
}

func TestParseTitan(t *testing.T) {
	t.Run("missing results", func(t *testing.T) {
		_, _, err := parseTitan([]byte(`{"inputTextTokenCount":1,"results":[]}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrMalformedResponse)
		assert.Contains(t, err.Error(), "no results")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, _, err := parseTitan([]byte(`{nope`))
		assert.ErrorIs(t, err, core.ErrMalformedResponse)
	})
}

func TestMapError(t *testing.T) {
	client := newFakeClient(&fakeInvoker{})

	apiErr := func(code string) error {
		return fmt.Errorf("operation error: %w",
			&smithy.GenericAPIError{Code: code, Message: "detail"})
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unrecognized client", apiErr("UnrecognizedClientException"), core.ErrAuthentication},
		{"invalid signature", apiErr("InvalidSignatureException"), core.ErrAuthentication},
		{"expired token", apiErr("ExpiredTokenException"), core.ErrAuthentication},
		{"access denied", apiErr("AccessDeniedException"), core.ErrAuthorization},
		{"resource not found", apiErr("ResourceNotFoundException"), core.ErrModelNotFound},
		{"throttling", apiErr("ThrottlingException"), core.ErrRateLimited},
		{"quota exceeded", apiErr("ServiceQuotaExceededException"), core.ErrRateLimited},
		{"internal server", apiErr("InternalServerException"), core.ErrUpstream},
		{"service unavailable", apiErr("ServiceUnavailableException"), core.ErrUpstream},
		{"model timeout", apiErr("ModelTimeoutException"), core.ErrTransient},
		{"deadline exceeded", context.DeadlineExceeded, core.ErrTransient},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, client.mapError(tc.err), tc.want)
		})
	}

	t.Run("unmapped codes pass through", func(t *testing.T) {
		err := client.mapError(apiErr("ValidationException"))
		assert.Contains(t, err.Error(), "failed to invoke bedrock model")
	})
}

func TestSendMessageFailureKeepsUserMessage(t *testing.T) {
	fake := &fakeInvoker{
		err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"},
	}
	client := newFakeClient(fake)

	id, err := client.StartNewSession("u1", "")
	require.NoError(t, err)

	_, err = client.SendMessage(context.Background(), id, "doomed", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRateLimited)

	msgs, err := client.GetChatHistory(id, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "doomed", msgs[1].Content)

	metrics, err := client.GetUsageMetrics(id)
	require.NoError(t, err)
	assert.Zero(t, metrics.APICalls)
}

func TestModelSelection(t *testing.T) {
	client := newFakeClient(&fakeInvoker{})

	t.Run("unknown model rejected with the catalog", func(t *testing.T) {
		_, err := client.StartNewSession("u1", "not-a-real-model")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "amazon.titan-text-express-v1")
	})

	t.Run("switch validates against the catalog", func(t *testing.T) {
		id, err := client.StartNewSession("u1", "")
		require.NoError(t, err)
		require.NoError(t, client.SwitchModel(id, "anthropic.claude-3-haiku-20240307-v1:0"))
		assert.ErrorIs(t, client.SwitchModel(id, "gpt-4"), core.ErrInvalidArgument)
	})

	t.Run("attachments are unsupported", func(t *testing.T) {
		id, err := client.StartNewSession("u1", "")
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))
		err = client.AttachFile(id, path, "notes")
		assert.ErrorIs(t, err, core.ErrNotSupported)
	})
}
