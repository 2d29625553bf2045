// Package bedrock implements the conversation client contract on top
// of Amazon Bedrock's InvokeModel API. Anthropic models use the
// messages payload; Titan models take a flattened transcript.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/session"
)

const (
	anthropicVersion = "bedrock-2023-05-31"

	requestTimeout   = 30 * time.Second
	defaultMaxTokens = 1024
	summaryMaxTokens = 256
	costPerKiloToken = 0.01
)

const systemPrompt = "You are a helpful AI assistant. Answer the user's questions accurately and concisely."

const summaryPrompt = "Please provide a concise summary of the following conversation:"

var models = core.ModelCatalog{
	{
		ID:              "anthropic.claude-3-5-sonnet-20241022-v2:0",
		Name:            "Claude 3.5 Sonnet v2",
		Capabilities:    []string{"text-generation", "chat"},
		MaxTokens:       200000,
		KnowledgeCutoff: "April 2024",
	},
	{
		ID:              "anthropic.claude-3-haiku-20240307-v1:0",
		Name:            "Claude 3 Haiku",
		Capabilities:    []string{"text-generation", "chat"},
		MaxTokens:       200000,
		KnowledgeCutoff: "August 2023",
	},
	{
		ID:           "amazon.titan-text-express-v1",
		Name:         "Titan Text G1 - Express",
		Capabilities: []string{"text-generation"},
		MaxTokens:    8192,
	},
}

// invoker is the slice of the Bedrock runtime SDK the client depends on.
type invoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client is a conversation client backed by Amazon Bedrock.
type Client struct {
	api          invoker
	store        *session.Store
	logger       *zap.Logger
	region       string
	defaultModel string
	maxTokens    int
	temperature  float32
	topP         float32
}

var _ core.ConversationClient = (*Client)(nil)

// NewClient builds a Bedrock-backed client. Credentials come from the
// default AWS chain. An empty modelID leaves the catalog default in
// place; a non-positive maxTokens falls back to the built-in budget.
func NewClient(ctx context.Context, region, modelID string, maxTokens int, temperature, topP float32, logger *zap.Logger) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if modelID == "" {
		modelID = models.Default().ID
	}
	if err := models.Validate(modelID); err != nil {
		return nil, err
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		api:          bedrockruntime.NewFromConfig(awsCfg),
		store:        session.NewStore(),
		logger:       logger,
		region:       region,
		defaultModel: modelID,
		maxTokens:    maxTokens,
		temperature:  temperature,
		topP:         topP,
	}, nil
}

// StartNewSession opens a session for userID, primed with the system
// message. An empty model selects the configured default.
func (c *Client) StartNewSession(userID, model string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user ID cannot be empty", core.ErrInvalidArgument)
	}
	if model == "" {
		model = c.defaultModel
	}
	if err := models.Validate(model); err != nil {
		return "", err
	}
	return c.store.Create(userID, model, session.NewMessage(core.RoleSystem, systemPrompt)), nil
}

// SendMessage appends the user message, invokes the session's model
// with the full history and returns the reply.
func (c *Client) SendMessage(ctx context.Context, sessionID, message string, attachments []string) (*core.SendResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session ID cannot be empty", core.ErrInvalidArgument)
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message cannot be empty", core.ErrInvalidArgument)
	}
	if err := core.ValidateAttachments(attachments); err != nil {
		return nil, err
	}

	snap, err := c.store.BeginExchange(sessionID, session.NewMessage(core.RoleUser, message))
	if err != nil {
		return nil, err
	}

	text, tokens, err := c.complete(ctx, snap.Model, snap.Messages, c.maxTokens)
	if err != nil {
		return nil, err
	}

	reply := session.NewMessage(core.RoleAssistant, text)
	usage := core.UsageMetrics{
		TokenCount:   tokens,
		APICalls:     1,
		CostEstimate: float64(tokens) / 1000 * costPerKiloToken,
	}
	if err := c.store.FinishExchange(sessionID, reply, usage); err != nil {
		return nil, err
	}
	return &core.SendResult{
		Response:    text,
		Attachments: append([]string(nil), attachments...),
		Timestamp:   reply.Timestamp,
	}, nil
}

// GetChatHistory returns the session's messages oldest first.
func (c *Client) GetChatHistory(sessionID string, limit int) ([]core.Message, error) {
	return c.store.History(sessionID, limit)
}

// EndSession deactivates the session, reporting whether the id is known.
func (c *Client) EndSession(sessionID string) bool {
	return c.store.End(sessionID)
}

// ListAvailableModels returns a copy of the Bedrock catalog.
func (c *Client) ListAvailableModels() []core.ModelInfo {
	return models.Copy()
}

// SwitchModel points the session at a different catalog model.
func (c *Client) SwitchModel(sessionID, modelID string) error {
	if _, err := c.store.Snapshot(sessionID); err != nil {
		return err
	}
	if err := models.Validate(modelID); err != nil {
		return err
	}
	return c.store.SetModel(sessionID, modelID)
}

// AttachFile validates the session and the file, then reports that this
// backend does not accept attachments.
func (c *Client) AttachFile(sessionID, filePath, description string) error {
	if _, err := c.store.Snapshot(sessionID); err != nil {
		return err
	}
	if err := core.CheckAttachment(filePath); err != nil {
		return err
	}
	return fmt.Errorf("%w: the bedrock backend does not accept file attachments", core.ErrNotSupported)
}

// GetUsageMetrics returns a copy of the session's usage counters.
func (c *Client) GetUsageMetrics(sessionID string) (core.UsageMetrics, error) {
	return c.store.Metrics(sessionID)
}

// SummarizeConversation submits the session transcript for
// summarization. Histories shorter than two messages short-circuit.
func (c *Client) SummarizeConversation(ctx context.Context, sessionID string) (string, error) {
	snap, err := c.store.Snapshot(sessionID)
	if err != nil {
		return "", err
	}
	if len(snap.Messages) < 2 {
		return core.NotEnoughConversation, nil
	}

	request := []core.Message{
		{Sender: core.RoleSystem, Content: summaryPrompt},
		{Sender: core.RoleUser, Content: core.RenderTranscript(snap.Messages)},
	}
	text, tokens, err := c.complete(ctx, snap.Model, request, summaryMaxTokens)
	if err != nil {
		return "", err
	}
	usage := core.UsageMetrics{
		TokenCount:   tokens,
		APICalls:     1,
		CostEstimate: float64(tokens) / 1000 * costPerKiloToken,
	}
	if err := c.store.AddUsage(sessionID, usage); err != nil {
		return "", err
	}
	return text, nil
}

// ExportChatHistory renders the session in the requested format.
func (c *Client) ExportChatHistory(sessionID string, format core.ExportFormat) (string, error) {
	return c.store.Export(sessionID, format)
}

func (c *Client) complete(ctx context.Context, model string, history []core.Message, maxTokens int) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var payload []byte
	var err error
	if strings.HasPrefix(model, "anthropic.") {
		payload, err = anthropicPayload(history, maxTokens, c.temperature, c.topP)
	} else {
		payload, err = titanPayload(history, maxTokens, c.temperature, c.topP)
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", 0, c.mapError(err)
	}

	if strings.HasPrefix(model, "anthropic.") {
		return parseAnthropic(out.Body)
	}
	return parseTitan(out.Body)
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature,omitempty"`
	TopP             float32            `json:"top_p,omitempty"`
}

func anthropicPayload(history []core.Message, maxTokens int, temperature, topP float32) ([]byte, error) {
	req := anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		TopP:             topP,
	}
	var system []string
	for _, m := range history {
		if m.Sender == core.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{
			Role:    string(m.Sender),
			Content: m.Content,
		})
	}
	req.System = strings.Join(system, "\n")
	return json.Marshal(req)
}

func parseAnthropic(body []byte) (string, int, error) {
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, fmt.Errorf("%w: invalid JSON from bedrock: %v", core.ErrMalformedResponse, err)
	}
	if len(resp.Content) == 0 {
		return "", 0, fmt.Errorf("%w: bedrock response carries no content blocks", core.ErrMalformedResponse)
	}
	return resp.Content[0].Text, resp.Usage.InputTokens + resp.Usage.OutputTokens, nil
}

func titanPayload(history []core.Message, maxTokens int, temperature, topP float32) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"inputText": core.RenderTranscript(history),
		"textGenerationConfig": map[string]interface{}{
			"maxTokenCount": maxTokens,
			"temperature":   temperature,
			"topP":          topP,
		},
	})
}

func parseTitan(body []byte) (string, int, error) {
	var resp struct {
		InputTextTokenCount int `json:"inputTextTokenCount"`
		Results             []struct {
			TokenCount int    `json:"tokenCount"`
			OutputText string `json:"outputText"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, fmt.Errorf("%w: invalid JSON from bedrock: %v", core.ErrMalformedResponse, err)
	}
	if len(resp.Results) == 0 {
		return "", 0, fmt.Errorf("%w: bedrock response carries no results", core.ErrMalformedResponse)
	}
	return resp.Results[0].OutputText, resp.InputTextTokenCount + resp.Results[0].TokenCount, nil
}

func (c *Client) mapError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException":
			return fmt.Errorf("%w: bedrock rejected the credentials: %s", core.ErrAuthentication, apiErr.ErrorMessage())
		case "AccessDeniedException":
			return fmt.Errorf("%w: bedrock refused the request: %s", core.ErrAuthorization, apiErr.ErrorMessage())
		case "ResourceNotFoundException":
			return fmt.Errorf("%w: bedrock has no such model: %s", core.ErrModelNotFound, apiErr.ErrorMessage())
		case "ThrottlingException", "ServiceQuotaExceededException":
			return fmt.Errorf("%w: %s", core.ErrRateLimited, apiErr.ErrorMessage())
		case "InternalServerException", "ServiceUnavailableException":
			return fmt.Errorf("%w: bedrock returned %s: %s", core.ErrUpstream, apiErr.ErrorCode(), apiErr.ErrorMessage())
		case "ModelTimeoutException":
			return fmt.Errorf("%w: bedrock request timed out: %s", core.ErrTransient, apiErr.ErrorMessage())
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: request to bedrock (%s) timed out after %s", core.ErrTransient, c.region, requestTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request to bedrock (%s) timed out after %s", core.ErrTransient, c.region, requestTimeout)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: failed to connect to bedrock (%s): %v", core.ErrTransient, c.region, err)
	}
	return fmt.Errorf("failed to invoke bedrock model: %w", err)
}
