// Package cerebras implements the conversation client contract on top
// of the Cerebras inference API, which speaks the OpenAI chat
// completions protocol.
package cerebras

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/session"
)

const (
	defaultBaseURL = "https://api.cerebras.ai/v1"
	apiKeyEnvVar   = "CEREBRAS_API_KEY"

	// Round-trip budgets are fixed; callers cannot stretch them.
	requestTimeout   = 30 * time.Second
	replyMaxTokens   = 1024
	summaryMaxTokens = 256

	// costPerKiloToken prices usage at a flat rate per 1000 tokens.
	costPerKiloToken = 0.01
)

// systemPrompt seeds every new session before the first user message.
const systemPrompt = "You are a helpful AI assistant. Answer the user's questions accurately and concisely."

// summaryPrompt is the system instruction for summarization round trips.
const summaryPrompt = "Please provide a concise summary of the following conversation:"

// models is the catalog served by the Cerebras API.
var models = core.ModelCatalog{
	{
		ID:              "llama-4-scout-17b-16e-instruct",
		Name:            "Llama 4 Scout",
		Capabilities:    []string{"text-generation", "chat"},
		MaxTokens:       8192,
		KnowledgeCutoff: "August 2024",
	},
	{
		ID:              "llama3.1-8b",
		Name:            "Llama 3.1 8B",
		Capabilities:    []string{"text-generation", "chat"},
		MaxTokens:       8192,
		KnowledgeCutoff: "March 2023",
	},
	{
		ID:              "llama-3.3-70b",
		Name:            "Llama 3.3 70B",
		Capabilities:    []string{"text-generation", "chat"},
		MaxTokens:       8192,
		KnowledgeCutoff: "December 2023",
	},
	{
		ID:              "deepseek-r1-distill-llama-70b",
		Name:            "DeepSeek R1 Distill Llama 70B",
		Capabilities:    []string{"text-generation", "chat"},
		MaxTokens:       8192,
		KnowledgeCutoff: "December 2023",
		PrivatePreview:  true,
	},
}

// completionAPI is the slice of the OpenAI-compatible SDK the client
// depends on. The deterministic test variant swaps it for a canned
// implementation; everything else runs the same code paths.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client is a conversation client backed by the Cerebras chat
// completions endpoint.
type Client struct {
	api     completionAPI
	store   *session.Store
	logger  *zap.Logger
	baseURL string
}

var _ core.ConversationClient = (*Client)(nil)

// NewClient builds a client for the Cerebras API. An empty apiKey falls
// back to the CEREBRAS_API_KEY environment variable; an empty baseURL
// selects the production endpoint.
func NewClient(apiKey, baseURL string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(apiKeyEnvVar)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("cerebras API key must be provided as a parameter or via the %s environment variable", apiKeyEnvVar)
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		store:   session.NewStore(),
		logger:  logger,
		baseURL: baseURL,
	}, nil
}

// StartNewSession opens a session for userID, primed with the system
// message. An empty model selects the catalog default.
func (c *Client) StartNewSession(userID, model string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user ID cannot be empty", core.ErrInvalidArgument)
	}
	if model == "" {
		model = models.Default().ID
	}
	if err := models.Validate(model); err != nil {
		return "", err
	}
	id := c.store.Create(userID, model, session.NewMessage(core.RoleSystem, systemPrompt))
	c.logger.Debug("started session",
		zap.String("session_id", id),
		zap.String("user_id", userID),
		zap.String("model", model))
	return id, nil
}

// SendMessage appends the user message, performs one completion round
// trip with the full history and returns the assistant reply.
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

	text, tokens, err := c.complete(ctx, snap.Model, chatMessages(snap.Messages), replyMaxTokens)
	if err != nil {
		return nil, err
	}

	reply := session.NewMessage(core.RoleAssistant, text)
	if err := c.store.FinishExchange(sessionID, reply, roundTripUsage(tokens)); err != nil {
		return nil, err
	}
	c.logger.Debug("completed exchange",
		zap.String("session_id", sessionID),
		zap.String("model", snap.Model),
		zap.Int("total_tokens", tokens))
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

// ListAvailableModels returns a copy of the Cerebras catalog.
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
	return fmt.Errorf("%w: the cerebras backend does not accept file attachments", core.ErrNotSupported)
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

	msgs := []openai.ChatCompletionMessage{
		{Role: string(core.RoleSystem), Content: summaryPrompt},
		{Role: string(core.RoleUser), Content: core.RenderTranscript(snap.Messages)},
	}
	text, tokens, err := c.complete(ctx, snap.Model, msgs, summaryMaxTokens)
	if err != nil {
		return "", err
	}
	if err := c.store.AddUsage(sessionID, roundTripUsage(tokens)); err != nil {
		return "", err
	}
	return text, nil
}

// ExportChatHistory renders the session in the requested format.
func (c *Client) ExportChatHistory(sessionID string, format core.ExportFormat) (string, error) {
	return c.store.Export(sessionID, format)
}

// complete performs one round trip and maps transport failures into the
// client error taxonomy.
func (c *Client) complete(ctx context.Context, model string, msgs []openai.ChatCompletionMessage, maxTokens int) (string, int, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", 0, c.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("%w: completion response carries no choices", core.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, resp.Usage.TotalTokens, nil
}

func (c *Client) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return mapStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return mapStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: request to %s timed out after %s", core.ErrTransient, c.baseURL, requestTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request to %s timed out after %s", core.ErrTransient, c.baseURL, requestTimeout)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: failed to connect to %s: %v", core.ErrTransient, c.baseURL, err)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: invalid JSON from completion endpoint: %v", core.ErrMalformedResponse, err)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Errorf("%w: invalid JSON from completion endpoint: %v", core.ErrMalformedResponse, err)
	}
	return fmt.Errorf("completion request failed: %w", err)
}

func mapStatus(status int, detail string) error {
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: completion endpoint rejected the API key: %s", core.ErrAuthentication, detail)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: completion endpoint refused the request: %s", core.ErrAuthorization, detail)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: completion endpoint has no such model or path: %s", core.ErrModelNotFound, detail)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", core.ErrRateLimited, detail)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: completion endpoint returned status %d: %s", core.ErrUpstream, status, detail)
	default:
		return fmt.Errorf("completion endpoint returned status %d: %s", status, detail)
	}
}

// chatMessages converts history to the wire shape, oldest first.
func chatMessages(history []core.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Sender),
			Content: m.Content,
		})
	}
	return out
}

// roundTripUsage prices one completed round trip. Endpoints that omit
// usage data still count the call.
func roundTripUsage(totalTokens int) core.UsageMetrics {
	return core.UsageMetrics{
		TokenCount:   totalTokens,
		APICalls:     1,
		CostEstimate: float64(totalTokens) / 1000 * costPerKiloToken,
	}
}
