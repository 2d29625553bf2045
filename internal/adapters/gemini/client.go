// Package gemini implements the conversation client contract on top of
// the Google Gemini API via chat sessions.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/session"
)

const (
	apiKeyEnvVar = "GEMINI_API_KEY"

	requestTimeout   = 30 * time.Second
	defaultMaxTokens = 1024
	summaryMaxTokens = 256
	costPerKiloToken = 0.01
)

const systemPrompt = "You are a helpful AI assistant. Answer the user's questions accurately and concisely."

const summaryPrompt = "Please provide a concise summary of the following conversation:"

var models = core.ModelCatalog{
	{
		ID:              "gemini-1.5-flash",
		Name:            "Gemini 1.5 Flash",
		Capabilities:    []string{"text-generation", "chat"},
		MaxTokens:       1048576,
		KnowledgeCutoff: "May 2024",
	},
	{
		ID:              "gemini-1.5-pro",
		Name:            "Gemini 1.5 Pro",
		Capabilities:    []string{"text-generation", "chat"},
		MaxTokens:       1048576,
		KnowledgeCutoff: "May 2024",
	},
	{
		ID:           "gemini-pro",
		Name:         "Gemini 1.0 Pro",
		Capabilities: []string{"text-generation", "chat"},
		MaxTokens:    32768,
	},
}

// Client is a conversation client backed by the Gemini API.
type Client struct {
	api          *genai.Client
	store        *session.Store
	logger       *zap.Logger
	defaultModel string
	maxTokens    int
	temperature  float32
	topP         float32
}

var _ core.ConversationClient = (*Client)(nil)

// NewClient builds a Gemini-backed client. An empty apiKey falls back
// to the GEMINI_API_KEY environment variable; an empty modelName leaves
// the catalog default in place.
func NewClient(ctx context.Context, apiKey, modelName string, maxTokens int, temperature, topP float32, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(apiKeyEnvVar)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key must be provided as a parameter or via the %s environment variable", apiKeyEnvVar)
	}
	if modelName == "" {
		modelName = models.Default().ID
	}
	if err := models.Validate(modelName); err != nil {
		return nil, err
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	api, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:          api,
		store:        session.NewStore(),
		logger:       logger,
		defaultModel: modelName,
		maxTokens:    maxTokens,
		temperature:  temperature,
		topP:         topP,
	}, nil
}

// Close releases the underlying API connection.
func (c *Client) Close() error {
	if c.api != nil {
		return c.api.Close()
	}
	return nil
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

// SendMessage appends the user message, replays the history into a chat
// session and returns the model's reply.
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

	// The freshly appended user message is sent; everything before it
	// becomes chat history.
	text, tokens, err := c.complete(ctx, snap.Model, snap.Messages[:len(snap.Messages)-1], message, c.maxTokens)
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

// ListAvailableModels returns a copy of the Gemini catalog.
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
	return fmt.Errorf("%w: the gemini backend does not accept file attachments", core.ErrNotSupported)
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

	history := []core.Message{{Sender: core.RoleSystem, Content: summaryPrompt}}
	text, tokens, err := c.complete(ctx, snap.Model, history, core.RenderTranscript(snap.Messages), summaryMaxTokens)
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

// complete replays history into a chat session and sends prompt as the
// final user turn.
func (c *Client) complete(ctx context.Context, modelID string, history []core.Message, prompt string, maxTokens int) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	model := c.api.GenerativeModel(modelID)
	model.SetTemperature(c.temperature)
	model.SetTopP(c.topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	var system []string
	var turns []*genai.Content
	for _, m := range history {
		if m.Sender == core.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := "user"
		if m.Sender == core.RoleAssistant {
			role = "model"
		}
		turns = append(turns, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(system, "\n"))},
		}
	}

	chat := model.StartChat()
	chat.History = turns
	resp, err := chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", 0, c.mapError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", 0, fmt.Errorf("%w: gemini response carries no candidates", core.ErrMalformedResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return b.String(), tokens, nil
}

func (c *Client) mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401:
			return fmt.Errorf("%w: gemini rejected the API key: %s", core.ErrAuthentication, apiErr.Message)
		case apiErr.Code == 403:
			return fmt.Errorf("%w: gemini refused the request: %s", core.ErrAuthorization, apiErr.Message)
		case apiErr.Code == 404:
			return fmt.Errorf("%w: gemini has no such model: %s", core.ErrModelNotFound, apiErr.Message)
		case apiErr.Code == 429:
			return fmt.Errorf("%w: %s", core.ErrRateLimited, apiErr.Message)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: gemini returned status %d: %s", core.ErrUpstream, apiErr.Code, apiErr.Message)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: request to gemini timed out after %s", core.ErrTransient, requestTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request to gemini timed out after %s", core.ErrTransient, requestTimeout)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: failed to connect to gemini: %v", core.ErrTransient, err)
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
