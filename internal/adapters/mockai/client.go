// Package mockai implements the conversation client contract entirely
// in memory, for development and for exercising consumers without API
// costs.
package mockai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/session"
)

// costPerToken prices the estimated token count of a simulated round
// trip.
const costPerToken = 0.0001

// stockReplies are cycled round-robin when nothing scripted applies.
var stockReplies = []string{
	"I'm a mock AI assistant helping you test your code.",
	"This is a test response from the mock AI system.",
	"Your test is working correctly if you see this message.",
	"Mock AI systems are useful for testing without API costs.",
	"This is a simulated response that doesn't use a real AI API.",
}

var models = core.ModelCatalog{
	{
		ID:           "mock-gpt-4",
		Name:         "Mock GPT-4",
		Capabilities: []string{"text-generation", "chat"},
		MaxTokens:    8192,
	},
	{
		ID:           "mock-gpt-3",
		Name:         "Mock GPT-3.5",
		Capabilities: []string{"text-generation", "chat"},
		MaxTokens:    4096,
	},
	{
		ID:           "mock-small",
		Name:         "Mock Small",
		Capabilities: []string{"text-generation"},
		MaxTokens:    2048,
	},
}

// Client is a fully scripted conversation backend. Reply selection per
// send: the FIFO queue first, then an exact-message custom response,
// then the stock pool.
type Client struct {
	store  *session.Store
	logger *zap.Logger

	mu     sync.Mutex
	queue  []string
	custom map[string]string
	next   int
}

var _ core.ConversationClient = (*Client)(nil)

// NewClient builds a scripted backend with the stock reply pool.
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		store:  session.NewStore(),
		logger: logger,
		custom: make(map[string]string),
	}
}

// QueueResponses schedules replies consumed strictly in FIFO order, one
// per send.
func (c *Client) QueueResponses(responses ...string) {
	c.mu.Lock()
	c.queue = append(c.queue, responses...)
	c.mu.Unlock()
}

// SetResponse fixes the reply for an exact incoming message.
func (c *Client) SetResponse(message, response string) {
	c.mu.Lock()
	c.custom[message] = response
	c.mu.Unlock()
}

// StartNewSession opens a session for userID. An empty model selects
// the catalog default.
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
	return c.store.Create(userID, model), nil
}

// SendMessage appends the user message and replies from the script.
// Usage is estimated from the word counts of prompt and reply.
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

	if _, err := c.store.BeginExchange(sessionID, session.NewMessage(core.RoleUser, message)); err != nil {
		return nil, err
	}

	text := c.scriptedReply(message)
	tokens := len(strings.Fields(message)) + len(strings.Fields(text))
	usage := core.UsageMetrics{
		TokenCount:   tokens,
		APICalls:     1,
		CostEstimate: float64(tokens) * costPerToken,
	}
	reply := session.NewMessage(core.RoleAssistant, text)
	if err := c.store.FinishExchange(sessionID, reply, usage); err != nil {
		return nil, err
	}
	return &core.SendResult{
		Response:    text,
		Attachments: append([]string(nil), attachments...),
		Timestamp:   reply.Timestamp,
	}, nil
}

func (c *Client) scriptedReply(message string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		head := c.queue[0]
		c.queue = c.queue[1:]
		return head
	}
	if reply, ok := c.custom[message]; ok {
		return reply
	}
	reply := stockReplies[c.next%len(stockReplies)]
	c.next++
	return reply
}

// GetChatHistory returns the session's messages oldest first.
func (c *Client) GetChatHistory(sessionID string, limit int) ([]core.Message, error) {
	return c.store.History(sessionID, limit)
}

// EndSession deactivates the session, reporting whether the id is known.
func (c *Client) EndSession(sessionID string) bool {
	return c.store.End(sessionID)
}

// ListAvailableModels returns a copy of the mock catalog.
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

// AttachFile records the file reference against the session.
func (c *Client) AttachFile(sessionID, filePath, description string) error {
	if _, err := c.store.Snapshot(sessionID); err != nil {
		return err
	}
	if err := core.CheckAttachment(filePath); err != nil {
		return err
	}
	return c.store.AddAttachment(sessionID, core.Attachment{
		Path:        filePath,
		Description: description,
		Timestamp:   time.Now(),
	})
}

// GetUsageMetrics returns a copy of the session's usage counters.
func (c *Client) GetUsageMetrics(sessionID string) (core.UsageMetrics, error) {
	return c.store.Metrics(sessionID)
}

// SummarizeConversation synthesizes a summary from the history without
// a round trip, so no usage accrues.
func (c *Client) SummarizeConversation(ctx context.Context, sessionID string) (string, error) {
	snap, err := c.store.Snapshot(sessionID)
	if err != nil {
		return "", err
	}
	if len(snap.Messages) < 2 {
		return core.NotEnoughConversation, nil
	}

	var userCount, aiCount int
	var topics []string
	for _, m := range snap.Messages {
		switch m.Sender {
		case core.RoleUser:
			userCount++
			if len(topics) < 2 {
				topics = append(topics, m.Content)
			}
		case core.RoleAssistant:
			aiCount++
		}
	}
	return fmt.Sprintf("This conversation contains %d user messages and %d AI responses. The user asked about: %s",
		userCount, aiCount, strings.Join(topics, ", ")), nil
}

// ExportChatHistory renders the session in the requested format.
func (c *Client) ExportChatHistory(sessionID string, format core.ExportFormat) (string, error) {
	return c.store.Export(sessionID, format)
}
