package cerebras

import (
	"context"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/session"
)

// Canned round-trip behavior for the deterministic test variant.
const (
	testDefaultReply    = "This is a default test response."
	testSpamProbability = "75"
	testSpamCategory    = "Marketing"
	testSummary         = "This is a test summary of the conversation."
	testReplyTokens     = 25
	testSummaryTokens   = 30
)

// TestClient is a deterministic stand-in for Client: identical session
// bookkeeping, validation, priming and usage accrual, with the network
// round trip replaced by a canned transport. It backs the registry's
// "test" backend.
type TestClient struct {
	*Client
	canned *cannedAPI
}

var _ core.ConversationClient = (*TestClient)(nil)

// NewTestClient builds a client whose round trips never leave the
// process.
func NewTestClient(logger *zap.Logger) *TestClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	canned := &cannedAPI{}
	return &TestClient{
		Client: &Client{
			api:     canned,
			store:   session.NewStore(),
			logger:  logger,
			baseURL: "canned://cerebras",
		},
		canned: canned,
	}
}

// QueueResponses schedules replies consumed strictly in FIFO order, one
// per send round trip. An exhausted queue falls back to the keyword
// defaults.
func (c *TestClient) QueueResponses(responses ...string) {
	c.canned.mu.Lock()
	c.canned.queue = append(c.canned.queue, responses...)
	c.canned.mu.Unlock()
}

// cannedAPI satisfies completionAPI without sockets.
type cannedAPI struct {
	mu    sync.Mutex
	queue []string
}

func (a *cannedAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	text := ""
	tokens := testReplyTokens
	if isSummaryRequest(req.Messages) {
		text = testSummary
		tokens = testSummaryTokens
	} else {
		text = a.nextReply(lastUserContent(req.Messages))
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    string(core.RoleAssistant),
				Content: text,
			},
		}},
		Usage: openai.Usage{TotalTokens: tokens},
	}, nil
}

func (a *cannedAPI) nextReply(prompt string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) > 0 {
		head := a.queue[0]
		a.queue = a.queue[1:]
		return head
	}
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "spam") && strings.Contains(lower, "probability"):
		return testSpamProbability
	case strings.Contains(lower, "spam") && strings.Contains(lower, "category"):
		return testSpamCategory
	default:
		return testDefaultReply
	}
}

func isSummaryRequest(msgs []openai.ChatCompletionMessage) bool {
	return len(msgs) > 0 &&
		msgs[0].Role == string(core.RoleSystem) &&
		msgs[0].Content == summaryPrompt
}

func lastUserContent(msgs []openai.ChatCompletionMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == string(core.RoleUser) {
			return msgs[i].Content
		}
	}
	return ""
}
