package core

import (
	"context"
)

// ConversationClient is the contract every conversation backend
// implements. Implementations own their sessions; callers hold only
// opaque session ids and copies of session state.
type ConversationClient interface {
	// StartNewSession opens a session for userID and returns its id.
	// An empty model selects the backend default; anything else must
	// name a catalog model.
	StartNewSession(userID, model string) (string, error)

	// SendMessage appends the user message to the session history,
	// performs one completion round trip with the full history and
	// returns the assistant reply. Attachment paths are validated
	// eagerly before the message is accepted. On a failed round trip
	// the user message stays in history and no usage accrues.
	SendMessage(ctx context.Context, sessionID, message string, attachments []string) (*SendResult, error)

	// GetChatHistory returns the session's messages oldest first.
	// limit <= 0 returns everything; otherwise the limit most recent
	// messages in chronological order. Works on ended sessions.
	GetChatHistory(sessionID string, limit int) ([]Message, error)

	// EndSession deactivates the session, reporting whether the id is
	// known. Repeat calls on an ended session keep returning true.
	// History and metrics stay readable afterwards.
	EndSession(sessionID string) bool

	// ListAvailableModels returns a copy of the backend's model catalog.
	ListAvailableModels() []ModelInfo

	// SwitchModel points the session at a different catalog model,
	// effective from the next round trip.
	SwitchModel(sessionID, modelID string) error

	// AttachFile records a file reference against the session. Backends
	// without attachment support return ErrNotSupported after validating
	// the session and the file.
	AttachFile(sessionID, filePath, description string) error

	// GetUsageMetrics returns a copy of the session's usage counters.
	GetUsageMetrics(sessionID string) (UsageMetrics, error)

	// SummarizeConversation submits the session transcript for
	// summarization. Histories shorter than two messages return
	// NotEnoughConversation without a round trip. The summary is not
	// appended to history.
	SummarizeConversation(ctx context.Context, sessionID string) (string, error)

	// ExportChatHistory renders the session in the requested format.
	// Works on ended sessions.
	ExportChatHistory(sessionID string, format ExportFormat) (string, error)
}
