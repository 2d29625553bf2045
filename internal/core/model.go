package core

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single utterance within a session.
type Message struct {
	ID        string
	Content   string
	Sender    Role
	Timestamp time.Time
}

// Attachment is a file reference recorded against a session.
type Attachment struct {
	Path        string
	Description string
	Timestamp   time.Time
}

// UsageMetrics accumulates a session's API consumption. The zero value
// means the session has never performed a round trip. Counters only
// grow; ending a session does not reset them.
type UsageMetrics struct {
	TokenCount   int
	APICalls     int
	CostEstimate float64
}

// Add accrues a usage delta from one round trip.
func (m *UsageMetrics) Add(delta UsageMetrics) {
	m.TokenCount += delta.TokenCount
	m.APICalls += delta.APICalls
	m.CostEstimate += delta.CostEstimate
}

// Session is one conversation owned by a backend instance.
type Session struct {
	ID          string
	UserID      string
	Model       string
	Active      bool
	CreatedAt   time.Time
	Messages    []Message
	Attachments []Attachment
	Metrics     UsageMetrics
}

// Clone returns a copy that shares no mutable state with the receiver.
func (s Session) Clone() Session {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Attachments = append([]Attachment(nil), s.Attachments...)
	return out
}

// ModelInfo describes one model a backend serves.
type ModelInfo struct {
	ID              string
	Name            string
	Capabilities    []string
	MaxTokens       int
	KnowledgeCutoff string
	PrivatePreview  bool
}

func (m ModelInfo) clone() ModelInfo {
	m.Capabilities = append([]string(nil), m.Capabilities...)
	return m
}

// ModelCatalog is the fixed set of models a backend serves. The first
// entry is the backend's default. Catalogs never change at runtime.
type ModelCatalog []ModelInfo

// Default returns the catalog's default model.
func (c ModelCatalog) Default() ModelInfo {
	return c[0].clone()
}

// IDs lists the catalog's model identifiers in catalog order.
func (c ModelCatalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for _, m := range c {
		ids = append(ids, m.ID)
	}
	return ids
}

// Contains reports whether id names a model in the catalog.
func (c ModelCatalog) Contains(id string) bool {
	for _, m := range c {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Validate returns an invalid-argument error enumerating the catalog
// when id names no model the backend serves.
func (c ModelCatalog) Validate(id string) error {
	if c.Contains(id) {
		return nil
	}
	return fmt.Errorf("%w: model %q is not available (available models: %s)",
		ErrInvalidArgument, id, strings.Join(c.IDs(), ", "))
}

// Copy returns an independent copy of the catalog for callers.
func (c ModelCatalog) Copy() []ModelInfo {
	out := make([]ModelInfo, 0, len(c))
	for _, m := range c {
		out = append(out, m.clone())
	}
	return out
}

// SendResult is the outcome of one send round trip.
type SendResult struct {
	Response    string
	Attachments []string
	Timestamp   time.Time
}

// ExportFormat selects a chat history export rendering.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatText ExportFormat = "txt"
)

// NotEnoughConversation is returned by SummarizeConversation when the
// history is too short to be worth a round trip.
const NotEnoughConversation = "Not enough conversation to summarize."

// RenderTranscript flattens messages into "User:"/"AI:" prefixed lines
// for summarization prompts.
func RenderTranscript(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		sender := "AI"
		if m.Sender == RoleUser {
			sender = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", sender, m.Content))
	}
	return strings.Join(lines, "\n")
}
