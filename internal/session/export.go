package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/llm-chat-client/internal/core"
)

type exportedMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

type exportedSession struct {
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id"`
	Model     string            `json:"model"`
	CreatedAt string            `json:"created_at"`
	Messages  []exportedMessage `json:"messages"`
}

// Export renders the session in the requested format. Ended sessions
// export the same as active ones.
func (s *Store) Export(id string, format core.ExportFormat) (string, error) {
	sess, err := s.Snapshot(id)
	if err != nil {
		return "", err
	}
	switch format {
	case core.FormatJSON:
		return renderJSON(sess)
	case core.FormatText:
		return renderText(sess), nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q (supported formats: %s, %s)",
			core.ErrInvalidArgument, format, core.FormatJSON, core.FormatText)
	}
}

func renderJSON(sess core.Session) (string, error) {
	out := exportedSession{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Model:     sess.Model,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		Messages:  make([]exportedMessage, 0, len(sess.Messages)),
	}
	for _, m := range sess.Messages {
		out.Messages = append(out.Messages, exportedMessage{
			ID:        m.ID,
			Content:   m.Content,
			Sender:    string(m.Sender),
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session export: %w", err)
	}
	return string(data), nil
}

func renderText(sess core.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session ID: %s\n", sess.ID)
	fmt.Fprintf(&b, "User ID: %s\n", sess.UserID)
	fmt.Fprintf(&b, "Model: %s\n", sess.Model)
	fmt.Fprintf(&b, "Created: %s\n", sess.CreatedAt.Format(time.RFC3339))
	b.WriteString("\nConversation:\n")
	for _, m := range sess.Messages {
		sender := "AI"
		if m.Sender == core.RoleUser {
			sender = "User"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), sender, m.Content)
	}
	return b.String()
}
