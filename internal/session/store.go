// Package session holds the conversation state a backend instance owns:
// an arena of sessions addressed by opaque ids, each guarded by its own
// lock so traffic on one session never serializes another.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikey/llm-chat-client/internal/core"
)

// Store owns the sessions created by a single backend instance.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	sess core.Session
}

// NewStore returns an empty session arena.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// NewMessage builds a message with a fresh id and the current time.
func NewMessage(sender core.Role, content string) core.Message {
	return core.Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now(),
	}
}

// Create registers a new active session and returns its id. Seed
// messages (typically a system priming message) are recorded before
// any user message.
func (s *Store) Create(userID, model string, seed ...core.Message) string {
	id := uuid.NewString()
	e := &entry{sess: core.Session{
		ID:        id,
		UserID:    userID,
		Model:     model,
		Active:    true,
		CreatedAt: time.Now(),
		Messages:  append([]core.Message(nil), seed...),
	}}
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return id
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, core.ErrSessionNotFound)
	}
	return e, nil
}

// Snapshot returns a deep copy of the session.
func (s *Store) Snapshot(id string) (core.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return core.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone(), nil
}

// History returns the session's messages oldest first. limit <= 0
// returns everything; otherwise the limit most recent messages, still
// in chronological order. The slice is a copy.
func (s *Store) History(id string, limit int) ([]core.Message, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := e.sess.Messages
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]core.Message(nil), msgs...), nil
}

// BeginExchange validates that the session accepts traffic, appends the
// user message and returns a snapshot including it. The entry lock is
// released before the caller performs the round trip; FinishExchange
// records a successful outcome. A failed round trip leaves the user
// message in history and accrues nothing.
func (s *Store) BeginExchange(id string, userMsg core.Message) (core.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return core.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sess.Active {
		return core.Session{}, fmt.Errorf("%w: session %q is no longer active", core.ErrInvalidArgument, id)
	}
	e.sess.Messages = append(e.sess.Messages, userMsg)
	return e.sess.Clone(), nil
}

// FinishExchange appends the assistant reply and accrues the usage
// delta for a completed round trip.
func (s *Store) FinishExchange(id string, reply core.Message, usage core.UsageMetrics) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Messages = append(e.sess.Messages, reply)
	e.sess.Metrics.Add(usage)
	return nil
}

// AddUsage accrues a usage delta for a round trip that appends nothing
// to history (summarization).
func (s *Store) AddUsage(id string, usage core.UsageMetrics) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Metrics.Add(usage)
	return nil
}

// End deactivates the session, leaving history and metrics readable.
// It reports whether the id is known; deactivation is idempotent, so
// ending an already ended session keeps returning true.
func (s *Store) End(id string) bool {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	e.sess.Active = false
	e.mu.Unlock()
	return true
}

// SetModel points the session at a different model.
func (s *Store) SetModel(id, model string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.sess.Model = model
	e.mu.Unlock()
	return nil
}

// AddAttachment records a file reference against the session.
func (s *Store) AddAttachment(id string, att core.Attachment) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.sess.Attachments = append(e.sess.Attachments, att)
	e.mu.Unlock()
	return nil
}

// Metrics returns a copy of the session's usage counters.
func (s *Store) Metrics(id string) (core.UsageMetrics, error) {
	e, err := s.lookup(id)
	if err != nil {
		return core.UsageMetrics{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Metrics, nil
}
