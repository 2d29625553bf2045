// Package cache stores spam analysis verdicts keyed by sender address
// so a batch run does not re-score senders it has already seen.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no fresh entry exists for a sender.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one cached verdict.
type Entry struct {
	SenderEmail     string
	SpamProbability float64
	Category        string
	LastSeen        time.Time
	ExpiresAt       time.Time
}

// Repository is the verdict cache contract. Expired entries behave as
// misses.
type Repository interface {
	// Get retrieves the fresh entry for a sender, or ErrNotFound.
	Get(ctx context.Context, senderEmail string) (*Entry, error)

	// Set stores an entry, replacing any previous one for the sender.
	Set(ctx context.Context, entry *Entry) error

	// Delete removes the entry for a sender.
	Delete(ctx context.Context, senderEmail string) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error

	// Close stops background work and releases resources.
	Close() error
}
