package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryCache is an in-memory Repository.
type MemoryCache struct {
	mu          sync.RWMutex
	entries     map[string]Entry
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

var _ Repository = (*MemoryCache)(nil)

// NewMemoryCache builds an in-memory cache and starts its background
// cleanup task.
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries:     make(map[string]Entry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}
	go c.runCleanup()
	return c
}

// Get retrieves the fresh entry for a sender, or ErrNotFound.
func (c *MemoryCache) Get(ctx context.Context, senderEmail string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[senderEmail]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return nil, ErrNotFound
	}
	out := entry
	return &out, nil
}

// Set stores an entry, replacing any previous one for the sender.
func (c *MemoryCache) Set(ctx context.Context, entry *Entry) error {
	c.mu.Lock()
	c.entries[entry.SenderEmail] = *entry
	c.mu.Unlock()
	return nil
}

// Delete removes the entry for a sender.
func (c *MemoryCache) Delete(ctx context.Context, senderEmail string) error {
	c.mu.Lock()
	delete(c.entries, senderEmail)
	c.mu.Unlock()
	return nil
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expired := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			expired++
		}
	}
	c.logger.Debug("cleaned up expired cache entries", zap.Int("expired_count", expired))
	return nil
}

func (c *MemoryCache) runCleanup() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Close stops the background cleanup task.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}
