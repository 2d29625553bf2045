package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const mysqlTimeLayout = "2006-01-02 15:04:05"

// MySQLCache is a Repository shared between hosts through a MySQL
// server.
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

var _ Repository = (*MySQLCache)(nil)

// NewMySQLCache connects to the DSN, ensures the schema and starts the
// background cleanup task.
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_cache (
			sender_email VARCHAR(255) PRIMARY KEY,
			spam_probability DOUBLE,
			category VARCHAR(64),
			last_seen TIMESTAMP,
			expires_at TIMESTAMP,
			INDEX idx_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	c := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}
	go c.runCleanup()
	return c, nil
}

// Get retrieves the fresh entry for a sender, or ErrNotFound.
func (c *MySQLCache) Get(ctx context.Context, senderEmail string) (*Entry, error) {
	var entry Entry
	var lastSeen, expiresAt string

	err := c.db.QueryRowContext(ctx, `
		SELECT sender_email, spam_probability, category, last_seen, expires_at
		FROM analysis_cache
		WHERE sender_email = ? AND expires_at > NOW()
	`, senderEmail).Scan(&entry.SenderEmail, &entry.SpamProbability, &entry.Category, &lastSeen, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	if entry.LastSeen, err = time.Parse(mysqlTimeLayout, lastSeen); err != nil {
		return nil, fmt.Errorf("failed to parse last_seen timestamp: %w", err)
	}
	if entry.ExpiresAt, err = time.Parse(mysqlTimeLayout, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to parse expires_at timestamp: %w", err)
	}
	return &entry, nil
}

// Set stores an entry, replacing any previous one for the sender.
func (c *MySQLCache) Set(ctx context.Context, entry *Entry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (sender_email, spam_probability, category, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			spam_probability = VALUES(spam_probability),
			category = VALUES(category),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)
	`, entry.SenderEmail, entry.SpamProbability, entry.Category,
		entry.LastSeen.Format(mysqlTimeLayout), entry.ExpiresAt.Format(mysqlTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for a sender.
func (c *MySQLCache) Delete(ctx context.Context, senderEmail string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM analysis_cache
		WHERE sender_email = ?
	`, senderEmail)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries.
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM analysis_cache
		WHERE expires_at < NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to clean up cache: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.logger.Debug("cleaned up expired cache entries", zap.Int64("expired_count", n))
	}
	return nil
}

func (c *MySQLCache) runCleanup() {
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

// Close stops the cleanup task and closes the database.
func (c *MySQLCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return c.db.Close()
}
