// Package inbox supplies mail records to the analyzer. How mail
// arrives is outside this module; sources only hand over a sequence of
// records.
package inbox

import (
	"context"

	"github.com/mikey/llm-chat-client/internal/analyzer"
)

// Source hands over the mail records of one batch.
type Source interface {
	Fetch(ctx context.Context) ([]analyzer.Email, error)
}

// StaticSource serves a fixed set of records.
type StaticSource []analyzer.Email

var _ Source = (StaticSource)(nil)

// Fetch returns a copy of the fixed records.
func (s StaticSource) Fetch(ctx context.Context) ([]analyzer.Email, error) {
	return append([]analyzer.Email(nil), s...), nil
}
