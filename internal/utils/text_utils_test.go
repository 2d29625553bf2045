package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	t.Run("short text passes through", func(t *testing.T) {
		assert.Equal(t, "hello", tp.TruncateText("hello", 10))
	})

	t.Run("zero limit means no limit", func(t *testing.T) {
		long := strings.Repeat("x", 10000)
		assert.Equal(t, long, tp.TruncateText(long, 0))
	})

	t.Run("long text is cut and marked", func(t *testing.T) {
		got := tp.TruncateText("abcdefghij", 4)
		assert.Equal(t, "abcd"+truncationNotice, got)
	})

	t.Run("multibyte runes are never split", func(t *testing.T) {
		// "héllo" is six bytes; cutting at three lands inside é.
		got := tp.TruncateText("héllo", 2)
		cut := strings.TrimSuffix(got, truncationNotice)
		assert.Equal(t, "h", cut)
		assert.True(t, utf8.ValidString(got))
	})
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	t.Run("valid text passes through", func(t *testing.T) {
		assert.Equal(t, "héllo wörld", tp.SanitizeUTF8("héllo wörld"))
	})

	t.Run("invalid bytes are dropped", func(t *testing.T) {
		got := tp.SanitizeUTF8("ok\xff\xfethen")
		assert.Equal(t, "okthen", got)
		assert.True(t, utf8.ValidString(got))
	})
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	got := tp.ProcessText("ok\xffok"+strings.Repeat("y", 100), 6)
	assert.Equal(t, "okokyy"+truncationNotice, got)
}
