package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCatalog = ModelCatalog{
	{ID: "alpha-large", Name: "Alpha Large", Capabilities: []string{"chat"}},
	{ID: "alpha-small", Name: "Alpha Small", Capabilities: []string{"chat"}},
}

func TestModelCatalog(t *testing.T) {
	t.Run("default is the first entry", func(t *testing.T) {
		assert.Equal(t, "alpha-large", testCatalog.Default().ID)
	})

	t.Run("contains", func(t *testing.T) {
		assert.True(t, testCatalog.Contains("alpha-small"))
		assert.False(t, testCatalog.Contains("beta"))
	})

	t.Run("validate enumerates the catalog", func(t *testing.T) {
		assert.NoError(t, testCatalog.Validate("alpha-large"))

		err := testCatalog.Validate("not-a-real-model")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Contains(t, err.Error(), `"not-a-real-model"`)
		assert.Contains(t, err.Error(), "alpha-large, alpha-small")
	})

	t.Run("copy shares nothing with the catalog", func(t *testing.T) {
		copied := testCatalog.Copy()
		copied[0].ID = "tampered"
		copied[0].Capabilities[0] = "tampered"
		assert.Equal(t, "alpha-large", testCatalog[0].ID)
		assert.Equal(t, "chat", testCatalog[0].Capabilities[0])
	})

	t.Run("ids in catalog order", func(t *testing.T) {
		assert.Equal(t, []string{"alpha-large", "alpha-small"}, testCatalog.IDs())
	})
}

func TestUsageMetricsAdd(t *testing.T) {
	var m UsageMetrics
	m.Add(UsageMetrics{TokenCount: 10, APICalls: 1, CostEstimate: 0.1})
	m.Add(UsageMetrics{TokenCount: 5, APICalls: 1, CostEstimate: 0.05})

	assert.Equal(t, 15, m.TokenCount)
	assert.Equal(t, 2, m.APICalls)
	assert.InDelta(t, 0.15, m.CostEstimate, 1e-9)
}

func TestSessionClone(t *testing.T) {
	original := Session{
		ID:       "s1",
		Messages: []Message{{Content: "hello", Sender: RoleUser}},
		Attachments: []Attachment{
			{Path: "/tmp/a.txt", Timestamp: time.Now()},
		},
	}

	clone := original.Clone()
	clone.Messages[0].Content = "tampered"
	clone.Attachments[0].Path = "/tmp/other.txt"
	clone.Messages = append(clone.Messages, Message{Content: "extra"})

	assert.Equal(t, "hello", original.Messages[0].Content)
	assert.Equal(t, "/tmp/a.txt", original.Attachments[0].Path)
	assert.Len(t, original.Messages, 1)
}

func TestRenderTranscript(t *testing.T) {
	msgs := []Message{
		{Sender: RoleSystem, Content: "be helpful"},
		{Sender: RoleUser, Content: "2+2?"},
		{Sender: RoleAssistant, Content: "4"},
	}

	got := RenderTranscript(msgs)
	assert.Equal(t, "AI: be helpful\nUser: 2+2?\nAI: 4", got)

	assert.Empty(t, RenderTranscript(nil))
}
