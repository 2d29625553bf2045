package gemini

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/session"
)

// newOfflineClient builds a client for paths that never reach the API.
func newOfflineClient() *Client {
	return &Client{
		store:        session.NewStore(),
		logger:       zap.NewNop(),
		defaultModel: models.Default().ID,
		maxTokens:    defaultMaxTokens,
	}
}

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key fails", func(t *testing.T) {
		t.Setenv(apiKeyEnvVar, "")
		_, err := NewClient(ctx, "", "", 0, 0.1, 0.9, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), apiKeyEnvVar)
	})

	t.Run("unknown model rejected with the catalog", func(t *testing.T) {
		_, err := NewClient(ctx, "key", "gemini-9000", 0, 0.1, 0.9, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "gemini-1.5-flash")
	})
}

func TestSessionBookkeeping(t *testing.T) {
	client := newOfflineClient()

	id, err := client.StartNewSession("u1", "")
	require.NoError(t, err)

	msgs, err := client.GetChatHistory(id, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, core.RoleSystem, msgs[0].Sender)

	sess, err := client.store.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", sess.Model)

	require.NoError(t, client.SwitchModel(id, "gemini-1.5-pro"))
	assert.ErrorIs(t, client.SwitchModel(id, "gemini-9000"), core.ErrInvalidArgument)

	summary, err := client.SummarizeConversation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.NotEnoughConversation, summary)

	assert.True(t, client.EndSession(id))
	_, err = client.SendMessage(context.Background(), id, "hi", nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestListAvailableModels(t *testing.T) {
	client := newOfflineClient()

	catalog := client.ListAvailableModels()
	require.Len(t, catalog, 3)
	assert.Equal(t, "gemini-1.5-flash", catalog[0].ID)

	catalog[0].ID = "tampered"
	assert.Equal(t, "gemini-1.5-flash", client.ListAvailableModels()[0].ID)
}

func TestMapError(t *testing.T) {
	client := newOfflineClient()

	apiErr := func(code int) error {
		return fmt.Errorf("calling gemini: %w", &googleapi.Error{Code: code, Message: "detail"})
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"401 maps to authentication", apiErr(401), core.ErrAuthentication},
		{"403 maps to authorization", apiErr(403), core.ErrAuthorization},
		{"404 maps to model not found", apiErr(404), core.ErrModelNotFound},
		{"429 maps to rate limited", apiErr(429), core.ErrRateLimited},
		{"500 maps to upstream", apiErr(500), core.ErrUpstream},
		{"503 maps to upstream", apiErr(503), core.ErrUpstream},
		{"deadline exceeded maps to transient", context.DeadlineExceeded, core.ErrTransient},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, client.mapError(tc.err), tc.want)
		})
	}

	t.Run("unmapped status passes through", func(t *testing.T) {
		err := client.mapError(apiErr(400))
		assert.Contains(t, err.Error(), "gemini request failed")
	})
}

func TestCloseWithoutAPIClient(t *testing.T) {
	assert.NoError(t, newOfflineClient().Close())
}
