package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/adapters/cache"
	"github.com/mikey/llm-chat-client/internal/config"
)

func newCacheFactory(t *testing.T, set map[string]interface{}) *CacheFactory {
	t.Helper()
	v := config.NewEmptyViper()
	for key, value := range set {
		v.Set(key, value)
	}
	return NewCacheFactory(config.NewFromViper(v), zap.NewNop())
}

func TestCreateCacheRepository(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		f := newCacheFactory(t, nil)
		repo, err := f.CreateCacheRepository()
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		_, ok := repo.(*cache.MemoryCache)
		assert.True(t, ok)
	})

	t.Run("unsupported type", func(t *testing.T) {
		f := newCacheFactory(t, map[string]interface{}{"cache.type": "redis"})
		_, err := f.CreateCacheRepository()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported cache type: redis")
	})

	t.Run("invalid cleanup frequency", func(t *testing.T) {
		f := newCacheFactory(t, map[string]interface{}{"cache.cleanup_frequency": "often"})
		_, err := f.CreateCacheRepository()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid cache cleanup frequency")
	})
}

func TestCacheSettings(t *testing.T) {
	f := newCacheFactory(t, map[string]interface{}{
		"cache.ttl":     "30m",
		"cache.enabled": false,
	})

	ttl, err := f.GetCacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, ttl)
	assert.False(t, f.IsCacheEnabled())
}
