package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "cerebras", cfg.GetLLM().Backend)

	spam := cfg.GetSpam()
	assert.Equal(t, 50.0, spam.Threshold)
	assert.Empty(t, spam.WhitelistedSenders)
	assert.Equal(t, 4096, spam.MaxBodySize)

	analyzer := cfg.GetAnalyzer()
	assert.Equal(t, "./inbox", analyzer.InputDir)
	assert.Empty(t, analyzer.OutputFile)

	bedrock := cfg.GetBedrock()
	assert.Equal(t, "us-east-1", bedrock.Region)
	assert.Empty(t, bedrock.ModelID)
	assert.Equal(t, 1024, bedrock.MaxTokens)
	assert.Equal(t, float32(0.1), bedrock.Temperature)
	assert.Equal(t, float32(0.9), bedrock.TopP)

	assert.Equal(t, "memory", cfg.GetString("cache.type"))
	assert.True(t, cfg.GetBool("cache.enabled"))
	assert.Equal(t, "info", cfg.GetString("logging.level"))
	assert.Equal(t, "json", cfg.GetString("logging.format"))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CHAT_CLIENT_LLM_BACKEND", "mock")
	t.Setenv("CHAT_CLIENT_SPAM_THRESHOLD", "80")
	t.Setenv("CHAT_CLIENT_CEREBRAS_API_KEY", "shh")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.GetLLM().Backend)
	assert.Equal(t, 80.0, cfg.GetSpam().Threshold)
	assert.Equal(t, "shh", cfg.GetCerebras().APIKey)
}

func TestTypedGetters(t *testing.T) {
	v := NewEmptyViper()
	v.Set("bedrock.model_id", "anthropic.claude-3-sonnet-20240229-v1:0")
	v.Set("bedrock.max_tokens", 2048)
	v.Set("gemini.model_name", "gemini-1.5-pro")
	v.Set("spam.whitelisted_senders", []string{"trusted.com", "ceo@partner.org"})
	cfg := NewFromViper(v)

	bedrock := cfg.GetBedrock()
	assert.Equal(t, "anthropic.claude-3-sonnet-20240229-v1:0", bedrock.ModelID)
	assert.Equal(t, 2048, bedrock.MaxTokens)
	assert.Equal(t, "us-east-1", bedrock.Region, "unset keys keep their defaults")

	gemini := cfg.GetGemini()
	assert.Equal(t, "gemini-1.5-pro", gemini.ModelName)
	assert.Equal(t, 1024, gemini.MaxTokens)

	assert.Equal(t, []string{"trusted.com", "ceo@partner.org"}, cfg.GetSpam().WhitelistedSenders)
}

func TestGetDuration(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	ttl, err := cfg.GetDuration("cache.ttl")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)

	freq, err := cfg.GetDuration("cache.cleanup_frequency")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, freq)

	cfg.GetViper().Set("cache.ttl", "soon")
	_, err = cfg.GetDuration("cache.ttl")
	assert.Error(t, err)
}
