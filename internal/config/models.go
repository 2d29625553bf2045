package config

// LLMConfig represents the backend selection
type LLMConfig struct {
	Backend string
}

// CerebrasConfig represents the configuration for the Cerebras backend
type CerebrasConfig struct {
	APIKey  string
	BaseURL string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// SpamConfig represents the spam analysis settings
type SpamConfig struct {
	Threshold          float64
	WhitelistedSenders []string
	MaxBodySize        int
}

// AnalyzerConfig represents the batch analyzer settings
type AnalyzerConfig struct {
	InputDir   string
	OutputFile string
}

// GetLLM returns the backend selection
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Backend: c.GetString("llm.backend"),
	}
}

// GetCerebras returns the Cerebras configuration
func (c *Config) GetCerebras() CerebrasConfig {
	return CerebrasConfig{
		APIKey:  c.GetString("cerebras.api_key"),
		BaseURL: c.GetString("cerebras.base_url"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetSpam returns the spam analysis settings
func (c *Config) GetSpam() SpamConfig {
	return SpamConfig{
		Threshold:          c.GetFloat64("spam.threshold"),
		WhitelistedSenders: c.GetStringSlice("spam.whitelisted_senders"),
		MaxBodySize:        c.GetInt("spam.max_body_size"),
	}
}

// GetAnalyzer returns the batch analyzer settings
func (c *Config) GetAnalyzer() AnalyzerConfig {
	return AnalyzerConfig{
		InputDir:   c.GetString("analyzer.input_dir"),
		OutputFile: c.GetString("analyzer.output_file"),
	}
}
