package llm

import (
	"fmt"
	"os"
	"time"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "anthropic", "openai", "gemini", "openrouter", "mock"
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig
	RateLimit  RateLimitConfig

	// Timeout bounds a single Generate call including retries.
	Timeout time.Duration

	// MaxTokens caps one question reply.
	MaxTokens int

	// StructuredOutput asks the provider for schema-validated JSON.
	StructuredOutput bool
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-sonnet"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o"
	BaseURL string // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "openai/gpt-4o"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:   "openai",
		Anthropic:  AnthropicConfig{Model: "claude-sonnet"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "openai/gpt-4o"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 2, BurstSize: 4},
		Timeout:   60 * time.Second,
		MaxTokens: 1024,
	}
}

// ApplyEnv overrides cfg with LECTUREQA_* environment variables.
func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&cfg.Provider, "LECTUREQA_LLM_PROVIDER")
	set(&cfg.Anthropic.APIKey, "LECTUREQA_ANTHROPIC_API_KEY")
	set(&cfg.Anthropic.Model, "LECTUREQA_ANTHROPIC_MODEL")
	set(&cfg.OpenAI.APIKey, "LECTUREQA_OPENAI_API_KEY")
	set(&cfg.OpenAI.Model, "LECTUREQA_OPENAI_MODEL")
	set(&cfg.OpenAI.BaseURL, "LECTUREQA_OPENAI_BASE_URL")
	set(&cfg.Gemini.APIKey, "LECTUREQA_GEMINI_API_KEY")
	set(&cfg.Gemini.Model, "LECTUREQA_GEMINI_MODEL")
	set(&cfg.OpenRouter.APIKey, "LECTUREQA_OPENROUTER_API_KEY")
	set(&cfg.OpenRouter.Model, "LECTUREQA_OPENROUTER_MODEL")
}

// ConfigFromEnv builds a Config from defaults and LECTUREQA_* variables.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	ApplyEnv(&cfg)
	return cfg
}

// DiscoverKeys fills empty API keys from the standard provider variables
// (OPENAI_API_KEY and friends). If the selected provider still has no key,
// the first provider with a discovered key is selected instead. It reports
// whether any key is available for the final provider.
func DiscoverKeys(cfg *Config) bool {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	fill(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	fill(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	fill(&cfg.OpenRouter.APIKey, "OPENROUTER_API_KEY")

	if cfg.Validate() == nil {
		return true
	}
	for _, p := range []struct {
		name string
		key  string
	}{
		{"openai", cfg.OpenAI.APIKey},
		{"gemini", cfg.Gemini.APIKey},
		{"anthropic", cfg.Anthropic.APIKey},
		{"openrouter", cfg.OpenRouter.APIKey},
	} {
		if p.key != "" {
			cfg.Provider = p.name
			return true
		}
	}
	return false
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("LECTUREQA_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("LECTUREQA_OPENAI_API_KEY is required for the openai provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("LECTUREQA_GEMINI_API_KEY is required for the gemini provider")
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("LECTUREQA_OPENROUTER_API_KEY is required for the openrouter provider")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
