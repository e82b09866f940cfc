package llm

import (
	"context"
	"fmt"

	"github.com/chitchi46/lectureqa/internal/store"
)

// NewProvider creates a Provider from configuration, wrapped as
// caller → retry → rate limit → logging → base.
// A nil eventRepo skips event logging.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	logged := WithLogging(base, cfg.Provider, eventRepo)
	limited := WithRateLimit(logged, cfg.RateLimit)
	return WithRetry(limited, cfg.Retry), nil
}

// NewEmbedder creates an Embedder from configuration, wrapped as
// caller → rate limit → logging → base. Remote embedders reuse the API
// keys of cfg when their own are empty.
func NewEmbedder(ctx context.Context, ecfg EmbeddingConfig, cfg Config, eventRepo store.EventRepo) (Embedder, error) {
	var base Embedder
	var err error

	switch ecfg.Provider {
	case "local":
		return NewLocalEmbedder(ecfg.Dimension), nil
	case "openai":
		oc := ecfg.OpenAI
		if oc.APIKey == "" {
			oc.APIKey = cfg.OpenAI.APIKey
		}
		if oc.BaseURL == "" {
			oc.BaseURL = cfg.OpenAI.BaseURL
		}
		base, err = NewOpenAIEmbedder(oc)
	case "gemini":
		gc := ecfg.Gemini
		if gc.APIKey == "" {
			gc.APIKey = cfg.Gemini.APIKey
		}
		base, err = NewGeminiEmbedder(ctx, gc)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", ecfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s embedder: %w", ecfg.Provider, err)
	}

	logged := WithEmbedLogging(base, ecfg.Provider, eventRepo)
	return WithEmbedRateLimit(logged, ecfg.RateLimit), nil
}
