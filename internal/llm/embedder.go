package llm

import (
	"context"
	"fmt"
)

// Embedder is the embedding side of the model collaborator.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID returns the embedding model identifier. Indexes record it so
	// queries can be checked against the model that built them.
	ModelID() string
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Provider selects the backend.
	// Values: "openai", "gemini", "local"
	Provider string

	OpenAI OpenAIConfig
	Gemini GeminiConfig

	// Dimension is the vector size of the local embedder.
	Dimension int

	// BatchSize caps how many texts go into a single Embed call.
	BatchSize int

	RateLimit RateLimitConfig
}

// DefaultEmbeddingConfig returns an EmbeddingConfig with sensible defaults.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:  "local",
		OpenAI:    OpenAIConfig{Model: "text-embedding-3-small"},
		Gemini:    GeminiConfig{Model: "text-embedding-004"},
		Dimension: 512,
		BatchSize: 64,
		RateLimit: RateLimitConfig{RequestsPerSecond: 5, BurstSize: 10},
	}
}

// Validate checks that the selected embedder has what it needs.
func (c EmbeddingConfig) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("LECTUREQA_OPENAI_API_KEY is required for the openai embedder")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("LECTUREQA_GEMINI_API_KEY is required for the gemini embedder")
		}
	case "local":
		if c.Dimension <= 0 {
			return fmt.Errorf("local embedder dimension must be positive, got %d", c.Dimension)
		}
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Provider)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}
