package llm

import "fmt"

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider is an OpenAIProvider pointed at OpenRouter, which
// speaks the OpenAI chat API. Model IDs are passed through unmapped.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	client, err := newOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: baseURL})
	if err != nil {
		return nil, err
	}

	return &OpenRouterProvider{
		OpenAIProvider: &OpenAIProvider{client: client, model: cfg.Model},
	}, nil
}
