package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMockProvider_FIFO(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage("Question: What is a stack?"), Usage: Usage{InputTokens: 12, OutputTokens: 7, TotalTokens: 19}},
		TextResponse("Question: What is a queue?"),
	)

	first, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "one"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Text() != "Question: What is a stack?" {
		t.Fatalf("unexpected first reply %q", first.Text())
	}
	if first.Usage.InputTokens != 12 {
		t.Fatalf("expected 12 input tokens, got %d", first.Usage.InputTokens)
	}

	second, err := mock.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Text() != "Question: What is a queue?" {
		t.Fatalf("unexpected second reply %q", second.Text())
	}

	_, err = mock.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable once drained, got %v", err)
	}
	if mock.CallCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.CallCount())
	}
}

func TestMockProvider_HookAndErrors(t *testing.T) {
	mock := NewMockProvider(ErrorResponse(&ErrRateLimit{}))
	seen := 0
	mock.OnGenerate = func(req Request) {
		seen++
		if req.System != "sys" {
			t.Errorf("hook saw system %q", req.System)
		}
	}

	_, err := mock.Generate(context.Background(), Request{System: "sys"})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
	if seen != 1 {
		t.Fatalf("hook ran %d times", seen)
	}
}

func TestMockProvider_CanceledContext(t *testing.T) {
	mock := NewMockProvider(TextResponse("unused"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := mock.Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("canceled call should not be recorded")
	}
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "Question: q\nAnswer: a", "Question: q\nAnswer: a"},
		{"json string", `"line one\nline two"`, "line one\nline two"},
		{"json object", `{"question":"q"}`, `{"question":"q"}`},
		{"broken quote", `"unterminated`, `"unterminated`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Response{Content: json.RawMessage(tt.content)}
			if got := r.Text(); got != tt.want {
				t.Fatalf("Text() = %q, want %q", got, tt.want)
			}
		})
	}

	var nilResp *Response
	if nilResp.Text() != "" {
		t.Fatal("nil response should give empty text")
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}
	ctx = WithPurpose(ctx, PurposeQAGen)
	if p := PurposeFrom(ctx); p != "qa-gen" {
		t.Fatalf("expected 'qa-gen', got %q", p)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic without key", Config{Provider: "anthropic"}, true},
		{"anthropic with key", Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "k"}}, false},
		{"openai without key", Config{Provider: "openai"}, true},
		{"openai with key", Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "k"}}, false},
		{"gemini without key", Config{Provider: "gemini"}, true},
		{"openrouter with key", Config{Provider: "openrouter", OpenRouter: OpenRouterConfig{APIKey: "k"}}, false},
		{"mock needs no key", Config{Provider: "mock"}, false},
		{"unknown provider", Config{Provider: "bard"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LECTUREQA_LLM_PROVIDER", "gemini")
	t.Setenv("LECTUREQA_GEMINI_API_KEY", "g-key")
	t.Setenv("LECTUREQA_OPENAI_BASE_URL", "http://localhost:8080/v1")

	cfg := ConfigFromEnv()
	if cfg.Provider != "gemini" || cfg.Gemini.APIKey != "g-key" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.OpenAI.BaseURL != "http://localhost:8080/v1" {
		t.Fatalf("base url = %q", cfg.OpenAI.BaseURL)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Fatalf("default model lost: %q", cfg.OpenAI.Model)
	}
}

func TestDiscoverKeys(t *testing.T) {
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}

	t.Run("selected provider keeps its key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-openai")
		cfg := DefaultConfig()
		if !DiscoverKeys(&cfg) {
			t.Fatal("expected a key")
		}
		if cfg.Provider != "openai" || cfg.OpenAI.APIKey != "sk-openai" {
			t.Fatalf("unexpected config %+v", cfg)
		}
	})

	t.Run("falls back to another provider", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
		cfg := DefaultConfig()
		if !DiscoverKeys(&cfg) {
			t.Fatal("expected a key")
		}
		if cfg.Provider != "anthropic" {
			t.Fatalf("expected anthropic, got %q", cfg.Provider)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		cfg := DefaultConfig()
		if DiscoverKeys(&cfg) {
			t.Fatal("expected no key")
		}
	})
}

func TestLookupCost(t *testing.T) {
	c := LookupCost("text-embedding-3-small")
	if c == nil {
		t.Fatal("expected pricing for text-embedding-3-small")
	}
	if got := c.Cost(1_000_000, 0); got != 0.02 {
		t.Fatalf("cost = %v", got)
	}
	if c := LookupCost("local-hash-512"); c == nil || c.Cost(1000, 1000) != 0 {
		t.Fatal("local embedder should be free")
	}
	if LookupCost("no-such-model") != nil {
		t.Fatal("unknown model should have no pricing")
	}
}
