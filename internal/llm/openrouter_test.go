package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenRouterProvider(t *testing.T) {
	if _, err := NewOpenRouterProvider(OpenRouterConfig{Model: "openai/gpt-4o"}); err == nil {
		t.Fatal("expected error for empty API key")
	}

	// Model IDs are vendor-prefixed and must not go through the OpenAI map.
	p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or", Model: "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}
	if p.ModelID() != "gpt-4o" {
		t.Fatalf("model = %q", p.ModelID())
	}
}

func TestOpenRouterProvider_UsesBaseURL(t *testing.T) {
	hit := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletion("Question: q", "stop"))
	}))
	defer server.Close()

	p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or", Model: "meta-llama/llama-3-8b", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !hit || resp.Text() != "Question: q" {
		t.Fatalf("custom base URL not used (hit=%v text=%q)", hit, resp.Text())
	}
}
