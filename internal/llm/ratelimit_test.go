package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRateLimit_DisabledPassesThrough(t *testing.T) {
	mock := NewMockProvider()
	if p := WithRateLimit(mock, RateLimitConfig{}); p != Provider(mock) {
		t.Fatal("disabled rate limit should return the provider unchanged")
	}
	local := NewLocalEmbedder(8)
	if e := WithEmbedRateLimit(local, RateLimitConfig{}); e != Embedder(local) {
		t.Fatal("disabled rate limit should return the embedder unchanged")
	}
}

func TestRateLimitedProvider_Throttles(t *testing.T) {
	mock := NewMockProvider(TextResponse("a"), TextResponse("b"), TextResponse("c"))
	p := WithRateLimit(mock, RateLimitConfig{RequestsPerSecond: 50, BurstSize: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := p.Generate(context.Background(), Request{}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	// burst 1 at 50/s: the 2nd and 3rd calls wait ~20ms each
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected throttling, took %v", elapsed)
	}
}

func TestRateLimitedProvider_CanceledWait(t *testing.T) {
	mock := NewMockProvider(TextResponse("a"), TextResponse("b"))
	p := WithRateLimit(mock, RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1})

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Generate(ctx, Request{}); err == nil {
		t.Fatal("expected wait to fail on deadline")
	}
	if mock.CallCount() != 1 {
		t.Fatalf("throttled call reached the provider")
	}
}

func TestRateLimiter_BackoffOnRateLimitError(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 10})
	rl.observe(errors.New("not a rate limit"))
	if !rl.retryAt.IsZero() {
		t.Fatal("plain errors must not open a backoff window")
	}

	rl.observe(&ErrRateLimit{RetryAfter: 40 * time.Millisecond})
	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("backoff not honoured, waited %v", elapsed)
	}
}

func TestRateLimitedEmbedder_Delegates(t *testing.T) {
	e := WithEmbedRateLimit(NewLocalEmbedder(16), RateLimitConfig{RequestsPerSecond: 100, BurstSize: 5})
	vecs, err := e.Embed(context.Background(), []string{"paging", "segmentation"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 16 {
		t.Fatalf("unexpected vectors: %d", len(vecs))
	}
	if e.ModelID() != "local-hash-16" {
		t.Fatalf("ModelID = %q", e.ModelID())
	}
}
