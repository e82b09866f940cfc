package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds token bucket settings for outbound model calls.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero disables limiting.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// Enabled reports whether the config describes an actual limit.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// RateLimiter is a token bucket with an additional backoff window that is
// opened whenever the provider answers 429.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter from cfg. A burst below one is raised to one.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	burst := cfg.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return r.limiter.Wait(ctx)
}

// Backoff holds further requests for d. Non-positive d defaults to 30s.
func (r *RateLimiter) Backoff(d time.Duration) {
	if d <= 0 {
		d = 30 * time.Second
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if until := time.Now().Add(d); until.After(r.retryAt) {
		r.retryAt = until
	}
}

// observe opens the backoff window when err is a rate limit error.
func (r *RateLimiter) observe(err error) {
	var rl *ErrRateLimit
	if errors.As(err, &rl) {
		r.Backoff(rl.RetryAfter)
	}
}

// RateLimitedProvider throttles Generate calls through a RateLimiter.
type RateLimitedProvider struct {
	inner   Provider
	limiter *RateLimiter
}

// WithRateLimit wraps p with a token bucket. A disabled config returns p as is.
func WithRateLimit(p Provider, cfg RateLimitConfig) Provider {
	if !cfg.Enabled() {
		return p
	}
	return &RateLimitedProvider{inner: p, limiter: NewRateLimiter(cfg)}
}

func (r *RateLimitedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := r.inner.Generate(ctx, req)
	if err != nil {
		r.limiter.observe(err)
	}
	return resp, err
}

func (r *RateLimitedProvider) ModelID() string {
	return r.inner.ModelID()
}

// RateLimitedEmbedder throttles Embed calls through a RateLimiter.
type RateLimitedEmbedder struct {
	inner   Embedder
	limiter *RateLimiter
}

// WithEmbedRateLimit wraps e with a token bucket. A disabled config returns e as is.
func WithEmbedRateLimit(e Embedder, cfg RateLimitConfig) Embedder {
	if !cfg.Enabled() {
		return e
	}
	return &RateLimitedEmbedder{inner: e, limiter: NewRateLimiter(cfg)}
}

func (r *RateLimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vecs, err := r.inner.Embed(ctx, texts)
	if err != nil {
		r.limiter.observe(err)
	}
	return vecs, err
}

func (r *RateLimitedEmbedder) ModelID() string {
	return r.inner.ModelID()
}
