package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chitchi46/lectureqa/internal/logger"
	"github.com/chitchi46/lectureqa/internal/store"
)

// maxLoggedBody caps stored request/response bodies.
const maxLoggedBody = 64 * 1024

// LoggingProvider records every Generate call as an LLM event row.
type LoggingProvider struct {
	inner     Provider
	eventRepo store.EventRepo
	provider  string
}

// WithLogging wraps a Provider with event logging. A nil repo disables it.
func WithLogging(p Provider, name string, repo store.EventRepo) Provider {
	if repo == nil {
		return p
	}
	return &LoggingProvider{inner: p, eventRepo: repo, provider: name}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	data := store.LLMRequestEventData{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: truncateBody(serializeRequest(req)),
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = truncateBody(resp.Text())
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}

	// A failed write never fails the request.
	if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
		logger.Warn("failed to log LLM request event: %v", logErr)
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// LoggingEmbedder records every Embed call as an LLM event row. Only the
// number of texts and vectors is stored, not the vectors.
type LoggingEmbedder struct {
	inner     Embedder
	eventRepo store.EventRepo
	provider  string
}

// WithEmbedLogging wraps an Embedder with event logging. A nil repo disables it.
func WithEmbedLogging(e Embedder, name string, repo store.EventRepo) Embedder {
	if repo == nil {
		return e
	}
	return &LoggingEmbedder{inner: e, eventRepo: repo, provider: name}
}

func (l *LoggingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := l.inner.Embed(ctx, texts)

	inputTokens := 0
	for _, t := range texts {
		inputTokens += estimateTokens(t)
	}

	data := store.LLMRequestEventData{
		Provider:     l.provider,
		Model:        l.inner.ModelID(),
		Purpose:      PurposeFrom(ctx),
		InputTokens:  inputTokens,
		LatencyMs:    time.Since(start).Milliseconds(),
		Success:      err == nil,
		RequestBody:  fmt.Sprintf("[embed] %d texts", len(texts)),
		ResponseBody: fmt.Sprintf("[vectors] %d", len(vecs)),
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
		logger.Warn("failed to log embedding event: %v", logErr)
	}
	return vecs, err
}

func (l *LoggingEmbedder) ModelID() string {
	return l.inner.ModelID()
}

// estimateTokens approximates token usage as one token per four bytes.
// Embedding APIs used here do not report usage per call.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

func truncateBody(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "\n[truncated]"
}

// serializeRequest builds a readable representation of the request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	if req.Schema != nil {
		if def, err := json.Marshal(req.Schema.Definition); err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n", req.Schema.Name)
			b.Write(def)
			b.WriteString("\n")
		}
	}
	return b.String()
}
