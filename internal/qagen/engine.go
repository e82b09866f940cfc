// Package qagen generates question/answer items from an indexed lecture
// and parses model replies into structured items.
package qagen

import (
	"context"
	"fmt"
	"time"

	"github.com/chitchi46/lectureqa/internal/index"
	"github.com/chitchi46/lectureqa/internal/llm"
	"github.com/chitchi46/lectureqa/internal/logger"
)

// Retriever is the part of the index service the engine needs.
type Retriever interface {
	Load(ctx context.Context, lectureID string) (*index.Index, bool, error)
	Query(ctx context.Context, idx *index.Index, text string, k int) ([]index.Result, error)
}

// Config controls the generation loop.
type Config struct {
	RetrievalK            int
	Timeout               time.Duration
	MaxAttemptsMultiplier int
	MaxAttemptsCap        int
	DedupKeyLength        int
	DedupMinLength        int

	MaxTokens   int
	Temperature float64

	// MaxPriorQuestions is the number of recent accepted questions listed
	// in the prompt.
	MaxPriorQuestions int

	Language         Language
	StructuredOutput bool
	// DiscardFallback drops items synthesized from unparseable replies.
	DiscardFallback bool
}

// DefaultConfig returns the standard generation settings.
func DefaultConfig() Config {
	return Config{
		RetrievalK:            3,
		Timeout:               120 * time.Second,
		MaxAttemptsMultiplier: 2,
		MaxAttemptsCap:        10,
		DedupKeyLength:        30,
		DedupMinLength:        5,
		MaxTokens:             1024,
		Temperature:           0.7,
		MaxPriorQuestions:     8,
		Language:              English,
	}
}

// Engine runs the bounded, deduplicating generation loop.
type Engine struct {
	provider llm.Provider
	index    Retriever
	cfg      Config
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces time.Now for budget checks.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(provider llm.Provider, retriever Retriever, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{provider: provider, index: retriever, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate returns up to req.NumQuestions unique items. It never fails:
// fewer items than requested is a normal outcome, and an empty slice means
// nothing could be produced (for example, the lecture has no index yet).
func (e *Engine) Generate(ctx context.Context, req Request) []Item {
	return e.Run(ctx, req).Accepted
}

// Run executes the loop and returns its final state.
//
// Each iteration checks the budget at the top only, so one slow model
// call may overshoot it.
func (e *Engine) Run(ctx context.Context, req Request) *State {
	types := req.QuestionTypes
	if len(types) == 0 {
		types = DefaultQuestionTypes
	}

	st := NewState(req.NumQuestions, Limits{
		Budget:         e.cfg.Timeout,
		MaxAttempts:    min(e.cfg.MaxAttemptsMultiplier*req.NumQuestions, e.cfg.MaxAttemptsCap),
		DedupKeyLength: e.cfg.DedupKeyLength,
		DedupMinLength: e.cfg.DedupMinLength,
	}, e.now())

	if req.NumQuestions <= 0 {
		st.Termination = Complete
		return st
	}

	idx, ok, err := e.index.Load(ctx, req.LectureID)
	if err != nil {
		logger.Warn("qagen: lecture %s: loading index: %v", req.LectureID, err)
		st.Termination = NotReady
		return st
	}
	if !ok {
		logger.Info("qagen: lecture %s has no index yet", req.LectureID)
		st.Termination = NotReady
		return st
	}

	qualifiers := promptsFor(e.cfg.Language).qualifiers
	for {
		if st.Done() {
			st.Termination = Complete
			break
		}
		if ctx.Err() != nil {
			st.Termination = Canceled
			break
		}
		if st.Expired(e.now()) {
			st.Termination = PartialTimeout
			break
		}
		if st.Exhausted() {
			st.Termination = PartialExhausted
			break
		}

		st.Attempts++
		qt := st.NextType(types)
		item, err := e.attempt(ctx, idx, req.Difficulty, qt, st.Qualifier(qualifiers), st)
		if err != nil {
			logger.Warn("qagen: lecture %s: %v", req.LectureID, err)
			continue
		}
		if item.Fallback && e.cfg.DiscardFallback {
			logger.Debug("qagen: attempt %d: discarding fallback item", st.Attempts)
			continue
		}
		if !st.Offer(*item) {
			logger.Info("qagen: attempt %d: duplicate question, retrying", st.Attempts)
			continue
		}
		logger.Debug("qagen: accepted %d/%d (%s)", len(st.Accepted), req.NumQuestions, qt)
	}

	logger.Info("qagen: lecture %s: %d/%d items in %d attempts (%s, %s)",
		req.LectureID, len(st.Accepted), req.NumQuestions, st.Attempts, st.Termination,
		e.now().Sub(st.StartTime).Round(time.Millisecond))
	return st
}

// attempt performs one retrieve, prompt, model and parse cycle. A panic in
// the parser is confined to the attempt.
func (e *Engine) attempt(ctx context.Context, idx *index.Index, d Difficulty, qt QuestionType, qualifier string, st *State) (item *Item, err error) {
	fail := func(stage string, err error) error {
		return &AttemptError{Attempt: st.Attempts, Stage: stage, Err: err}
	}

	query := buildQuery(e.cfg.Language, qualifier, d, qt, len(st.Accepted)+1)
	results, err := e.index.Query(ctx, idx, query, e.cfg.RetrievalK)
	if err != nil {
		return nil, fail(StageRetrieve, err)
	}

	req := llm.Request{
		System: promptsFor(e.cfg.Language).system,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(e.cfg.Language, d, qt, results, query, st.Questions(), e.cfg.MaxPriorQuestions)},
		},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	}
	if e.cfg.StructuredOutput {
		req.Schema = ItemSchema
	}

	resp, err := e.provider.Generate(llm.WithPurpose(ctx, llm.PurposeQAGen), req)
	if err != nil {
		return nil, fail(StageGenerate, err)
	}

	raw := resp.Text()
	if e.cfg.StructuredOutput {
		if raw, err = renderStructured(resp.Content, qt); err != nil {
			return nil, fail(StageParse, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			item, err = nil, fail(StageParse, fmt.Errorf("parser panic: %v", r))
		}
	}()
	item = Parse(raw, d, qt)
	if item == nil || item.Question == "" {
		return nil, fail(StageParse, ErrNoQuestion)
	}
	return item, nil
}
