// Package app wires the lectureqa components into one Service. Commands
// build a Service once and pass it down; nothing here is global.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/chitchi46/lectureqa/internal/config"
	"github.com/chitchi46/lectureqa/internal/extract"
	"github.com/chitchi46/lectureqa/internal/grading"
	"github.com/chitchi46/lectureqa/internal/index"
	"github.com/chitchi46/lectureqa/internal/ingest"
	"github.com/chitchi46/lectureqa/internal/llm"
	"github.com/chitchi46/lectureqa/internal/qagen"
	"github.com/chitchi46/lectureqa/internal/segment"
	"github.com/chitchi46/lectureqa/internal/store"
)

// ErrQANotFound is returned when an answer names an unknown item.
var ErrQANotFound = errors.New("question not found")

// Deps are the collaborators a Service is built from. Store and Embedder
// are required. Provider may be nil, in which case NewProvider is used the
// first time generation needs a model.
type Deps struct {
	Store     *store.Store
	Embedder  llm.Embedder
	Backend   index.Backend
	Extractor ingest.Extractor
	Provider  llm.Provider

	NewProvider func(ctx context.Context) (llm.Provider, error)

	// Clock overrides time.Now for generation budgets.
	Clock func() time.Time
}

// Service is the application facade used by the CLI and the practice UI.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	index    *index.Service
	pipeline *ingest.Pipeline
	grader   *grading.Grader
	clock    func() time.Time

	providerOnce sync.Once
	provider     llm.Provider
	providerErr  error
	newProvider  func(ctx context.Context) (llm.Provider, error)
}

// New builds a Service from cfg and deps.
func New(cfg *config.Config, deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("app: store is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("app: embedder is required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("app: index backend is required")
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(extract.WithOCR(ocrOptions(cfg)))
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	idx := index.NewService(deps.Embedder, deps.Backend,
		index.WithBatchSize(cfg.Embedding.BatchSize),
		index.WithDefaultK(cfg.RetrievalK),
	)
	splitter := segment.New(
		segment.WithChunkSize(cfg.ChunkSize),
		segment.WithOverlap(cfg.ChunkOverlap),
	)

	s := &Service{
		cfg:         cfg,
		store:       deps.Store,
		index:       idx,
		pipeline:    ingest.NewPipeline(deps.Extractor, splitter, idx, deps.Store.LectureRepo()),
		grader:      grading.New(cfg.GradingKeywordThreshold),
		clock:       deps.Clock,
		provider:    deps.Provider,
		newProvider: deps.NewProvider,
	}
	return s, nil
}

// Open builds a Service with the real collaborators: the SQLite store at
// dbPath, the configured embedder and index backend, and a lazily created
// completion provider.
func Open(ctx context.Context, cfg *config.Config, dbPath string) (*Service, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	llmCfg := cfg.LLMSettings()
	events := st.EventRepo()

	embedder, err := llm.NewEmbedder(ctx, cfg.EmbeddingSettings(), llmCfg, events)
	if err != nil {
		st.Close()
		return nil, err
	}

	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	return New(cfg, Deps{
		Store:    st,
		Embedder: embedder,
		Backend:  backend,
		NewProvider: func(ctx context.Context) (llm.Provider, error) {
			if err := llmCfg.Validate(); err != nil {
				return nil, err
			}
			return llm.NewProvider(ctx, llmCfg, events)
		},
	})
}

// NewBackend returns the index backend selected by cfg.Index.
func NewBackend(ctx context.Context, cfg *config.Config) (index.Backend, error) {
	switch cfg.Index.Backend {
	case "s3":
		s3 := cfg.Index.S3
		return index.NewS3Backend(ctx, index.S3Options{
			Bucket:       s3.Bucket,
			Prefix:       s3.Prefix,
			Region:       s3.Region,
			Endpoint:     s3.Endpoint,
			UsePathStyle: s3.UsePathStyle,
			AccessKey:    s3.AccessKey,
			SecretKey:    s3.SecretKey,
		})
	case "fs", "":
		dir := cfg.Index.Dir
		if dir == "" {
			home, err := store.DataHome()
			if err != nil {
				return nil, err
			}
			dir = filepath.Join(home, "indexes")
		}
		return index.NewFSBackend(dir), nil
	}
	return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
}

func ocrOptions(cfg *config.Config) extract.OCROptions {
	return extract.OCROptions{
		Enabled:       cfg.OCR.Enabled,
		TextThreshold: cfg.OCR.TextThreshold,
		OCRThreshold:  cfg.OCR.OCRThreshold,
		DPI:           cfg.OCR.DPI,
		Languages:     cfg.OCR.Languages,
	}
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config { return s.cfg }

// Events exposes the LLM event log.
func (s *Service) Events() store.EventRepo { return s.store.EventRepo() }

// Lectures exposes the lecture rows.
func (s *Service) Lectures() store.LectureRepo { return s.store.LectureRepo() }

// Pipeline returns the ingestion pipeline.
func (s *Service) Pipeline() *ingest.Pipeline { return s.pipeline }

// Ingest runs the ingestion pipeline for one file.
func (s *Service) Ingest(ctx context.Context, lectureID, path, declaredType string) (*ingest.Result, error) {
	job := ingest.NewJob(lectureID, path)
	job.DeclaredType = declaredType
	return s.pipeline.Ingest(ctx, job)
}

// IngestAll ingests jobs with the configured worker count.
func (s *Service) IngestAll(ctx context.Context, jobs []ingest.Job) []ingest.Result {
	return s.pipeline.IngestAll(ctx, jobs, s.cfg.Ingest.Workers)
}

// NewQueue returns a background ingestion queue sized by the config. The
// caller starts and closes it.
func (s *Service) NewQueue(opts ...ingest.QueueOption) *ingest.Queue {
	return ingest.NewQueue(s.pipeline, s.cfg.Ingest.Workers, s.cfg.Ingest.QueueSize, opts...)
}

// StatusReport describes one lecture.
type StatusReport struct {
	LectureID string
	Status    index.Status
	Manifest  *index.Manifest
	// Lecture is the stored row, or nil when the lecture was never
	// ingested through this database.
	Lecture *store.Lecture
}

// Status reports whether the lecture has an index.
func (s *Service) Status(ctx context.Context, lectureID string) (*StatusReport, error) {
	status, manifest, err := s.index.Status(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	lecture, err := s.store.LectureRepo().Get(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	return &StatusReport{LectureID: lectureID, Status: status, Manifest: manifest, Lecture: lecture}, nil
}

// Engine returns a generation engine bound to the configured provider.
func (s *Service) Engine(ctx context.Context) (*qagen.Engine, error) {
	provider, err := s.Provider(ctx)
	if err != nil {
		return nil, err
	}
	return qagen.New(provider, s.index, s.generationConfig(), qagen.WithClock(s.clock)), nil
}

// Provider returns the completion provider, creating it on first use.
func (s *Service) Provider(ctx context.Context) (llm.Provider, error) {
	s.providerOnce.Do(func() {
		if s.provider != nil {
			return
		}
		if s.newProvider == nil {
			s.providerErr = fmt.Errorf("no LLM provider configured")
			return
		}
		s.provider, s.providerErr = s.newProvider(ctx)
	})
	return s.provider, s.providerErr
}

func (s *Service) generationConfig() qagen.Config {
	gc := qagen.DefaultConfig()
	gc.RetrievalK = s.cfg.RetrievalK
	gc.Timeout = s.cfg.GenerationTimeout()
	gc.MaxAttemptsMultiplier = s.cfg.MaxAttemptsMultiplier
	gc.MaxAttemptsCap = s.cfg.MaxAttemptsCap
	gc.DedupKeyLength = s.cfg.DedupKeyLength
	gc.DedupMinLength = s.cfg.DedupMinLength
	gc.MaxTokens = s.cfg.LLM.MaxTokens
	gc.Temperature = s.cfg.LLM.Temperature
	gc.Language = qagen.Language(s.cfg.Language)
	gc.StructuredOutput = s.cfg.LLM.StructuredOutput
	gc.DiscardFallback = s.cfg.DiscardFallback
	return gc
}

// Generate runs the generation loop. When save is set the accepted items
// are stored and returned with their IDs.
func (s *Service) Generate(ctx context.Context, req qagen.Request, save bool) (*qagen.State, []store.QA, error) {
	engine, err := s.Engine(ctx)
	if err != nil {
		return nil, nil, err
	}
	st := engine.Run(ctx, req)
	if !save || len(st.Accepted) == 0 {
		return st, nil, nil
	}
	saved, err := s.SaveItems(ctx, req.LectureID, st.Accepted)
	if err != nil {
		return st, nil, err
	}
	return st, saved, nil
}

// SaveItems stores generated items for a lecture.
// A lecture indexed elsewhere (a shared S3 bucket) gets a row first.
func (s *Service) SaveItems(ctx context.Context, lectureID string, items []qagen.Item) ([]store.QA, error) {
	lectures := s.store.LectureRepo()
	l, err := lectures.Get(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		if err := lectures.Upsert(ctx, &store.Lecture{ID: lectureID, Status: store.StatusReady}); err != nil {
			return nil, err
		}
	}

	rows := make([]store.QA, len(items))
	for i, it := range items {
		rows[i] = store.QA{
			LectureID:    lectureID,
			Question:     it.Question,
			Answer:       it.Answer,
			QuestionType: string(it.QuestionType),
			Difficulty:   string(it.Difficulty),
			Fallback:     it.Fallback,
		}
	}
	return s.store.QARepo().SaveItems(ctx, lectureID, rows)
}

// Items returns the stored items of a lecture.
func (s *Service) Items(ctx context.Context, lectureID string) ([]store.QA, error) {
	return s.store.QARepo().ListByLecture(ctx, lectureID)
}

// Grade grades a submission against a stored item without recording it.
func (s *Service) Grade(qa *store.QA, submitted string) grading.Verdict {
	return s.grader.Grade(qagen.QuestionType(qa.QuestionType), qa.Answer, submitted)
}

// AnswerResult is a graded and recorded submission.
type AnswerResult struct {
	QA      *store.QA
	Verdict grading.Verdict
	Record  *store.StudentAnswer
}

// Answer grades submitted for item qaID and records it for userID.
func (s *Service) Answer(ctx context.Context, qaID int, userID, submitted string) (*AnswerResult, error) {
	qa, err := s.store.QARepo().Get(ctx, qaID)
	if err != nil {
		return nil, err
	}
	if qa == nil {
		return nil, fmt.Errorf("%w: %d", ErrQANotFound, qaID)
	}
	return s.Record(ctx, qa, userID, submitted)
}

// Record grades submitted against qa and stores the result.
func (s *Service) Record(ctx context.Context, qa *store.QA, userID, submitted string) (*AnswerResult, error) {
	verdict := s.Grade(qa, submitted)
	rec := &store.StudentAnswer{
		QAID:       qa.ID,
		UserID:     userID,
		AnswerText: submitted,
		IsCorrect:  verdict.IsCorrect,
	}
	if err := s.store.AnswerRepo().Record(ctx, rec); err != nil {
		return nil, err
	}
	return &AnswerResult{QA: qa, Verdict: verdict, Record: rec}, nil
}

// LectureStats aggregates answers to a lecture's items.
func (s *Service) LectureStats(ctx context.Context, lectureID string) (*store.LectureStats, error) {
	return s.store.AnswerRepo().LectureStats(ctx, lectureID)
}

// StudentProgress aggregates a user's answers.
func (s *Service) StudentProgress(ctx context.Context, userID string) (*store.StudentProgress, error) {
	return s.store.AnswerRepo().StudentProgress(ctx, userID)
}
