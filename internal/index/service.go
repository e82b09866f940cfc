package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/chitchi46/lectureqa/internal/llm"
	"github.com/chitchi46/lectureqa/internal/logger"
	"github.com/chitchi46/lectureqa/internal/segment"
)

// DefaultK is the number of chunks a query returns when k <= 0.
const DefaultK = 3

// Status is the processing state of a lecture as seen by the index.
type Status string

const (
	StatusReady        Status = "ready"
	StatusNotProcessed Status = "not_processed"
)

// Service builds and serves lecture indexes. There is at most one index
// per lecture ID; building again replaces it.
type Service struct {
	embedder  llm.Embedder
	backend   Backend
	batchSize int
	defaultK  int
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithBatchSize caps the number of texts per Embed call.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithDefaultK sets the k used when Query is called with k <= 0.
func WithDefaultK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.defaultK = k
		}
	}
}

// NewService creates an index service.
func NewService(embedder llm.Embedder, backend Backend, opts ...Option) *Service {
	s := &Service{
		embedder:  embedder,
		backend:   backend,
		batchSize: 64,
		defaultK:  DefaultK,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the backend key of a lecture's index.
func Key(lectureID string) string {
	return fmt.Sprintf("lecture_%s/index.json", lectureID)
}

// Build embeds every chunk and returns the in-memory index. Embedding
// failures come back as *EmbeddingServiceError.
func (s *Service) Build(ctx context.Context, lectureID, source string, chunks []segment.Chunk) (*Index, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeEmbed)
	model := s.embedder.ModelID()
	fail := func(err error) error {
		return &EmbeddingServiceError{LectureID: lectureID, Model: model, Err: err}
	}

	entries := make([]Entry, 0, len(chunks))
	dim := 0
	for start := 0; start < len(chunks); start += s.batchSize {
		batch := chunks[start:min(start+s.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fail(err)
		}
		if len(vectors) != len(batch) {
			return nil, fail(fmt.Errorf("expected %d vectors, got %d", len(batch), len(vectors)))
		}

		for i, c := range batch {
			v := vectors[i]
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim || dim == 0 {
				return nil, fail(fmt.Errorf("chunk %d: vector dimension %d, want %d", c.Position, len(v), dim))
			}
			entries = append(entries, Entry{
				ChunkID:    c.ID,
				Position:   c.Position,
				SourcePath: c.Metadata.SourcePath,
				Text:       c.Text,
				Vector:     normalize(v),
			})
		}
		logger.Debug("index: lecture %s embedded %d/%d chunks", lectureID, len(entries), len(chunks))
	}

	return &Index{
		Manifest: Manifest{
			FormatVersion: FormatVersion,
			LectureID:     lectureID,
			Source:        source,
			EmbedModel:    model,
			Dimension:     dim,
			ChunkCount:    len(entries),
			CreatedAt:     s.now().UTC(),
		},
		Entries: entries,
	}, nil
}

// Save persists idx under its lecture's key, replacing any earlier index.
func (s *Service) Save(ctx context.Context, idx *Index) error {
	data, err := encode(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := s.backend.Put(ctx, Key(idx.Manifest.LectureID), data); err != nil {
		return fmt.Errorf("save index for lecture %s: %w", idx.Manifest.LectureID, err)
	}
	return nil
}

// Load restores a lecture's index. ok is false, with a nil error, when no
// index was ever saved for the lecture.
func (s *Service) Load(ctx context.Context, lectureID string) (idx *Index, ok bool, err error) {
	data, err := s.backend.Get(ctx, Key(lectureID))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load index for lecture %s: %w", lectureID, err)
	}

	idx, err = decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("load index for lecture %s: %w", lectureID, err)
	}
	return idx, true, nil
}

// Rebuild builds and saves a lecture's index. Only one Rebuild per
// lecture runs at a time.
func (s *Service) Rebuild(ctx context.Context, lectureID, source string, chunks []segment.Chunk) (*Index, error) {
	unlock := s.lock(lectureID)
	defer unlock()

	idx, err := s.Build(ctx, lectureID, source, chunks)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, idx); err != nil {
		return nil, err
	}
	logger.Info("index: lecture %s ready (%d chunks, %s)", lectureID, idx.Manifest.ChunkCount, idx.Manifest.EmbedModel)
	return idx, nil
}

// Status reports whether a lecture has a usable index. The manifest is
// returned for ready lectures.
func (s *Service) Status(ctx context.Context, lectureID string) (Status, *Manifest, error) {
	idx, ok, err := s.Load(ctx, lectureID)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return StatusNotProcessed, nil, nil
	}
	return StatusReady, &idx.Manifest, nil
}

// Delete removes a lecture's index. Deleting a missing index is not an
// error.
func (s *Service) Delete(ctx context.Context, lectureID string) error {
	unlock := s.lock(lectureID)
	defer unlock()

	err := s.backend.Delete(ctx, Key(lectureID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete index for lecture %s: %w", lectureID, err)
	}
	return nil
}

// Query returns the k chunks most similar to text, best first. Equal
// scores keep chunk order. Fewer than k chunks yield all of them.
func (s *Service) Query(ctx context.Context, idx *Index, text string, k int) ([]Result, error) {
	if k <= 0 {
		k = s.defaultK
	}
	if len(idx.Entries) == 0 {
		return nil, nil
	}

	if model := s.embedder.ModelID(); model != idx.Manifest.EmbedModel {
		logger.Warn("index: lecture %s was built with %s, querying with %s", idx.Manifest.LectureID, idx.Manifest.EmbedModel, model)
	}

	vectors, err := s.embedder.Embed(llm.WithPurpose(ctx, llm.PurposeQuery), []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}
	q := normalize(vectors[0])
	if len(q) != idx.Manifest.Dimension {
		return nil, fmt.Errorf("%w: query %d, index %d", ErrDimensionMismatch, len(q), idx.Manifest.Dimension)
	}

	results := make([]Result, len(idx.Entries))
	for i, e := range idx.Entries {
		results[i] = Result{Entry: e, Score: dot(e.Vector, q)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	return results[:min(k, len(results))], nil
}

func (s *Service) lock(lectureID string) func() {
	s.mu.Lock()
	m, ok := s.locks[lectureID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[lectureID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
