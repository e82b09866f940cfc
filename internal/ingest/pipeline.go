// Package ingest turns lecture files into stored, searchable indexes:
// extract, segment, embed, save. It also hosts the background queue and
// the inbox watcher.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chitchi46/lectureqa/internal/index"
	"github.com/chitchi46/lectureqa/internal/logger"
	"github.com/chitchi46/lectureqa/internal/segment"
	"github.com/chitchi46/lectureqa/internal/store"
)

// Extractor reads the text of a lecture file.
type Extractor interface {
	Extract(ctx context.Context, path, declaredType string) (string, error)
}

// Indexer builds and persists the index of a lecture.
type Indexer interface {
	Rebuild(ctx context.Context, lectureID, source string, chunks []segment.Chunk) (*index.Index, error)
}

// Job is one file to ingest for a lecture.
type Job struct {
	ID        string
	LectureID string
	Path      string
	// DeclaredType overrides the format taken from the file extension.
	DeclaredType string
}

// NewJob returns a job with a fresh ID.
func NewJob(lectureID, path string) Job {
	return Job{ID: uuid.NewString(), LectureID: lectureID, Path: path}
}

// Result reports the outcome of one job.
type Result struct {
	Job      Job
	Chunks   int
	Manifest *index.Manifest
	Elapsed  time.Duration
	Err      error
}

// Pipeline runs extract, segment and rebuild for a job and records the
// lecture's status as it goes: pending, processing, then ready or failed.
type Pipeline struct {
	extractor Extractor
	splitter  *segment.Splitter
	indexer   Indexer
	lectures  store.LectureRepo
}

// NewPipeline creates a Pipeline.
func NewPipeline(extractor Extractor, splitter *segment.Splitter, indexer Indexer, lectures store.LectureRepo) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		splitter:  splitter,
		indexer:   indexer,
		lectures:  lectures,
	}
}

// MarkPending records the lecture as waiting for ingestion.
func (p *Pipeline) MarkPending(ctx context.Context, job Job) error {
	return p.lectures.Upsert(ctx, lectureRow(job, store.StatusPending))
}

// Ingest processes job synchronously. A failure at any stage marks the
// lecture failed with the error text and is returned.
func (p *Pipeline) Ingest(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	res := &Result{Job: job}

	if err := p.lectures.Upsert(ctx, lectureRow(job, store.StatusProcessing)); err != nil {
		return nil, err
	}

	fail := func(err error) (*Result, error) {
		// The status write must land even when ctx was what failed.
		if serr := p.lectures.SetStatus(context.WithoutCancel(ctx), job.LectureID, store.StatusFailed, 0, err.Error()); serr != nil {
			logger.Warn("ingest: lecture %s: recording failure: %v", job.LectureID, serr)
		}
		res.Err = err
		res.Elapsed = time.Since(start)
		return res, err
	}

	text, err := p.extractor.Extract(ctx, job.Path, job.DeclaredType)
	if err != nil {
		return fail(err)
	}

	chunks := p.splitter.SplitDocument(segment.Document{ID: job.LectureID, Path: job.Path}, text)
	logger.Debug("ingest: lecture %s: %d chars in %d chunks", job.LectureID, len([]rune(text)), len(chunks))

	idx, err := p.indexer.Rebuild(ctx, job.LectureID, filepath.Base(job.Path), chunks)
	if err != nil {
		return fail(fmt.Errorf("index lecture %s: %w", job.LectureID, err))
	}

	if err := p.lectures.SetStatus(ctx, job.LectureID, store.StatusReady, len(chunks), ""); err != nil {
		return fail(err)
	}

	res.Chunks = len(chunks)
	res.Manifest = &idx.Manifest
	res.Elapsed = time.Since(start)
	logger.Info("ingest: lecture %s ready (%d chunks, %s)", job.LectureID, res.Chunks, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// IngestAll ingests jobs with at most workers running at once. Each job is
// independent: a failure is reported in its Result and does not stop the
// others. Results are in job order.
func (p *Pipeline) IngestAll(ctx context.Context, jobs []Job, workers int) []Result {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Job: job, Err: err}
				return nil
			}
			res, err := p.Ingest(ctx, job)
			switch {
			case res != nil:
				results[i] = *res
			default:
				results[i] = Result{Job: job, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func lectureRow(job Job, status store.LectureStatus) *store.Lecture {
	path := job.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &store.Lecture{
		ID:       job.LectureID,
		Filename: filepath.Base(job.Path),
		FilePath: path,
		Status:   status,
	}
}
