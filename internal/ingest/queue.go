package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/chitchi46/lectureqa/internal/logger"
)

// DefaultQueueSize is the capacity of the job channel.
const DefaultQueueSize = 64

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("ingest queue closed")

// Queue runs jobs in the background on a fixed set of workers.
type Queue struct {
	pipeline *Pipeline
	jobs     chan Job
	workers  int
	onDone   func(Result)

	// stopped is closed once Close is called or the workers' context ends,
	// and releases Enqueue calls blocked on a full channel.
	stopped  chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithOnDone registers a callback run by the worker after every job.
func WithOnDone(fn func(Result)) QueueOption {
	return func(q *Queue) { q.onDone = fn }
}

// NewQueue creates a queue of the given size drained by workers
// goroutines once Start is called.
func NewQueue(p *Pipeline, workers, size int, opts ...QueueOption) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		pipeline: p,
		jobs:     make(chan Job, size),
		workers:  workers,
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the workers. They stop when ctx is done or the queue is
// closed and drained.
func (q *Queue) Start(ctx context.Context) {
	context.AfterFunc(ctx, q.stop)
	for range q.workers {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.work(ctx)
		}()
	}
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			res, err := q.pipeline.Ingest(ctx, job)
			if err != nil {
				logger.Error("ingest: lecture %s (%s): %v", job.LectureID, job.Path, err)
			}
			if q.onDone != nil {
				if res == nil {
					res = &Result{Job: job, Err: err}
				}
				q.onDone(*res)
			}
		}
	}
}

// Enqueue marks the lecture pending and schedules the job. It blocks while
// the queue is full, until ctx is done or the queue stops.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed || q.isStopped() {
		return ErrQueueClosed
	}

	if err := q.pipeline.MarkPending(ctx, job); err != nil {
		return err
	}
	select {
	case q.jobs <- job:
		logger.Debug("ingest: queued job %s for lecture %s", job.ID, job.LectureID)
		return nil
	case <-q.stopped:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (q *Queue) Close() {
	// Release blocked senders first so the write lock can be taken.
	q.stop()

	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) stop() {
	q.stopOnce.Do(func() { close(q.stopped) })
}

func (q *Queue) isStopped() bool {
	select {
	case <-q.stopped:
		return true
	default:
		return false
	}
}
