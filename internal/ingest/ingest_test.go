package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitchi46/lectureqa/internal/extract"
	"github.com/chitchi46/lectureqa/internal/index"
	"github.com/chitchi46/lectureqa/internal/llm"
	"github.com/chitchi46/lectureqa/internal/segment"
	"github.com/chitchi46/lectureqa/internal/store"
)

const lecture = `Thermodynamics studies energy, heat and work.
The first law states that energy is conserved. The second law states that entropy of an isolated system never decreases.
Heat engines convert heat into work with an efficiency bounded by the Carnot limit.`

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, &llm.ErrProviderUnavailable{Err: errors.New("connection refused")}
}

func (failingEmbedder) ModelID() string { return "broken" }

type fixture struct {
	pipeline *Pipeline
	index    *index.Service
	lectures store.LectureRepo
	dir      string
}

func newFixture(t *testing.T, embedder llm.Embedder) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := index.NewService(embedder, index.NewFSBackend(t.TempDir()))
	splitter := segment.New(segment.WithChunkSize(100), segment.WithOverlap(20))
	return &fixture{
		pipeline: NewPipeline(extract.New(), splitter, svc, st.LectureRepo()),
		index:    svc,
		lectures: st.LectureRepo(),
		dir:      t.TempDir(),
	}
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPipeline_Ingest(t *testing.T) {
	f := newFixture(t, llm.NewLocalEmbedder(64))
	ctx := context.Background()
	path := f.write(t, "lecture_7_thermo.txt", lecture)

	res, err := f.pipeline.Ingest(ctx, NewJob("7", path))
	require.NoError(t, err)
	assert.Greater(t, res.Chunks, 1)
	require.NotNil(t, res.Manifest)
	assert.Equal(t, "7", res.Manifest.LectureID)
	assert.Equal(t, "lecture_7_thermo.txt", res.Manifest.Source)

	l, err := f.lectures.Get(ctx, "7")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, store.StatusReady, l.Status)
	assert.Equal(t, res.Chunks, l.ChunkCount)
	assert.Equal(t, "lecture_7_thermo.txt", l.Filename)
	assert.True(t, filepath.IsAbs(l.FilePath))

	status, _, err := f.index.Status(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, index.StatusReady, status)
}

func TestPipeline_IngestReplacesIndex(t *testing.T) {
	f := newFixture(t, llm.NewLocalEmbedder(64))
	ctx := context.Background()

	_, err := f.pipeline.Ingest(ctx, NewJob("7", f.write(t, "a.txt", lecture)))
	require.NoError(t, err)
	res, err := f.pipeline.Ingest(ctx, NewJob("7", f.write(t, "b.txt", "A short replacement lecture.")))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)

	idx, ok, err := f.index.Load(ctx, "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, idx.Entries, 1)
}

func TestPipeline_IngestExtractionFailure(t *testing.T) {
	f := newFixture(t, llm.NewLocalEmbedder(64))
	ctx := context.Background()
	path := f.write(t, "empty.txt", "   \n")

	_, err := f.pipeline.Ingest(ctx, NewJob("8", path))
	require.Error(t, err)
	assert.ErrorIs(t, err, extract.ErrExtractionFailed)

	l, err := f.lectures.Get(ctx, "8")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, l.Status)
	assert.NotEmpty(t, l.Error)

	status, _, err := f.index.Status(ctx, "8")
	require.NoError(t, err)
	assert.Equal(t, index.StatusNotProcessed, status)
}

func TestPipeline_IngestUnsupportedFormat(t *testing.T) {
	f := newFixture(t, llm.NewLocalEmbedder(64))
	path := f.write(t, "slides.pptx", "binary")

	_, err := f.pipeline.Ingest(context.Background(), NewJob("9", path))
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)
}

func TestPipeline_IngestEmbeddingFailure(t *testing.T) {
	f := newFixture(t, failingEmbedder{})
	ctx := context.Background()

	_, err := f.pipeline.Ingest(ctx, NewJob("10", f.write(t, "l.txt", lecture)))
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrEmbeddingService)

	l, err := f.lectures.Get(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, l.Status)
}

func TestPipeline_IngestAll(t *testing.T) {
	f := newFixture(t, llm.NewLocalEmbedder(64))
	jobs := []Job{
		NewJob("1", f.write(t, "lecture_1_a.txt", lecture)),
		NewJob("2", f.write(t, "lecture_2_b.txt", "")),
		NewJob("3", f.write(t, "lecture_3_c.txt", "Entropy measures disorder.")),
	}

	results := f.pipeline.IngestAll(context.Background(), jobs, 2)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, extract.ErrExtractionFailed)
	assert.NoError(t, results[2].Err)
	for i, r := range results {
		assert.Equal(t, jobs[i].ID, r.Job.ID, "results keep job order")
	}
}

func TestPipeline_IngestAllCanceled(t *testing.T) {
	f := newFixture(t, llm.NewLocalEmbedder(64))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := f.pipeline.IngestAll(ctx, []Job{NewJob("1", f.write(t, "a.txt", lecture))}, 1)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestQueue(t *testing.T) {
	f := newFixture(t, llm.NewLocalEmbedder(64))
	ctx := context.Background()

	var mu sync.Mutex
	var done []Result
	q := NewQueue(f.pipeline, 2, 4, WithOnDone(func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		done = append(done, r)
	}))
	q.Start(ctx)

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, q.Enqueue(ctx, NewJob(id, f.write(t, "lecture_"+id+"_x.txt", lecture))))
	}
	require.NoError(t, q.Enqueue(ctx, NewJob("4", f.write(t, "lecture_4_x.txt", ""))))
	q.Close()

	assert.Len(t, done, 4)
	for _, id := range []string{"1", "2", "3"} {
		l, err := f.lectures.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, store.StatusReady, l.Status, "lecture %s", id)
	}
	l, err := f.lectures.Get(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, l.Status)

	assert.ErrorIs(t, q.Enqueue(ctx, NewJob("5", "x.txt")), ErrQueueClosed)
}

func TestQueue_EnqueueMarksPending(t *testing.T) {
	f := newFixture(t, llm.NewLocalEmbedder(64))
	ctx := context.Background()

	// Not started: the job stays queued.
	q := NewQueue(f.pipeline, 1, 1)
	require.NoError(t, q.Enqueue(ctx, NewJob("1", f.write(t, "a.txt", lecture))))

	l, err := f.lectures.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, l.Status)

	full, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(full, NewJob("2", f.write(t, "b.txt", lecture))), context.DeadlineExceeded)
}

func TestQueue_EnqueueReturnsWhenWorkersStop(t *testing.T) {
	f := newFixture(t, llm.NewLocalEmbedder(64))
	path := f.write(t, "a.txt", lecture)

	workerCtx, cancel := context.WithCancel(context.Background())
	q := NewQueue(f.pipeline, 1, 1)
	cancel()
	q.Start(workerCtx)

	errc := make(chan error, 1)
	go func() {
		var err error
		for i := 0; err == nil && i < 100; i++ {
			err = q.Enqueue(context.Background(), NewJob(strconv.Itoa(i), path))
		}
		errc <- err
	}()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue still blocked after the workers stopped")
	}

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked")
	}
}

func TestLectureIDFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{"lecture_12_intro.pdf", "12", true},
		{"/inbox/lecture_cs101_week_1.docx", "cs101", true},
		{"lecture_3_notes.txt", "3", true},
		{"lecture_3_slides.pptx", "", false},
		{"lecture__missing.txt", "", false},
		{"lecture_5.txt", "", false},
		{"notes.txt", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := LectureIDFromFilename(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestJobsFromDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"lecture_2_b.txt", "lecture_1_a.pdf", "readme.md", ".lecture_3_x.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "lecture_4_dir.txt"), 0o755))

	jobs, err := JobsFromDir(dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "1", jobs[0].LectureID)
	assert.Equal(t, "2", jobs[1].LectureID)
	assert.NotEqual(t, jobs[0].ID, jobs[1].ID)

	_, err = JobsFromDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"lecture_1_a.txt", fsnotify.Create, true},
		{"lecture_1_a.txt", fsnotify.Write, true},
		{"lecture_1_a.txt", fsnotify.Remove, false},
		{"lecture_1_a.txt", fsnotify.Rename, false},
		{"lecture_1_a.txt", fsnotify.Chmod, false},
		{".lecture_1_a.txt", fsnotify.Create, false},
	}
	for _, tt := range tests {
		ev := fsnotify.Event{Name: filepath.Join("/inbox", tt.name), Op: tt.op}
		assert.Equal(t, tt.want, relevant(ev), "%s %s", tt.op, tt.name)
	}
}

func TestJobForPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "lecture_5_a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	sub := filepath.Join(dir, "lecture_6_dir.txt")
	require.NoError(t, os.Mkdir(sub, 0o755))

	job, ok := jobForPath(file)
	assert.True(t, ok)
	assert.Equal(t, "5", job.LectureID)

	_, ok = jobForPath(sub)
	assert.False(t, ok)
	_, ok = jobForPath(filepath.Join(dir, "lecture_7_gone.txt"))
	assert.False(t, ok)
}

func TestDebouncer(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	var mu sync.Mutex
	calls := 0
	fn := func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}

	for range 5 {
		d.trigger("a", fn)
	}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, calls, "bursts collapse into one call")
	mu.Unlock()
}

func TestWatch(t *testing.T) {
	old := settleWindow
	settleWindow = 20 * time.Millisecond
	t.Cleanup(func() { settleWindow = old })

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := make(chan Job, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, dir, func(_ context.Context, j Job) error {
			jobs <- j
			return nil
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lecture_42_physics.txt"), []byte(strings.Repeat("x", 10)), 0o644))

	select {
	case j := <-jobs:
		assert.Equal(t, "42", j.LectureID)
	case <-time.After(5 * time.Second):
		t.Fatal("no job queued for the new lecture file")
	}

	cancel()
	assert.NoError(t, <-errc)
}
