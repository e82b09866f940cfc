package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chitchi46/lectureqa/internal/logger"
)

// settleWindow is how long a file must go without events before it is
// queued, so a copy in progress is not ingested half-written.
var settleWindow = 2 * time.Second

// Watch queues a job whenever a lecture file is created or written in dir
// and then left alone for the settle window. It returns when ctx is done.
func Watch(ctx context.Context, dir string, enqueue func(context.Context, Job) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info("watch: watching %s", dir)

	d := newDebouncer(settleWindow)
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			path := ev.Name
			d.trigger(path, func() {
				job, ok := jobForPath(path)
				if !ok {
					return
				}
				if err := enqueue(ctx, job); err != nil {
					logger.Error("watch: queue %s: %v", path, err)
					return
				}
				logger.Info("watch: queued %s for lecture %s", filepath.Base(path), job.LectureID)
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		}
	}
}

// relevant keeps creates and writes of visible files. Removes, renames and
// chmods are ignored.
func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	return !strings.HasPrefix(filepath.Base(ev.Name), ".")
}

// jobForPath returns a job when path is an existing lecture file.
func jobForPath(path string) (Job, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Job{}, false
	}
	id, ok := LectureIDFromFilename(path)
	if !ok {
		return Job{}, false
	}
	return NewJob(id, path), true
}

// debouncer runs a callback once per path after events stop arriving.
type debouncer struct {
	mu     sync.Mutex
	window time.Duration
	timers map[string]*time.Timer
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) trigger(path string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
		fn()
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}
