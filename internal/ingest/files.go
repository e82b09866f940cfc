package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chitchi46/lectureqa/internal/extract"
	"github.com/chitchi46/lectureqa/internal/logger"
)

const filenamePrefix = "lecture_"

// LectureIDFromFilename extracts id from "lecture_<id>_<name>.<ext>". The
// file must also have a supported extension.
func LectureIDFromFilename(name string) (string, bool) {
	base := filepath.Base(name)
	rest, ok := strings.CutPrefix(base, filenamePrefix)
	if !ok {
		return "", false
	}
	id, title, ok := strings.Cut(rest, "_")
	if !ok || id == "" || title == "" {
		return "", false
	}
	if !extract.Supported(base) {
		return "", false
	}
	return id, true
}

// JobsFromDir returns a job for every lecture file directly inside dir, in
// name order. Other files are skipped.
func JobsFromDir(dir string) ([]Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read batch directory: %w", err)
	}

	var jobs []Job
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		id, ok := LectureIDFromFilename(e.Name())
		if !ok {
			logger.Debug("ingest: skipping %s: not a lecture_<id>_<name> file", e.Name())
			continue
		}
		jobs = append(jobs, NewJob(id, filepath.Join(dir, e.Name())))
	}
	return jobs, nil
}
