// Package index builds, persists and queries per-lecture semantic indexes
// over chunk embeddings.
package index

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/mod/semver"

	"github.com/chitchi46/lectureqa/internal/llm"
)

// FormatVersion is the on-disk format written by this package. Indexes
// with a different major version are rejected.
const FormatVersion = "v1.0.0"

// Manifest describes a stored index.
type Manifest struct {
	FormatVersion string    `json:"format_version"`
	LectureID     string    `json:"lecture_id"`
	Source        string    `json:"source"`
	EmbedModel    string    `json:"embed_model"`
	Dimension     int       `json:"dimension"`
	ChunkCount    int       `json:"chunk_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Entry is one indexed chunk.
type Entry struct {
	ChunkID    string    `json:"chunk_id"`
	Position   int       `json:"position"`
	SourcePath string    `json:"source_path"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
}

// Index is the in-memory form of a lecture's semantic index. It is
// read-only once built or loaded and safe for concurrent queries.
type Index struct {
	Manifest Manifest `json:"manifest"`
	Entries  []Entry  `json:"entries"`
}

// Result is one query hit.
type Result struct {
	Entry
	Score float64
}

var manifestSchema = &llm.Schema{
	Name:        "index-manifest",
	Description: "Manifest of a stored lecture index",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"format_version": map[string]any{"type": "string", "pattern": `^v[0-9]+\.[0-9]+\.[0-9]+$`},
			"lecture_id":     map[string]any{"type": "string", "minLength": 1},
			"source":         map[string]any{"type": "string"},
			"embed_model":    map[string]any{"type": "string", "minLength": 1},
			"dimension":      map[string]any{"type": "integer", "minimum": 0},
			"chunk_count":    map[string]any{"type": "integer", "minimum": 0},
			"created_at":     map[string]any{"type": "string"},
		},
		"required": []any{"format_version", "lecture_id", "embed_model", "dimension", "chunk_count"},
	},
}

func encode(idx *Index) ([]byte, error) {
	return json.Marshal(idx)
}

// decode parses a stored index and checks its manifest against the
// schema, the format version and the entry table.
func decode(data []byte) (*Index, error) {
	var raw struct {
		Manifest json.RawMessage `json:"manifest"`
		Entries  []Entry         `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if len(raw.Manifest) == 0 {
		return nil, fmt.Errorf("decode index: missing manifest")
	}

	var generic any
	if err := json.Unmarshal(raw.Manifest, &generic); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := llm.ValidateValue(manifestSchema, generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}

	var m Manifest
	if err := json.Unmarshal(raw.Manifest, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if semver.Major(m.FormatVersion) != semver.Major(FormatVersion) {
		return nil, fmt.Errorf("%w: format %s, want %s.x", ErrIncompatible, m.FormatVersion, semver.Major(FormatVersion))
	}

	if len(raw.Entries) != m.ChunkCount {
		return nil, fmt.Errorf("corrupt index: manifest lists %d chunks, found %d", m.ChunkCount, len(raw.Entries))
	}
	for i, e := range raw.Entries {
		if len(e.Vector) != m.Dimension {
			return nil, fmt.Errorf("corrupt index: entry %d has dimension %d, want %d", i, len(e.Vector), m.Dimension)
		}
	}
	return &Index{Manifest: m, Entries: raw.Entries}, nil
}
