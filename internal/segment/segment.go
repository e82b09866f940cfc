// Package segment splits extracted lecture text into overlapping
// fixed-size chunks for embedding and retrieval.
package segment

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Document identifies the source a chunk was cut from.
type Document struct {
	ID   string
	Path string
}

// Metadata tags a chunk with its owning document.
type Metadata struct {
	DocumentID string `json:"document_id"`
	SourcePath string `json:"source_path"`
}

// Chunk is a contiguous span of document text.
type Chunk struct {
	ID       string
	Text     string
	Position int
	Metadata Metadata
}

// Splitter cuts text into windows of chunkSize runes, each starting
// chunkSize-overlap runes after the previous one.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a Splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// ChunkSize returns the effective chunk size.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the effective overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunks of text in order. Whitespace-only input yields
// no chunks. The last chunk keeps whatever trails the final full window.
func (s *Splitter) Split(text string) []Chunk {
	runes := []rune(normalize(text))
	if strings.TrimSpace(string(runes)) == "" {
		return nil
	}

	step := s.chunkSize - s.overlap
	chunks := make([]Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+s.chunkSize, len(runes))
		chunks = append(chunks, Chunk{
			ID:       uuid.New().String(),
			Text:     string(runes[start:end]),
			Position: len(chunks),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// SplitDocument splits text and tags every chunk with doc.
func (s *Splitter) SplitDocument(doc Document, text string) []Chunk {
	chunks := s.Split(text)
	for i := range chunks {
		chunks[i].Metadata = Metadata{DocumentID: doc.ID, SourcePath: doc.Path}
	}
	return chunks
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\x00", "")
}
