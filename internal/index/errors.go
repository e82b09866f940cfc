package index

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by backends for a key that was never written.
	// Service.Load turns it into ok == false.
	ErrNotFound = errors.New("index not found")

	// ErrEmbeddingService matches every *EmbeddingServiceError.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrIncompatible means a stored index was written in a format this
	// version cannot read.
	ErrIncompatible = errors.New("incompatible index format")

	// ErrDimensionMismatch means the query embedder produces vectors of a
	// different size than the index was built with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// EmbeddingServiceError reports a failed embedding call during Build. It
// is never retried by the index.
type EmbeddingServiceError struct {
	LectureID string
	Model     string
	Err       error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service error (lecture %s, model %s): %v", e.LectureID, e.Model, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

func (e *EmbeddingServiceError) Is(target error) bool { return target == ErrEmbeddingService }
