package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for extensions the extractor does not
	// recognize.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailed means no usable text could be obtained from the
	// document. It is fatal for that document.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrToolNotFound means an external program needed for OCR is not
	// installed.
	ErrToolNotFound = errors.New("external tool not found")
)

// ExtractionError describes why a document produced no text. It matches
// ErrExtractionFailed and, when set, the underlying cause.
type ExtractionError struct {
	Path   string
	Format string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %s (%s): %s", e.Path, e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExtractionFailed}
	}
	return []error{ErrExtractionFailed, e.Err}
}

func failed(path, format, reason string, err error) error {
	return &ExtractionError{Path: path, Format: format, Reason: reason, Err: err}
}
