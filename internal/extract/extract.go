// Package extract converts lecture documents into plain text.
//
// Supported formats are plain text, PDF and DOCX. PDFs whose text layer
// is too short are treated as scanned and sent through OCR. Legacy .doc
// files are rejected with a conversion hint.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
)

// Format identifiers, as file extensions without the dot.
const (
	FormatText = "txt"
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatDOC  = "doc"
)

// OCROptions controls the scanned-PDF fallback.
type OCROptions struct {
	Enabled bool
	// TextThreshold is the text-layer length (in runes) at or below which
	// a PDF is treated as scanned.
	TextThreshold int
	// OCRThreshold is the OCR output length at or below which extraction
	// fails.
	OCRThreshold int
	DPI          int
	// Languages is passed to tesseract -l, e.g. "jpn+eng".
	Languages string
}

// DefaultOCROptions returns the standard OCR settings.
func DefaultOCROptions() OCROptions {
	return OCROptions{
		Enabled:       true,
		TextThreshold: 100,
		OCRThreshold:  50,
		DPI:           200,
		Languages:     "jpn+eng",
	}
}

// Extractor turns files into text. It is safe for concurrent use.
type Extractor struct {
	ocr     OCROptions
	runner  CommandRunner
	pdfText func(io.Reader) (string, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOCR overrides the OCR settings.
func WithOCR(o OCROptions) Option {
	return func(e *Extractor) { e.ocr = o }
}

// WithRunner sets the runner used for pdftoppm and tesseract.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithPDFText replaces the PDF text-layer reader.
func WithPDFText(fn func(io.Reader) (string, error)) Option {
	return func(e *Extractor) { e.pdfText = fn }
}

// New creates an Extractor. By default the PDF text layer is read with
// docconv (pdftotext) and OCR runs the real binaries.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		ocr:     DefaultOCROptions(),
		runner:  ExecRunner{},
		pdfText: docconvPDFText,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text content of path. declaredType is the file
// extension with or without the dot; empty means the path's own
// extension.
func (e *Extractor) Extract(ctx context.Context, path, declaredType string) (string, error) {
	format, err := Format(path, declaredType)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch format {
	case FormatText:
		return extractText(path)
	case FormatPDF:
		return e.extractPDF(ctx, path)
	case FormatDOCX:
		return extractDOCX(path)
	default:
		return "", failed(path, format,
			"legacy .doc is not supported; convert to .docx (e.g. `soffice --headless --convert-to docx`)", nil)
	}
}

// Format normalizes the declared type (or the path's extension) into one
// of the Format constants.
func Format(path, declaredType string) (string, error) {
	ext := declaredType
	if ext == "" {
		ext = filepath.Ext(path)
	}
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))

	switch ext {
	case FormatText, FormatPDF, FormatDOCX, FormatDOC:
		return ext, nil
	case "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Supported reports whether path has an extension Extract accepts.
func Supported(path string) bool {
	_, err := Format(path, "")
	return err == nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", failed(path, FormatText, "read file", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", failed(path, FormatText, "file is not valid UTF-8", nil)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", failed(path, FormatText, "file is empty", nil)
	}
	return text, nil
}

func docconvPDFText(r io.Reader) (string, error) {
	text, _, err := docconv.ConvertPDF(r)
	return text, err
}
