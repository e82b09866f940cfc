package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/chitchi46/lectureqa/internal/logger"
)

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs from PATH.
type ExecRunner struct{}

var installHints = map[string]string{
	"pdftoppm":  "install poppler-utils (apt install poppler-utils / brew install poppler)",
	"tesseract": "install tesseract with Japanese data (apt install tesseract-ocr tesseract-ocr-jpn / brew install tesseract tesseract-lang)",
}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		if hint, ok := installHints[name]; ok {
			return nil, fmt.Errorf("%s: %w; %s", name, ErrToolNotFound, hint)
		}
		return nil, fmt.Errorf("%s: %w", name, ErrToolNotFound)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", failed(path, FormatPDF, "open file", err)
	}
	text, err := e.pdfText(f)
	f.Close()
	if err != nil {
		// A broken text layer is not fatal; OCR may still recover the page images.
		logger.Warn("extract: reading text layer of %s: %v", path, err)
		text = ""
	}

	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n > e.ocr.TextThreshold {
		return text, nil
	}

	if !e.ocr.Enabled {
		return "", failed(path, FormatPDF,
			fmt.Sprintf("text layer has %d characters and OCR is disabled", n), nil)
	}

	logger.Info("extract: text layer below threshold, running OCR (%s, %d chars)", path, n)
	ocrText, err := e.ocrPDF(ctx, path)
	if err != nil {
		return "", failed(path, FormatPDF, "ocr", err)
	}

	ocrText = strings.TrimSpace(ocrText)
	if m := utf8.RuneCountInString(ocrText); m <= e.ocr.OCRThreshold {
		return "", failed(path, FormatPDF,
			fmt.Sprintf("no text found (text layer %d, OCR %d characters)", n, m), nil)
	}
	return ocrText, nil
}

// ocrPDF rasterizes every page with pdftoppm and runs tesseract on each
// image in page order.
func (e *Extractor) ocrPDF(ctx context.Context, path string) (string, error) {
	dir, err := os.MkdirTemp("", "lectureqa-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	if _, err := e.runner.Run(ctx, "pdftoppm", "-r", strconv.Itoa(e.ocr.DPI), "-png", path, prefix); err != nil {
		return "", err
	}

	pages, err := pageImages(dir)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", errors.New("pdftoppm produced no page images")
	}

	var b strings.Builder
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := e.runner.Run(ctx, "tesseract", page, "stdout", "-l", e.ocr.Languages)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.Write(bytes.TrimSpace(out))
	}
	logger.Debug("extract: OCR processed %d pages of %s", len(pages), path)
	return b.String(), nil
}

// pageImages lists page-N.png files sorted by page number. pdftoppm pads
// N to a width that depends on the page count.
func pageImages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		n, _ := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
		return n
	}
	sort.Slice(matches, func(i, j int) bool { return num(matches[i]) < num(matches[j]) })
	return matches, nil
}
