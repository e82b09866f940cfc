package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitchi46/lectureqa/internal/logger"
)

// fakeRunner simulates pdftoppm and tesseract. pdftoppm writes the given
// number of page images; tesseract returns the per-page text.
type fakeRunner struct {
	mu    sync.Mutex
	pages []string
	err   error
	calls []string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if r.err != nil {
		return nil, r.err
	}

	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := range r.pages {
			path := fmt.Sprintf("%s-%d.png", prefix, i+1)
			if err := os.WriteFile(path, []byte(fmt.Sprint(i)), 0o644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case "tesseract":
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		var i int
		fmt.Sscan(string(data), &i)
		return []byte(r.pages[i] + "\n"), nil
	}
	return nil, fmt.Errorf("unexpected command %s", name)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func staticPDF(text string) Option {
	return WithPDFText(func(io.Reader) (string, error) { return text, nil })
}

func TestFormat(t *testing.T) {
	tests := []struct {
		path, declared, want string
	}{
		{"a.txt", "", FormatText},
		{"a.TXT", "", FormatText},
		{"upload.bin", ".pdf", FormatPDF},
		{"upload.bin", "PDF", FormatPDF},
		{"notes.docx", "", FormatDOCX},
		{"old.doc", "", FormatDOC},
	}
	for _, tt := range tests {
		got, err := Format(tt.path, tt.declared)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := Format("slides.pptx", "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, Supported("image.png"))
	assert.True(t, Supported("lecture_1_intro.pdf"))
}

func TestExtract_Text(t *testing.T) {
	path := writeFile(t, "a.txt", append([]byte{0xEF, 0xBB, 0xBF}, []byte("  光合成は植物の働きです。\n")...))

	got, err := New().Extract(context.Background(), path, "txt")
	require.NoError(t, err)
	assert.Equal(t, "光合成は植物の働きです。", got)
}

func TestExtract_TextFailures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"whitespace only", []byte(" \n\t ")},
		{"invalid utf8", []byte{0x66, 0x6f, 0xff, 0xfe}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "a.txt", tt.data)
			_, err := New().Extract(context.Background(), path, "")
			assert.ErrorIs(t, err, ErrExtractionFailed)

			var ee *ExtractionError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, FormatText, ee.Format)
		})
	}
}

func TestExtract_Unsupported(t *testing.T) {
	path := writeFile(t, "a.pptx", []byte("x"))
	_, err := New().Extract(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.NotErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_LegacyDoc(t *testing.T) {
	path := writeFile(t, "a.doc", []byte{0xD0, 0xCF, 0x11, 0xE0})
	_, err := New().Extract(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorContains(t, err, "convert to .docx")
}

func TestExtract_PDFTextLayer(t *testing.T) {
	runner := &fakeRunner{}
	text := strings.Repeat("Cells divide by mitosis. ", 10)
	path := writeFile(t, "a.pdf", []byte("%PDF-1.4"))

	got, err := New(WithRunner(runner), staticPDF(text)).Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(text), got)
	assert.Empty(t, runner.calls, "OCR must not run when the text layer is long enough")
}

func TestExtract_PDFFallsBackToOCR(t *testing.T) {
	var logs bytes.Buffer
	logger.SetVerbose(true)
	logger.SetOutput(&logs)
	t.Cleanup(func() {
		logger.SetVerbose(false)
		logger.SetOutput(nil)
	})

	runner := &fakeRunner{pages: []string{
		strings.Repeat("第一ページの本文です。", 5),
		strings.Repeat("Second page body. ", 3),
	}}
	path := writeFile(t, "scan.pdf", []byte("%PDF-1.4"))

	got, err := New(WithRunner(runner), staticPDF("p. 1")).Extract(context.Background(), path, "pdf")
	require.NoError(t, err)

	assert.Equal(t, []string{"pdftoppm", "tesseract", "tesseract"}, runner.calls)
	assert.True(t, strings.HasPrefix(got, "第一ページ"), "pages must be in order")
	assert.Contains(t, got, "Second page body.")
	assert.Contains(t, logs.String(), "running OCR")
}

func TestExtract_PDFOCRBelowThreshold(t *testing.T) {
	runner := &fakeRunner{pages: []string{"blurry"}}
	path := writeFile(t, "scan.pdf", []byte("%PDF-1.4"))

	_, err := New(WithRunner(runner), staticPDF("")).Extract(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorContains(t, err, "no text found")
}

func TestExtract_PDFOCRDisabled(t *testing.T) {
	runner := &fakeRunner{}
	opts := DefaultOCROptions()
	opts.Enabled = false
	path := writeFile(t, "scan.pdf", []byte("%PDF-1.4"))

	_, err := New(WithRunner(runner), WithOCR(opts), staticPDF("short")).Extract(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Empty(t, runner.calls)
}

func TestExtract_PDFToolMissing(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("pdftoppm: %w", ErrToolNotFound)}
	path := writeFile(t, "scan.pdf", []byte("%PDF-1.4"))

	_, err := New(WithRunner(runner), staticPDF("")).Extract(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestExtract_PDFTextLayerErrorStillTriesOCR(t *testing.T) {
	runner := &fakeRunner{pages: []string{strings.Repeat("recovered by ocr ", 5)}}
	path := writeFile(t, "a.pdf", []byte("%PDF-1.4"))
	broken := WithPDFText(func(io.Reader) (string, error) { return "", errors.New("pdftotext failed") })

	got, err := New(WithRunner(runner), broken).Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Contains(t, got, "recovered by ocr")
}

func TestExecRunner_ToolNotFound(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "lectureqa-no-such-tool-xyz")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Lecture 3: </w:t></w:r><w:r><w:t xml:space="preserve">Photosynthesis</w:t></w:r></w:p>
    <w:p></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Stage</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Location</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Light reactions</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Thylakoid</w:t></w:r></w:p><w:p><w:r><w:t>membrane</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
    <w:p><w:r><w:t>Summary follows the table.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeDOCX(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return writeFile(t, "a.docx", buf.Bytes())
}

func TestExtract_DOCX(t *testing.T) {
	path := writeDOCX(t, map[string]string{"word/document.xml": documentXML})

	got, err := New().Extract(context.Background(), path, "")
	require.NoError(t, err)

	want := "Lecture 3: Photosynthesis\n" +
		"Summary follows the table.\n" +
		"\n" +
		"Stage | Location\n" +
		"Light reactions | Thylakoid membrane"
	assert.Equal(t, want, got)
}

func TestParseDocumentXML_Tabs(t *testing.T) {
	const doc = `<w:document xmlns:w="x"><w:body>
  <w:p>
    <w:pPr><w:tabs><w:tab w:val="left" w:pos="2880"/></w:tabs></w:pPr>
    <w:r><w:t>Enthalpy</w:t></w:r>
    <w:r><w:tab/><w:t>H = U + pV</w:t></w:r>
  </w:p>
  <w:p>
    <w:r><w:t>Entropy</w:t></w:r>
    <w:pPr><w:tabs><w:tab w:val="center" w:pos="4320"/><w:tab w:val="right" w:pos="8640"/></w:tabs></w:pPr>
    <w:r><w:tab/><w:t>S</w:t></w:r>
  </w:p>
</w:body></w:document>`

	got, err := parseDocumentXML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "Enthalpy\tH = U + pV\nEntropy\tS", strings.TrimSpace(got))
}

func TestExtract_DOCXFailures(t *testing.T) {
	t.Run("not a zip", func(t *testing.T) {
		path := writeFile(t, "a.docx", []byte("plain text"))
		_, err := New().Extract(context.Background(), path, "")
		assert.ErrorIs(t, err, ErrExtractionFailed)
	})
	t.Run("missing document part", func(t *testing.T) {
		path := writeDOCX(t, map[string]string{"word/styles.xml": "<styles/>"})
		_, err := New().Extract(context.Background(), path, "")
		assert.ErrorContains(t, err, "no word/document.xml")
	})
	t.Run("no text", func(t *testing.T) {
		path := writeDOCX(t, map[string]string{"word/document.xml": `<w:document xmlns:w="x"><w:body><w:p/></w:body></w:document>`})
		_, err := New().Extract(context.Background(), path, "")
		assert.ErrorIs(t, err, ErrExtractionFailed)
	})
}

func TestExtract_CanceledContext(t *testing.T) {
	path := writeFile(t, "a.txt", []byte("hello"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, path, "")
	assert.ErrorIs(t, err, context.Canceled)
}
