package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// extractDOCX reads word/document.xml. Body paragraphs come first, then
// every top-level table with cells joined by " | " and one line per row.
func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", failed(path, FormatDOCX, "not a valid .docx archive", err)
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", failed(path, FormatDOCX, "archive has no word/document.xml", nil)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", failed(path, FormatDOCX, "open word/document.xml", err)
	}
	defer rc.Close()

	text, err := parseDocumentXML(rc)
	if err != nil {
		return "", failed(path, FormatDOCX, "parse word/document.xml", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", failed(path, FormatDOCX, "document has no text", nil)
	}
	return strings.TrimSpace(text), nil
}

func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		tables     strings.Builder
		para       strings.Builder
		cell       strings.Builder
		row        []string
		depth      int // table nesting
		runs       int // open w:r elements
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
			case "tr":
				if depth == 1 {
					row = row[:0]
				}
			case "tc":
				if depth == 1 {
					cell.Reset()
				}
			case "p":
				para.Reset()
			case "r":
				runs++
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return "", err
				}
				para.WriteString(s)
			case "tab":
				// w:tab under w:pPr/w:tabs defines a tab stop, not a character.
				if runs > 0 {
					para.WriteByte('\t')
				}
			case "br", "cr":
				para.WriteByte('\n')
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				runs--
			case "p":
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				if depth == 0 {
					paragraphs = append(paragraphs, text)
				} else {
					if cell.Len() > 0 {
						cell.WriteByte(' ')
					}
					cell.WriteString(text)
				}
			case "tc":
				if depth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if depth == 1 {
					tables.WriteString(strings.Join(row, " | "))
					tables.WriteByte('\n')
				}
			case "tbl":
				depth--
				if depth == 0 {
					tables.WriteByte('\n')
				}
			}
		}
	}

	var b strings.Builder
	for _, p := range paragraphs {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if tables.Len() > 0 {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(tables.String())
	}
	return b.String(), nil
}
