// Package word serializes the aggregated document into its output
// artifacts: a Word document and an optional JSON sidecar with the
// per-page results.
package word

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fumiama/go-docx"

	"pdf2word/internal/aggregate"
	"pdf2word/internal/ocr"
)

// headingSize is the run size for title lines, in half-points.
const headingSize = "32"

// WriteFile renders doc into a Word document at path. Each line of page
// text becomes one paragraph; angle-bracket title lines become bold
// headings with the brackets stripped; failed and cancelled placeholders
// are set in italics so they stand out when proofreading. The file lands
// atomically via a temp file in the target directory.
func WriteFile(path string, doc *aggregate.Document) error {
	w := docx.New().WithDefaultTheme()

	for i, page := range doc.Pages {
		if i > 0 {
			// Blank paragraph between pages.
			w.AddParagraph()
		}
		appendPage(w, page)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".pdf2word-*.docx")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := w.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write docx: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write docx: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func appendPage(w *docx.Docx, page aggregate.PageText) {
	if page.Status != ocr.StatusSuccess {
		w.AddParagraph().AddText(page.Text).Italic()
		return
	}

	for _, line := range strings.Split(page.Text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			w.AddParagraph()
			continue
		}
		if title, ok := headingLine(line); ok {
			w.AddParagraph().AddText(title).Bold().Size(headingSize)
			continue
		}
		w.AddParagraph().AddText(line)
	}
}

// headingLine reports whether line is a bare angle-bracket title, as the
// recognition prompt requests for chapter and section headings, returning
// the title without the brackets.
func headingLine(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 3 || !strings.HasPrefix(trimmed, "<") || !strings.HasSuffix(trimmed, ">") {
		return "", false
	}
	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" || strings.ContainsAny(inner, "<>") {
		return "", false
	}
	return inner, true
}
