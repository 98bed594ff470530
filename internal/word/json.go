package word

import (
	"encoding/json"
	"fmt"
	"os"

	"pdf2word/internal/aggregate"
)

// pageRecord is one entry of the JSON sidecar: 1-based page number and
// the page's text or placeholder.
type pageRecord struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// WriteJSON writes the ordered per-page results as a JSON array next to
// the Word artifact, for callers that post-process text instead of
// opening the document.
func WriteJSON(path string, doc *aggregate.Document) error {
	records := make([]pageRecord, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		records = append(records, pageRecord{Page: page.Index + 1, Content: page.Text})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode page JSON: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write page JSON: %w", err)
	}
	return nil
}
