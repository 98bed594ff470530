// Package aggregate restores page order over the dispatcher's
// completion-order stream and produces the final document representation
// plus the run summary.
package aggregate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pdf2word/internal/ocr"
)

// Aggregation errors. Both mean the dispatcher broke its exactly-one-
// terminal-result-per-page contract, so no artifact is produced.
var (
	// ErrIncomplete is returned when the stream ends before every page has
	// a terminal result.
	ErrIncomplete = errors.New("aggregation incomplete")

	// ErrDuplicate is returned when two results claim the same page index.
	ErrDuplicate = errors.New("duplicate result for page")
)

// PageText is one ordered output block: the recognized text of a page, or
// a placeholder marker when the page failed or was cancelled.
type PageText struct {
	// Index is the 0-based page index.
	Index int

	// Text is the recognized text, or the placeholder for non-success.
	Text string

	// Status is the page's terminal status.
	Status ocr.Status
}

// Summary describes a completed run. Page numbers are 1-based, as shown
// to the user.
type Summary struct {
	Total          int
	Succeeded      int
	Failed         int
	Cancelled      int
	FailedPages    []int
	CancelledPages []int
	Retries        int
}

// String renders the one-line summary shown after a run.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d pages: %d succeeded, %d failed", s.Total, s.Succeeded, s.Failed)
	if s.Cancelled > 0 {
		fmt.Fprintf(&b, ", %d cancelled", s.Cancelled)
	}
	if s.Retries > 0 {
		fmt.Fprintf(&b, ", %d retries", s.Retries)
	}
	if len(s.FailedPages) > 0 {
		fmt.Fprintf(&b, " (failed pages: %s)", joinPageNumbers(s.FailedPages))
	}
	return b.String()
}

// Document is the fully aggregated run output, ordered by page index.
type Document struct {
	Pages   []PageText
	Summary Summary
}

// Combine drains results until the channel closes, verifies that every
// page index in [0, expected) has exactly one terminal result, and builds
// the ordered document. Failed and cancelled pages appear as placeholder
// markers, never as silent omissions.
func Combine(results <-chan ocr.PageResult, expected int) (*Document, error) {
	byIndex := make(map[int]ocr.PageResult, expected)
	retries := 0

	for res := range results {
		if res.Index < 0 || res.Index >= expected {
			return nil, fmt.Errorf("%w: page index %d outside 0..%d", ErrIncomplete, res.Index, expected-1)
		}
		if _, seen := byIndex[res.Index]; seen {
			return nil, fmt.Errorf("%w %d", ErrDuplicate, res.Index+1)
		}
		byIndex[res.Index] = res
		if res.Attempts > 1 {
			retries += res.Attempts - 1
		}
	}

	if len(byIndex) != expected {
		var missing []int
		for i := 0; i < expected; i++ {
			if _, ok := byIndex[i]; !ok {
				missing = append(missing, i+1)
			}
		}
		return nil, fmt.Errorf("%w: no result for pages %s", ErrIncomplete, joinPageNumbers(missing))
	}

	doc := &Document{
		Pages:   make([]PageText, 0, expected),
		Summary: Summary{Total: expected, Retries: retries},
	}
	for i := 0; i < expected; i++ {
		res := byIndex[i]
		switch res.Status {
		case ocr.StatusSuccess:
			doc.Summary.Succeeded++
			doc.Pages = append(doc.Pages, PageText{Index: i, Text: res.Text, Status: ocr.StatusSuccess})
		case ocr.StatusCancelled:
			doc.Summary.Cancelled++
			doc.Summary.CancelledPages = append(doc.Summary.CancelledPages, i+1)
			doc.Pages = append(doc.Pages, PageText{Index: i, Text: CancelledMarker(i + 1), Status: ocr.StatusCancelled})
		default:
			doc.Summary.Failed++
			doc.Summary.FailedPages = append(doc.Summary.FailedPages, i+1)
			doc.Pages = append(doc.Pages, PageText{Index: i, Text: FailedMarker(i+1, res.Err), Status: ocr.StatusFailed})
		}
	}
	return doc, nil
}

// FailedMarker is the placeholder substituted for a failed page.
func FailedMarker(pageNumber int, cause error) string {
	if cause != nil {
		return fmt.Sprintf("[ERROR ON PAGE %d: %v]", pageNumber, cause)
	}
	return fmt.Sprintf("[ERROR ON PAGE %d]", pageNumber)
}

// CancelledMarker is the placeholder substituted for a page the run was
// cancelled before finishing.
func CancelledMarker(pageNumber int) string {
	return fmt.Sprintf("[PAGE %d CANCELLED]", pageNumber)
}

func joinPageNumbers(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
