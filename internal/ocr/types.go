// Package ocr defines the page-recognition contract shared by every backend
// and the concrete implementations behind it: an OpenAI-compatible vision
// API, Google Cloud Vision, and a locally hosted vision-language-model
// runtime.
//
// Every backend converts exactly one page image into plain text through
// Recognize. Failures carry a classification (transient, permanent, or
// device-exhausted) that the dispatcher turns into retry decisions; the
// classification rules live with each backend because only the backend
// knows its provider's signals.
//
// Required Environment Variables (per backend):
//   - openai: OPENAI_API_KEY, optionally OPENAI_BASE_URL and OPENAI_MODEL
//   - vision: GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON
//   - local: none; LOCAL_OCR_URL and LOCAL_OCR_DEVICE carry defaults
package ocr

import (
	"context"
	"encoding/base64"
)

// Backend converts a single page image into recognized text.
//
// Recognize returns the page text on success. On failure it returns a
// *BackendError whose class tells the caller whether a retry is worth it.
// A context cancellation is passed through unwrapped so callers can tell
// an aborted run from a failed page. Backends holding connections or other
// resources additionally implement io.Closer.
type Backend interface {
	// Name identifies the backend in logs and summaries.
	Name() string

	// Recognize converts one page image into text.
	Recognize(ctx context.Context, page PageImage) (string, error)
}

// PageImage is one rasterized page handed to a backend.
type PageImage struct {
	// Index is the 0-based position of the page in its document and the
	// sole ordering key downstream.
	Index int

	// Name labels the page in logs and sheet names ("page 3", "menu.jpg").
	Name string

	// Data holds the encoded raster image.
	Data []byte

	// MIME is the image media type; empty means image/jpeg.
	MIME string
}

// Number returns the 1-based page number used on every user-facing surface.
func (p PageImage) Number() int {
	return p.Index + 1
}

// DataURL encodes the image as a base64 data URL for vision chat APIs.
func (p PageImage) DataURL() string {
	mime := p.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Status is the terminal state of one page after dispatch.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// PageResult is the terminal outcome for one page. Exactly one is produced
// per dispatched page; results arrive in completion order and carry the
// page index so the aggregator can restore document order.
type PageResult struct {
	// Index is the 0-based page index this result belongs to.
	Index int

	// Status is the terminal state of the page.
	Status Status

	// Text holds the recognized text; set only when Status is StatusSuccess.
	Text string

	// Err holds the final failure; set only when Status is StatusFailed.
	Err error

	// Attempts counts recognition attempts made for this page, so observed
	// retries across a run are the sum of Attempts-1.
	Attempts int
}
