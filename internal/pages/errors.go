package pages

import (
	"errors"
	"fmt"
)

// Common input-document errors
var (
	// ErrNotFound is returned when the document path does not exist or is
	// not a readable regular file.
	ErrNotFound = errors.New("document not found or not readable")

	// ErrInvalidPDF is returned when the file at the path is not a valid
	// PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrEmptyDocument is returned when the PDF contains no pages.
	ErrEmptyDocument = errors.New("document contains no pages")

	// ErrRasterizer is returned when the poppler rasterizer is missing or
	// fails to render the document's pages.
	ErrRasterizer = errors.New("page rasterization failed")
)

// SourceError wraps any input-document failure. It is always raised before
// the first backend call and always fatal for the run.
type SourceError struct {
	// Path is the offending document path.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("pages: %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SourceError) Unwrap() error {
	return e.Err
}

func sourceError(path string, err error) *SourceError {
	return &SourceError{Path: path, Err: err}
}
