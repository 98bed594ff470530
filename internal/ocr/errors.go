package ocr

import (
	"errors"
	"fmt"
)

// Common backend errors
var (
	// ErrUnknownBackend is returned when the configured backend selector is
	// not one of the recognized kinds.
	ErrUnknownBackend = errors.New("unknown OCR backend")

	// ErrMissingAPIKey is returned when the OpenAI-compatible backend is
	// selected but OPENAI_API_KEY is not configured.
	ErrMissingAPIKey = errors.New("missing API key: set the OPENAI_API_KEY environment variable")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrRuntimeUnavailable is returned when the local model runtime cannot
	// be reached or reports that no model is loaded.
	ErrRuntimeUnavailable = errors.New("local model runtime is not available")

	// ErrNoContent is returned when a backend responds without any usable
	// recognition payload.
	ErrNoContent = errors.New("backend response contained no content")

	// ErrBackendUnusable marks a backend that cannot recover to a clean
	// state. The dispatcher treats it as fatal for the whole run.
	ErrBackendUnusable = errors.New("OCR backend is unusable and cannot recover")
)

// Class tells the dispatcher how to treat a failed recognition attempt.
type Class int

const (
	// ClassTransient failures (rate limits, timeouts, flaky upstreams) may
	// be retried.
	ClassTransient Class = iota

	// ClassPermanent failures (malformed input, unsupported image, bad
	// credentials) must not be retried.
	ClassPermanent

	// ClassExhausted marks a device out-of-resource condition: permanent
	// for the page, recoverable for the backend.
	ClassExhausted
)

// String implements fmt.Stringer for log fields.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassExhausted:
		return "resource_exhausted"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// BackendError wraps a failed recognition attempt with the backend that
// produced it and the retry classification.
type BackendError struct {
	// Backend names the backend that failed.
	Backend string

	// Class is the retry classification.
	Class Class

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("ocr: %s: %s: %v", e.Backend, e.Class, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable backend failure.
func Transient(backend string, err error) error {
	return &BackendError{Backend: backend, Class: ClassTransient, Err: err}
}

// Permanent wraps err as a non-retryable backend failure.
func Permanent(backend string, err error) error {
	return &BackendError{Backend: backend, Class: ClassPermanent, Err: err}
}

// Exhausted wraps err as a device out-of-resource failure.
func Exhausted(backend string, err error) error {
	return &BackendError{Backend: backend, Class: ClassExhausted, Err: err}
}

// IsTransient reports whether err is a retryable backend failure.
func IsTransient(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Class == ClassTransient
}

// IsPermanent reports whether err is a non-retryable backend failure.
func IsPermanent(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Class == ClassPermanent
}

// IsExhausted reports whether err is a device out-of-resource failure.
func IsExhausted(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Class == ClassExhausted
}

// IsFatal reports whether err must abort the whole run rather than fail a
// single page.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBackendUnusable)
}
