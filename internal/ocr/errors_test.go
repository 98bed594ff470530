package ocr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBackendError_Classification(t *testing.T) {
	transient := Transient("openai", errors.New("status 429"))
	permanent := Permanent("openai", errors.New("status 400"))
	exhausted := Exhausted("local", errors.New("out of memory"))

	if !IsTransient(transient) || IsTransient(permanent) || IsTransient(exhausted) {
		t.Error("IsTransient must match exactly the transient class")
	}
	if !IsPermanent(permanent) || IsPermanent(transient) || IsPermanent(exhausted) {
		t.Error("IsPermanent must match exactly the permanent class")
	}
	if !IsExhausted(exhausted) || IsExhausted(transient) || IsExhausted(permanent) {
		t.Error("IsExhausted must match exactly the exhausted class")
	}
}

func TestBackendError_ClassSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("attempt 2: %w", Transient("vision", errors.New("unavailable")))
	if !IsTransient(err) {
		t.Errorf("expected a wrapped transient error to stay transient: %v", err)
	}
}

func TestBackendError_UnwrapsToCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient("local", cause)
	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to reach the cause through %v", err)
	}

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected a *BackendError, got %T", err)
	}
	if be.Backend != "local" {
		t.Errorf("expected backend %q, got %q", "local", be.Backend)
	}
}

func TestBackendError_MessageNamesBackendAndClass(t *testing.T) {
	err := Permanent("openai", errors.New("bad request"))
	msg := err.Error()
	for _, want := range []string{"openai", "permanent", "bad request"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error message %q", want, msg)
		}
	}
}

func TestIsFatal_MatchesUnusableBackend(t *testing.T) {
	err := fmt.Errorf("%w: health probe failed", ErrBackendUnusable)
	if !IsFatal(err) {
		t.Errorf("expected a wrapped ErrBackendUnusable to be fatal: %v", err)
	}
	if IsFatal(Transient("local", errors.New("busy"))) {
		t.Error("expected a transient error not to be fatal")
	}
}

func TestClass_String(t *testing.T) {
	cases := map[Class]string{
		ClassTransient: "transient",
		ClassPermanent: "permanent",
		ClassExhausted: "resource_exhausted",
		Class(42):      "class(42)",
	}
	for class, want := range cases {
		if got := class.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
