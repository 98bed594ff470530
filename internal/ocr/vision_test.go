package ocr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestVisionBackend_ClassifiesStatusCodes(t *testing.T) {
	b := &VisionBackend{log: zerolog.Nop()}

	cases := []struct {
		code  codes.Code
		check func(error) bool
		want  string
	}{
		{codes.ResourceExhausted, IsTransient, "transient"},
		{codes.Unavailable, IsTransient, "transient"},
		{codes.DeadlineExceeded, IsTransient, "transient"},
		{codes.Internal, IsTransient, "transient"},
		{codes.InvalidArgument, IsPermanent, "permanent"},
		{codes.Unauthenticated, IsPermanent, "permanent"},
		{codes.PermissionDenied, IsPermanent, "permanent"},
		{codes.Unknown, IsTransient, "transient"},
	}

	for _, tc := range cases {
		t.Run(tc.code.String(), func(t *testing.T) {
			err := b.classify(status.Error(tc.code, "scripted failure"))
			if !tc.check(err) {
				t.Errorf("expected code %s to classify as %s, got %v", tc.code, tc.want, err)
			}
		})
	}
}

func TestVisionBackend_CancellationPassesThrough(t *testing.T) {
	b := &VisionBackend{log: zerolog.Nop()}

	for _, err := range []error{
		status.Error(codes.Canceled, "call canceled"),
		fmt.Errorf("annotate: %w", context.Canceled),
	} {
		got := b.classify(err)
		if !errors.Is(got, context.Canceled) {
			t.Errorf("expected %v to pass through as cancellation, got %v", err, got)
		}
	}
}
