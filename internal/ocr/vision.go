package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// VisionBackend recognizes pages through Google Cloud Vision's document
// text detection, one annotate call per page image.
type VisionBackend struct {
	client *vision.ImageAnnotatorClient
	hints  []string
	log    zerolog.Logger
}

// NewVisionBackend creates the backend with credentials from the
// environment. It expects either GOOGLE_CREDENTIALS inline JSON or a
// GOOGLE_APPLICATION_CREDENTIALS path, falling back to application
// default credentials.
func NewVisionBackend(ctx context.Context, cfg BackendConfig, log zerolog.Logger) (*VisionBackend, error) {
	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, fmt.Errorf("create vision client with GOOGLE_CREDENTIALS: %w", err)
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, fmt.Errorf("create vision client with GOOGLE_APPLICATION_CREDENTIALS: %w", err)
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
		}
	}

	return &VisionBackend{
		client: client,
		hints:  cfg.LanguageHints,
		log:    log.With().Str("backend", BackendVision).Logger(),
	}, nil
}

// Name identifies the backend in logs and summaries.
func (b *VisionBackend) Name() string {
	return BackendVision
}

// Recognize annotates one page image and returns the full text detection.
// A page with no detectable text yields an empty string, not an error.
func (b *VisionBackend) Recognize(ctx context.Context, page PageImage) (string, error) {
	start := time.Now()

	annotateReq := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: page.Data},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
	}
	if len(b.hints) > 0 {
		annotateReq.ImageContext = &visionpb.ImageContext{LanguageHints: b.hints}
	}

	resp, err := b.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{annotateReq},
	})
	if err != nil {
		return "", b.classify(err)
	}
	if len(resp.Responses) == 0 {
		return "", Permanent(BackendVision, ErrNoContent)
	}

	annotation := resp.Responses[0]
	if annotation.Error != nil {
		return "", Permanent(BackendVision, fmt.Errorf("vision annotation: %s", annotation.Error.Message))
	}
	if annotation.FullTextAnnotation == nil {
		// Blank page: nothing detected is a valid result.
		return "", nil
	}

	text := strings.TrimSpace(annotation.FullTextAnnotation.Text)
	b.log.Debug().
		Int("page", page.Number()).
		Int("chars", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("ocr.recognize")

	return text, nil
}

// classify maps gRPC status codes onto the retry taxonomy. Quota and
// availability codes are transient; argument and credential codes are
// permanent; unknown transport failures default to transient.
func (b *VisionBackend) classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return Transient(BackendVision, err)
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied,
		codes.NotFound, codes.FailedPrecondition, codes.OutOfRange:
		return Permanent(BackendVision, err)
	}
	return Transient(BackendVision, err)
}

// Close releases the underlying gRPC connection.
func (b *VisionBackend) Close() error {
	return b.client.Close()
}
