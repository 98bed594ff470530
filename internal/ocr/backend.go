package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Recognized backend selectors.
const (
	BackendOpenAI = "openai"
	BackendVision = "vision"
	BackendLocal  = "local"
)

// KnownBackends lists the recognized backend selectors in display order.
func KnownBackends() []string {
	return []string{BackendOpenAI, BackendVision, BackendLocal}
}

// BackendConfig carries everything needed to construct one backend. It is
// loaded once before dispatch begins and immutable for the run's lifetime.
type BackendConfig struct {
	// Kind selects the backend: one of BackendOpenAI, BackendVision,
	// BackendLocal.
	Kind string

	// APIKey, BaseURL and Model configure the OpenAI-compatible backend.
	// An empty BaseURL means the official endpoint; any OpenAI-compatible
	// provider works through BaseURL.
	APIKey  string
	BaseURL string
	Model   string

	// LanguageHints bias Google Vision's script detection.
	LanguageHints []string

	// RuntimeURL and Device configure the local model runtime backend.
	RuntimeURL string
	Device     string

	// Prompt overrides the recognition prompt for vision-language
	// backends; empty means PagePrompt.
	Prompt string
}

// New builds the backend selected by cfg.Kind. Construction verifies the
// backend is usable (credentials present, local runtime reachable) so a
// misconfiguration surfaces before any page is dispatched.
func New(ctx context.Context, cfg BackendConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Kind {
	case BackendOpenAI:
		return NewOpenAIBackend(cfg, log)
	case BackendVision:
		return NewVisionBackend(ctx, cfg, log)
	case BackendLocal:
		return NewLocalBackend(ctx, cfg, log)
	}
	return nil, fmt.Errorf("%w: %q (choose one of: %s)",
		ErrUnknownBackend, cfg.Kind, strings.Join(KnownBackends(), ", "))
}
