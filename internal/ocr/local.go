package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	localRecognizePath = "/v1/ocr"
	localHealthPath    = "/healthz"

	healthProbeTimeout = 10 * time.Second
)

// LocalBackend recognizes pages through a vision-language-model runtime
// running next to this process. The runtime loads the model weights onto
// one device at startup; this backend holds the exclusive handle to that
// device and serializes every inference pass through it.
type LocalBackend struct {
	baseURL    string
	device     string
	prompt     string
	httpClient *http.Client
	log        zerolog.Logger

	// mu is the device handle: at most one inference pass in flight,
	// queued pages wait here.
	mu sync.Mutex
}

type localRequest struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
	Format string `json:"format,omitempty"`
	Device string `json:"device,omitempty"`
}

type localResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewLocalBackend creates the backend and verifies the runtime is up with
// a model loaded, so a dead runtime surfaces before any page is dispatched.
func NewLocalBackend(ctx context.Context, cfg BackendConfig, log zerolog.Logger) (*LocalBackend, error) {
	if cfg.RuntimeURL == "" {
		return nil, fmt.Errorf("%w: no runtime URL configured", ErrRuntimeUnavailable)
	}

	prompt := cfg.Prompt
	if prompt == "" {
		prompt = PagePrompt
	}

	b := &LocalBackend{
		baseURL:    strings.TrimRight(cfg.RuntimeURL, "/"),
		device:     cfg.Device,
		prompt:     prompt,
		httpClient: &http.Client{},
		log:        log.With().Str("backend", BackendLocal).Str("device", cfg.Device).Logger(),
	}

	if err := b.health(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}

	return b, nil
}

// Name identifies the backend in logs and summaries.
func (b *LocalBackend) Name() string {
	return BackendLocal
}

// Recognize runs one inference pass on the device. Out-of-memory on the
// device fails the page without retry; the backend then confirms the
// runtime recovered to a clean state before accepting the next page, and
// reports the whole run unusable if it did not.
func (b *LocalBackend) Recognize(ctx context.Context, page PageImage) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()

	payload, err := json.Marshal(localRequest{
		Prompt: b.prompt,
		Image:  base64.StdEncoding.EncodeToString(page.Data),
		Format: page.MIME,
		Device: b.device,
	})
	if err != nil {
		return "", Permanent(BackendLocal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+localRecognizePath, bytes.NewReader(payload))
	if err != nil {
		return "", Permanent(BackendLocal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", context.Canceled
		}
		// Timeouts and refused connections: the runtime may be busy
		// loading or restarting.
		return "", Transient(BackendLocal, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Transient(BackendLocal, fmt.Errorf("read runtime response: %w", err))
	}

	var decoded localResponse
	if len(body) > 0 {
		// Error bodies are not always JSON; the raw text still reaches
		// the error message below.
		_ = json.Unmarshal(body, &decoded)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		text := strings.TrimSpace(decoded.Text)
		b.log.Debug().
			Int("page", page.Number()).
			Int("chars", len(text)).
			Dur("elapsed", time.Since(start)).
			Msg("ocr.recognize")
		return text, nil

	case resp.StatusCode == http.StatusInsufficientStorage || isOutOfMemory(decoded.Error):
		inferErr := fmt.Errorf("device %s: %s", b.device, runtimeErrorText(decoded.Error, body, resp.StatusCode))
		b.log.Warn().
			Int("page", page.Number()).
			Msg("device memory exhausted, probing runtime")
		if herr := b.health(ctx); herr != nil {
			if errors.Is(herr, context.Canceled) {
				return "", context.Canceled
			}
			return "", fmt.Errorf("%w: after device exhaustion: %v", ErrBackendUnusable, herr)
		}
		return "", Exhausted(BackendLocal, inferErr)

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", Transient(BackendLocal, fmt.Errorf("runtime status %d: %s", resp.StatusCode, runtimeErrorText(decoded.Error, body, resp.StatusCode)))

	default:
		return "", Permanent(BackendLocal, fmt.Errorf("runtime status %d: %s", resp.StatusCode, runtimeErrorText(decoded.Error, body, resp.StatusCode)))
	}
}

// health checks that the runtime answers and has its model loaded.
func (b *LocalBackend) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+localHealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runtime health status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections to the runtime.
func (b *LocalBackend) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

func isOutOfMemory(msg string) bool {
	if msg == "" {
		return false
	}
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "out of memory") || strings.Contains(msg, "oom")
}

func runtimeErrorText(decoded string, body []byte, statusCode int) string {
	if decoded != "" {
		return decoded
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return truncate(text, 200)
	}
	return http.StatusText(statusCode)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
