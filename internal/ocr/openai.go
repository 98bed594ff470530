package ocr

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend recognizes pages through an OpenAI-compatible vision chat
// API. Each page becomes one chat-completions call carrying the prompt and
// the page image as a base64 data URL.
type OpenAIBackend struct {
	client *openai.Client
	model  string
	prompt string
	log    zerolog.Logger
}

// NewOpenAIBackend creates the backend from cfg. The API key is required;
// BaseURL switches to any OpenAI-compatible provider.
func NewOpenAIBackend(cfg BackendConfig, log zerolog.Logger) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = PagePrompt
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		prompt: prompt,
		log:    log.With().Str("backend", BackendOpenAI).Logger(),
	}, nil
}

// Name identifies the backend in logs and summaries.
func (b *OpenAIBackend) Name() string {
	return BackendOpenAI
}

// Recognize sends one vision chat-completion request for the page.
func (b *OpenAIBackend) Recognize(ctx context.Context, page PageImage) (string, error) {
	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: b.prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    page.DataURL(),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", b.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", Permanent(BackendOpenAI, ErrNoContent)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	b.log.Debug().
		Int("page", page.Number()).
		Str("model", b.model).
		Int("chars", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("ocr.recognize")

	return text, nil
}

// classify maps go-openai errors onto the retry taxonomy: 429 and 5xx are
// transient, other HTTP statuses permanent, transport-level failures
// (timeouts, resets) transient. Caller cancellation passes through.
func (b *OpenAIBackend) classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if retryableHTTPStatus(apiErr.HTTPStatusCode) {
			return Transient(BackendOpenAI, err)
		}
		return Permanent(BackendOpenAI, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if retryableHTTPStatus(reqErr.HTTPStatusCode) {
			return Transient(BackendOpenAI, err)
		}
		return Permanent(BackendOpenAI, err)
	}

	return Transient(BackendOpenAI, err)
}

func retryableHTTPStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
