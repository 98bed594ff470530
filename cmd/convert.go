package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"pdf2word/internal/aggregate"
	"pdf2word/internal/config"
	"pdf2word/internal/dispatch"
	"pdf2word/internal/logger"
	"pdf2word/internal/ocr"
	"pdf2word/internal/pages"
	"pdf2word/internal/word"
)

var convertCmd = &cobra.Command{
	Use:   "convert [pdf-file]",
	Short: "Convert a scanned PDF into an editable Word document",
	Long: `Rasterize every page of a PDF, recognize the pages through the selected
OCR backend, and reassemble the results into a Word document in page order.

Backends:
  openai - OpenAI-compatible vision chat API (requires OPENAI_API_KEY;
           OPENAI_BASE_URL switches providers)
  vision - Google Cloud Vision document text detection (requires
           GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS)
  local  - vision-language-model runtime on this machine (LOCAL_OCR_URL,
           LOCAL_OCR_DEVICE)

Pages that keep failing after retries appear in the document as error
placeholders; a single bad page never aborts the run. Press Ctrl-C to stop
early: finished pages are kept and the rest are marked cancelled.`,
	Example: `  # Convert with the default backend from the environment
  pdf2word convert scan.pdf

  # Google Vision with German and English hints, 4 pages in parallel
  pdf2word convert scan.pdf -b vision --lang de,en -c 4

  # Local model runtime on the second GPU
  pdf2word convert scan.pdf -b local --device cuda:1

  # Custom output plus the per-page JSON sidecar
  pdf2word convert scan.pdf -o book.docx --json`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("backend", "b", "", "OCR backend: openai, vision or local (default: OCR_BACKEND)")
	convertCmd.Flags().StringP("output", "o", "", "Output .docx path (default: input name with .docx)")
	convertCmd.Flags().Bool("json", false, "Also write per-page results as JSON next to the output")
	convertCmd.Flags().IntP("concurrency", "c", 0, "Pages recognized in parallel for remote backends (default 4)")
	convertCmd.Flags().Int("max-attempts", 0, "Recognition attempts per page, first try included (default 3)")
	convertCmd.Flags().Int("backoff-base-ms", 0, "Base delay before the first retry in milliseconds (default 500)")
	convertCmd.Flags().Float64("rps", -1, "Requests-per-second ceiling across all workers, 0 disables (default 2)")
	convertCmd.Flags().Int("timeout", 0, "Per-page recognition timeout in seconds (default 90)")
	convertCmd.Flags().String("device", "", "Compute device for the local backend (default: LOCAL_OCR_DEVICE)")
	convertCmd.Flags().Int("dpi", 0, "Rasterization resolution (default 200)")
	convertCmd.Flags().StringSlice("lang", nil, "Language hints for the vision backend")
	convertCmd.Flags().Bool("grayscale", false, "Rasterize pages in grayscale")
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("convert")

	pdfPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyDispatchFlags(cmd, cfg)
	if cmd.Flags().Changed("device") {
		cfg.LocalDevice, _ = cmd.Flags().GetString("device")
	}
	if cmd.Flags().Changed("dpi") {
		cfg.RasterDPI, _ = cmd.Flags().GetInt("dpi")
	}
	if cmd.Flags().Changed("lang") {
		cfg.VisionLanguageHints, _ = cmd.Flags().GetStringSlice("lang")
	}
	grayscale, _ := cmd.Flags().GetBool("grayscale")
	jsonSidecar, _ := cmd.Flags().GetBool("json")

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = siblingPath(pdfPath, ".docx")
	}

	log.Info().
		Str("file", pdfPath).
		Str("backend", cfg.Backend).
		Str("output", outputPath).
		Int("concurrency", cfg.Concurrency).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("starting conversion")

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("file does not have .pdf extension")
	}

	// Reject unreadable or invalid input before anything expensive runs.
	pageCount, err := pages.Validate(pdfPath)
	if err != nil {
		return mapPipelineError(err, log)
	}
	log.Info().
		Int("pages", pageCount).
		Msg("document validated")

	ctx, cancel := signalContext(log)
	defer cancel()

	backend, err := ocr.New(ctx, backendConfig(cfg, ""), log)
	if err != nil {
		return mapPipelineError(err, log)
	}
	defer closeBackend(backend, log)

	pageImages, err := pages.Extract(ctx, pdfPath, pages.Options{
		DPI:       cfg.RasterDPI,
		Grayscale: grayscale,
	})
	if err != nil {
		return mapPipelineError(err, log)
	}

	doc, runErr, aggErr := runPipeline(ctx, backend, cfg, pageImages, log)
	if aggErr != nil {
		return fmt.Errorf("result aggregation failed: %w", aggErr)
	}
	if runErr != nil {
		// The backend became unusable; no artifact is produced.
		log.Error().
			Err(runErr).
			Str("summary", doc.Summary.String()).
			Msg("conversion aborted")
		return mapPipelineError(runErr, log)
	}

	if err := word.WriteFile(outputPath, doc); err != nil {
		return mapPipelineError(err, log)
	}
	if jsonSidecar {
		jsonPath := siblingPath(outputPath, ".json")
		if err := word.WriteJSON(jsonPath, doc); err != nil {
			return mapPipelineError(err, log)
		}
		fmt.Printf("Page JSON saved to %s\n", jsonPath)
	}

	log.Info().
		Int("succeeded", doc.Summary.Succeeded).
		Int("failed", doc.Summary.Failed).
		Int("cancelled", doc.Summary.Cancelled).
		Int("retries", doc.Summary.Retries).
		Msg("conversion finished")

	fmt.Printf("Saved %s\n", outputPath)
	fmt.Println(doc.Summary.String())

	if ctx.Err() != nil {
		return fmt.Errorf("conversion cancelled: %d of %d pages were not processed",
			doc.Summary.Cancelled, doc.Summary.Total)
	}
	return nil
}

// runPipeline drives the dispatcher and the aggregator concurrently: the
// dispatcher streams completion-order results into a buffered channel while
// the aggregator drains it and restores page order.
func runPipeline(ctx context.Context, backend ocr.Backend, cfg *config.Config, pageImages []ocr.PageImage, log zerolog.Logger) (*aggregate.Document, error, error) {
	disp := dispatch.New(backend, dispatch.Config{
		Concurrency:       cfg.Concurrency,
		MaxAttempts:       cfg.MaxAttempts,
		BackoffBase:       time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
		RequestsPerSecond: cfg.RequestsPerSecond,
		RequestTimeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, log)

	results := make(chan ocr.PageResult, len(pageImages))
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- disp.Run(ctx, pageImages, results)
	}()

	doc, aggErr := aggregate.Combine(results, len(pageImages))
	return doc, <-runErrCh, aggErr
}

// applyDispatchFlags folds the dispatch flags shared by convert and tables
// into the environment-derived config; only flags the user actually set
// override.
func applyDispatchFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("backend") {
		cfg.Backend, _ = cmd.Flags().GetString("backend")
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.MaxAttempts, _ = cmd.Flags().GetInt("max-attempts")
	}
	if cmd.Flags().Changed("backoff-base-ms") {
		cfg.BackoffBaseMs, _ = cmd.Flags().GetInt("backoff-base-ms")
	}
	if cmd.Flags().Changed("rps") {
		cfg.RequestsPerSecond, _ = cmd.Flags().GetFloat64("rps")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutSeconds, _ = cmd.Flags().GetInt("timeout")
	}
}

// backendConfig assembles the backend construction settings from the
// resolved config. A non-empty prompt overrides the page prompt, which the
// tables command uses for its tab-separated table prompt.
func backendConfig(cfg *config.Config, prompt string) ocr.BackendConfig {
	return ocr.BackendConfig{
		Kind:          cfg.Backend,
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Model:         cfg.OpenAIModel,
		LanguageHints: cfg.VisionLanguageHints,
		RuntimeURL:    cfg.LocalURL,
		Device:        cfg.LocalDevice,
		Prompt:        prompt,
	}
}

// signalContext returns a context cancelled by SIGINT or SIGTERM so an
// interrupted run finishes in-flight pages and reports a partial summary.
func signalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("received interrupt, cancelling run")
			cancel()
		case <-ctx.Done():
			// Run completed normally.
		}
	}()

	return ctx, cancel
}

func closeBackend(backend ocr.Backend, log zerolog.Logger) {
	if closer, ok := backend.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close backend")
		}
	}
}

// siblingPath swaps path's extension for ext, keeping directory and name.
func siblingPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// mapPipelineError turns pipeline errors into user-facing messages. Page
// failures never reach this: they surface in the summary and as document
// placeholders.
func mapPipelineError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("run failed")

	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("run was cancelled")
	case errors.Is(err, pages.ErrNotFound):
		return fmt.Errorf("input document not found or not readable: %w", err)
	case errors.Is(err, pages.ErrInvalidPDF):
		return fmt.Errorf("input is not a valid PDF document. Check the file integrity: %w", err)
	case errors.Is(err, pages.ErrEmptyDocument):
		return fmt.Errorf("the document contains no pages")
	case errors.Is(err, pages.ErrRasterizer):
		return fmt.Errorf("page rasterization failed. pdftoppm (poppler-utils) must be installed and the PDF renderable: %w", err)
	case errors.Is(err, ocr.ErrUnknownBackend):
		return err
	case errors.Is(err, ocr.ErrMissingAPIKey):
		return fmt.Errorf("the openai backend needs an API key.\n\n"+
			"Set OPENAI_API_KEY in the environment or your .env file;\n"+
			"OPENAI_BASE_URL switches to any OpenAI-compatible provider.\n\n"+
			"Original error: %w", err)
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("the vision backend needs Google Cloud credentials.\n\n"+
			"Set GOOGLE_APPLICATION_CREDENTIALS to a service account JSON file,\n"+
			"or GOOGLE_CREDENTIALS to the inline JSON, and grant the account the\n"+
			"'Cloud Vision API User' role.\n\n"+
			"Original error: %w", err)
	case errors.Is(err, ocr.ErrRuntimeUnavailable):
		return fmt.Errorf("the local model runtime is not reachable.\n\n"+
			"Start the runtime and point LOCAL_OCR_URL at it (default\n"+
			"http://127.0.0.1:8008).\n\n"+
			"Original error: %w", err)
	case errors.Is(err, ocr.ErrBackendUnusable):
		return fmt.Errorf("the OCR backend became unusable during the run and could not recover: %w", err)
	default:
		return err
	}
}
