package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"pdf2word/internal/aggregate"
	"pdf2word/internal/config"
	"pdf2word/internal/dispatch"
	"pdf2word/internal/export"
	"pdf2word/internal/logger"
	"pdf2word/internal/ocr"
)

var tablesCmd = &cobra.Command{
	Use:   "tables [image-dir]",
	Short: "Recognize photographed tables into an Excel workbook",
	Long: `Recognize every table image (jpg, jpeg, png) in a directory through a
remote OCR backend and collect the results into an Excel workbook, one
worksheet per image.

The backend is asked for plain text with one line per table row and tab
characters between cells; that text becomes the worksheet's cells. After
every recognized image the checkpoint file is updated, so an interrupted
run resumes where it stopped and already-recognized images are never sent
again.`,
	Example: `  # Recognize all table images in a folder of bank statements
  pdf2word tables ./statements

  # OpenAI-compatible backend with a custom workbook path
  pdf2word tables ./statements -b openai -o statements.xlsx

  # Resume an interrupted run; checkpointed images are skipped
  pdf2word tables ./statements --checkpoint ./statements/progress.json`,
	Args: cobra.ExactArgs(1),
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)

	tablesCmd.Flags().StringP("backend", "b", "", "OCR backend: openai or vision (default: OCR_BACKEND)")
	tablesCmd.Flags().StringP("output", "o", "", "Output .xlsx path (default: recognized_tables.xlsx in the image directory)")
	tablesCmd.Flags().String("checkpoint", "", "Checkpoint file path (default: recognized_tables.checkpoint.json in the image directory)")
	tablesCmd.Flags().IntP("concurrency", "c", 0, "Images recognized in parallel (default 4)")
	tablesCmd.Flags().Int("max-attempts", 0, "Recognition attempts per image, first try included (default 3)")
	tablesCmd.Flags().Int("backoff-base-ms", 0, "Base delay before the first retry in milliseconds (default 500)")
	tablesCmd.Flags().Float64("rps", -1, "Requests-per-second ceiling across all workers, 0 disables (default 2)")
	tablesCmd.Flags().Int("timeout", 0, "Per-image recognition timeout in seconds (default 90)")
}

func runTables(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("tables")

	dir := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyDispatchFlags(cmd, cfg)
	if cfg.Backend == ocr.BackendLocal {
		return fmt.Errorf("the tables command supports the remote backends only (openai, vision)")
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = filepath.Join(dir, "recognized_tables.xlsx")
	}
	checkpointPath, _ := cmd.Flags().GetString("checkpoint")
	if checkpointPath == "" {
		checkpointPath = filepath.Join(dir, "recognized_tables.checkpoint.json")
	}

	log.Info().
		Str("dir", dir).
		Str("backend", cfg.Backend).
		Str("output", outputPath).
		Str("checkpoint", checkpointPath).
		Msg("starting table recognition")

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("image directory not readable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	files, err := export.ListImages(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no table images (jpg, jpeg, png) found in %s", dir)
	}

	cp, err := export.LoadCheckpoint(checkpointPath)
	if err != nil {
		return err
	}

	// Images already checkpointed keep their earlier text; only the rest
	// are dispatched.
	var batch []ocr.PageImage
	var batchNames []string
	for _, file := range files {
		if cp.Has(file) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return fmt.Errorf("read image %s: %w", file, err)
		}
		batch = append(batch, ocr.PageImage{
			Index: len(batch),
			Name:  file,
			Data:  data,
			MIME:  export.ImageMIME(file),
		})
		batchNames = append(batchNames, file)
	}

	log.Info().
		Int("images", len(files)).
		Int("checkpointed", len(files)-len(batch)).
		Int("to_recognize", len(batch)).
		Msg("images listed")

	ctx, cancel := signalContext(log)
	defer cancel()

	var doc *aggregate.Document
	recognized := make(map[string]string, len(batch))
	if len(batch) > 0 {
		backend, err := ocr.New(ctx, backendConfig(cfg, ocr.TablePrompt), log)
		if err != nil {
			return mapPipelineError(err, log)
		}
		defer closeBackend(backend, log)

		disp := dispatch.New(backend, dispatch.Config{
			Concurrency:       cfg.Concurrency,
			MaxAttempts:       cfg.MaxAttempts,
			BackoffBase:       time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
			RequestsPerSecond: cfg.RequestsPerSecond,
			RequestTimeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, log)

		results := make(chan ocr.PageResult, len(batch))
		runErrCh := make(chan error, 1)
		go func() {
			runErrCh <- disp.Run(ctx, batch, results)
		}()

		// Checkpoint every recognized image as its result arrives, so an
		// interruption costs at most the in-flight images.
		collected := make(chan ocr.PageResult, len(batch))
		for res := range results {
			if res.Status == ocr.StatusSuccess {
				cp.Set(batchNames[res.Index], res.Text)
				if err := cp.Save(); err != nil {
					log.Warn().Err(err).Msg("failed to save checkpoint")
				}
			}
			collected <- res
		}
		close(collected)

		doc, err = aggregate.Combine(collected, len(batch))
		if err != nil {
			return fmt.Errorf("result aggregation failed: %w", err)
		}
		if runErr := <-runErrCh; runErr != nil {
			log.Error().
				Err(runErr).
				Str("summary", doc.Summary.String()).
				Msg("table recognition aborted")
			return mapPipelineError(runErr, log)
		}

		// Failed and cancelled images carry their placeholder marker into
		// a one-cell sheet instead of vanishing.
		for _, page := range doc.Pages {
			recognized[batchNames[page.Index]] = page.Text
		}
	}

	sheets := make([]export.Sheet, 0, len(files))
	for _, file := range files {
		text, ok := cp.Text(file)
		if !ok {
			text = recognized[file]
		}
		sheets = append(sheets, export.Sheet{
			Name: export.SheetName(file),
			Rows: export.ParseTable(text),
		})
	}

	if err := export.WriteWorkbook(outputPath, sheets); err != nil {
		return mapPipelineError(err, log)
	}

	log.Info().
		Int("sheets", len(sheets)).
		Str("output", outputPath).
		Msg("workbook written")

	fmt.Printf("Saved %s\n", outputPath)
	if skipped := len(files) - len(batch); skipped > 0 {
		fmt.Printf("%d of %d images were already recognized in an earlier run\n", skipped, len(files))
	}
	if doc != nil {
		fmt.Println(doc.Summary.String())
	}

	if ctx.Err() != nil && doc != nil {
		return fmt.Errorf("table recognition cancelled: %d of %d images were not processed",
			doc.Summary.Cancelled, doc.Summary.Total)
	}
	return nil
}
