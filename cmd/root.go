package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"pdf2word/internal/config"
	"pdf2word/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "pdf2word",
	Short: "pdf2word - OCR scanned PDFs into editable Word documents",
	Long: `pdf2word converts scanned PDFs into editable Word documents by OCR-ing
every page through one of several interchangeable backends: an
OpenAI-compatible vision API, Google Cloud Vision, or a locally hosted
vision-language model.

Configuration comes from environment variables (a .env file is honored);
every setting can be overridden per run with command flags.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("pdf2word executed without a subcommand")

		fmt.Println("pdf2word converts scanned PDFs into editable Word documents.")
		fmt.Println("Use 'pdf2word convert --help' to get started.")
	},
	PersistentPreRunE: applyLogFlags,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Override the log format (console, json)")
}

// applyLogFlags re-initializes the logger when --log-level or --log-format
// is given, keeping the remaining logger settings from the environment.
func applyLogFlags(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	if level == "" && format == "" {
		return nil
	}

	logCfg := logger.DefaultConfig()
	if cfg, err := config.Load(); err == nil {
		logCfg = cfg.GetLoggerConfig()
	}
	if level != "" {
		logCfg.Level = level
	}
	if format != "" {
		logCfg.Format = format
	}
	return logger.Setup(logCfg)
}
