package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"pdf2word/cmd"
	"pdf2word/internal/config"
	"pdf2word/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		// Use default logger config if main config fails
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		// Initialize logger with configuration
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	// Log application startup
	log := logger.WithComponent("main")
	log.Debug().Msg("starting pdf2word")

	// Execute CLI commands
	cmd.Execute()

	log.Debug().Msg("pdf2word finished")
	os.Exit(0)
}
