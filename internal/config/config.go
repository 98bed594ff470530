package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"pdf2word/internal/logger"
)

type Config struct {
	// OpenAI-compatible API configuration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Google Cloud Vision configuration. Credentials come from
	// GOOGLE_CREDENTIALS / GOOGLE_APPLICATION_CREDENTIALS, read by the
	// backend itself.
	VisionLanguageHints []string

	// Local model runtime configuration
	LocalURL    string
	LocalDevice string

	// Dispatch defaults; command flags override these per run
	Backend           string
	Concurrency       int
	MaxAttempts       int
	BackoffBaseMs     int
	RequestsPerSecond float64
	TimeoutSeconds    int

	// Rasterization
	RasterDPI int

	// Logging configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		VisionLanguageHints: getListEnv("VISION_LANGUAGE_HINTS"),
		LocalURL:            getEnv("LOCAL_OCR_URL", "http://127.0.0.1:8008"),
		LocalDevice:         getEnv("LOCAL_OCR_DEVICE", "cuda:0"),
		Backend:             getEnv("OCR_BACKEND", "openai"),
		Concurrency:         getIntEnv("OCR_CONCURRENCY", 4),
		MaxAttempts:         getIntEnv("OCR_MAX_ATTEMPTS", 3),
		BackoffBaseMs:       getIntEnv("OCR_BACKOFF_BASE_MS", 500),
		RequestsPerSecond:   getFloatEnv("OCR_RPS", 2),
		TimeoutSeconds:      getIntEnv("OCR_TIMEOUT_SECONDS", 90),
		RasterDPI:           getIntEnv("RASTER_DPI", 200),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:       getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:           getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("OCR_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("OCR_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BackoffBaseMs < 0 {
		return fmt.Errorf("OCR_BACKOFF_BASE_MS must not be negative, got %d", c.BackoffBaseMs)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("OCR_RPS must not be negative, got %g", c.RequestsPerSecond)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("OCR_TIMEOUT_SECONDS must be at least 1, got %d", c.TimeoutSeconds)
	}
	if c.RasterDPI < 36 || c.RasterDPI > 1200 {
		return fmt.Errorf("RASTER_DPI must be between 36 and 1200, got %d", c.RasterDPI)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
