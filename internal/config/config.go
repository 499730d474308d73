package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth. Empty disables bearer auth on /api.
	APIKey string

	// Remote model
	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string
	LLMTimeout  time.Duration

	// Translation
	TranslateChunkSize int
	TranslateWorkers   int

	// Summarization
	SummaryChunkSize    int
	SummaryChunkOverlap int
	LargeDocWords       int
	CooldownEvery       int
	CooldownPause       time.Duration

	// Retry
	RetryAttempts   int
	RetryWait       time.Duration
	RetryShortDelay time.Duration

	// Job queue
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration

	// Upload limits
	MaxUploadBytes int64

	// Storage
	DataDir string
	DBPath  string

	// PDF
	PDFFallbackPdftotext bool
	RenderFontPath       string

	// Logging
	LogFile  string
	LogLevel string
}

// LoadDotEnv reads a .env file from the working directory or the nearest
// parent that has one. Variables already set in the environment win.
func LoadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for range 5 {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func Load() Config {
	dataDir := envOr("DATA_DIR", "./data")

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("BOOKNEST_API_KEY"),

		LLMProvider: envOr("LLM_PROVIDER", "openai"),
		LLMAPIKey:   firstEnv("LLM_API_KEY", "GEMINI_API_KEY"),
		LLMModel:    os.Getenv("LLM_MODEL"),
		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),
		LLMTimeout:  envDuration("LLM_TIMEOUT", 120*time.Second),

		TranslateChunkSize: envInt("TRANSLATE_CHUNK_SIZE", 7000),
		TranslateWorkers:   envInt("TRANSLATE_WORKERS", 8),

		SummaryChunkSize:    envInt("SUMMARY_CHUNK_SIZE", 20000),
		SummaryChunkOverlap: envInt("SUMMARY_CHUNK_OVERLAP", 500),
		LargeDocWords:       envInt("LARGE_DOC_WORDS", 60000),
		CooldownEvery:       envInt("COOLDOWN_EVERY", 10),
		CooldownPause:       envDuration("COOLDOWN_PAUSE", 45*time.Second),

		RetryAttempts:   envInt("RETRY_ATTEMPTS", 3),
		RetryWait:       envDuration("RETRY_WAIT", 10*time.Second),
		RetryShortDelay: envDuration("RETRY_SHORT_DELAY", 3*time.Second),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 50),
		JobTTL:       envDuration("JOB_TTL", 1*time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		DataDir: dataDir,
		DBPath:  envOr("DB_PATH", filepath.Join(dataDir, "booknest.db")),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
		RenderFontPath:       os.Getenv("RENDER_FONT_PATH"),

		LogFile:  os.Getenv("LOG_FILE"),
		LogLevel: strings.ToLower(envOr("LOG_LEVEL", "info")),
	}

	if cfg.TranslateChunkSize <= 0 {
		cfg.TranslateChunkSize = 7000
	}
	if cfg.TranslateWorkers <= 0 {
		cfg.TranslateWorkers = 8
	}
	if cfg.SummaryChunkSize <= 0 {
		cfg.SummaryChunkSize = 20000
	}
	if cfg.SummaryChunkOverlap < 0 {
		cfg.SummaryChunkOverlap = 500
	}
	if cfg.LargeDocWords <= 0 {
		cfg.LargeDocWords = 60000
	}
	// COOLDOWN_EVERY=0 or COOLDOWN_PAUSE=0 turn the cooldown off.
	if cfg.CooldownEvery < 0 {
		cfg.CooldownEvery = 10
	}
	if cfg.CooldownPause < 0 {
		cfg.CooldownPause = 45 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryWait < 0 {
		cfg.RetryWait = 10 * time.Second
	}
	if cfg.RetryShortDelay < 0 {
		cfg.RetryShortDelay = 3 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 120 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	var errs []error
	if c.LLMAPIKey == "" {
		errs = append(errs, fmt.Errorf("LLM_API_KEY is required"))
	}
	switch c.LLMProvider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be openai or anthropic, got %q", c.LLMProvider))
	}
	if c.SummaryChunkOverlap >= c.SummaryChunkSize {
		errs = append(errs, fmt.Errorf("SUMMARY_CHUNK_OVERLAP (%d) must be smaller than SUMMARY_CHUNK_SIZE (%d)",
			c.SummaryChunkOverlap, c.SummaryChunkSize))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// OutputDir is where rendered translations are written.
func (c Config) OutputDir() string {
	return filepath.Join(c.DataDir, "translated")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
