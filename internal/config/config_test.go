package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "BOOKNEST_API_KEY", "LLM_PROVIDER", "LLM_API_KEY", "GEMINI_API_KEY",
		"LLM_MODEL", "LLM_BASE_URL", "LLM_TIMEOUT", "TRANSLATE_CHUNK_SIZE",
		"TRANSLATE_WORKERS", "SUMMARY_CHUNK_SIZE", "SUMMARY_CHUNK_OVERLAP",
		"LARGE_DOC_WORDS", "COOLDOWN_EVERY", "COOLDOWN_PAUSE", "RETRY_ATTEMPTS",
		"RETRY_WAIT", "RETRY_SHORT_DELAY", "WORKER_COUNT", "MAX_QUEUE_SIZE",
		"JOB_TTL", "MAX_UPLOAD_BYTES", "DATA_DIR", "DB_PATH",
		"PDF_FALLBACK_PDFTOTEXT", "RENDER_FONT_PATH", "LOG_FILE", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port", cfg.Port, "8090"},
		{"provider", cfg.LLMProvider, "openai"},
		{"translate chunk", cfg.TranslateChunkSize, 7000},
		{"translate workers", cfg.TranslateWorkers, 8},
		{"summary chunk", cfg.SummaryChunkSize, 20000},
		{"summary overlap", cfg.SummaryChunkOverlap, 500},
		{"large doc words", cfg.LargeDocWords, 60000},
		{"cooldown every", cfg.CooldownEvery, 10},
		{"cooldown pause", cfg.CooldownPause, 45 * time.Second},
		{"retry attempts", cfg.RetryAttempts, 3},
		{"retry wait", cfg.RetryWait, 10 * time.Second},
		{"retry short delay", cfg.RetryShortDelay, 3 * time.Second},
		{"worker count", cfg.WorkerCount, 2},
		{"queue size", cfg.MaxQueueSize, 50},
		{"upload bytes", cfg.MaxUploadBytes, int64(52428800)},
		{"db path", cfg.DBPath, filepath.Join("./data", "booknest.db")},
		{"pdftotext", cfg.PDFFallbackPdftotext, true},
		{"log level", cfg.LogLevel, "info"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSLATE_WORKERS", "3")
	t.Setenv("RETRY_WAIT", "250ms")
	t.Setenv("WORKER_COUNT", "-1")
	t.Setenv("LARGE_DOC_WORDS", "abc")
	t.Setenv("COOLDOWN_EVERY", "0")
	t.Setenv("DATA_DIR", "/tmp/bn")

	cfg := Load()
	if cfg.TranslateWorkers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.TranslateWorkers)
	}
	if cfg.RetryWait != 250*time.Millisecond {
		t.Errorf("expected 250ms retry wait, got %v", cfg.RetryWait)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected negative worker count clamped to 2, got %d", cfg.WorkerCount)
	}
	if cfg.LargeDocWords != 60000 {
		t.Errorf("expected unparsable value to fall back, got %d", cfg.LargeDocWords)
	}
	if cfg.CooldownEvery != 0 {
		t.Errorf("expected cooldown disabled, got %d", cfg.CooldownEvery)
	}
	if cfg.DBPath != filepath.Join("/tmp/bn", "booknest.db") {
		t.Errorf("expected db under DATA_DIR, got %s", cfg.DBPath)
	}
	if cfg.OutputDir() != filepath.Join("/tmp/bn", "translated") {
		t.Errorf("unexpected output dir %s", cfg.OutputDir())
	}
}

func TestLoadGeminiKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-key")
	if got := Load().LLMAPIKey; got != "g-key" {
		t.Errorf("expected GEMINI_API_KEY fallback, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base := Load()
	base.LLMAPIKey = "k"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing key", func(c *Config) { c.LLMAPIKey = "" }, "LLM_API_KEY"},
		{"bad provider", func(c *Config) { c.LLMProvider = "cohere" }, "LLM_PROVIDER"},
		{"overlap too large", func(c *Config) { c.SummaryChunkOverlap = c.SummaryChunkSize }, "SUMMARY_CHUNK_OVERLAP"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that exists, even when empty.
	os.Unsetenv("LLM_MODEL")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LLM_MODEL=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	LoadDotEnv()

	if got := Load().LLMModel; got != "from-dotenv" {
		t.Errorf("expected value from .env, got %q", got)
	}
}
