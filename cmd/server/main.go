package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/booknest/internal/api"
	"github.com/dgallion1/booknest/internal/config"
	"github.com/dgallion1/booknest/internal/llm"
	"github.com/dgallion1/booknest/internal/logging"
	"github.com/dgallion1/booknest/internal/parser"
	"github.com/dgallion1/booknest/internal/pipeline"
	"github.com/dgallion1/booknest/internal/render"
	"github.com/dgallion1/booknest/internal/store"
	"github.com/dgallion1/booknest/internal/transform"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	log, closeLog := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closeLog()
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	provider, err := llm.New(llm.Settings{
		Kind:    cfg.LLMProvider,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		BaseURL: cfg.LLMBaseURL,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		log.Error("init llm provider", "error", err)
		os.Exit(1)
	}
	stats := llm.NewCallStats(time.Hour)

	results, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("open result store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(pipeline.SettingsFromConfig(cfg), pipeline.Deps{
		Extractor:   &parser.Extractor{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		Transformer: transform.NewTransformer(provider, stats, log),
		Renderer:    render.New(cfg.RenderFontPath),
		Results:     results,
	}, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, results, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()

		if c, ok := provider.(llm.Closer); ok {
			c.Close()
		}
		if err := results.Close(); err != nil {
			log.Warn("close result store", "error", err)
		}
	}()

	log.Info("starting booknest",
		"port", cfg.Port,
		"provider", provider.Name(),
		"workers", cfg.WorkerCount,
		"translate_workers", cfg.TranslateWorkers,
		"db", cfg.DBPath,
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
