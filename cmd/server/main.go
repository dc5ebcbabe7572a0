package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/docpen/internal/api"
	"github.com/dgallion1/docpen/internal/config"
	"github.com/dgallion1/docpen/internal/editor"
	"github.com/dgallion1/docpen/internal/generate"
	"github.com/dgallion1/docpen/internal/metrics"
	"github.com/dgallion1/docpen/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// A missing .env is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not load .env", "error", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	met := metrics.New()

	// Initialize generation providers.
	models, err := generate.FromConfig(cfg, log)
	if err != nil {
		log.Error("invalid generation configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.HasProvider() {
		log.Warn("no generation provider configured; generate and assist will fail")
	}

	docs := editor.NewStore(met.SetDocuments,
		editor.WithLogger(log),
		editor.WithMetrics(met),
		editor.WithHistoryLimit(cfg.HistoryLimit),
	)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, models, met, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(docs, orch, models, met, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		models.Close()
	}()

	log.Info("starting docpen", "port", cfg.Port, "models", models.Models(), "default_model", models.Default())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
