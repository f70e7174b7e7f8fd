// Package main is the entry point for the interaction firehose consumer.
// It maintains a resilient WebSocket connection to the firehose, validates
// incoming interaction events, and appends them to the event store.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/newsloom/newsloom/internal/config"
	"github.com/newsloom/newsloom/internal/ingest"
	"github.com/newsloom/newsloom/internal/middleware"
	"github.com/newsloom/newsloom/internal/news"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	metricsPort := flag.Int("metrics-port", 9091, "port for the metrics endpoint")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Newsloom Firehose Consumer")
		fmt.Println()
		fmt.Println("Usage: ingest [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if cfg.FirehoseURL == "" {
		logger.Error("FIREHOSE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event store selection mirrors the API server: PostgreSQL, then
	// embedded SQLite, then in-memory (events lost on restart).
	var store news.InteractionStore
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}()

		interactionStore := news.NewPostgresInteractionStore(db, logger)
		if err := interactionStore.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure interactions schema", "error", err)
			os.Exit(1)
		}
		store = interactionStore
		logger.Info("using postgresql event store")

	case cfg.SQLitePath != "":
		sqliteStore, err := news.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := sqliteStore.Close(); err != nil {
				logger.Error("failed to close sqlite store", "error", err)
			}
		}()
		store = sqliteStore
		logger.Info("using sqlite event store", "path", cfg.SQLitePath)

	default:
		store = news.NewInMemoryInteractionStore()
		logger.Warn("no store configured, events are held in memory only")
	}

	registry := prometheus.NewRegistry()
	metrics := ingest.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	stats := ingest.NewStats()
	handler := ingest.NewEventHandler(store, stats, metrics, logger)

	client, err := ingest.NewClient(ingest.DefaultConfig(cfg.FirehoseURL), handler.Handle, logger)
	if err != nil {
		logger.Error("invalid firehose configuration", "error", err)
		os.Exit(1)
	}

	// Internal metrics endpoint, token-guarded when a token is configured.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics",
		ingest.InternalAuthMiddleware(cfg.MetricsToken)(ingest.MetricsHandler(registry)))
	metricsMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", *metricsPort),
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "port", *metricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		logger.Info("connecting to firehose", "url", cfg.FirehoseURL)
		runErr <- client.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down consumer...")
		cancel()
		if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("firehose client error", "error", err)
		}
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("firehose client stopped", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server forced to shutdown", "error", err)
	}

	stats.LogSummary(logger)
	logger.Info("consumer stopped")
}
