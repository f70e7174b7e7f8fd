// Package main is the entry point for the news retrieval API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/newsloom/newsloom/internal/api"
	"github.com/newsloom/newsloom/internal/config"
	"github.com/newsloom/newsloom/internal/engine"
	"github.com/newsloom/newsloom/internal/enrich"
	"github.com/newsloom/newsloom/internal/health"
	"github.com/newsloom/newsloom/internal/ingest"
	"github.com/newsloom/newsloom/internal/intent"
	"github.com/newsloom/newsloom/internal/middleware"
	"github.com/newsloom/newsloom/internal/news"
	"github.com/newsloom/newsloom/internal/ranking"
	"github.com/newsloom/newsloom/internal/tracing"
	"github.com/newsloom/newsloom/internal/trending"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Newsloom API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
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

	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx := context.Background()

	// Tracing provider. Disabled config yields a no-op provider.
	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "newsloom-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracing provider", "error", err)
		}
	}()

	// Storage selection: PostgreSQL, then embedded SQLite, then in-memory.
	var (
		articles     news.ArticleStore
		interactions news.InteractionStore
		dbChecker    api.HealthChecker
	)
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

		articleStore := news.NewPostgresArticleStore(db, logger)
		interactionStore := news.NewPostgresInteractionStore(db, logger)
		if err := articleStore.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure articles schema", "error", err)
			os.Exit(1)
		}
		if err := interactionStore.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure interactions schema", "error", err)
			os.Exit(1)
		}

		articles = articleStore
		interactions = interactionStore
		dbChecker = health.NewDBChecker(db)
		logger.Info("using postgresql store")

	case cfg.SQLitePath != "":
		store, err := news.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close sqlite store", "error", err)
			}
		}()

		articles = store
		interactions = store
		logger.Info("using sqlite store", "path", cfg.SQLitePath)

	default:
		articles = news.NewInMemoryArticleStore()
		interactions = news.NewInMemoryInteractionStore()
		logger.Warn("no store configured, using in-memory store")
	}

	// Redis backs the readiness check and shared rate limit state.
	var redisClient *redis.Client
	var redisChecker api.HealthChecker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
		redisChecker = health.NewRedisChecker(redisClient)
	}

	// Sample fixture data; already-present articles are skipped, and
	// interactions are only simulated against an empty event store.
	if cfg.SampleDataPath != "" {
		if _, err := news.LoadSampleData(ctx, articles, cfg.SampleDataPath, logger); err != nil {
			logger.Error("failed to load sample data", "path", cfg.SampleDataPath, "error", err)
			os.Exit(1)
		}
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		if _, err := news.SimulateInteractions(ctx, articles, interactions, rng, logger); err != nil {
			logger.Error("failed to simulate interactions", "error", err)
			os.Exit(1)
		}
	}

	// Ranking weights, optionally calibrated from file.
	weights := ranking.DefaultWeights()
	if cfg.CalibrationPath != "" {
		calibrated, err := ranking.LoadCalibration(cfg.CalibrationPath)
		if err != nil {
			logger.Warn("failed to load calibration, using default weights",
				"path", cfg.CalibrationPath, "error", err)
		} else {
			weights = ranking.MergeCalibration(weights, calibrated)
			logger.Info("loaded ranking calibration", "path", cfg.CalibrationPath)
		}
	}

	// Language-analysis client. Left nil when unconfigured so the resolver
	// and backfill job take their local fallback paths.
	var analyzer intent.Analyzer
	var summarizer enrich.Summarizer
	if cfg.NLPBaseURL != "" {
		client := intent.NewClient(cfg.NLPBaseURL, cfg.NLPAPIKey, cfg.NLPTimeout())
		analyzer = client
		summarizer = client
		logger.Info("language-analysis service configured", "base_url", cfg.NLPBaseURL)
	} else {
		logger.Warn("no language-analysis service configured, using local heuristics")
	}
	resolver := intent.NewResolver(analyzer, cfg.NLPTimeout(), logger)

	// Metrics registry shared by HTTP middleware and the trending cache.
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	trendingMetrics := trending.NewMetrics()
	if err := trendingMetrics.Register(registry); err != nil {
		logger.Error("failed to register trending metrics", "error", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Config{
		Articles:     articles,
		Interactions: interactions,
		Resolver:     resolver,
		Weights:      weights,
		TrendingTTL:  cfg.TrendingTTL(),
		Logger:       logger,
		Metrics:      trendingMetrics,
	})

	// Background jobs: cache sweep and summary backfill.
	sweeper := trending.NewSweeper(trending.SweeperConfig{
		Interval: cfg.SweepInterval(),
		Logger:   logger,
	}, eng.Cache())
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("failed to start cache sweeper", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	backfill := enrich.NewBackfillJob(enrich.BackfillJobConfig{
		Interval: cfg.EnrichInterval(),
		Logger:   logger,
	}, articles, summarizer)
	if err := backfill.Start(ctx); err != nil {
		logger.Error("failed to start summary backfill job", "error", err)
		os.Exit(1)
	}
	defer backfill.Stop()

	// Rate limit state: shared via redis when available, per-process otherwise.
	var limitStore middleware.RateLimitStore
	if cfg.RateLimitEnabled {
		if redisClient != nil {
			limitStore = middleware.NewRedisRateLimitStore(redisClient, httpMetrics)
			logger.Info("rate limiting enabled", "store", "redis")
		} else {
			memStore := middleware.NewInMemoryRateLimitStore()
			go func() {
				ticker := time.NewTicker(time.Minute)
				defer ticker.Stop()
				for range ticker.C {
					memStore.Cleanup()
				}
			}()
			limitStore = memStore
			logger.Info("rate limiting enabled", "store", "memory")
		}
	}

	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      dbChecker,
		RedisChecker:   redisChecker,
		MetricsEnabled: true,
	})

	routerCfg := api.RouterConfig{
		Engine: eng,
		Health: healthHandlers,
	}
	if limitStore != nil {
		keyFunc := middleware.IPKeyFunc()
		routerCfg.SearchLimiter = middleware.RateLimiter(limitStore, middleware.DefaultSearchLimit(), keyFunc)
		routerCfg.QueryLimiter = middleware.RateLimiter(limitStore, middleware.DefaultQueryLimit(), keyFunc)
	}
	mux := api.NewRouter(routerCfg)

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	if cfg.MetricsToken != "" {
		metricsHandler = ingest.InternalAuthMiddleware(cfg.MetricsToken)(metricsHandler)
	}
	mux.Handle("GET /metrics", metricsHandler)

	// Middleware chain, outermost first: RequestID -> Tracing -> Logging ->
	// HTTPMetrics -> global RateLimiter -> CORS.
	var handler http.Handler = mux
	if origins := cfg.CORSOrigins(); len(origins) > 0 {
		handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: origins})(handler)
	}
	if limitStore != nil {
		handler = middleware.RateLimiter(limitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())(handler)
	}
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("newsloom-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
