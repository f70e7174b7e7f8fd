// Package main is a one-shot loader that populates the article store from a
// JSON fixture or an RSS/Atom feed, optionally simulating an interaction
// history for the loaded articles.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/newsloom/newsloom/internal/config"
	"github.com/newsloom/newsloom/internal/middleware"
	"github.com/newsloom/newsloom/internal/news"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	dataPath := flag.String("data", "", "path to a JSON article fixture")
	feedURL := flag.String("feed", "", "RSS/Atom feed URL to ingest")
	source := flag.String("source", "", "source name for feed articles (defaults to the feed title)")
	categories := flag.String("categories", "", "comma-separated categories for feed articles without their own")
	simulate := flag.Bool("simulate", false, "generate an interaction history for loaded articles")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Newsloom Data Loader")
		fmt.Println()
		fmt.Println("Usage: loader [options]")
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

	if *dataPath == "" && *feedURL == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -data and/or -feed")
		os.Exit(1)
	}

	ctx := context.Background()

	var (
		articles     news.ArticleStore
		interactions news.InteractionStore
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

	default:
		logger.Error("a persistent store is required: set DATABASE_URL or SQLITE_PATH")
		os.Exit(1)
	}

	if *dataPath != "" {
		inserted, err := news.LoadSampleData(ctx, articles, *dataPath, logger)
		if err != nil {
			logger.Error("failed to load fixture", "path", *dataPath, "error", err)
			os.Exit(1)
		}
		logger.Info("fixture loaded", "path", *dataPath, "inserted", inserted)
	}

	if *feedURL != "" {
		var cats []string
		for _, c := range strings.Split(*categories, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cats = append(cats, c)
			}
		}
		inserted, err := news.FetchFeed(ctx, articles, *feedURL, *source, cats, logger)
		if err != nil {
			logger.Error("failed to ingest feed", "url", *feedURL, "error", err)
			os.Exit(1)
		}
		logger.Info("feed ingested", "url", *feedURL, "inserted", inserted)
	}

	if *simulate {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		generated, err := news.SimulateInteractions(ctx, articles, interactions, rng, logger)
		if err != nil {
			logger.Error("failed to simulate interactions", "error", err)
			os.Exit(1)
		}
		logger.Info("interaction history generated", "events", generated)
	}
}
