package api

import (
	"net/http"

	"github.com/newsloom/newsloom/internal/engine"
	"github.com/newsloom/newsloom/internal/middleware"
)

// RouterConfig wires the handlers the router mounts. The optional limiters
// wrap the two most expensive routes: text search and the NLP-backed query
// endpoint.
type RouterConfig struct {
	Engine *engine.Engine
	Health *HealthHandlers

	SearchLimiter func(http.Handler) http.Handler
	QueryLimiter  func(http.Handler) http.Handler
}

// NewRouter builds the service mux with all news endpoints mounted. Method
// routing uses the enhanced ServeMux patterns.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	newsHandlers := NewNewsHandlers(cfg.Engine)
	trendingHandlers := NewTrendingHandlers(cfg.Engine)
	queryHandlers := NewQueryHandlers(cfg.Engine)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/news/category", newsHandlers.Category)
	mux.HandleFunc("GET /api/v1/news/source", newsHandlers.Source)
	mux.Handle("GET /api/v1/news/search", wrap(http.HandlerFunc(newsHandlers.Search), cfg.SearchLimiter))
	mux.HandleFunc("GET /api/v1/news/score", newsHandlers.Score)
	mux.HandleFunc("GET /api/v1/news/nearby", newsHandlers.Nearby)
	mux.HandleFunc("GET /api/v1/news/trending", trendingHandlers.Trending)
	mux.Handle("POST /api/v1/news/query", wrap(http.HandlerFunc(queryHandlers.Query), cfg.QueryLimiter))

	if cfg.Health != nil {
		mux.HandleFunc("/health", cfg.Health.Health)
		mux.HandleFunc("/ready", cfg.Health.Ready)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"newsloom-api","version":"0.1.0"}`))
	})

	return mux
}

func wrap(h http.Handler, limiter func(http.Handler) http.Handler) http.Handler {
	if limiter == nil {
		return h
	}
	return limiter(h)
}
