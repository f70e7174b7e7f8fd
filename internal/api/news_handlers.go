package api

import (
	"net/http"
	"strings"

	"github.com/newsloom/newsloom/internal/engine"
	"github.com/newsloom/newsloom/internal/middleware"
	"github.com/newsloom/newsloom/internal/strategy"
)

// NewsHandlers holds dependencies for article retrieval endpoints.
type NewsHandlers struct {
	engine *engine.Engine
}

// NewNewsHandlers creates a NewsHandlers instance.
func NewNewsHandlers(e *engine.Engine) *NewsHandlers {
	return &NewsHandlers{engine: e}
}

// Category handles GET /api/v1/news/category?category=...&limit=...
func (h *NewsHandlers) Category(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "category is required")
		return
	}

	limit, errMsg := parseLimit(r, engine.DefaultLimit, engine.MaxLimit)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	h.retrieve(w, r, strategy.StrategyCategory, strategy.Params{Category: category, Limit: limit})
}

// Source handles GET /api/v1/news/source?source=...&limit=...
func (h *NewsHandlers) Source(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	if source == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "source is required")
		return
	}

	limit, errMsg := parseLimit(r, engine.DefaultLimit, engine.MaxLimit)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	h.retrieve(w, r, strategy.StrategySource, strategy.Params{Source: source, Limit: limit})
}

// Search handles GET /api/v1/news/search?query=...&limit=...
func (h *NewsHandlers) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "query is required")
		return
	}

	limit, errMsg := parseLimit(r, engine.DefaultLimit, engine.MaxLimit)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	h.retrieve(w, r, strategy.StrategySearch, strategy.Params{Text: query, Limit: limit})
}

// Score handles GET /api/v1/news/score?min_score=...&limit=...
func (h *NewsHandlers) Score(w http.ResponseWriter, r *http.Request) {
	minScore, errMsg := parseOptionalFloat(r, "min_score")
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	if minScore != nil && (*minScore < 0 || *minScore > 1) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "min_score must be between 0 and 1")
		return
	}

	limit, errMsg := parseLimit(r, engine.DefaultLimit, engine.MaxLimit)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	h.retrieve(w, r, strategy.StrategyScore, strategy.Params{MinScore: minScore, Limit: limit})
}

// Nearby handles GET /api/v1/news/nearby?lat=...&lon=...&radius=...&limit=...
func (h *NewsHandlers) Nearby(w http.ResponseWriter, r *http.Request) {
	center, errMsg := parseCoordinate(r)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	radius, errMsg := parseOptionalFloat(r, "radius")
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	radiusKm := 0.0
	if radius != nil {
		if *radius <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "radius must be positive")
			return
		}
		radiusKm = *radius
	}

	limit, errMsg := parseLimit(r, engine.DefaultLimit, engine.MaxLimit)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	h.retrieve(w, r, strategy.StrategyNearby, strategy.Params{
		Center:   &center,
		RadiusKm: radiusKm,
		Limit:    limit,
	})
}

// retrieve runs the strategy against the engine and writes the article list.
func (h *NewsHandlers) retrieve(w http.ResponseWriter, r *http.Request, s strategy.Strategy, p strategy.Params) {
	articles, err := h.engine.Retrieve(r.Context(), s, p)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve articles")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, toArticleResponses(articles))
}
