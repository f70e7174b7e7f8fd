package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/newsloom/newsloom/internal/engine"
	"github.com/newsloom/newsloom/internal/middleware"
	"github.com/newsloom/newsloom/internal/trending"
)

// TrendingHandlers holds dependencies for the trending endpoint.
type TrendingHandlers struct {
	engine *engine.Engine
}

// NewTrendingHandlers creates a TrendingHandlers instance.
func NewTrendingHandlers(e *engine.Engine) *TrendingHandlers {
	return &TrendingHandlers{engine: e}
}

// TrendingResponse is the JSON shape of a trending lookup.
type TrendingResponse struct {
	Articles   []ScoredArticleResponse `json:"articles"`
	ClusterKey string                  `json:"cluster_key"`
	ComputedAt string                  `json:"computed_at"`
	Cached     bool                    `json:"cached"`
}

// Trending handles GET /api/v1/news/trending?lat=...&lon=...&limit=...&force_refresh=...
func (h *TrendingHandlers) Trending(w http.ResponseWriter, r *http.Request) {
	center, errMsg := parseCoordinate(r)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	limit, errMsg := parseLimit(r, engine.DefaultLimit, engine.MaxLimit)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	force := r.URL.Query().Get("force_refresh") == "true"

	res, err := h.engine.Trending(r.Context(), center, limit, force)
	if err != nil {
		if errors.Is(err, trending.ErrRetrievalFailed) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeRetrievalFailed)
			WriteError(w, ctx, http.StatusBadGateway, ErrCodeRetrievalFailed,
				"Trending results are unavailable right now")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute trending results")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, TrendingResponse{
		Articles:   toScoredResponses(res.Articles),
		ClusterKey: res.ClusterKey,
		ComputedAt: res.ComputedAt.UTC().Format(time.RFC3339),
		Cached:     res.Cached,
	})
}
