package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/newsloom/newsloom/internal/engine"
	"github.com/newsloom/newsloom/internal/geo"
	"github.com/newsloom/newsloom/internal/intent"
	"github.com/newsloom/newsloom/internal/middleware"
)

// QueryHandlers holds dependencies for the free-text query endpoint.
type QueryHandlers struct {
	engine *engine.Engine
}

// NewQueryHandlers creates a QueryHandlers instance.
func NewQueryHandlers(e *engine.Engine) *QueryHandlers {
	return &QueryHandlers{engine: e}
}

// QueryRequest is the request body for POST /api/v1/news/query.
type QueryRequest struct {
	Query     string   `json:"query"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// QueryResponse is the response body for POST /api/v1/news/query.
type QueryResponse struct {
	Intent     string            `json:"intent"`
	Strategy   string            `json:"strategy"`
	Confidence float64           `json:"confidence"`
	Source     string            `json:"resolution_source"`
	Entities   []string          `json:"entities"`
	Articles   []ArticleResponse `json:"articles,omitempty"`
	Trending   *TrendingResponse `json:"trending,omitempty"`
}

// Query handles POST /api/v1/news/query: it resolves free text into an
// intent and retrieves accordingly.
func (h *QueryHandlers) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "query is required")
		return
	}

	if req.Limit < 0 || req.Limit > engine.MaxLimit {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and 50")
		return
	}

	var coord *geo.Point
	if req.Latitude != nil && req.Longitude != nil {
		if *req.Latitude < -90 || *req.Latitude > 90 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "latitude must be between -90 and 90")
			return
		}
		if *req.Longitude < -180 || *req.Longitude > 180 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "longitude must be between -180 and 180")
			return
		}
		coord = &geo.Point{Lat: *req.Latitude, Lon: *req.Longitude}
	}

	out, err := h.engine.Query(r.Context(), req.Query, coord, req.Limit)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to process query")
		return
	}

	resp := QueryResponse{
		Intent:     string(out.Resolution.Intent),
		Strategy:   out.Strategy.String(),
		Confidence: out.Resolution.Confidence,
		Source:     string(out.Resolution.Source),
		Entities:   entityList(out.Resolution),
		Articles:   toArticleResponses(out.Articles),
	}
	if out.Trending != nil {
		resp.Trending = &TrendingResponse{
			Articles:   toScoredResponses(out.Trending.Articles),
			ClusterKey: out.Trending.ClusterKey,
			ComputedAt: out.Trending.ComputedAt.UTC().Format(time.RFC3339),
			Cached:     out.Trending.Cached,
		}
		resp.Articles = nil
	}

	writeJSON(w, r.Context(), http.StatusOK, resp)
}

// entityList returns the resolution's entities in extraction order, never
// nil so the response field serializes as [] rather than null.
func entityList(res intent.Resolution) []string {
	if len(res.Ordered) == 0 {
		return []string{}
	}
	return res.Ordered
}
