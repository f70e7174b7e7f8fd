package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/newsloom/newsloom/internal/geo"
	"github.com/newsloom/newsloom/internal/news"
	"github.com/newsloom/newsloom/internal/trending"
)

// coarseGeohashPrecision is the geohash precision exposed in responses.
// Six characters is roughly neighborhood scale, coarse enough to avoid
// leaking precise article coordinates.
const coarseGeohashPrecision = 6

// ArticleResponse is the JSON shape of an article in API responses.
type ArticleResponse struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	URL           string   `json:"url"`
	PublishedAt   string   `json:"publication_date"`
	Source        string   `json:"source_name"`
	Categories    []string `json:"category"`
	Relevance     float64  `json:"relevance_score"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	CoarseGeohash string   `json:"coarse_geohash,omitempty"`
	Summary       string   `json:"llm_summary,omitempty"`
}

// ScoredArticleResponse extends ArticleResponse with the trending score.
type ScoredArticleResponse struct {
	ArticleResponse
	TrendingScore float64                  `json:"trending_score"`
	Factors       trending.FactorBreakdown `json:"factors"`
}

// toArticleResponse converts a domain article to its response shape.
func toArticleResponse(a news.Article) ArticleResponse {
	resp := ArticleResponse{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		URL:         a.URL,
		PublishedAt: a.PublishedAt.UTC().Format(time.RFC3339),
		Source:      a.Source,
		Categories:  a.Categories,
		Relevance:   a.Relevance,
		Summary:     a.Summary,
	}
	if a.HasLocation() {
		lat, lon := a.Location.Lat, a.Location.Lon
		resp.Latitude = &lat
		resp.Longitude = &lon
		resp.CoarseGeohash = geo.Encode(lat, lon, coarseGeohashPrecision)
	}
	return resp
}

func toArticleResponses(articles []news.Article) []ArticleResponse {
	out := make([]ArticleResponse, len(articles))
	for i, a := range articles {
		out[i] = toArticleResponse(a)
	}
	return out
}

func toScoredResponses(scored []trending.ScoredArticle) []ScoredArticleResponse {
	out := make([]ScoredArticleResponse, len(scored))
	for i, s := range scored {
		out[i] = ScoredArticleResponse{
			ArticleResponse: toArticleResponse(s.Article),
			TrendingScore:   s.Score,
			Factors:         s.Factors,
		}
	}
	return out
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// parseLimit parses the limit query parameter. Absent values default to
// defaultLimit; out-of-range or malformed values are a validation error.
func parseLimit(r *http.Request, defaultLimit, maxLimit int) (int, string) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, ""
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, "limit must be an integer"
	}
	if limit < 1 || limit > maxLimit {
		return 0, "limit must be between 1 and " + strconv.Itoa(maxLimit)
	}
	return limit, ""
}

// parseCoordinate parses required lat/lon query parameters and validates
// their ranges. The bounds are inclusive: the poles and the antimeridian are
// valid coordinates.
func parseCoordinate(r *http.Request) (geo.Point, string) {
	q := r.URL.Query()

	latRaw, lonRaw := q.Get("lat"), q.Get("lon")
	if latRaw == "" || lonRaw == "" {
		return geo.Point{}, "lat and lon are required"
	}

	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return geo.Point{}, "lat must be a number"
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return geo.Point{}, "lon must be a number"
	}

	if lat < -90 || lat > 90 {
		return geo.Point{}, "lat must be between -90 and 90"
	}
	if lon < -180 || lon > 180 {
		return geo.Point{}, "lon must be between -180 and 180"
	}
	return geo.Point{Lat: lat, Lon: lon}, ""
}

// parseOptionalFloat parses an optional float query parameter.
func parseOptionalFloat(r *http.Request, name string) (*float64, string) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, ""
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, name + " must be a number"
	}
	return &v, ""
}
