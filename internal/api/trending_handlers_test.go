package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeTrending(t *testing.T, rec *httptest.ResponseRecorder) TrendingResponse {
	t.Helper()
	var out TrendingResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode trending response: %v", err)
	}
	return out
}

func TestTrendingEndpoint(t *testing.T) {
	mux := testRouter(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/v1/news/trending?lat=19.076&lon=72.877&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	resp := decodeTrending(t, rec)
	if len(resp.Articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(resp.Articles))
	}
	if resp.ClusterKey == "" {
		t.Error("cluster key missing")
	}
	if resp.Cached {
		t.Error("first lookup should not be cached")
	}
	for _, a := range resp.Articles {
		if a.TrendingScore < 0 || a.TrendingScore > 100 {
			t.Errorf("score %v out of [0,100]", a.TrendingScore)
		}
	}
}

func TestTrendingEndpointSecondLookupCached(t *testing.T) {
	mux := testRouter(t)

	doRequest(t, mux, http.MethodGet, "/api/v1/news/trending?lat=19.076&lon=72.877", "")
	rec := doRequest(t, mux, http.MethodGet, "/api/v1/news/trending?lat=19.076&lon=72.877", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp := decodeTrending(t, rec); !resp.Cached {
		t.Error("second lookup should be cached")
	}
}

func TestTrendingEndpointForceRefresh(t *testing.T) {
	mux := testRouter(t)

	doRequest(t, mux, http.MethodGet, "/api/v1/news/trending?lat=19.076&lon=72.877", "")
	rec := doRequest(t, mux, http.MethodGet, "/api/v1/news/trending?lat=19.076&lon=72.877&force_refresh=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp := decodeTrending(t, rec); resp.Cached {
		t.Error("force_refresh lookup should recompute")
	}
}

func TestTrendingEndpointRequiresCoordinates(t *testing.T) {
	mux := testRouter(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/v1/news/trending", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeError(t, rec).Error.Code; got != ErrCodeValidation {
		t.Errorf("error code = %q, want %q", got, ErrCodeValidation)
	}
}
