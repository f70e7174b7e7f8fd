package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestQueryEndpointCategoryFallback(t *testing.T) {
	mux := testRouter(t)

	body := `{"query":"Show me technology news from Mumbai"}`
	rec := doRequest(t, mux, http.MethodPost, "/api/v1/news/query", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp QueryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// With no NLP service configured, the local heuristic takes over.
	if resp.Intent != "category" {
		t.Errorf("intent = %q, want category", resp.Intent)
	}
	if resp.Strategy != "category" {
		t.Errorf("strategy = %q, want category", resp.Strategy)
	}
	if resp.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", resp.Confidence)
	}
	if resp.Source != "fallback" {
		t.Errorf("resolution_source = %q, want fallback", resp.Source)
	}
	if len(resp.Entities) != 2 || resp.Entities[0] != "technology" || resp.Entities[1] != "Mumbai" {
		t.Errorf("entities = %v, want [technology Mumbai]", resp.Entities)
	}
	if len(resp.Articles) != 1 || resp.Articles[0].ID != "a1" {
		t.Errorf("articles = %+v, want just a1", resp.Articles)
	}
}

func TestQueryEndpointTrendingPath(t *testing.T) {
	mux := testRouter(t)

	body := `{"query":"trending news","latitude":19.076,"longitude":72.877}`
	rec := doRequest(t, mux, http.MethodPost, "/api/v1/news/query", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp QueryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Intent != "trending" {
		t.Errorf("intent = %q, want trending", resp.Intent)
	}
	if resp.Trending == nil {
		t.Fatal("trending result missing")
	}
	if resp.Trending.ClusterKey == "" {
		t.Error("cluster key missing")
	}
	if len(resp.Articles) != 0 {
		t.Error("articles should be omitted on the trending path")
	}
}

func TestQueryEndpointValidation(t *testing.T) {
	mux := testRouter(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{“query”`, http.StatusBadRequest},
		{"empty query", `{"query":"  "}`, http.StatusBadRequest},
		{"limit too high", `{"query":"news","limit":51}`, http.StatusBadRequest},
		{"latitude out of range", `{"query":"news","latitude":91,"longitude":0}`, http.StatusBadRequest},
		{"longitude out of range", `{"query":"news","latitude":0,"longitude":181}`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, mux, http.MethodPost, "/api/v1/news/query", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}
