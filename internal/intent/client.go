package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to an external NLP service over HTTP. It implements Analyzer
// and also exposes summary generation for the enrichment job. A nil or
// unreachable service is expected operation: callers degrade gracefully.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a Client for the NLP service at baseURL. The HTTP client
// carries its own timeout as a hard upper bound; per-call deadlines still
// come from the caller's context.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Entities []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"entities"`
	Confidence float64 `json:"confidence"`
}

// Analyze sends the query text for entity extraction.
func (c *Client) Analyze(ctx context.Context, text string) (Analysis, error) {
	var out analyzeResponse
	if err := c.post(ctx, "/v1/analyze", analyzeRequest{Text: text}, &out); err != nil {
		return Analysis{}, err
	}
	res := Analysis{Confidence: out.Confidence}
	for _, e := range out.Entities {
		res.Entities = append(res.Entities, Entity{Text: e.Text, Type: e.Type})
	}
	return res, nil
}

type summarizeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize asks the service for a short summary of an article.
func (c *Client) Summarize(ctx context.Context, title, description string) (string, error) {
	var out summarizeResponse
	if err := c.post(ctx, "/v1/summarize", summarizeRequest{Title: title, Description: description}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return "", fmt.Errorf("empty summary response")
	}
	return strings.TrimSpace(out.Summary), nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("nlp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("nlp service %d: %s", resp.StatusCode, string(b))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
