package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"PoolsAgent/internal/config"
	"PoolsAgent/internal/domain"
	"PoolsAgent/internal/ports"
)

// TavilyClient talks to the Tavily web-search API.
type TavilyClient struct {
	endpoint   string
	apiKey     string
	maxResults int
	http       *http.Client
}

var _ ports.Searcher = (*TavilyClient)(nil)

// NewTavilyClient creates a reusable HTTP client.
func NewTavilyClient(cfg config.TavilyConfig) *TavilyClient {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &TavilyClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Search runs one query and returns the scored results.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return nil, fmt.Errorf("tavily client misconfigured")
	}

	payload := map[string]any{
		"api_key":             c.apiKey,
		"query":               query,
		"max_results":         c.maxResults,
		"include_answer":      true,
		"include_raw_content": true,
	}

	var parsed struct {
		Results []struct {
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := postJSON(ctx, c.http, c.endpoint, payload, &parsed); err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, domain.SearchResult{URL: r.URL, Content: r.Content})
	}
	return results, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
