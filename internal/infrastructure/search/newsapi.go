package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"PoolsAgent/internal/config"
	"PoolsAgent/internal/domain"
	"PoolsAgent/internal/ports"
)

// NewsClient talks to a NewsAPI-compatible endpoint for topical headlines.
type NewsClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Searcher = (*NewsClient)(nil)

// NewNewsClient creates a reusable HTTP client.
func NewNewsClient(cfg config.NewsConfig) *NewsClient {
	return &NewsClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns recent articles matching the query.
func (c *NewsClient) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return nil, fmt.Errorf("news client misconfigured")
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", "5")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news search: unexpected status %s", resp.Status)
	}

	var parsed struct {
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		content := a.Title
		if a.Description != "" {
			content += ": " + a.Description
		}
		results = append(results, domain.SearchResult{URL: a.URL, Content: content})
	}
	return results, nil
}
