package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"PoolsAgent/internal/config"
	"PoolsAgent/internal/domain"
)

const (
	maxAttempts  = 3
	statusLimit  = 20
	fetchTimeout = 30 * time.Second
)

var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Client fetches account statuses through the public API, rotating through
// a proxy list to avoid per-address rate limits.
type Client struct {
	cfg     config.SocialConfig
	proxies []Proxy
	logger  *slog.Logger
}

// NewClient loads the proxy rotation list and returns a ready fetcher.
// An unreadable proxy file is logged and degrades to direct requests.
func NewClient(cfg config.SocialConfig, logger *slog.Logger) *Client {
	proxies, err := LoadProxies(cfg.ProxyFile)
	if err != nil {
		logger.Warn("proxy list unavailable, fetching directly", "error", err)
	}
	return &Client{cfg: cfg, proxies: proxies, logger: logger}
}

type status struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Created string `json:"created_at"`
	Account struct {
		Username string `json:"username"`
	} `json:"account"`
}

// FetchLatest returns the newest statuses for the account, most recent first.
func (c *Client) FetchLatest(ctx context.Context, accountID string) ([]domain.Post, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/statuses?limit=%d&exclude_replies=true",
		c.cfg.APIURL, accountID, statusLimit)

	var lastErr error
	for attempt, client := range c.attemptClients() {
		body, err := c.fetch(ctx, client, endpoint)
		if err != nil {
			lastErr = err
			c.logger.Debug("status fetch attempt failed", "attempt", attempt+1, "error", err)
			continue
		}

		var statuses []status
		if err := json.Unmarshal(body, &statuses); err != nil {
			lastErr = fmt.Errorf("parse statuses: %w", err)
			continue
		}
		return toPosts(statuses), nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable transport")
	}
	return nil, fmt.Errorf("fetch statuses for %s: %w", accountID, lastErr)
}

// attemptClients builds one HTTP client per attempt. Each picked proxy gets
// its own transport; a direct client is always appended as the last resort.
func (c *Client) attemptClients() []*http.Client {
	minUptime := float64(c.cfg.MinUptime)
	picked := pickProxies(c.proxies, c.cfg.ProxyProtocol, minUptime, maxAttempts-1)

	var clients []*http.Client
	for _, p := range picked {
		proxyURL, err := url.Parse(p.URL(c.cfg.ProxyProtocol))
		if err != nil {
			continue
		}
		clients = append(clients, &http.Client{
			Timeout:   fetchTimeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		})
	}
	return append(clients, &http.Client{Timeout: fetchTimeout})
}

func (c *Client) fetch(ctx context.Context, client *http.Client, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgents[time.Now().UnixNano()%int64(len(browserUserAgents))])
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://truthsocial.com/")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func toPosts(statuses []status) []domain.Post {
	posts := make([]domain.Post, 0, len(statuses))
	for _, s := range statuses {
		created, err := time.Parse(time.RFC3339, s.Created)
		if err != nil {
			created = time.Time{}
		}
		posts = append(posts, domain.Post{
			ID:        s.ID,
			Account:   s.Account.Username,
			Content:   s.Content,
			URL:       s.URL,
			CreatedAt: created,
		})
	}
	return posts
}
