package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"PoolsAgent/internal/domain"
	"PoolsAgent/internal/ports"
)

const pendingPoolsQuery = `query fetchPendingPools {
  pools(where: {status: PENDING}) {
    id
    status
    question
    options
    betsCloseAt
    closureCriteria
    closureInstructions
    originalTruthSocialPostId
  }
}`

// Client fetches open pools from the contract's indexing subgraph.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ ports.PoolSource = (*Client)(nil)

// NewClient wires the GraphQL endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchPending returns every pool still awaiting grading.
func (c *Client) FetchPending(ctx context.Context) ([]domain.Pool, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("subgraph client misconfigured")
	}

	body, err := json.Marshal(map[string]string{"query": pendingPoolsQuery})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pending pools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch pending pools: unexpected status %s", resp.Status)
	}

	var parsed struct {
		Data struct {
			Pools []struct {
				ID                        string          `json:"id"`
				Question                  string          `json:"question"`
				Options                   []string        `json:"options"`
				BetsCloseAt               json.RawMessage `json:"betsCloseAt"`
				ClosureCriteria           string          `json:"closureCriteria"`
				ClosureInstructions       string          `json:"closureInstructions"`
				OriginalTruthSocialPostID string          `json:"originalTruthSocialPostId"`
			} `json:"pools"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("fetch pending pools: %s", parsed.Errors[0].Message)
	}

	pools := make([]domain.Pool, 0, len(parsed.Data.Pools))
	for _, p := range parsed.Data.Pools {
		pools = append(pools, domain.Pool{
			ID:                  p.ID,
			Question:            p.Question,
			Options:             p.Options,
			BetsCloseAt:         unixSeconds(p.BetsCloseAt),
			ClosureCriteria:     p.ClosureCriteria,
			ClosureInstructions: p.ClosureInstructions,
			OriginalPostID:      p.OriginalTruthSocialPostID,
		})
	}
	return pools, nil
}

// unixSeconds tolerates both numeric and string-encoded timestamps, which
// subgraph deployments disagree on.
func unixSeconds(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
