package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PoolsAgent/internal/config"
	"PoolsAgent/internal/ports"
)

// FluxClient submits and polls image-generation jobs on a bfl.ai-compatible
// API. Generation is asynchronous: Submit returns a job id, Poll reports
// Pending until the provider publishes a result URL or an error.
type FluxClient struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
}

var _ ports.ImageJobs = (*FluxClient)(nil)

// NewFluxClient builds a client from configuration.
func NewFluxClient(cfg config.FluxConfig) *FluxClient {
	return &FluxClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit starts a generation job and returns its id.
func (c *FluxClient) Submit(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("flux client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"prompt": prompt,
		"width":  1024,
		"height": 1024,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+c.model, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("flux error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("flux returned no job id")
	}
	return parsed.ID, nil
}

// Poll reports the current state of a job.
func (c *FluxClient) Poll(ctx context.Context, jobID string) (ports.ImageJobStatus, error) {
	u, err := url.Parse(c.endpoint + "/get_result")
	if err != nil {
		return ports.ImageJobStatus{}, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("id", jobID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return ports.ImageJobStatus{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-key", c.apiKey)
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.ImageJobStatus{}, fmt.Errorf("poll job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.ImageJobStatus{}, fmt.Errorf("poll job: unexpected status %s", resp.Status)
	}

	var parsed struct {
		Status string `json:"status"`
		Result struct {
			Sample string `json:"sample"`
		} `json:"result"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ports.ImageJobStatus{}, fmt.Errorf("decode response: %w", err)
	}

	switch parsed.Status {
	case "Ready":
		return ports.ImageJobStatus{URL: parsed.Result.Sample}, nil
	case "Error":
		msg := parsed.Error
		if msg == "" {
			msg = "unknown provider error"
		}
		return ports.ImageJobStatus{Err: msg}, nil
	default:
		return ports.ImageJobStatus{Pending: true}, nil
	}
}
