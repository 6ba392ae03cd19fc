package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"PoolsAgent/internal/config"
	"PoolsAgent/internal/ports"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient implements ports.Generator backed by the Anthropic
// messages API.
type AnthropicClient struct {
	endpoint   string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
}

var _ ports.Generator = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration using the given
// model name (the config carries both a small and a large model).
func NewAnthropicClient(cfg config.AnthropicConfig, model string) *AnthropicClient {
	return &AnthropicClient{
		endpoint:  cfg.Endpoint,
		model:     model,
		apiKey:    cfg.APIKey,
		maxTokens: 1024,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends one system+user exchange and returns the text reply.
func (c *AnthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("anthropic client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("anthropic client misconfigured")
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal anthropic payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("anthropic error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// CompleteJSON runs Complete and normalizes the reply into out. The parse
// happens once here, at the boundary, so callers never duck-type raw model
// text against expected shapes.
func (c *AnthropicClient) CompleteJSON(ctx context.Context, system, user string, out any) error {
	text, err := c.Complete(ctx, system, user)
	if err != nil {
		return err
	}
	return DecodeStructured(text, out)
}

// DecodeStructured unmarshals a model reply that may arrive as bare JSON,
// fenced JSON, or JSON embedded in prose.
func DecodeStructured(text string, out any) error {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if start := strings.IndexAny(cleaned, "{["); start > 0 {
		cleaned = cleaned[start:]
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	return nil
}
