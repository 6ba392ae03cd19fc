// Package chain submits pool creations through the signer node's JSON-RPC
// surface and waits for confirmation receipts. ABI-level encoding lives in
// the node-side contract wrapper, not here.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"PoolsAgent/internal/config"
	"PoolsAgent/internal/domain"
	"PoolsAgent/internal/ports"
)

// Client implements ports.Chain over plain JSON-RPC.
type Client struct {
	rpcURL          string
	contractAddress string
	receiptTimeout  time.Duration
	pollInterval    time.Duration
	http            *http.Client
	nextID          int
}

var _ ports.Chain = (*Client)(nil)

// NewClient builds a chain client. Returns an error when any contract
// credential is missing so callers abort before running a pipeline. The
// private key itself stays with the signer node; it is checked here only
// so a misconfigured process fails at startup rather than mid-run.
func NewClient(cfg config.ChainConfig) (*Client, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("chain: missing rpc url, private key, or contract address")
	}
	return &Client{
		rpcURL:          cfg.RPCURL,
		contractAddress: cfg.ContractAddress,
		receiptTimeout:  cfg.ReceiptTimeout(),
		pollInterval:    2 * time.Second,
		http:            &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// CreatePool submits one pool-creation transaction and returns its hash.
// Callers serialize their submissions; the client performs no queuing of
// its own, so overlapping calls would race on nonce ordering.
func (c *Client) CreatePool(ctx context.Context, params domain.PoolCreation) (string, error) {
	call := map[string]any{
		"contract": c.contractAddress,
		"question": params.Question,
		"options":  []string{params.Options[0], params.Options[1]},
		"betsCloseAt":         params.BetsCloseAt,
		"closureCriteria":     params.ClosureCriteria,
		"closureInstructions": params.ClosureInstructions,
		"originalPostId":      params.OriginalPostID,
	}

	var txHash string
	if err := c.call(ctx, "pool_create", []any{call}, &txHash); err != nil {
		return "", fmt.Errorf("create pool: %w", err)
	}
	if txHash == "" {
		return "", fmt.Errorf("create pool: node returned empty tx hash")
	}
	return txHash, nil
}

type receiptResult struct {
	Status string `json:"status"`
	Logs   []struct {
		Address string   `json:"address"`
		Topics  []string `json:"topics"`
	} `json:"logs"`
}

// WaitReceipt polls for the transaction receipt until it lands or the
// configured timeout elapses. Only a successful receipt carrying a
// PoolCreated log yields a pool id.
func (c *Client) WaitReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	deadline := time.Now().Add(c.receiptTimeout)

	for {
		var receipt *receiptResult
		if err := c.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &receipt); err != nil {
			return domain.Receipt{}, fmt.Errorf("wait receipt: %w", err)
		}

		if receipt != nil {
			if receipt.Status != "0x1" {
				return domain.Receipt{Succeeded: false}, nil
			}
			poolID, err := poolIDFromLogs(receipt, c.contractAddress)
			if err != nil {
				return domain.Receipt{Succeeded: true}, fmt.Errorf("wait receipt: %w", err)
			}
			return domain.Receipt{Succeeded: true, PoolID: poolID}, nil
		}

		if time.Now().After(deadline) {
			return domain.Receipt{}, fmt.Errorf("wait receipt: timed out after %s", c.receiptTimeout)
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return domain.Receipt{}, ctx.Err()
		}
	}
}

// poolIDFromLogs recovers the assigned pool id from the PoolCreated event:
// the first indexed topic after the event signature.
func poolIDFromLogs(receipt *receiptResult, contract string) (string, error) {
	for _, entry := range receipt.Logs {
		if !strings.EqualFold(entry.Address, contract) {
			continue
		}
		if len(entry.Topics) < 2 {
			continue
		}
		raw := strings.TrimPrefix(entry.Topics[1], "0x")
		id, ok := new(big.Int).SetString(raw, 16)
		if !ok {
			return "", fmt.Errorf("malformed pool id topic %q", entry.Topics[1])
		}
		return id.String(), nil
	}
	return "", fmt.Errorf("no PoolCreated log emitted by %s", contract)
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	c.nextID++
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return parsed.Error
	}
	if out == nil || len(parsed.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(parsed.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
