package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PoolsAgent/internal/config"
	"PoolsAgent/internal/domain"
)

const contractAddr = "0xAbCd000000000000000000000000000000000001"

func newServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.ChainConfig{
		RPCURL:                srv.URL,
		PrivateKey:            "0xkey",
		ContractAddress:       contractAddr,
		ReceiptTimeoutSeconds: 1,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.pollInterval = 10 * time.Millisecond
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(config.ChainConfig{RPCURL: "http://x"}); err == nil {
		t.Fatal("expected error without contract credentials")
	}
}

func TestCreatePoolReturnsTxHash(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "pool_create" {
			t.Errorf("method = %q", req.Method)
		}
		call := req.Params[0].(map[string]any)
		if call["question"] != "WILL IT HAPPEN?" {
			t.Errorf("question = %v", call["question"])
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0xdeadbeef"}`))
	})

	hash, err := client.CreatePool(context.Background(), domain.PoolCreation{
		Question:    "WILL IT HAPPEN?",
		Options:     [2]string{"Yes", "No"},
		BetsCloseAt: 1767225600,
	})
	if err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	if hash != "0xdeadbeef" {
		t.Errorf("hash = %q", hash)
	}
}

func TestCreatePoolSurfacesRPCErrors(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"nonce too low"}}`))
	})

	if _, err := client.CreatePool(context.Background(), domain.PoolCreation{}); err == nil {
		t.Fatal("expected rpc error")
	}
}

func TestWaitReceiptPollsUntilMined(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newServerClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{
			"status": "0x1",
			"logs": [
				{"address": "0x0000000000000000000000000000000000000002", "topics": ["0xsig", "0x1"]},
				{"address": "` + contractAddr + `", "topics": [
					"0xsig",
					"0x000000000000000000000000000000000000000000000000000000000000002a"
				]}
			]
		}}`))
	})

	receipt, err := client.WaitReceipt(context.Background(), "0xdeadbeef")
	if err != nil {
		t.Fatalf("WaitReceipt: %v", err)
	}
	if !receipt.Succeeded || receipt.PoolID != "42" {
		t.Errorf("receipt = %+v", receipt)
	}
	if calls.Load() < 3 {
		t.Errorf("polled %d times, want at least 3", calls.Load())
	}
}

func TestWaitReceiptRevertedTransaction(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"status":"0x0","logs":[]}}`))
	})

	receipt, err := client.WaitReceipt(context.Background(), "0xdeadbeef")
	if err != nil {
		t.Fatalf("WaitReceipt: %v", err)
	}
	if receipt.Succeeded {
		t.Errorf("reverted tx reported as succeeded: %+v", receipt)
	}
}

func TestWaitReceiptTimesOut(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	})
	client.receiptTimeout = 30 * time.Millisecond

	if _, err := client.WaitReceipt(context.Background(), "0xdeadbeef"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestPoolIDFromLogsIgnoresForeignContracts(t *testing.T) {
	t.Parallel()

	receipt := &receiptResult{Status: "0x1"}
	receipt.Logs = []struct {
		Address string   `json:"address"`
		Topics  []string `json:"topics"`
	}{
		{Address: "0x0000000000000000000000000000000000000009", Topics: []string{"0xsig", "0x7"}},
	}

	if _, err := poolIDFromLogs(receipt, contractAddr); err == nil {
		t.Fatal("expected error when no log matches the contract")
	}
}
