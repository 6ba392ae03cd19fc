package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PoolsAgent/internal/config"
)

func newServerClient(t *testing.T, handler http.HandlerFunc) *FluxClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFluxClient(config.FluxConfig{
		Endpoint: srv.URL,
		Model:    "flux-pro-1.1",
		APIKey:   "test-key",
	})
}

func TestSubmitPostsPromptToModelPath(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/flux-pro-1.1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-key"); got != "test-key" {
			t.Errorf("x-key = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["prompt"] != "a surreal scene" {
			t.Errorf("prompt = %v", payload["prompt"])
		}
		w.Write([]byte(`{"id":"job-1"}`))
	})

	id, err := client.Submit(context.Background(), "a surreal scene")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "job-1" {
		t.Errorf("id = %q", id)
	}
}

func TestSubmitRejectsEmptyJobID(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	})
	if _, err := client.Submit(context.Background(), "p"); err == nil {
		t.Fatal("expected error for missing job id")
	}
}

func TestPollStates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		reply   string
		pending bool
		url     string
		errMsg  string
	}{
		{"ready", `{"status":"Ready","result":{"sample":"https://img.example/1"}}`, false, "https://img.example/1", ""},
		{"pending", `{"status":"Pending"}`, true, "", ""},
		{"queued", `{"status":"Queued"}`, true, "", ""},
		{"failed", `{"status":"Error","error":"content moderated"}`, false, "", "content moderated"},
		{"failed without detail", `{"status":"Error"}`, false, "", "unknown provider error"},
	}
	for _, tc := range cases {
		client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/get_result" {
				t.Errorf("%s: path = %q", tc.name, r.URL.Path)
			}
			if got := r.URL.Query().Get("id"); got != "job-1" {
				t.Errorf("%s: id = %q", tc.name, got)
			}
			w.Write([]byte(tc.reply))
		})

		status, err := client.Poll(context.Background(), "job-1")
		if err != nil {
			t.Errorf("%s: Poll: %v", tc.name, err)
			continue
		}
		if status.Pending != tc.pending || status.URL != tc.url || status.Err != tc.errMsg {
			t.Errorf("%s: status = %+v", tc.name, status)
		}
	}
}
