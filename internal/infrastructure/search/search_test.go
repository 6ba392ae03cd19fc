package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PoolsAgent/internal/config"
)

func TestTavilySearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["api_key"] != "tavily-key" || payload["query"] != "election results" {
			t.Errorf("payload = %v", payload)
		}
		if payload["max_results"] != float64(3) {
			t.Errorf("max_results = %v", payload["max_results"])
		}

		w.Write([]byte(`{"results":[
			{"url":"https://a.example","content":"first"},
			{"url":"https://b.example","content":"second"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewTavilyClient(config.TavilyConfig{Endpoint: srv.URL, APIKey: "tavily-key", MaxResults: 3})
	results, err := client.Search(context.Background(), "election results")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].URL != "https://a.example" || results[1].Content != "second" {
		t.Errorf("results = %+v", results)
	}
}

func TestTavilyRequiresAPIKey(t *testing.T) {
	t.Parallel()

	client := NewTavilyClient(config.TavilyConfig{Endpoint: "http://example.invalid"})
	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestNewsSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "news-key" {
			t.Errorf("X-Api-Key = %q", got)
		}
		q := r.URL.Query()
		if q.Get("q") != "election results" || q.Get("sortBy") != "publishedAt" || q.Get("pageSize") != "5" {
			t.Errorf("query = %v", q)
		}

		w.Write([]byte(`{"articles":[
			{"title":"Results are in","description":"Full count published","url":"https://n.example/1"},
			{"title":"Headline only","url":"https://n.example/2"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewNewsClient(config.NewsConfig{Endpoint: srv.URL, APIKey: "news-key"})
	results, err := client.Search(context.Background(), "election results")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Content != "Results are in: Full count published" {
		t.Errorf("content = %q", results[0].Content)
	}
	if results[1].Content != "Headline only" {
		t.Errorf("content = %q", results[1].Content)
	}
}

func TestNewsSearchRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client := NewNewsClient(config.NewsConfig{Endpoint: srv.URL, APIKey: "news-key"})
	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error from 429 response")
	}
}
