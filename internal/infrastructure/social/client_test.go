package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"PoolsAgent/internal/config"
	"PoolsAgent/internal/logging"
)

func TestFetchLatestParsesStatuses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/107780257626128497/statuses" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("exclude_replies"); got != "true" {
			t.Errorf("exclude_replies = %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("request carries no user agent")
		}

		w.Write([]byte(`[
			{
				"id": "p1",
				"content": "<p>Something BIG</p>",
				"url": "https://truthsocial.com/@acct/p1",
				"created_at": "2026-08-30T12:00:00Z",
				"account": {"username": "acct"}
			},
			{
				"id": "p2",
				"content": "plain",
				"created_at": "not-a-date",
				"account": {"username": "acct"}
			}
		]`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.SocialConfig{APIURL: srv.URL}, logging.Nop())
	posts, err := client.FetchLatest(context.Background(), "107780257626128497")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts", len(posts))
	}
	if posts[0].ID != "p1" || posts[0].Account != "acct" || posts[0].Content != "<p>Something BIG</p>" {
		t.Errorf("post = %+v", posts[0])
	}
	if posts[0].CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
	if !posts[1].CreatedAt.IsZero() {
		t.Error("malformed created_at should yield zero time")
	}
}

func TestFetchLatestReportsUpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.SocialConfig{APIURL: srv.URL}, logging.Nop())
	if _, err := client.FetchLatest(context.Background(), "1"); err == nil {
		t.Fatal("expected error from 403 response")
	}
}

func writeProxyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxies.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write proxy file: %v", err)
	}
	return path
}

func TestLoadProxies(t *testing.T) {
	t.Parallel()

	path := writeProxyFile(t, `[
		{"ip": "10.0.0.1", "port": "8080", "protocols": ["http"], "upTime": 95.5},
		{"ip": "10.0.0.2", "port": "1080", "protocols": ["socks5"], "upTime": 60}
	]`)

	proxies, err := LoadProxies(path)
	if err != nil {
		t.Fatalf("LoadProxies: %v", err)
	}
	if len(proxies) != 2 {
		t.Fatalf("got %d proxies", len(proxies))
	}
	if proxies[0].URL("http") != "http://10.0.0.1:8080" {
		t.Errorf("URL = %q", proxies[0].URL("http"))
	}

	if got, err := LoadProxies(""); err != nil || got != nil {
		t.Errorf("empty path: %v, %v", got, err)
	}
	if _, err := LoadProxies(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPickProxiesPrefersHighUptime(t *testing.T) {
	t.Parallel()

	var proxies []Proxy
	for i := 0; i < 6; i++ {
		proxies = append(proxies, Proxy{
			IP:        "10.0.0.1",
			Port:      "8080",
			Protocols: []string{"http"},
			UpTime:    90,
		})
	}
	proxies = append(proxies, Proxy{IP: "10.0.0.9", Port: "1", Protocols: []string{"http"}, UpTime: 55})

	picked := pickProxies(proxies, "http", 50, 3)
	if len(picked) != 3 {
		t.Fatalf("picked %d, want 3", len(picked))
	}
	for _, p := range picked {
		if p.UpTime < 70 {
			t.Errorf("low-uptime proxy chosen while enough high-uptime ones exist: %+v", p)
		}
	}
}

func TestPickProxiesFallsBackToFloor(t *testing.T) {
	t.Parallel()

	proxies := []Proxy{
		{IP: "10.0.0.1", Port: "1", Protocols: []string{"http"}, UpTime: 55},
		{IP: "10.0.0.2", Port: "2", Protocols: []string{"http"}, UpTime: 60},
		{IP: "10.0.0.3", Port: "3", Protocols: []string{"socks5"}, UpTime: 99},
		{IP: "10.0.0.4", Port: "4", Protocols: []string{"http"}, UpTime: 40},
	}

	picked := pickProxies(proxies, "http", 50, 5)
	if len(picked) != 2 {
		t.Fatalf("picked %d, want the two http proxies above the floor", len(picked))
	}
	for _, p := range picked {
		if p.UpTime < 50 {
			t.Errorf("proxy below floor chosen: %+v", p)
		}
	}

	if got := pickProxies(nil, "http", 50, 3); got != nil {
		t.Errorf("empty list picked %+v", got)
	}
}
