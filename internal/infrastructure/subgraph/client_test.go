package subgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchPendingParsesPools(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != pendingPoolsQuery {
			t.Errorf("unexpected query:\n%s", req.Query)
		}

		w.Write([]byte(`{"data":{"pools":[
			{
				"id": "12",
				"question": "WILL IT HAPPEN?",
				"options": ["Yes", "No"],
				"betsCloseAt": "1767225600",
				"closureCriteria": "Official announcement",
				"closureInstructions": "Check the official site",
				"originalTruthSocialPostId": "p1"
			},
			{
				"id": "13",
				"question": "AGAIN?",
				"options": ["Yes", "No"],
				"betsCloseAt": 1767312000,
				"originalTruthSocialPostId": "p2"
			}
		]}}`))
	}))
	t.Cleanup(srv.Close)

	pools, err := NewClient(srv.URL).FetchPending(context.Background())
	if err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("got %d pools", len(pools))
	}

	first := pools[0]
	if first.ID != "12" || first.Question != "WILL IT HAPPEN?" || first.OriginalPostID != "p1" {
		t.Errorf("pool = %+v", first)
	}
	if first.BetsCloseAt != 1767225600 {
		t.Errorf("string timestamp parsed as %d", first.BetsCloseAt)
	}
	if pools[1].BetsCloseAt != 1767312000 {
		t.Errorf("numeric timestamp parsed as %d", pools[1].BetsCloseAt)
	}
}

func TestFetchPendingSurfacesGraphQLErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"indexing in progress"}]}`))
	}))
	t.Cleanup(srv.Close)

	if _, err := NewClient(srv.URL).FetchPending(context.Background()); err == nil {
		t.Fatal("expected error from GraphQL errors array")
	}
}

func TestFetchPendingRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("").FetchPending(context.Background()); err == nil {
		t.Fatal("expected error without endpoint")
	}
}
