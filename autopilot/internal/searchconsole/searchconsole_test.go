package searchconsole

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestQuery_ParsesRows(t *testing.T) {
	// WHAT: Query posts a date window and parses per-term rows.
	// WHY: These rows feed the keyword ledger; field mapping must hold.
	var gotPath, gotAuth string
	var gotReq queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rows": [
			{"keys": ["best crm software"], "clicks": 42, "impressions": 1800, "ctr": 0.023, "position": 8.4},
			{"keys": ["crm pricing"], "clicks": 3, "impressions": 210, "ctr": 0.014, "position": 14.1}
		]}`))
	}))
	defer srv.Close()

	c := New(StaticToken("tok-123"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	rows, err := c.Query(context.Background(), "sc-domain:example.com", 28)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if gotPath != "/sites/sc-domain:example.com/searchAnalytics/query" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("auth: got %q", gotAuth)
	}
	if len(gotReq.Dimensions) != 1 || gotReq.Dimensions[0] != "query" {
		t.Errorf("dimensions: got %v", gotReq.Dimensions)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	if rows[0].Term != "best crm software" {
		t.Errorf("term: got %q", rows[0].Term)
	}
	if rows[0].Clicks != 42 || rows[0].Impressions != 1800 {
		t.Errorf("metrics: got clicks=%d impressions=%d", rows[0].Clicks, rows[0].Impressions)
	}
	if rows[1].Position != 14.1 {
		t.Errorf("position: got %v", rows[1].Position)
	}
}

func TestQuery_SkipsKeylessRows(t *testing.T) {
	// WHAT: Rows without a query key are dropped.
	// WHY: An empty term would collide in the ledger's normalized index.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows": [
			{"keys": [], "clicks": 5},
			{"keys": ["real term"], "clicks": 1}
		]}`))
	}))
	defer srv.Close()

	c := New(StaticToken("t"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	rows, err := c.Query(context.Background(), "sc-domain:example.com", 7)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].Term != "real term" {
		t.Errorf("rows: got %v", rows)
	}
}

func TestQuery_HTTPError(t *testing.T) {
	// WHAT: Non-2xx responses return errors carrying the upstream body.
	// WHY: Auth and quota failures must be diagnosable from the ingest
	// log line alone.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
		w.Write([]byte(`{"error": {"message": "insufficient permissions"}}`))
	}))
	defer srv.Close()

	c := New(StaticToken("t"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := c.Query(context.Background(), "sc-domain:example.com", 7)
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "insufficient permissions") {
		t.Errorf("error should carry status and upstream body, got %q", err)
	}
}

func TestQuery_EmptyResponse(t *testing.T) {
	// WHAT: A response with no rows yields an empty slice, not an error.
	// WHY: New properties legitimately have no search data yet.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(StaticToken("t"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	rows, err := c.Query(context.Background(), "sc-domain:example.com", 7)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows: got %d, want 0", len(rows))
	}
}
