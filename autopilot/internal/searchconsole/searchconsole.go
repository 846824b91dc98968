// Package searchconsole queries Google Search Console for per-query
// performance rows.
//
// The client speaks the searchanalytics query endpoint: a POST with a date
// window and the query dimension, returning clicks, impressions, CTR, and
// average position per search term. Authentication is delegated to a
// TokenSource so the caller decides how OAuth tokens are minted and cached.
package searchconsole

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
)

// DefaultBaseURL is the production Search Console API endpoint.
const DefaultBaseURL = "https://searchconsole.googleapis.com/webmasters/v3"

const (
	maxBodyBytes  = 10 * 1024 * 1024
	maxErrorBytes = 2048
)

// TokenSource mints a bearer token for one request. Implementations
// typically wrap an OAuth refresh flow with caching.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token, useful in tests
// and for short-lived CLI invocations.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) { return string(t), nil }

// Row is one search query's aggregated performance over the window.
// CTR is a fraction in [0, 1], Position the average ranking (1 = top).
type Row struct {
	Term        string
	Clicks      int64
	Impressions int64
	CTR         float64
	Position    float64
}

// Client calls the Search Console API for one or more properties.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	rowCap  int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used in tests.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithRowLimit caps the number of rows requested per query (default 500).
func WithRowLimit(n int) Option { return func(c *Client) { c.rowCap = n } }

// New creates a Search Console client.
func New(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		rowCap:  500,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int      `json:"rowLimit"`
}

type queryResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
}

// Query fetches per-term performance for the property over the trailing
// lookbackDays, ending yesterday (Search Console data lags by about a day).
func (c *Client) Query(ctx context.Context, property string, lookbackDays int) ([]Row, error) {
	if lookbackDays <= 0 {
		lookbackDays = 28
	}
	end := time.Now().UTC().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -lookbackDays)

	body, err := json.Marshal(queryRequest{
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Dimensions: []string{"query"},
		RowLimit:   c.rowCap,
	})
	if err != nil {
		return nil, fmt.Errorf("searchconsole: marshal request: %w", err)
	}

	endpoint := c.baseURL + "/sites/" + url.PathEscape(property) + "/searchAnalytics/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("searchconsole: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("searchconsole: token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searchconsole: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, fmt.Errorf("searchconsole: http %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("searchconsole: read body: %w", err)
	}

	var parsed queryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("searchconsole: json decode: %w", err)
	}

	rows := make([]Row, 0, len(parsed.Rows))
	for _, r := range parsed.Rows {
		if len(r.Keys) == 0 || r.Keys[0] == "" {
			continue
		}
		rows = append(rows, Row{
			Term:        r.Keys[0],
			Clicks:      int64(r.Clicks),
			Impressions: int64(r.Impressions),
			CTR:         r.CTR,
			Position:    r.Position,
		})
	}
	return rows, nil
}
