// Package research discovers keyword candidates a site does not rank for.
//
// It combines two pieces: seed extraction from the site's own pages
// (titles, headings, meta description) and a keyword-ideas API that
// expands seeds into candidate terms with monthly search volume and
// competition estimates.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	maxBodyBytes  = 10 * 1024 * 1024
	maxErrorBytes = 2048
)

// Idea is one candidate term with its market data. Competition is one of
// LOW, MEDIUM, HIGH, or empty when the provider does not report a band.
// CompetitionIndex is in [0, 100].
type Idea struct {
	Term             string  `json:"text"`
	SearchVolume     int64   `json:"avg_monthly_searches"`
	Competition      string  `json:"competition"`
	CompetitionIndex float64 `json:"competition_index"`
}

// Client calls a keyword-ideas API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limit   int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithLimit caps the number of ideas requested per call (default 100).
func WithLimit(n int) Option { return func(c *Client) { c.limit = n } }

// New creates a research client against the given provider endpoint.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		limit:   100,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ideasRequest struct {
	Seeds []string `json:"seeds"`
	Limit int      `json:"limit"`
}

type ideasResponse struct {
	Ideas []Idea `json:"ideas"`
}

// Ideas expands the seed terms into candidate keywords with market data.
func (c *Client) Ideas(ctx context.Context, seeds []string) ([]Idea, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("research: no seed terms")
	}

	body, err := json.Marshal(ideasRequest{Seeds: seeds, Limit: c.limit})
	if err != nil {
		return nil, fmt.Errorf("research: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/keyword-ideas", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("research: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("research: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, fmt.Errorf("research: http %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("research: read body: %w", err)
	}

	var parsed ideasResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("research: json decode: %w", err)
	}

	ideas := make([]Idea, 0, len(parsed.Ideas))
	for _, idea := range parsed.Ideas {
		if idea.Term == "" {
			continue
		}
		ideas = append(ideas, idea)
	}
	return ideas, nil
}
