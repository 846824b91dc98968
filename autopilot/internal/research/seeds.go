package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxSeeds = 10

// ExtractSeeds pulls seed phrases out of an HTML page: the title, the
// meta description, and the top-level headings. Seeds are deduplicated
// case-insensitively, capped at ten, in document order.
func ExtractSeeds(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("research: parse html: %w", err)
	}

	var seeds []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" || len(s) > 120 || len(seeds) >= maxSeeds {
			return
		}
		key := strings.ToLower(s)
		if seen[key] {
			return
		}
		seen[key] = true
		seeds = append(seeds, s)
	}

	add(doc.Find("title").First().Text())
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		add(desc)
	}
	doc.Find("h1, h2").Each(func(_ int, sel *goquery.Selection) {
		add(sel.Text())
	})

	return seeds, nil
}

// FetchSeeds downloads a site page and extracts seed phrases from it.
func FetchSeeds(ctx context.Context, client *http.Client, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("research: new request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("research: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("research: fetch %s: http %d", pageURL, resp.StatusCode)
	}

	return ExtractSeeds(io.LimitReader(resp.Body, maxBodyBytes))
}
