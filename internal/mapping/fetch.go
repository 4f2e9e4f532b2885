package mapping

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetch downloads the live mapping of index from the search engine at
// endpoint and returns the raw JSON document.
func Fetch(ctx context.Context, endpoint, index string) ([]byte, error) {
	if index == "" {
		return nil, fmt.Errorf("missing index name")
	}

	u := strings.TrimRight(endpoint, "/") + "/" + url.PathEscape(index) + "/_mapping"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fieldmap/0.1.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search engine returned %d for %s: %s", resp.StatusCode, index, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading mapping response: %w", err)
	}
	return data, nil
}
