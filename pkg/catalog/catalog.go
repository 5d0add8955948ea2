// Package catalog fetches and parses the remote content manifest.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mebx/contentsync/pkg/content"
)

// rawItem mirrors one manifest entry. Unknown fields are ignored; the
// legacy hash field is carried through when present.
type rawItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// Fetcher retrieves the content manifest from a configured endpoint.
type Fetcher struct {
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher for the given manifest endpoint.
func NewFetcher(endpoint string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   &http.Client{},
		endpoint: endpoint,
		logger:   logger,
	}
}

// Fetch downloads the manifest and returns the valid items in manifest
// order. Malformed entries are skipped with a warning; transport and
// schema failures abort the whole fetch.
func (f *Fetcher) Fetch(ctx context.Context, timeout time.Duration) ([]content.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, content.ClassifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: catalog returned %s", content.ErrInvalidResponse, resp.Status)
	}

	var raw []rawItem
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", content.ErrInvalidResponse, err)
	}

	items := make([]content.Item, 0, len(raw))
	for _, r := range raw {
		cat, err := content.ParseCategory(r.Type)
		if err != nil {
			f.logger.Warn("skipping catalog item", "name", r.Name, "error", err)
			continue
		}
		item := content.Item{Name: r.Name, Category: cat, URL: r.URL, Hash: r.Hash}
		if err := item.Validate(); err != nil {
			f.logger.Warn("skipping catalog item", "name", r.Name, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
