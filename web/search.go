// Package web talks to the outside web: search providers, page scraping and
// the fetch-and-convert pipeline that fills the document store.
package web

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gatherinfo/metrics"
)

var ErrEmptyQuery = errors.New("query must be a non-empty string")

// SearchResult is one hit, in provider ranking order. Any field but Title may
// be empty.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Icon    string `json:"icon,omitempty"`
}

// Provider is a raw search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Searcher validates queries and normalizes provider output.
type Searcher struct {
	provider   Provider
	maxResults int
}

// NewSearcher caps results at maxResults when it is positive.
func NewSearcher(p Provider, maxResults int) *Searcher {
	return &Searcher{provider: p, maxResults: maxResults}
}

// Search rejects blank queries before any I/O. Results are not deduplicated.
func (s *Searcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}

	results, err := s.provider.Search(ctx, q)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(s.provider.Name(), "error").Inc()
		return nil, fmt.Errorf("%s search: %w", s.provider.Name(), err)
	}
	metrics.SearchesTotal.WithLabelValues(s.provider.Name(), "ok").Inc()

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		r.Title = strings.TrimSpace(r.Title)
		if r.Title == "" {
			r.Title = q
		}
		r.URL = strings.TrimSpace(r.URL)
		out = append(out, r)
		if s.maxResults > 0 && len(out) >= s.maxResults {
			break
		}
	}
	return out, nil
}
