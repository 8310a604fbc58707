package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gatherinfo/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls   int
	results []SearchResult
	err     error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(ctx context.Context, query string) ([]SearchResult, error) {
	p.calls++
	return p.results, p.err
}

func TestSearchRejectsBlankQueriesWithoutIO(t *testing.T) {
	p := &stubProvider{}
	s := NewSearcher(p, 0)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := s.Search(context.Background(), q)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
	assert.Zero(t, p.calls)
}

func TestSearchNormalizesResults(t *testing.T) {
	p := &stubProvider{results: []SearchResult{
		{Title: "Paris", URL: "https://en.wikipedia.org/wiki/Paris", Snippet: "capital"},
		{URL: " https://example.com/a "},
		{Title: "  "},
		{Title: "fourth"},
	}}
	s := NewSearcher(p, 3)

	got, err := s.Search(context.Background(), "capital of France")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Paris", got[0].Title)
	assert.Equal(t, "capital of France", got[1].Title)
	assert.Equal(t, "https://example.com/a", got[1].URL)
	assert.Equal(t, "capital of France", got[2].Title)
	assert.Empty(t, got[2].URL)
}

func TestSearchReportsProviderErrors(t *testing.T) {
	s := NewSearcher(&stubProvider{err: errors.New("HTTP error: 502")}, 0)
	_, err := s.Search(context.Background(), "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error: 502")
}

const instantBody = `{
  "Heading": "Paris",
  "AbstractText": "Paris is the capital and largest city of France.",
  "AbstractURL": "https://en.wikipedia.org/wiki/Paris",
  "Image": "/i/paris.jpg",
  "Results": [
    {"Text": "Official site", "FirstURL": "https://www.paris.fr/"}
  ],
  "RelatedTopics": [
    {"Text": "Paris Metro", "FirstURL": "https://duckduckgo.com/Paris_Metro", "Icon": {"URL": "/i/metro.png"}},
    {"Name": "Places", "Topics": [
      {"Text": "Louvre", "FirstURL": "https://duckduckgo.com/Louvre"},
      {"FirstURL": "https://duckduckgo.com/Eiffel_Tower"}
    ]},
    {"Name": "Named only"}
  ]
}`

func TestInstantProvider(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "paris", q.Get("q"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("no_html"))
		assert.Equal(t, "1", q.Get("skip_disambig"))
		w.Header().Set("Content-Type", "application/x-javascript")
		w.Write([]byte(instantBody))
	}))
	defer srv.Close()

	s := NewSearcher(NewInstantProvider(InstantConfig{Endpoint: srv.URL + "/"}), 0)
	got, err := s.Search(context.Background(), "paris")
	require.NoError(t, err)

	want := []SearchResult{
		{Title: "Paris", URL: "https://en.wikipedia.org/wiki/Paris", Snippet: "Paris is the capital and largest city of France.", Icon: "https://duckduckgo.com/i/paris.jpg"},
		{Title: "Official site", URL: "https://www.paris.fr/", Snippet: "Official site"},
		{Title: "Paris Metro", URL: "https://duckduckgo.com/Paris_Metro", Snippet: "Paris Metro", Icon: "https://duckduckgo.com/i/metro.png"},
		{Title: "Louvre", URL: "https://duckduckgo.com/Louvre", Snippet: "Louvre"},
		{Title: "paris", URL: "https://duckduckgo.com/Eiffel_Tower"},
		{Title: "Named only"},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestInstantProviderUsesJSONCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(instantBody))
	}))
	defer srv.Close()

	cache := store.NewJSONCache(store.NewFileStore(t.TempDir()))
	p := NewInstantProvider(InstantConfig{Endpoint: srv.URL, Cache: cache})

	for i := 0; i < 3; i++ {
		got, err := p.Search(context.Background(), "paris")
		require.NoError(t, err)
		assert.Len(t, got, 6)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestInstantProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewInstantProvider(InstantConfig{Endpoint: srv.URL}).Search(context.Background(), "x")
	assert.EqualError(t, err, "HTTP error: 503")
}

const liteBody = `<html><body><table>
<tr><td>1.</td><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc" class='result-link'>Documentation - The Go  Programming Language</a></td></tr>
<tr><td></td><td class='result-snippet'>The Go programming language is an open source project.</td></tr>
<tr><td>2.</td><td><a href="https://pkg.go.dev/" class="result-link">Go Packages</a></td></tr>
<tr><td></td><td class="result-snippet">Discover packages.</td></tr>
<tr><td>3.</td><td><a class="result-link">No link</a></td></tr>
</table></body></html>`

func TestLiteProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang docs", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(liteBody))
	}))
	defer srv.Close()

	got, err := NewLiteProvider(LiteConfig{Endpoint: srv.URL}).Search(context.Background(), "golang docs")
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{
		{Title: "Documentation - The Go Programming Language", URL: "https://go.dev/doc/", Snippet: "The Go programming language is an open source project."},
		{Title: "Go Packages", URL: "https://pkg.go.dev/", Snippet: "Discover packages."},
	}, got)
}

func TestCleanDuckDuckGoURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a b", cleanDuckDuckGoURL("//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa%20b&rut=1"))
	assert.Equal(t, "https://example.com/", cleanDuckDuckGoURL("https://example.com/"))
	assert.Equal(t, "https://duckduckgo.com/x", cleanDuckDuckGoURL("//duckduckgo.com/x"))
}
