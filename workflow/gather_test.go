package workflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gatherinfo/config"
	"gatherinfo/llm"
	"gatherinfo/llm/convert"
	"gatherinfo/llm/retriever"
	"gatherinfo/logs"
	"gatherinfo/store"
	"gatherinfo/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchFunc func(ctx context.Context, query string) ([]web.SearchResult, error)

func (f searchFunc) Search(ctx context.Context, query string) ([]web.SearchResult, error) {
	return f(ctx, query)
}

type downloadFunc func(ctx context.Context, rawURL string, force bool, sink logs.Sink) (web.Saved, error)

func (f downloadFunc) Download(ctx context.Context, rawURL string, force bool, sink logs.Sink) (web.Saved, error) {
	return f(ctx, rawURL, force, sink)
}

type retrieveFunc func(ctx context.Context, query string, opts retriever.Options, sink logs.Sink) ([]retriever.Candidate, retriever.Outcome, error)

func (f retrieveFunc) Retrieve(ctx context.Context, query string, opts retriever.Options, sink logs.Sink) ([]retriever.Candidate, retriever.Outcome, error) {
	return f(ctx, query, opts, sink)
}

func results(urls ...string) searchFunc {
	return func(ctx context.Context, query string) ([]web.SearchResult, error) {
		out := make([]web.SearchResult, len(urls))
		for i, u := range urls {
			out[i] = web.SearchResult{Title: "t" + u, URL: u}
		}
		return out, nil
	}
}

func noRanking(ctx context.Context, query string, opts retriever.Options, sink logs.Sink) ([]retriever.Candidate, retriever.Outcome, error) {
	return nil, retriever.NoDocuments, nil
}

type recordingCompleter struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (c *recordingCompleter) Complete(ctx context.Context, prompt string, opts ...llm.CallOption) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	return c.answer, c.err
}

func (c *recordingCompleter) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

func TestGatherFanOutIsolatesFailures(t *testing.T) {
	docs := store.NewFileStore(t.TempDir())
	urls := []string{"https://a.example/1", "https://b.example/2", "https://c.example/3"}

	// every download waits for the other two, so a sequential fan-out times out
	var (
		mu      sync.Mutex
		started int
		all     = make(chan struct{})
	)
	dl := downloadFunc(func(ctx context.Context, u string, force bool, sink logs.Sink) (web.Saved, error) {
		mu.Lock()
		started++
		if started == len(urls) {
			close(all)
		}
		mu.Unlock()
		select {
		case <-all:
		case <-time.After(2 * time.Second):
			return web.Saved{}, errors.New("downloads did not run concurrently")
		}
		if u == urls[1] {
			return web.Saved{}, errors.New("HTTP error: 500")
		}
		key := store.DocKey(u)
		return web.Saved{URL: u, Key: key, Path: docs.Location(key)}, nil
	})

	c := &recordingCompleter{answer: "done"}
	g := NewGatherer(results(urls...), dl, retrieveFunc(noRanking), c, docs, config.WorkflowConfig{MaxDocsToDownload: 3})

	res, err := g.Gather(context.Background(), "query", Options{}, nil)
	require.NoError(t, err)
	require.Len(t, res.Downloads, 3)

	assert.Equal(t, urls[0], res.Downloads[0].URL)
	assert.NotEmpty(t, res.Downloads[0].Path)
	assert.Empty(t, res.Downloads[0].Error)

	assert.Equal(t, urls[1], res.Downloads[1].URL)
	assert.Equal(t, "HTTP error: 500", res.Downloads[1].Error)
	assert.Empty(t, res.Downloads[1].Path)

	assert.Equal(t, urls[2], res.Downloads[2].URL)
	assert.NotEmpty(t, res.Downloads[2].Path)

	assert.Contains(t, c.last(), "- https://b.example/2 -> HTTP error: 500")
}

const parisHTML = `<html><head><title>Paris</title></head><body>
<nav>Main | Contents | Random</nav>
<h1>Paris</h1>
<p>Paris is the capital and largest city of France.</p>
</body></html>`

func TestGatherEndToEnd(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(parisHTML))
	}))
	defer srv.Close()
	parisURL := srv.URL + "/wiki/Paris"

	docs := store.NewFileStore(t.TempDir())
	c := &recordingCompleter{answer: "Paris is the capital of France."}
	search := searchFunc(func(ctx context.Context, query string) ([]web.SearchResult, error) {
		return []web.SearchResult{{Title: "Paris", URL: parisURL, Snippet: "..."}}, nil
	})
	downloader := web.NewDownloader(web.NewScraper(web.ScraperConfig{}), convert.Heuristic{}, docs)
	g := NewGatherer(search, downloader, retriever.New(docs, c), c, docs, config.WorkflowConfig{})

	rec := &logs.Recorder{}
	res, err := g.Gather(context.Background(), "capital of France", Options{}, rec)
	require.NoError(t, err)

	assert.Equal(t, "capital of France", res.Query)
	assert.Equal(t, "Paris is the capital of France.", res.Answer)
	require.Len(t, res.Downloads, 1)
	assert.False(t, res.Downloads[0].Skipped)
	assert.Equal(t, docs.Location(store.DocKey(parisURL)), res.Downloads[0].Path)
	require.NotEmpty(t, res.Retrieved)
	assert.Equal(t, store.DocKey(parisURL), res.Retrieved[0].Filename)
	require.Len(t, res.SearchResults, 1)

	prompt := c.last()
	assert.True(t, strings.HasPrefix(prompt, "User query: capital of France\n---\n"))
	assert.Contains(t, prompt, "== "+store.DocKey(parisURL)+" (score: ")
	assert.Contains(t, prompt, "Paris is the capital and largest city of France.")
	assert.True(t, strings.HasSuffix(prompt, "Provide short citations."))

	msgs := rec.Messages()
	assert.Equal(t, "gatherInfo:start", msgs[0])
	assert.Equal(t, "gatherInfo:success", msgs[len(msgs)-1])
	for _, m := range []string{"gatherInfo:searchCompleted", "gatherInfo:urlsToDownload", "gatherInfo:retrievalCompleted"} {
		assert.Contains(t, msgs, m)
	}

	// a second run reuses the stored page
	res, err = g.Gather(context.Background(), "capital of France", Options{}, nil)
	require.NoError(t, err)
	assert.True(t, res.Downloads[0].Skipped)
	assert.Equal(t, int32(1), hits.Load())

	_, err = g.Gather(context.Background(), "capital of France", Options{Force: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGatherBoostsFreshDownloads(t *testing.T) {
	docs := store.NewFileStore(t.TempDir())
	ctx := context.Background()
	fresh, cached := "https://fresh.example/", "https://cached.example/"
	require.NoError(t, docs.Write(ctx, store.DocKey(fresh), []byte("fresh content")))
	require.NoError(t, docs.Write(ctx, store.DocKey(cached), []byte("cached content")))
	require.NoError(t, docs.Write(ctx, "old.md", []byte("old content")))

	dl := downloadFunc(func(ctx context.Context, u string, force bool, sink logs.Sink) (web.Saved, error) {
		key := store.DocKey(u)
		return web.Saved{URL: u, Key: key, Path: docs.Location(key), Skipped: u == cached}, nil
	})
	rank := retrieveFunc(func(ctx context.Context, query string, opts retriever.Options, sink logs.Sink) ([]retriever.Candidate, retriever.Outcome, error) {
		require.NotNil(t, opts.MaxFiles)
		assert.Equal(t, 8, *opts.MaxFiles)
		return []retriever.Candidate{{Filename: "old.md", Score: 90, Relevant: true}}, retriever.StrictParse, nil
	})

	rec := &logs.Recorder{}
	c := &recordingCompleter{answer: "ok"}
	g := NewGatherer(results(fresh, cached), dl, rank, c, docs, config.WorkflowConfig{})
	res, err := g.Gather(ctx, "q", Options{}, rec)
	require.NoError(t, err)

	require.Len(t, res.Retrieved, 2)
	assert.Equal(t, retriever.Candidate{
		Filename: store.DocKey(fresh),
		Score:    100,
		Relevant: true,
		Snippet:  "Newly scraped document",
		Reason:   "Newly scraped from search results",
	}, res.Retrieved[0])
	assert.Equal(t, "old.md", res.Retrieved[1].Filename)
	assert.Contains(t, rec.Messages(), "gatherInfo:prioritizeDownloaded")

	prompt := c.last()
	assert.Contains(t, prompt, "== "+store.DocKey(fresh)+" (score: 100) ==\nfresh content\n")
	assert.Contains(t, prompt, "== old.md (score: 90) ==\nold content\n")
	assert.NotContains(t, prompt, "cached content")
}

func TestGatherDegradesOnPhaseFailures(t *testing.T) {
	docs := store.NewFileStore(t.TempDir())
	search := searchFunc(func(ctx context.Context, query string) ([]web.SearchResult, error) {
		return nil, errors.New("instant search: HTTP error: 503")
	})
	dl := downloadFunc(func(ctx context.Context, u string, force bool, sink logs.Sink) (web.Saved, error) {
		t.Fatal("nothing to download")
		return web.Saved{}, nil
	})
	rank := retrieveFunc(func(ctx context.Context, query string, opts retriever.Options, sink logs.Sink) ([]retriever.Candidate, retriever.Outcome, error) {
		return nil, "", errors.New("list documents: boom")
	})

	rec := &logs.Recorder{}
	c := &recordingCompleter{answer: "no sources"}
	res, err := NewGatherer(search, dl, rank, c, docs, config.WorkflowConfig{}).Gather(context.Background(), "q", Options{}, rec)
	require.NoError(t, err)
	assert.Equal(t, "no sources", res.Answer)
	assert.Empty(t, res.Downloads)
	assert.Empty(t, res.Retrieved)
	assert.Empty(t, res.SearchResults)
	assert.Contains(t, rec.Messages(), "gatherInfo:searchError")
	assert.Contains(t, rec.Messages(), "gatherInfo:retrievalError")
	assert.Equal(t, "User query: q\n---\n\nPlease answer the user's query concisely and list which of the documents (by filename) were used as sources. Provide short citations.", c.last())
}

func TestGatherErrors(t *testing.T) {
	docs := store.NewFileStore(t.TempDir())
	dl := downloadFunc(func(ctx context.Context, u string, force bool, sink logs.Sink) (web.Saved, error) {
		return web.Saved{}, errors.New("unused")
	})

	t.Run("empty prompt", func(t *testing.T) {
		c := &recordingCompleter{}
		g := NewGatherer(results(), dl, retrieveFunc(noRanking), c, docs, config.WorkflowConfig{})
		res, err := g.Gather(context.Background(), "  ", Options{}, nil)
		assert.ErrorIs(t, err, ErrEmptyPrompt)
		assert.Nil(t, res)
		assert.Empty(t, c.prompts)
	})

	t.Run("completion fails", func(t *testing.T) {
		cause := &llm.StatusError{Code: 503, Status: "UNAVAILABLE", Err: errors.New("overloaded")}
		c := &recordingCompleter{err: cause}
		rec := &logs.Recorder{}
		g := NewGatherer(results(), dl, retrieveFunc(noRanking), c, docs, config.WorkflowConfig{})
		res, err := g.Gather(context.Background(), "q", Options{}, rec)
		assert.Same(t, cause, err)
		assert.Nil(t, res)
		assert.Contains(t, rec.Messages(), "gatherInfo:error")
	})

	t.Run("panic", func(t *testing.T) {
		rank := retrieveFunc(func(ctx context.Context, query string, opts retriever.Options, sink logs.Sink) ([]retriever.Candidate, retriever.Outcome, error) {
			panic("index out of range")
		})
		g := NewGatherer(results(), dl, rank, &recordingCompleter{}, docs, config.WorkflowConfig{})
		res, err := g.Gather(context.Background(), "q", Options{}, nil)
		assert.EqualError(t, err, "gatherInfo: panic: index out of range")
		assert.Nil(t, res)
	})

	t.Run("panicking download", func(t *testing.T) {
		boom := downloadFunc(func(ctx context.Context, u string, force bool, sink logs.Sink) (web.Saved, error) {
			panic("nil map")
		})
		g := NewGatherer(results("https://x.example/"), boom, retrieveFunc(noRanking), &recordingCompleter{answer: "a"}, docs, config.WorkflowConfig{})
		res, err := g.Gather(context.Background(), "q", Options{}, nil)
		require.NoError(t, err)
		require.Len(t, res.Downloads, 1)
		assert.Equal(t, "panic: nil map", res.Downloads[0].Error)
	})
}

func TestGatherLimits(t *testing.T) {
	docs := store.NewFileStore(t.TempDir())
	var (
		mu  sync.Mutex
		got []string
	)
	dl := downloadFunc(func(ctx context.Context, u string, force bool, sink logs.Sink) (web.Saved, error) {
		mu.Lock()
		got = append(got, u)
		mu.Unlock()
		assert.True(t, force)
		return web.Saved{}, errors.New("skip")
	})
	search := results("https://1/", "https://2/", "https://1/", "", "https://3/", "https://4/")
	g := NewGatherer(search, dl, retrieveFunc(noRanking), &recordingCompleter{}, docs, config.WorkflowConfig{})

	res, err := g.Gather(context.Background(), "q", Options{MaxSearchResults: 5, MaxDocsToDownload: 2, Force: true}, nil)
	require.NoError(t, err)
	assert.Len(t, res.SearchResults, 5)
	assert.ElementsMatch(t, []string{"https://1/", "https://2/"}, got)
	assert.Len(t, res.Downloads, 2)
}

func TestSelectURLs(t *testing.T) {
	in := []web.SearchResult{{URL: "a"}, {URL: ""}, {URL: " b "}, {URL: "a"}, {URL: "c"}, {URL: "d"}}
	assert.Equal(t, []string{"a", "b", "c"}, SelectURLs(in, 3))
	assert.Empty(t, SelectURLs(nil, 3))
}

func TestBuildPrompt(t *testing.T) {
	downloads := []Download{
		{URL: "https://a/", Path: "docs/a.md"},
		{URL: "https://b/", Error: "HTTP error: 404"},
		{URL: "https://c/"},
	}
	excerpts := []excerpt{{filename: "a.md", score: 77, content: "line one\n\n  line\ttwo " + strings.Repeat("x", 2000)}}

	got := buildPrompt("what?", downloads, excerpts)
	want := "User query: what?" +
		"\n---\n" +
		"\nDownloaded URLs (top results):\n- https://a/ -> docs/a.md\n- https://b/ -> HTTP error: 404\n- https://c/ -> (failed)\n" +
		"\n---\n" +
		"\nRelevant documents (filename + excerpt):\n" +
		"\n---\n" +
		"== a.md (score: 77) ==\n" + ("line one line two " + strings.Repeat("x", 982)) + "\n" +
		"\n---\n" +
		"\nPlease answer the user's query concisely and list which of the documents (by filename) were used as sources. Provide short citations."
	assert.Equal(t, want, got)
}
