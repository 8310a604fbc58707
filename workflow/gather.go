// Package workflow chains search, download, retrieval and completion into
// the gatherInfo and searchToAi runs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatherinfo/config"
	"gatherinfo/llm"
	"gatherinfo/llm/retriever"
	"gatherinfo/logs"
	"gatherinfo/metrics"
	"gatherinfo/store"
	"gatherinfo/web"

	"github.com/sourcegraph/conc/iter"
)

const (
	maxContextDocs = 6
	readLimit      = 20_000
	excerptLimit   = 1_000

	freshSnippet = "Newly scraped document"
	freshReason  = "Newly scraped from search results"
)

var ErrEmptyPrompt = errors.New("prompt must be a non-empty string")

type Searcher interface {
	Search(ctx context.Context, query string) ([]web.SearchResult, error)
}

type Downloader interface {
	Download(ctx context.Context, rawURL string, force bool, sink logs.Sink) (web.Saved, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retriever.Options, sink logs.Sink) ([]retriever.Candidate, retriever.Outcome, error)
}

// Options override the configured limits for one run. Zero means default.
type Options struct {
	MaxSearchResults  int  `json:"maxSearchResults,omitempty"`
	MaxDocsToDownload int  `json:"maxDocsToDownload,omitempty"`
	Force             bool `json:"force,omitempty"`
}

// Download is the outcome of one attempted URL: Path on success, Error
// otherwise.
type Download struct {
	URL     string `json:"url"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`

	filename string
}

type Result struct {
	Query         string                `json:"query"`
	SearchResults []web.SearchResult    `json:"searchResults"`
	Downloads     []Download            `json:"downloads"`
	Retrieved     []retriever.Candidate `json:"retrieved"`
	Answer        string                `json:"answer"`
}

type Gatherer struct {
	searcher   Searcher
	downloader Downloader
	retriever  Retriever
	completer  llm.Completer
	docs       store.Store
	limits     config.WorkflowConfig
}

func NewGatherer(s Searcher, d Downloader, r Retriever, c llm.Completer, docs store.Store, limits config.WorkflowConfig) *Gatherer {
	if limits.MaxSearchResults <= 0 {
		limits.MaxSearchResults = 6
	}
	if limits.MaxDocsToDownload <= 0 {
		limits.MaxDocsToDownload = 3
	}
	if limits.ContextDocs <= 0 {
		limits.ContextDocs = 3
	}
	limits.ContextDocs = min(limits.ContextDocs, maxContextDocs)
	if limits.RetrieveTopN <= 0 {
		limits.RetrieveTopN = 8
	}
	return &Gatherer{searcher: s, downloader: d, retriever: r, completer: c, docs: docs, limits: limits}
}

// Gather answers prompt from freshly searched and previously stored
// documents. Search, download and retrieval failures only thin out the
// context; a failed completion fails the run.
func (g *Gatherer) Gather(ctx context.Context, prompt string, opts Options, sink logs.Sink) (res *Result, err error) {
	sink = logs.OrDiscard(sink)
	start := time.Now()
	sink.Emit(logs.LevelInfo, "gatherInfo:start", logs.Fields{"prompt": prompt, "options": opts})

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("gatherInfo: panic: %v", r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			sink.Emit(logs.LevelError, "gatherInfo:error", logs.Fields{"error": err.Error()})
		}
		metrics.WorkflowDuration.WithLabelValues("gather", outcome).Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	maxSearch := g.limits.MaxSearchResults
	if opts.MaxSearchResults > 0 {
		maxSearch = opts.MaxSearchResults
	}
	maxDownload := g.limits.MaxDocsToDownload
	if opts.MaxDocsToDownload > 0 {
		maxDownload = opts.MaxDocsToDownload
	}

	results, err := g.searcher.Search(ctx, prompt)
	if err != nil {
		sink.Emit(logs.LevelError, "gatherInfo:searchError", logs.Fields{"error": err.Error()})
		results = nil
	}
	sink.Emit(logs.LevelInfo, "gatherInfo:searchCompleted", logs.Fields{"resultCount": len(results)})

	urls := SelectURLs(results, maxSearch)
	sink.Emit(logs.LevelInfo, "gatherInfo:urlsToDownload", logs.Fields{"urls": urls})

	downloads := g.fetchAll(ctx, urls[:min(maxDownload, len(urls))], opts.Force, sink)

	retrieved, outcome, err := g.retriever.Retrieve(ctx, prompt, retriever.Options{MaxFiles: retriever.Int(g.limits.RetrieveTopN)}, sink)
	if err != nil {
		sink.Emit(logs.LevelError, "gatherInfo:retrievalError", logs.Fields{"error": err.Error()})
		retrieved = nil
	}
	sink.Emit(logs.LevelInfo, "gatherInfo:retrievalCompleted", logs.Fields{"retrievedCount": len(retrieved), "outcome": string(outcome)})

	retrieved = boostFresh(retrieved, downloads, sink)

	excerpts := g.readTop(ctx, retrieved, sink)
	answer, err := g.completer.Complete(ctx, buildPrompt(prompt, downloads, excerpts))
	if err != nil {
		return nil, err
	}

	sink.Emit(logs.LevelSuccess, "gatherInfo:success", logs.Fields{
		"query":      prompt,
		"count":      len(downloads),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return &Result{
		Query:         prompt,
		SearchResults: capResults(results, maxSearch),
		Downloads:     downloads,
		Retrieved:     retrieved,
		Answer:        answer,
	}, nil
}

// SelectURLs keeps the distinct non-empty URLs in first-seen order, at most limit.
func SelectURLs(results []web.SearchResult, limit int) []string {
	seen := make(map[string]struct{}, len(results))
	urls := make([]string, 0, len(results))
	for _, r := range results {
		u := strings.TrimSpace(r.URL)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
		if len(urls) == limit {
			break
		}
	}
	return urls
}

// fetchAll downloads every URL concurrently and waits for all of them. The
// result at index i belongs to urls[i].
func (g *Gatherer) fetchAll(ctx context.Context, urls []string, force bool, sink logs.Sink) []Download {
	downloads := []Download{}
	if len(urls) > 0 {
		mapper := iter.Mapper[string, Download]{MaxGoroutines: len(urls)}
		downloads = mapper.Map(urls, func(u *string) Download {
			return g.fetchOne(ctx, *u, force, sink)
		})
	}

	failed := 0
	for _, d := range downloads {
		if d.Error != "" {
			failed++
		}
	}
	sink.Emit(logs.LevelInfo, "gatherInfo:downloadsCompleted", logs.Fields{"count": len(downloads), "failed": failed})
	return downloads
}

func (g *Gatherer) fetchOne(ctx context.Context, u string, force bool, sink logs.Sink) (d Download) {
	d.URL = u
	defer func() {
		if r := recover(); r != nil {
			d = Download{URL: u, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	saved, err := g.downloader.Download(ctx, u, force, sink)
	if err != nil {
		d.Error = err.Error()
		return d
	}
	d.Path, d.Skipped, d.filename = saved.Path, saved.Skipped, saved.Key
	return d
}

// boostFresh puts every document fetched in this run that the ranking left
// out at the front, in download order.
func boostFresh(ranked []retriever.Candidate, downloads []Download, sink logs.Sink) []retriever.Candidate {
	present := make(map[string]bool, len(ranked))
	for _, c := range ranked {
		present[c.Filename] = true
	}

	var fresh []retriever.Candidate
	for _, d := range downloads {
		if d.Error != "" || d.Skipped || d.filename == "" || present[d.filename] {
			continue
		}
		present[d.filename] = true
		fresh = append(fresh, retriever.Candidate{
			Filename: d.filename,
			Score:    100,
			Relevant: true,
			Snippet:  freshSnippet,
			Reason:   freshReason,
		})
		sink.Emit(logs.LevelInfo, "gatherInfo:prioritizeDownloaded", logs.Fields{"filename": d.filename})
	}
	if len(fresh) == 0 && ranked == nil {
		return []retriever.Candidate{}
	}
	return append(fresh, ranked...)
}

type excerpt struct {
	filename string
	score    int
	content  string
}

func (g *Gatherer) readTop(ctx context.Context, ranked []retriever.Candidate, sink logs.Sink) []excerpt {
	top := ranked[:min(g.limits.ContextDocs, len(ranked))]
	out := make([]excerpt, 0, len(top))
	for _, c := range top {
		data, err := g.docs.Read(ctx, c.Filename)
		if err != nil {
			sink.Emit(logs.LevelError, "gatherInfo:readFile failed", logs.Fields{"filename": c.Filename, "error": err.Error()})
			continue
		}
		content := string(data)
		if r := []rune(content); len(r) > readLimit {
			content = string(r[:readLimit])
		}
		out = append(out, excerpt{filename: c.Filename, score: c.Score, content: content})
	}
	return out
}

// buildPrompt assembles the synthesis prompt: the query, the attempted
// downloads and a bounded excerpt of each context document, separated by
// "---" lines.
func buildPrompt(query string, downloads []Download, excerpts []excerpt) string {
	parts := []string{"User query: " + query}

	if len(downloads) > 0 {
		var sb strings.Builder
		sb.WriteString("\nDownloaded URLs (top results):\n")
		for i, d := range downloads {
			if i > 0 {
				sb.WriteString("\n")
			}
			outcome := d.Path
			if outcome == "" {
				outcome = d.Error
			}
			if outcome == "" {
				outcome = "(failed)"
			}
			fmt.Fprintf(&sb, "- %s -> %s", d.URL, outcome)
		}
		sb.WriteString("\n")
		parts = append(parts, sb.String())
	}

	if len(excerpts) > 0 {
		parts = append(parts, "\nRelevant documents (filename + excerpt):\n")
		for _, e := range excerpts {
			snippet := strings.Join(strings.Fields(e.content), " ")
			if r := []rune(snippet); len(r) > excerptLimit {
				snippet = string(r[:excerptLimit])
			}
			parts = append(parts, fmt.Sprintf("== %s (score: %d) ==\n%s\n", e.filename, e.score, snippet))
		}
	}

	parts = append(parts, "\nPlease answer the user's query concisely and list which of the documents (by filename) were used as sources. Provide short citations.")
	return strings.Join(parts, "\n---\n")
}

func capResults(results []web.SearchResult, n int) []web.SearchResult {
	if results == nil {
		return []web.SearchResult{}
	}
	return results[:min(n, len(results))]
}
