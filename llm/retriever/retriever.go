// Package retriever ranks the stored Markdown documents against a query,
// asking a completion model first and scoring locally when its answer cannot
// be used.
package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"gatherinfo/llm"
	"gatherinfo/logs"
	"gatherinfo/metrics"
	"gatherinfo/store"
)

const (
	// SnippetMax bounds Candidate.Snippet, in characters.
	SnippetMax = 400

	DefaultPreviewChars = 300
	DefaultReadChars    = 20_000

	docPattern = "*" + store.DocSuffix
)

// Candidate is one ranked document. Sequences returned by Retrieve are
// ordered by descending Score.
type Candidate struct {
	Filename string `json:"filename"`
	Score    int    `json:"score"`
	Relevant bool   `json:"relevant"`
	Snippet  string `json:"snippet"`
	Reason   string `json:"reason,omitempty"`
}

// Outcome tells how a ranking was produced.
type Outcome string

const (
	NoDocuments       Outcome = "empty"
	StrictParse       Outcome = "strict"
	RecoveredParse    Outcome = "recovered"
	HeuristicFallback Outcome = "heuristic"
)

// Options bound the result. MaxFiles caps the ranked sequence first, then
// MinScore drops what scores below it.
type Options struct {
	MinScore *int `json:"minScore,omitempty"`
	MaxFiles *int `json:"maxFiles,omitempty"`
}

// Int is a convenience for filling Options.
func Int(n int) *int { return &n }

type Retriever struct {
	docs         store.Store
	completer    llm.Completer
	previewChars int
	readChars    int
}

type Option func(*Retriever)

// WithPreviewChars sets how much of each document goes into the ranking prompt.
func WithPreviewChars(n int) Option {
	return func(r *Retriever) { r.previewChars = n }
}

// WithReadChars bounds how much of each document is read for local scoring.
func WithReadChars(n int) Option {
	return func(r *Retriever) { r.readChars = n }
}

// New builds a Retriever over docs. A nil completer always ranks locally.
func New(docs store.Store, completer llm.Completer, opts ...Option) *Retriever {
	r := &Retriever{
		docs:         docs,
		completer:    completer,
		previewChars: DefaultPreviewChars,
		readChars:    DefaultReadChars,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type document struct {
	filename string
	content  string
}

func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options, sink logs.Sink) ([]Candidate, Outcome, error) {
	sink = logs.OrDiscard(sink)

	names, err := r.docs.List(ctx, docPattern)
	if err != nil {
		sink.Emit(logs.LevelError, "retrieveSavedInfo:listError", logs.Fields{"error": err.Error()})
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	sink.Emit(logs.LevelInfo, "retrieveSavedInfo:start", logs.Fields{"query": query, "documents": len(names)})
	if len(names) == 0 {
		return []Candidate{}, NoDocuments, nil
	}

	docs := make([]document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		data, err := r.docs.Read(ctx, name)
		if err != nil {
			sink.Emit(logs.LevelDebug, "retrieveSavedInfo:readError", logs.Fields{"filename": name, "error": err.Error()})
		}
		docs = append(docs, document{filename: name, content: truncate(string(data), r.readChars)})
	}

	ranked, outcome := r.rank(ctx, query, docs, sink)
	metrics.RetrievalParses.WithLabelValues(string(outcome)).Inc()

	ranked = applyOptions(ranked, opts)
	sink.Emit(logs.LevelSuccess, "retrieveSavedInfo:done", logs.Fields{"outcome": string(outcome), "count": len(ranked)})
	return ranked, outcome, nil
}

func (r *Retriever) rank(ctx context.Context, query string, docs []document, sink logs.Sink) ([]Candidate, Outcome) {
	if r.completer == nil {
		return heuristic(query, docs), HeuristicFallback
	}

	answer, err := r.completer.Complete(ctx, r.prompt(query, docs))
	if err != nil {
		sink.Emit(logs.LevelError, "retrieveSavedInfo:aiFailed", logs.Fields{"error": err.Error()})
		return heuristic(query, docs), HeuristicFallback
	}

	items, outcome := parseRanking(answer)
	if outcome == HeuristicFallback {
		sink.Emit(logs.LevelInfo, "retrieveSavedInfo:fallback", logs.Fields{"reason": "unparsable ranking response"})
		return heuristic(query, docs), HeuristicFallback
	}

	ranked := clean(items, docs)
	if len(ranked) == 0 {
		sink.Emit(logs.LevelInfo, "retrieveSavedInfo:fallback", logs.Fields{"reason": "ranking named no stored document"})
		return heuristic(query, docs), HeuristicFallback
	}
	sortByScore(ranked)
	return ranked, outcome
}

func (r *Retriever) prompt(query string, docs []document) string {
	var sb strings.Builder
	sb.WriteString("You are an assistant that ranks documents for a user's query.\n")
	fmt.Fprintf(&sb, "User query: %q\n\n", query)
	sb.WriteString("Here are the documents (filename and a short preview):\n\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "- %s: %s\n", d.filename, truncate(collapseSpace(d.content), r.previewChars))
	}
	sb.WriteString("\nReturn ONLY a JSON array. Each item must be an object with: filename (string), score (integer 0-100), relevant (boolean), snippet (string), reason (string).")
	return sb.String()
}

// clean keeps items naming a known document, once each, with scores clamped
// to 0..100 and snippets bounded.
func clean(items []rankedItem, docs []document) []Candidate {
	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		known[d.filename] = true
	}
	seen := make(map[string]bool, len(items))

	out := make([]Candidate, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Filename)
		if !known[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Candidate{
			Filename: name,
			Score:    clampScore(float64(it.Score)),
			Relevant: bool(it.Relevant),
			Snippet:  truncate(it.Snippet, SnippetMax),
			Reason:   it.Reason,
		})
	}
	return out
}

func applyOptions(c []Candidate, opts Options) []Candidate {
	if opts.MaxFiles != nil {
		n := max(*opts.MaxFiles, 0)
		if len(c) > n {
			c = c[:n]
		}
	}
	if opts.MinScore != nil {
		kept := c[:0]
		for _, x := range c {
			if x.Score >= *opts.MinScore {
				kept = append(kept, x)
			}
		}
		c = kept
	}
	return c
}

func sortByScore(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool { return c[i].Score > c[j].Score })
}

func clampScore(f float64) int {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 100:
		return 100
	default:
		return int(f + 0.5)
	}
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
