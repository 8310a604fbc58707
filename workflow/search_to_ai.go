package workflow

import (
	"context"
	"strings"
	"time"

	"gatherinfo/llm"
	"gatherinfo/logs"
	"gatherinfo/metrics"
	"gatherinfo/web"
)

const summaryTitles = 6

// Summarizer asks the model for a summary of search result titles.
type Summarizer struct {
	searcher  Searcher
	completer llm.Completer
}

func NewSummarizer(s Searcher, c llm.Completer) *Summarizer {
	return &Summarizer{searcher: s, completer: c}
}

// SearchToAI summarizes the titles of results, searching for query first
// when results is nil.
func (s *Summarizer) SearchToAI(ctx context.Context, query string, results []web.SearchResult, sink logs.Sink) (answer string, err error) {
	sink = logs.OrDiscard(sink)
	start := time.Now()
	sink.Emit(logs.LevelInfo, "searchToAi:start", logs.Fields{"query": query, "results": len(results)})
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			sink.Emit(logs.LevelError, "searchToAi:error", logs.Fields{"error": err.Error()})
		}
		metrics.WorkflowDuration.WithLabelValues("search_to_ai", outcome).Observe(time.Since(start).Seconds())
	}()

	if results == nil {
		if results, err = s.searcher.Search(ctx, query); err != nil {
			return "", err
		}
	}

	prompt := SummaryPrompt(results)
	answer, err = s.completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	preview := answer
	if r := []rune(preview); len(r) > 200 {
		preview = string(r[:200])
	}
	sink.Emit(logs.LevelSuccess, "searchToAi:aiResponse", logs.Fields{"prompt": prompt, "ai": preview})
	return answer, nil
}

// SummaryPrompt lists the first six titles separated by semicolons.
func SummaryPrompt(results []web.SearchResult) string {
	titles := make([]string, 0, summaryTitles)
	for _, r := range results[:min(summaryTitles, len(results))] {
		titles = append(titles, r.Title)
	}
	return "Summarize the following search result titles: " + strings.Join(titles, "; ")
}
