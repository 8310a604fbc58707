package retriever

import (
	"fmt"
	"math"
	"strings"
)

const fallbackSnippet = 200

// heuristic scores each document by how densely the query tokens occur in
// its filename and content: ceil(1000 * matches / words), capped at 100.
func heuristic(query string, docs []document) []Candidate {
	tokens := strings.Fields(strings.ToLower(query))

	out := make([]Candidate, 0, len(docs))
	for _, d := range docs {
		lower := strings.ToLower(d.filename + "\n" + d.content)
		matches := 0
		for _, t := range tokens {
			matches += strings.Count(lower, t)
		}

		score := 0
		if words := len(strings.Fields(lower)); matches > 0 && words > 0 {
			score = min(100, int(math.Ceil(1000*float64(matches)/float64(words))))
		}

		out = append(out, Candidate{
			Filename: d.filename,
			Score:    score,
			Relevant: score > 0,
			Snippet:  snippetAround(d.content, tokens),
			Reason:   fmt.Sprintf("Fallback: %d match(es) across filename + content", matches),
		})
	}
	sortByScore(out)
	return out
}

// snippetAround returns about 200 characters centered on the earliest token
// match in content, or the first 200 characters when nothing matches.
func snippetAround(content string, tokens []string) string {
	runes := []rune(content)
	lowerRunes := []rune(strings.ToLower(content))
	if len(lowerRunes) != len(runes) {
		runes = lowerRunes
	}
	lower := string(lowerRunes)

	first := -1
	for _, t := range tokens {
		if i := strings.Index(lower, t); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	if first < 0 {
		return collapseSpace(truncate(content, fallbackSnippet))
	}

	at := len([]rune(lower[:first]))
	start := max(at-fallbackSnippet/2, 0)
	end := min(start+fallbackSnippet, len(runes))
	return truncate(collapseSpace(string(runes[start:end])), SnippetMax)
}
