package retriever

import (
	"encoding/json"
	"strconv"
	"strings"
)

// maxRecoveryAttempts bounds how many embedded JSON values are tried.
const maxRecoveryAttempts = 16

type rankedItem struct {
	Filename string     `json:"filename"`
	Score    looseFloat `json:"score"`
	Relevant looseBool  `json:"relevant"`
	Snippet  string     `json:"snippet"`
	Reason   string     `json:"reason"`
}

// parseRanking first decodes the whole answer, then the JSON values embedded
// in surrounding prose. HeuristicFallback means neither produced a ranking.
func parseRanking(answer string) ([]rankedItem, Outcome) {
	if items, ok := decodeRanking(strings.TrimSpace(answer)); ok {
		return items, StrictParse
	}
	for _, sub := range embeddedJSON(answer, maxRecoveryAttempts) {
		if items, ok := decodeRanking(sub); ok {
			return items, RecoveredParse
		}
	}
	return nil, HeuristicFallback
}

// decodeRanking accepts an array of items or an object wrapping one under
// "results".
func decodeRanking(s string) ([]rankedItem, bool) {
	if s == "" {
		return nil, false
	}
	switch s[0] {
	case '[':
		var items []rankedItem
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, false
		}
		return items, true
	case '{':
		var wrapped struct {
			Results *[]rankedItem `json:"results"`
		}
		if err := json.Unmarshal([]byte(s), &wrapped); err != nil || wrapped.Results == nil {
			return nil, false
		}
		return *wrapped.Results, true
	}
	return nil, false
}

// embeddedJSON returns up to limit bracket-balanced [...] or {...}
// substrings in order of their opening bracket. Brackets inside JSON strings
// are ignored.
func embeddedJSON(s string, limit int) []string {
	var out []string
	for start := 0; start < len(s) && len(out) < limit; start++ {
		if s[start] != '[' && s[start] != '{' {
			continue
		}
		if end := matchBracket(s, start); end > start {
			out = append(out, s[start:end+1])
		}
	}
	return out
}

func matchBracket(s string, start int) int {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// looseFloat accepts numbers and numeric strings; anything else is zero.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = looseFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = looseFloat(n)
			return nil
		}
	}
	*f = 0
	return nil
}

// looseBool accepts booleans, "true"/"false" strings and numbers.
type looseBool bool

func (v *looseBool) UnmarshalJSON(b []byte) error {
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	switch t := x.(type) {
	case bool:
		*v = looseBool(t)
	case string:
		ok, _ := strconv.ParseBool(strings.TrimSpace(t))
		*v = looseBool(ok)
	case float64:
		*v = t != 0
	default:
		*v = false
	}
	return nil
}
