// Package convert turns scraped pages into Markdown documents.
package convert

import (
	"fmt"

	"gatherinfo/llm"
	"gatherinfo/web"
)

type Mode string

const (
	ModeAI        Mode = "ai"
	ModeHTML      Mode = "html"
	ModeHeuristic Mode = "heuristic"
)

// New returns the converter for mode. The AI converter needs a completer;
// without one it degrades to the heuristic converter.
func New(mode Mode, completer llm.Completer) (web.Converter, error) {
	switch mode {
	case ModeAI, "":
		if completer == nil {
			return Heuristic{}, nil
		}
		return NewAI(completer), nil
	case ModeHTML:
		return NewHTML(), nil
	case ModeHeuristic:
		return Heuristic{}, nil
	default:
		return nil, fmt.Errorf("unknown convert mode %q", mode)
	}
}
