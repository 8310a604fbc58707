package convert

import (
	"context"
	"strings"

	"gatherinfo/llm"
	"gatherinfo/logs"
	"gatherinfo/metrics"
	"gatherinfo/web"
)

const aiPrompt = "convert the following text to markdown format, don't start your response with '```':\n\n"

// AI asks a completion model to rewrite the page text as Markdown. Any
// failure, or an empty answer, falls back to the heuristic converter.
type AI struct {
	completer llm.Completer
	fallback  web.Converter
}

func NewAI(completer llm.Completer) *AI {
	return &AI{completer: completer, fallback: Heuristic{}}
}

func (c *AI) Convert(ctx context.Context, page *web.Page, sink logs.Sink) (string, error) {
	sink = logs.OrDiscard(sink)
	if page == nil || page.Text == "" {
		return "", nil
	}
	sink.Emit(logs.LevelDebug, "convertToMarkdown:start", logs.Fields{"url": page.URL, "length": len(page.Text)})

	out, err := c.completer.Complete(ctx, aiPrompt+page.Text)
	if err == nil {
		out = stripFence(out)
	}
	if err != nil || strings.TrimSpace(out) == "" {
		extra := logs.Fields{"url": page.URL}
		if err != nil {
			extra["error"] = err.Error()
		}
		sink.Emit(logs.LevelInfo, "convertToMarkdown:fallback", extra)
		return c.fallback.Convert(ctx, page, sink)
	}

	metrics.ConversionsTotal.WithLabelValues(string(ModeAI)).Inc()
	return out, nil
}

// stripFence removes a wrapping ``` block some models add despite being
// told not to.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		t = strings.TrimPrefix(t, "```")
	}
	t = strings.TrimSuffix(strings.TrimRight(t, " \n\t"), "```")
	return strings.TrimSpace(t)
}
