package convert

import (
	"context"
	"fmt"
	"strings"

	"gatherinfo/logs"
	"gatherinfo/metrics"
	"gatherinfo/web"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const mainContent = "article, main, [role=main]"

// HTML converts the cleaned page markup with html-to-markdown, preferring the
// main article element when the page has one. Pages without markup go
// through the heuristic converter.
type HTML struct {
	conv *md.Converter
}

func NewHTML() *HTML {
	return &HTML{conv: md.NewConverter("", true, nil)}
}

func (c *HTML) Convert(ctx context.Context, page *web.Page, sink logs.Sink) (string, error) {
	if page == nil {
		return "", nil
	}
	if strings.TrimSpace(page.HTML) == "" {
		return Heuristic{}.Convert(ctx, page, sink)
	}

	markup := page.HTML
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	if sel := doc.Find(mainContent).First(); sel.Length() > 0 {
		if outer, err := goquery.OuterHtml(sel); err == nil {
			markup = outer
		}
	}

	markdown, err := c.conv.ConvertString(markup)
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}
	metrics.ConversionsTotal.WithLabelValues(string(ModeHTML)).Inc()
	return collapseBlankLines(markdown), nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var (
		out   []string
		blank bool
	)
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
