package renderer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"gatherinfo/logs"
)

const maxExtraValue = 60

// Renderer turns progress events into single terminal lines and the final
// answer into rendered Markdown.
type Renderer struct {
	markdown *glamour.TermRenderer
	styles   *Styles
	width    int
}

func New(styles *Styles) *Renderer {
	if styles == nil {
		styles = DefaultStyles()
	}
	// dracula, wrapping left to the view
	md, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(0),
	)
	return &Renderer{markdown: md, styles: styles}
}

func (r *Renderer) SetWidth(width int) {
	r.width = width
}

// RenderEvent renders "icon message key=value ..." with the extras sorted by
// key. URLs are shortened and long values truncated.
func (r *Renderer) RenderEvent(ev logs.Event) string {
	style := r.styles.forLevel(ev.Level)
	icon, ok := Icons[ev.Level]
	if !ok {
		icon = Icons[logs.LevelInfo]
	}

	line := style.Render(icon + " " + ev.Message)
	if extra := formatExtra(ev.Extra); extra != "" {
		line += " " + r.styles.Extra.Render(extra)
	}
	if r.width > 0 {
		return lipgloss.NewStyle().MaxWidth(r.width).Render(line)
	}
	return line
}

func formatExtra(extra logs.Fields) string {
	if len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(k, extra[k]))
	}
	return strings.Join(parts, " ")
}

func formatValue(key string, v any) string {
	switch val := v.(type) {
	case string:
		if key == "url" || strings.HasPrefix(val, "http://") || strings.HasPrefix(val, "https://") {
			return ShortenURL(val)
		}
		return Truncate(strings.Join(strings.Fields(val), " "), maxExtraValue)
	case []string:
		return fmt.Sprintf("[%d]", len(val))
	case int64:
		if key == "durationMs" {
			return FormatDuration(val)
		}
		return fmt.Sprint(val)
	case error:
		return Truncate(val.Error(), maxExtraValue)
	default:
		return Truncate(fmt.Sprint(val), maxExtraValue)
	}
}

// RenderAnswer renders Markdown, falling back to the raw text.
func (r *Renderer) RenderAnswer(content string) string {
	header := r.styles.Header.Render("Answer:")
	if r.markdown == nil {
		return header + "\n" + content
	}
	rendered, err := r.markdown.Render(content)
	if err != nil {
		return header + "\n" + content
	}
	return header + "\n" + strings.TrimSpace(rendered)
}

func (r *Renderer) RenderError(err error) string {
	return r.styles.Error.Render(Icons[logs.LevelError] + " " + err.Error())
}
