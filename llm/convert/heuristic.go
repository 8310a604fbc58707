package convert

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"gatherinfo/logs"
	"gatherinfo/metrics"
	"gatherinfo/web"
)

var (
	bareURL = regexp.MustCompile(`(^|\s)(https?://[^\s<>()\[\]]+)`)

	// short lines matching this are navigation or page chrome
	boilerplate = regexp.MustCompile(`(?i)\b(skip to (main )?content|accept (all )?cookies|cookie (policy|settings)|privacy policy|terms of (use|service)|all rights reserved|sign (in|up)|log ?in|subscribe|newsletter|follow us|share (this|on)|advertisement|back to top|toggle navigation|main menu)\b`)
)

const boilerplateMaxLen = 80

// Heuristic is the local converter: it drops navigation and boilerplate
// lines, turns bare URLs into links and collapses blank lines.
type Heuristic struct{}

func (Heuristic) Convert(ctx context.Context, page *web.Page, sink logs.Sink) (string, error) {
	if page == nil {
		return "", nil
	}
	metrics.ConversionsTotal.WithLabelValues(string(ModeHeuristic)).Inc()
	return HeuristicMarkdown(page.Title, page.Text), nil
}

// HeuristicMarkdown renders text as Markdown, under a level-one heading when
// title is set and the text does not already start with it.
func HeuristicMarkdown(title, text string) string {
	var (
		out      []string
		prev     string
		blankRun bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blankRun = true
			continue
		}
		if isBoilerplate(line) || line == prev {
			continue
		}
		if blankRun && len(out) > 0 {
			out = append(out, "")
		}
		blankRun = false
		out = append(out, linkify(line))
		prev = line
	}

	title = strings.TrimSpace(title)
	if title != "" && (len(out) == 0 || out[0] != title) {
		out = append([]string{"# " + title, ""}, out...)
	} else if title != "" {
		out[0] = "# " + title
	}
	return strings.Join(out, "\n")
}

func isBoilerplate(line string) bool {
	if !hasLetterOrDigit(line) {
		return true
	}
	if len(line) > boilerplateMaxLen {
		return false
	}
	return boilerplate.MatchString(line) || isMenu(line)
}

// isMenu matches "Home | About | Contact" style link rows.
func isMenu(line string) bool {
	for _, sep := range []string{"|", "·", "•", "»"} {
		parts := strings.Split(line, sep)
		if len(parts) < 3 {
			continue
		}
		short := true
		for _, p := range parts {
			if len(strings.Fields(p)) > 3 {
				short = false
				break
			}
		}
		if short {
			return true
		}
	}
	return false
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func linkify(line string) string {
	return bareURL.ReplaceAllStringFunc(line, func(m string) string {
		sub := bareURL.FindStringSubmatch(m)
		lead, u := sub[1], sub[2]
		trail := ""
		for len(u) > 0 && strings.ContainsRune(".,;:!?'\"", rune(u[len(u)-1])) {
			trail = u[len(u)-1:] + trail
			u = u[:len(u)-1]
		}
		return lead + "[" + u + "](" + u + ")" + trail
	})
}
