package convert

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gatherinfo/llm"
	"gatherinfo/logs"
	"gatherinfo/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicMarkdown(t *testing.T) {
	text := strings.Join([]string{
		"Skip to content",
		"Home | News | Sport | Weather",
		"Paris",
		"",
		"Paris is the capital of France. See https://en.wikipedia.org/wiki/Paris.",
		"",
		"",
		"",
		"---",
		"Paris is the capital of France. See https://en.wikipedia.org/wiki/Paris.",
		"A blog in Paris covers travel.",
		"Accept all cookies",
		"© 2024 All rights reserved",
	}, "\n")

	got := HeuristicMarkdown("Paris", text)
	assert.Equal(t, strings.Join([]string{
		"# Paris",
		"",
		"Paris is the capital of France. See [https://en.wikipedia.org/wiki/Paris](https://en.wikipedia.org/wiki/Paris).",
		"",
		"A blog in Paris covers travel.",
	}, "\n"), got)
}

func TestHeuristicMarkdownPrependsTitle(t *testing.T) {
	assert.Equal(t, "# Go\n\nbody", HeuristicMarkdown("Go", "body"))
	assert.Equal(t, "body", HeuristicMarkdown("", "\n\nbody\n\n"))
}

func TestLinkifyLeavesExistingLinks(t *testing.T) {
	assert.Equal(t, "[x](https://a.io)", linkify("[x](https://a.io)"))
	assert.Equal(t, "go to [http://a.io/b](http://a.io/b)!", linkify("go to http://a.io/b!"))
}

func TestAIConverter(t *testing.T) {
	page := &web.Page{URL: "https://example.com", Title: "Example", Text: "Example body"}

	t.Run("uses model output", func(t *testing.T) {
		var prompt string
		c := NewAI(llm.CompleterFunc(func(ctx context.Context, p string, opts ...llm.CallOption) (string, error) {
			prompt = p
			return "```markdown\n# Example\n\nbody\n```", nil
		}))
		got, err := c.Convert(context.Background(), page, nil)
		require.NoError(t, err)
		assert.Equal(t, "# Example\n\nbody", got)
		assert.True(t, strings.HasPrefix(prompt, "convert the following text to markdown format"))
		assert.True(t, strings.HasSuffix(prompt, "Example body"))
	})

	t.Run("falls back on error", func(t *testing.T) {
		rec := &logs.Recorder{}
		c := NewAI(llm.CompleterFunc(func(ctx context.Context, p string, opts ...llm.CallOption) (string, error) {
			return "", errors.New("quota")
		}))
		got, err := c.Convert(context.Background(), page, rec)
		require.NoError(t, err)
		assert.Equal(t, "# Example\n\nExample body", got)
		assert.Contains(t, rec.Messages(), "convertToMarkdown:fallback")
	})

	t.Run("falls back on empty output", func(t *testing.T) {
		c := NewAI(llm.CompleterFunc(func(ctx context.Context, p string, opts ...llm.CallOption) (string, error) {
			return "  \n", nil
		}))
		got, err := c.Convert(context.Background(), page, nil)
		require.NoError(t, err)
		assert.Equal(t, "# Example\n\nExample body", got)
	})
}

func TestHTMLConverterPrefersArticle(t *testing.T) {
	page := &web.Page{
		Title: "Doc",
		Text:  "ignored",
		HTML:  `<div>sidebar</div><article><h1>Title</h1><p>Some <strong>bold</strong> text.</p></article>`,
	}
	got, err := NewHTML().Convert(context.Background(), page, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "# Title")
	assert.Contains(t, got, "Some **bold** text.")
	assert.NotContains(t, got, "sidebar")
}

func TestHTMLConverterWithoutMarkup(t *testing.T) {
	got, err := NewHTML().Convert(context.Background(), &web.Page{Title: "T", Text: "plain"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "# T\n\nplain", got)
}

func TestNew(t *testing.T) {
	c, err := New(ModeAI, nil)
	require.NoError(t, err)
	assert.IsType(t, Heuristic{}, c)

	c, err = New(ModeHTML, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTML{}, c)

	_, err = New("pdf", nil)
	assert.Error(t, err)
}
