package web

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

const DefaultLiteURL = "https://lite.duckduckgo.com/lite/"

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
}

// LiteProvider scrapes the DuckDuckGo Lite HTML results page.
type LiteProvider struct {
	endpoint    string
	client      *http.Client
	minInterval time.Duration

	mu   sync.Mutex
	last time.Time
}

type LiteConfig struct {
	Endpoint string
	Timeout  time.Duration
	// MinInterval spaces consecutive searches; a random extra of up to
	// three times the interval is added to look less like a bot.
	MinInterval time.Duration
}

func NewLiteProvider(cfg LiteConfig) *LiteProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultLiteURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LiteProvider{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: timeout},
		minInterval: cfg.MinInterval,
	}
}

func (p *LiteProvider) Name() string { return "lite" }

func (p *LiteProvider) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setRandomizedHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed with status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parseLiteResults(string(body))
}

func (p *LiteProvider) wait(ctx context.Context) error {
	if p.minInterval <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	gap := p.minInterval + time.Duration(rand.Int64N(int64(3*p.minInterval)+1))
	if elapsed := time.Since(p.last); elapsed < gap {
		t := time.NewTimer(gap - elapsed)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	p.last = time.Now()
	return nil
}

func setRandomizedHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// parseLiteResults walks the results table: each a.result-link starts a hit,
// the following td.result-snippet fills its snippet.
func parseLiteResults(htmlContent string) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var (
		results []SearchResult
		current *SearchResult
	)
	flush := func() {
		if current != nil && current.URL != "" {
			results = append(results, *current)
		}
		current = nil
	}

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result-link"):
				flush()
				current = &SearchResult{Title: textContent(n), URL: cleanDuckDuckGoURL(attr(n, "href"))}
			case n.Data == "td" && hasClass(n, "result-snippet") && current != nil:
				current.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	flush()

	return results, nil
}

// cleanDuckDuckGoURL extracts the final URL from DuckDuckGo's redirect link
func cleanDuckDuckGoURL(rawURL string) string {
	if idx := strings.Index(rawURL, "uddg="); idx != -1 {
		encoded := rawURL[idx+5:]
		if amp := strings.Index(encoded, "&"); amp != -1 {
			encoded = encoded[:amp]
		}
		if decoded, err := url.QueryUnescape(encoded); err == nil {
			return decoded
		}
	}
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	return rawURL
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
