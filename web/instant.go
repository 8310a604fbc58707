package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gatherinfo/store"
)

const (
	DefaultInstantURL = "https://api.duckduckgo.com/"
	ddgOrigin         = "https://duckduckgo.com"
)

// InstantProvider queries the DuckDuckGo Instant Answer JSON API.
type InstantProvider struct {
	endpoint  string
	client    *http.Client
	userAgent string
	cache     *store.JSONCache
}

type InstantConfig struct {
	Endpoint  string
	Timeout   time.Duration
	UserAgent string
	// Cache, when set, serves repeated queries from the JSON response cache.
	Cache *store.JSONCache
}

func NewInstantProvider(cfg InstantConfig) *InstantProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultInstantURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &InstantProvider{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		cache:     cfg.Cache,
	}
}

func (p *InstantProvider) Name() string { return "instant" }

type instantTopic struct {
	Text     string         `json:"Text"`
	Result   string         `json:"Result"`
	Name     string         `json:"Name"`
	FirstURL string         `json:"FirstURL"`
	Icon     *instantIcon   `json:"Icon"`
	Topics   []instantTopic `json:"Topics"`
}

type instantIcon struct {
	URL string `json:"URL"`
}

type instantResponse struct {
	Heading       string         `json:"Heading"`
	AbstractText  string         `json:"AbstractText"`
	AbstractURL   string         `json:"AbstractURL"`
	Image         string         `json:"Image"`
	Results       []instantTopic `json:"Results"`
	RelatedTopics []instantTopic `json:"RelatedTopics"`
}

func (p *InstantProvider) requestURL(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("format", "json")
	v.Set("no_html", "1")
	v.Set("skip_disambig", "1")
	sep := "?"
	if strings.Contains(p.endpoint, "?") {
		sep = "&"
	}
	return p.endpoint + sep + v.Encode()
}

func (p *InstantProvider) Search(ctx context.Context, query string) ([]SearchResult, error) {
	u := p.requestURL(query)

	var (
		body []byte
		err  error
	)
	if p.cache != nil {
		body, err = p.cache.Get(ctx, u)
	} else {
		body, err = p.get(ctx, u)
	}
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("no data returned from DuckDuckGo")
	}

	var data instantResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode instant answer: %w", err)
	}
	return flattenInstant(data), nil
}

func (p *InstantProvider) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 5<<20))
}

// flattenInstant orders the abstract first, then direct results, then
// related topics with topic groups expanded in place.
func flattenInstant(data instantResponse) []SearchResult {
	var items []SearchResult

	if data.AbstractText != "" {
		items = append(items, SearchResult{
			Title:   data.Heading,
			URL:     data.AbstractURL,
			Snippet: data.AbstractText,
			Icon:    absoluteIcon(data.Image),
		})
	}

	for _, r := range data.Results {
		items = append(items, topicResult(r))
	}

	for _, t := range data.RelatedTopics {
		if len(t.Topics) > 0 {
			for _, sub := range t.Topics {
				items = append(items, topicResult(sub))
			}
			continue
		}
		items = append(items, topicResult(t))
	}
	return items
}

func topicResult(t instantTopic) SearchResult {
	title := t.Text
	if title == "" {
		title = t.Result
	}
	if title == "" {
		title = t.Name
	}
	r := SearchResult{Title: title, URL: t.FirstURL, Snippet: t.Text}
	if t.Icon != nil {
		r.Icon = absoluteIcon(t.Icon.URL)
	}
	return r
}

func absoluteIcon(path string) string {
	if strings.HasPrefix(path, "/") {
		return ddgOrigin + path
	}
	return path
}
