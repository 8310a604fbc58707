package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const (
	DefaultMaxChars = 150_000
	// MaxReadSize is the maximum response size (5MB)
	MaxReadSize = int64(5 * 1024 * 1024)

	nonContent = "script, style, noscript, iframe, header, footer, nav, svg, meta, link, form"
)

var (
	ErrInvalidURL             = errors.New("only http(s) urls are supported")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrNoText                 = errors.New("no text could be extracted from url")
)

var horizontalSpace = regexp.MustCompile(`[ \t\x{00A0}\r]+`)

// Page is the readable text of one HTML page.
type Page struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Byline    string `json:"byline,omitempty"`
	SiteName  string `json:"siteName,omitempty"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"`
	// HTML is the cleaned body markup the text was taken from.
	HTML string `json:"-"`
}

type ScraperConfig struct {
	Timeout   time.Duration
	UserAgent string
	// MaxChars bounds the extracted text, in characters.
	MaxChars int
	MaxBytes int64
}

// Scraper fetches HTML pages and reduces them to normalized text.
type Scraper struct {
	client    *http.Client
	userAgent string
	maxChars  int
	maxBytes  int64
}

func NewScraper(cfg ScraperConfig) *Scraper {
	s := &Scraper{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxChars:  cfg.MaxChars,
		maxBytes:  cfg.MaxBytes,
	}
	if s.client.Timeout <= 0 {
		s.client.Timeout = 30 * time.Second
	}
	if s.userAgent == "" {
		s.userAgent = "Mozilla/5.0 (compatible; gatherinfo/1.0)"
	}
	if s.maxChars <= 0 {
		s.maxChars = DefaultMaxChars
	}
	if s.maxBytes <= 0 {
		s.maxBytes = MaxReadSize
	}
	return s
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, _ := mime.ParseMediaType(contentType); mt != "text/html" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	page, err := extractPage(body, u, s.maxChars)
	if err != nil {
		return nil, err
	}
	if page.Text == "" {
		return nil, ErrNoText
	}
	return page, nil
}

func extractPage(raw []byte, u *url.URL, maxChars int) (*Page, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	removeComments(root)

	doc := goquery.NewDocumentFromNode(root)
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(nonContent).Remove()

	body := doc.Find("body")
	text := body.Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	text = NormalizeText(text)

	markup, _ := body.Html()
	page := &Page{URL: u.String(), Title: title, HTML: markup}
	if r := []rune(text); len(r) > maxChars {
		text = string(r[:maxChars])
		page.Truncated = true
	}
	page.Text = text

	// metadata only
	if article, err := readability.FromReader(bytes.NewReader(raw), u); err == nil {
		if t := strings.TrimSpace(article.Title); t != "" {
			page.Title = t
		}
		page.Byline = strings.TrimSpace(article.Byline)
		page.SiteName = strings.TrimSpace(article.SiteName)
	}
	return page, nil
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

// NormalizeText trims every line, drops blank ones, separates the rest with
// a blank line and collapses runs of spaces, tabs, carriage returns and
// no-break spaces into one space.
func NormalizeText(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	out := strings.Join(kept, "\n\n")
	return strings.TrimSpace(horizontalSpace.ReplaceAllString(out, " "))
}
