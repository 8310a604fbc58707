package web

import (
	"context"
	"fmt"

	"gatherinfo/logs"
	"gatherinfo/metrics"
	"gatherinfo/store"
)

// Converter turns a scraped page into Markdown.
type Converter interface {
	Convert(ctx context.Context, page *Page, sink logs.Sink) (string, error)
}

// Saved describes the stored artifacts of one URL.
type Saved struct {
	URL     string `json:"url"`
	Key     string `json:"key"`
	Path    string `json:"path"`
	RawPath string `json:"rawPath,omitempty"`
	Title   string `json:"title,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Downloader fetches a page, converts it and stores both the raw text and
// the Markdown under keys derived from the URL.
type Downloader struct {
	scraper   *Scraper
	converter Converter
	docs      store.Store
}

func NewDownloader(scraper *Scraper, converter Converter, docs store.Store) *Downloader {
	return &Downloader{scraper: scraper, converter: converter, docs: docs}
}

// Download is idempotent unless force is set: when the Markdown document
// already exists nothing is fetched and the cached path is returned.
func (d *Downloader) Download(ctx context.Context, rawURL string, force bool, sink logs.Sink) (Saved, error) {
	sink = logs.OrDiscard(sink)

	if _, err := ValidateURL(rawURL); err != nil {
		return Saved{}, err
	}

	docKey, rawKey := store.DocKey(rawURL), store.RawKey(rawURL)
	saved := Saved{
		URL:     rawURL,
		Key:     docKey,
		Path:    d.docs.Location(docKey),
		RawPath: d.docs.Location(rawKey),
	}

	if !force {
		exists, err := d.docs.Exists(ctx, docKey)
		if err != nil {
			return d.fail(sink, rawURL, err)
		}
		if exists {
			saved.Skipped = true
			metrics.DownloadsTotal.WithLabelValues("skipped").Inc()
			sink.Emit(logs.LevelDebug, "webdownloadPage:cached", logs.Fields{"url": rawURL, "path": saved.Path})
			return saved, nil
		}
	}

	sink.Emit(logs.LevelInfo, "webdownloadPage:start", logs.Fields{"url": rawURL})

	page, err := d.scraper.Scrape(ctx, rawURL)
	if err != nil {
		sink.Emit(logs.LevelError, "webdownloadPage:scrapeError", logs.Fields{"url": rawURL, "error": err.Error()})
		return d.fail(sink, rawURL, err)
	}
	saved.Title = page.Title

	markdown, err := d.converter.Convert(ctx, page, sink)
	if err != nil {
		return d.fail(sink, rawURL, fmt.Errorf("convert: %w", err))
	}

	// raw first: an existing .md marks a complete download
	if err := d.docs.Write(ctx, rawKey, []byte(page.Text)); err != nil {
		return d.fail(sink, rawURL, err)
	}
	if err := d.docs.Write(ctx, docKey, []byte(markdown)); err != nil {
		return d.fail(sink, rawURL, err)
	}

	metrics.DownloadsTotal.WithLabelValues("ok").Inc()
	sink.Emit(logs.LevelSuccess, "webdownloadPage:success", logs.Fields{
		"url":     rawURL,
		"path":    saved.Path,
		"rawPath": saved.RawPath,
		"chars":   len([]rune(page.Text)),
	})
	return saved, nil
}

func (d *Downloader) fail(sink logs.Sink, rawURL string, err error) (Saved, error) {
	metrics.DownloadsTotal.WithLabelValues("error").Inc()
	sink.Emit(logs.LevelError, "webdownloadPage:error", logs.Fields{"url": rawURL, "error": err.Error()})
	return Saved{}, err
}
