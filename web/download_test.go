package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"gatherinfo/logs"
	"gatherinfo/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type titleConverter struct{}

func (titleConverter) Convert(ctx context.Context, page *Page, sink logs.Sink) (string, error) {
	return "# " + page.Title + "\n\n" + page.Text, nil
}

func newDownloadFixture(t *testing.T) (*Downloader, *store.FileStore, *atomic.Int32, string) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(parisPage))
	}))
	t.Cleanup(srv.Close)

	docs := store.NewFileStore(t.TempDir())
	d := NewDownloader(NewScraper(ScraperConfig{}), titleConverter{}, docs)
	return d, docs, &hits, srv.URL
}

func TestDownloadIsIdempotent(t *testing.T) {
	d, docs, hits, base := newDownloadFixture(t)
	ctx := context.Background()
	u := base + "/wiki/Paris"

	rec := &logs.Recorder{}
	first, err := d.Download(ctx, u, false, rec)
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Equal(t, store.DocKey(u), first.Key)
	assert.Equal(t, docs.Location(store.DocKey(u)), first.Path)
	assert.Equal(t, "Paris", first.Title)
	assert.Equal(t, []string{"webdownloadPage:start", "webdownloadPage:success"}, rec.Messages())

	md, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "# Paris\n\nParis\n\nParis is the capital of France.\n\nSecond paragraph.", string(md))

	raw, err := docs.Read(ctx, store.RawKey(u))
	require.NoError(t, err)
	assert.Equal(t, "Paris\n\nParis is the capital of France.\n\nSecond paragraph.", string(raw))

	second, err := d.Download(ctx, u, false, nil)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownloadForceRefetches(t *testing.T) {
	d, _, hits, base := newDownloadFixture(t)
	ctx := context.Background()
	u := base + "/wiki/Paris"

	_, err := d.Download(ctx, u, false, nil)
	require.NoError(t, err)
	again, err := d.Download(ctx, u, true, nil)
	require.NoError(t, err)
	assert.False(t, again.Skipped)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownloadFailureWritesNothing(t *testing.T) {
	d, docs, _, base := newDownloadFixture(t)
	ctx := context.Background()
	u := base + "/broken"

	rec := &logs.Recorder{}
	_, err := d.Download(ctx, u, false, rec)
	assert.EqualError(t, err, "HTTP error: 500")
	assert.Contains(t, rec.Messages(), "webdownloadPage:error")

	exists, err := docs.Exists(ctx, store.DocKey(u))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = d.Download(ctx, "javascript:alert(1)", false, nil)
	assert.ErrorIs(t, err, ErrInvalidURL)
}
