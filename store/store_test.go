package store

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, "test:docs:")
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"file":  NewFileStore(t.TempDir()),
		"redis": newRedisStore(t),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := DocKey("https://example.com/a-b")
			content := []byte("# Title\n\nbody \x00 bytes\n")

			ok, err := s.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Write(ctx, key, content))

			ok, err = s.Exists(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)

			got, err := s.Read(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, content, got)
		})
	}
}

func TestStoreReadMissing(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Read(ctx, "missing.md")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreRejectsPathKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Write(ctx, "../escape.md", []byte("x")), ErrInvalidKey)
			_, err := s.Read(ctx, "")
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"b.md", "a.md", "a.txt", "c.json"} {
				require.NoError(t, s.Write(ctx, k, []byte(k)))
			}

			keys, err := s.List(ctx, "*.md")
			require.NoError(t, err)
			assert.Equal(t, []string{"a.md", "b.md"}, keys)

			keys, err = s.List(ctx, "*.{txt,json}")
			require.NoError(t, err)
			assert.Equal(t, []string{"a.txt", "c.json"}, keys)
		})
	}
}

func TestFileStoreWritesLongKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)

	key := DocKey("https://example.com/" + strings.Repeat("a", 225))
	require.Greater(t, len(key), 240)
	require.LessOrEqual(t, len(key), 255)

	require.NoError(t, s.Write(ctx, key, []byte("long")))
	got, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("long"), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key, entries[0].Name())
}

func TestFileStoreListMissingDir(t *testing.T) {
	s := NewFileStore(t.TempDir() + "/nope")
	keys, err := s.List(context.Background(), "*.md")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "docs/a.md", NewFileStore("docs").Location("a.md"))
	assert.Equal(t, "redis:test:docs:a.md", newRedisStore(t).Location("a.md"))
}
