// Package store persists documents and cached API responses under flat keys
// derived from their source URL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("store: key not found")
	ErrInvalidKey = errors.New("store: invalid key")
)

// Store is a flat key/value persistence capability. Writers to the same key
// are not coordinated; the last write wins.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	// List returns keys matching a doublestar pattern, sorted.
	List(ctx context.Context, pattern string) ([]string, error)
	// Location is a human readable address of key, e.g. "docs/<key>".
	Location(key string) string
}

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
