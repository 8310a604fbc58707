package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const maxJSONBody = 5 << 20

var ErrCacheValidation = errors.New("cached response failed validation")

// JSONCache serves GET responses of JSON APIs from a Store, fetching and
// recording them on a miss. When a schema is stored next to a cached entry,
// a hit is only served if it validates.
type JSONCache struct {
	data      Store
	schemas   Store
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

type CacheOption func(*JSONCache)

// WithSchemas enables validation of cache hits against schemas kept in s.
func WithSchemas(s Store) CacheOption {
	return func(c *JSONCache) { c.schemas = s }
}

func WithHTTPClient(client *http.Client) CacheOption {
	return func(c *JSONCache) { c.client = client }
}

func WithUserAgent(ua string) CacheOption {
	return func(c *JSONCache) { c.userAgent = ua }
}

func WithLogger(l *zap.Logger) CacheOption {
	return func(c *JSONCache) { c.logger = l }
}

func NewJSONCache(data Store, opts ...CacheOption) *JSONCache {
	c := &JSONCache{
		data:   data,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the JSON body for rawURL, from cache when present.
func (c *JSONCache) Get(ctx context.Context, rawURL string) ([]byte, error) {
	key := JSONKey(rawURL)

	ok, err := c.data.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return c.hit(ctx, rawURL, key)
	}

	body, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := c.data.Write(ctx, key, body); err != nil {
		return nil, err
	}
	c.logger.Debug("json cache miss", zap.String("url", rawURL), zap.String("key", key))
	return body, nil
}

func (c *JSONCache) hit(ctx context.Context, rawURL, key string) ([]byte, error) {
	body, err := c.data.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	if c.schemas == nil {
		c.logger.Debug("json cache hit", zap.String("url", rawURL))
		return body, nil
	}

	schemaKey := SchemaKey(rawURL)
	has, err := c.schemas.Exists(ctx, schemaKey)
	if err != nil {
		return nil, err
	}
	if !has {
		c.logger.Debug("json cache hit", zap.String("url", rawURL))
		return body, nil
	}

	schema, err := c.schemas.Read(ctx, schemaKey)
	if err != nil {
		return nil, err
	}
	if err := validateJSON(schema, body); err != nil {
		c.logger.Warn("json cache validation failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}
	c.logger.Debug("json cache hit and validated", zap.String("url", rawURL))
	return body, nil
}

func (c *JSONCache) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("fetch %s: response is not valid JSON", rawURL)
	}
	return body, nil
}

func validateJSON(schema, doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheValidation, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrCacheValidation, strings.Join(errs, "; "))
	}
	return nil
}
