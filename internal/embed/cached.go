package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of provider vectors kept in memory.
const DefaultCacheSize = 4096

// SharedCache stores provider vectors outside the process.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
	Close() error
}

// CachedProvider wraps a Provider with an in-process LRU and an optional
// shared cache. Only provider output is cached; the key includes the
// provider name so switching models never returns stale vectors.
type CachedProvider struct {
	inner  Provider
	local  *lru.Cache[string, []float32]
	shared SharedCache
	logger *slog.Logger
}

// NewCachedProvider wraps inner. size <= 0 uses DefaultCacheSize; shared may be nil.
func NewCachedProvider(inner Provider, size int, shared SharedCache, logger *slog.Logger) *CachedProvider {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedProvider{inner: inner, local: cache, shared: shared, logger: logger}
}

func (c *CachedProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.inner.Name() + "\x00" + text))
	return hex.EncodeToString(hash[:])
}

// Embed returns a cached vector when available, otherwise calls the provider.
// Shared-cache errors are logged and treated as misses.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.local.Get(key); ok {
		return vec, nil
	}

	if c.shared != nil {
		vec, ok, err := c.shared.Get(ctx, key)
		if err != nil {
			c.logger.Warn("embedding_cache_get_failed", slog.String("error", err.Error()))
		} else if ok {
			c.local.Add(key, vec)
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.local.Add(key, vec)
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, vec); err != nil {
			c.logger.Warn("embedding_cache_set_failed", slog.String("error", err.Error()))
		}
	}
	return vec, nil
}

// Name passes through to the inner provider.
func (c *CachedProvider) Name() string { return c.inner.Name() }

// Len returns the number of vectors in the in-process cache.
func (c *CachedProvider) Len() int { return c.local.Len() }

// Close closes the shared cache and the inner provider.
func (c *CachedProvider) Close() error {
	var firstErr error
	if c.shared != nil {
		firstErr = c.shared.Close()
	}
	if err := c.inner.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

var _ Provider = (*CachedProvider)(nil)
