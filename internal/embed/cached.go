package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the query-embedding cache. At 768 dims this is
// about 3MB of vectors.
const DefaultCacheSize = 1000

// CachedProvider wraps a Provider with LRU caching so repeated query
// texts skip the embedding round trip.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

// NewCachedProvider wraps the given provider.
func NewCachedProvider(inner Provider, cacheSize int) *CachedProvider {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedProvider{inner: inner, cache: cache}
}

var _ Provider = (*CachedProvider)(nil)

func (c *CachedProvider) Init(ctx context.Context) error { return c.inner.Init(ctx) }
func (c *CachedProvider) Dimensions() int                { return c.inner.Dimensions() }
func (c *CachedProvider) Name() string                   { return c.inner.Name() }
func (c *CachedProvider) MaxChars() int                  { return c.inner.MaxChars() }

func (c *CachedProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text + "\x00" + c.inner.Name()))
	return hex.EncodeToString(hash[:])
}

// Embed returns the cached embedding when available.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}
