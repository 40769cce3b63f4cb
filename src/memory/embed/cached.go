package embed

import (
	"context"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/cache"
)

// CachedEmbedder memoizes embeddings for repeated inputs. Queries repeat far
// more often than memory contents change, so even a small cache removes most
// provider round-trips.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.VectorCache
}

// NewCachedEmbedder wraps inner with an LRU vector cache.
func NewCachedEmbedder(inner Embedder, capacity int, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedEmbedder{
		inner: inner,
		cache: cache.NewVectorCache(capacity, ttl),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.HashKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec)
	return vec, nil
}

// CacheStats reports cumulative cache hit/miss counters.
func (c *CachedEmbedder) CacheStats() (hits, misses int64) {
	return c.cache.Stats()
}
