package embed

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultCacheEntries = 1024

// Cache memoizes embeddings by content hash. Valid because the Embedder
// contract is deterministic: identical text always yields an identical
// vector. Eviction is FIFO once maxEntries is reached.
type Cache struct {
	inner      Embedder
	maxEntries int

	mu      sync.Mutex
	entries map[uint64][]float64
	order   []uint64
}

// NewCache wraps an embedder with a bounded memoization layer.
func NewCache(inner Embedder, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	return &Cache{
		inner:      inner,
		maxEntries: maxEntries,
		entries:    make(map[uint64][]float64, maxEntries),
	}
}

// Embed returns a cached vector when the text has been embedded before,
// otherwise delegates to the wrapped embedder. Failures are never cached.
func (c *Cache) Embed(ctx context.Context, text string) ([]float64, error) {
	key := xxhash.Sum64String(text)

	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return cloneVector(cached), nil
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.entries[key] = cloneVector(vector)
		c.order = append(c.order, key)
	}
	c.mu.Unlock()

	return vector, nil
}

func (c *Cache) Dimension() int {
	return c.inner.Dimension()
}

func (c *Cache) ModelName() string {
	return c.inner.ModelName()
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
