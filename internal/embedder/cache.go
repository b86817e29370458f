package embedder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultQueryCacheSize is the query cache capacity used when none is configured
const DefaultQueryCacheSize = 2000

// warmUpText is encoded once when an embedder is attached
const warmUpText = "warm up"

// QueryCache maps normalized query text to unit-length embeddings.
//
// Lookups go through the LRU's own lock. Misses are computed one at a time
// under computeMu, so at most one embedder call is in flight per process;
// a caller that waited on the lock re-checks the cache before computing.
type QueryCache struct {
	capacity int
	entries  *lru.Cache[string, []float32] // nil when caching is disabled

	computeMu sync.Mutex
	embedder  Embedder // guarded by computeMu
	ready     atomic.Bool

	computations atomic.Int64
}

// NewQueryCache creates a cache holding up to capacity queries.
// capacity <= 0 disables caching: every lookup calls the embedder.
func NewQueryCache(capacity int) *QueryCache {
	c := &QueryCache{capacity: capacity}
	if capacity > 0 {
		entries, err := lru.New[string, []float32](capacity)
		if err == nil {
			c.entries = entries
		}
	}
	return c
}

// Attach installs the embedder, runs one warm-up encode and marks the cache ready.
func (c *QueryCache) Attach(ctx context.Context, emb Embedder) error {
	if emb == nil {
		return fmt.Errorf("%w: nil embedder", ErrInvalidInput)
	}

	c.computeMu.Lock()
	defer c.computeMu.Unlock()

	if _, err := emb.GenerateEmbedding(ctx, EmbeddingRequest{Text: warmUpText}); err != nil {
		return fmt.Errorf("warm up %s embedder: %w", emb.Provider(), err)
	}

	c.embedder = emb
	c.ready.Store(true)
	return nil
}

// Ready reports whether an embedder has been attached
func (c *QueryCache) Ready() bool {
	return c.ready.Load()
}

// GetEmbedding returns the unit-normalized embedding for query, computing it
// on a miss. Keys are trimmed and lowercased; the embedder receives the raw query.
func (c *QueryCache) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if !c.ready.Load() {
		return nil, ErrNotReady
	}

	key := NormalizeQuery(query)
	if vec, ok := c.lookup(key); ok {
		return vec, nil
	}

	c.computeMu.Lock()
	defer c.computeMu.Unlock()

	// Another caller may have computed it while we waited
	if vec, ok := c.lookup(key); ok {
		return vec, nil
	}

	c.computations.Add(1)
	emb, err := c.embedder.GenerateEmbedding(ctx, EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vec := NormalizeVector(emb.Vector)
	if c.entries != nil {
		c.entries.Add(key, vec)
	}
	return copyVector(vec), nil
}

// lookup returns a copy of the cached vector, refreshing its recency
func (c *QueryCache) lookup(key string) ([]float32, bool) {
	if c.entries == nil {
		return nil, false
	}
	vec, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return copyVector(vec), true
}

// Contains reports whether key is cached without touching its recency
func (c *QueryCache) Contains(query string) bool {
	if c.entries == nil {
		return false
	}
	return c.entries.Contains(NormalizeQuery(query))
}

// Len returns the number of cached queries
func (c *QueryCache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

// Capacity returns the configured capacity
func (c *QueryCache) Capacity() int {
	return c.capacity
}

// Computations returns how many times the embedder was called for a query.
// The warm-up encode is not counted.
func (c *QueryCache) Computations() int64 {
	return c.computations.Load()
}

// Embedder returns the attached embedder, or nil before Attach
func (c *QueryCache) Embedder() Embedder {
	if !c.ready.Load() {
		return nil
	}
	c.computeMu.Lock()
	defer c.computeMu.Unlock()
	return c.embedder
}

// NormalizeQuery returns the cache key for a raw query
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
