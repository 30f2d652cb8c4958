package resolver

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a network resolution stays cached.
const DefaultTTL = time.Hour

// Cache stores query to type ID resolutions. Implementations treat failures as misses.
type Cache interface {
	Get(ctx context.Context, query string) (int64, bool)
	Put(ctx context.Context, query string, id int64)
}

// Entry is a cached resolution.
type Entry struct {
	Query      string
	ID         int64
	ResolvedAt time.Time
}

// MemoryCache is an in-process Cache with a fixed TTL.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryCache returns an empty cache; ttl <= 0 uses DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[string]Entry)}
}

// Get returns a live entry and drops an expired one.
func (c *MemoryCache) Get(_ context.Context, query string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[query]
	if !ok {
		return 0, false
	}
	if c.now().Sub(e.ResolvedAt) >= c.ttl {
		delete(c.entries, query)
		return 0, false
	}
	return e.ID, true
}

// Put records id for query at the current time.
func (c *MemoryCache) Put(_ context.Context, query string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[query] = Entry{Query: query, ID: id, ResolvedAt: c.now()}
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type noCache struct{}

func (noCache) Get(context.Context, string) (int64, bool) { return 0, false }
func (noCache) Put(context.Context, string, int64)        {}
