package finance

import (
	"sync"
	"time"

	"bitodash/internal/infra"
)

// Lookup classifies a cache read.
type Lookup int

const (
	LookupMiss Lookup = iota
	LookupFresh
	LookupStale
)

type entry struct {
	data      interface{}
	timestamp time.Time
}

// Cache is a process-wide TTL cache for market data, owned by the service
// instance (no package-level state) with an injected clock for
// deterministic tests. Entries are never evicted: a stale value is kept as
// the fallback of last resort when every provider is down. Concurrent
// misses for the same key may both fetch upstream; fetches are idempotent
// and the cache is last-write-wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   infra.Clock
}

// NewCache creates an empty cache.
func NewCache(clock infra.Clock) *Cache {
	if clock == nil {
		clock = infra.RealClock{}
	}
	return &Cache{
		entries: make(map[string]entry),
		clock:   clock,
	}
}

// Get returns the cached value and whether it is fresh under ttl, stale,
// or absent.
func (c *Cache) Get(key string, ttl time.Duration) (interface{}, Lookup) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		infra.CacheLookups.WithLabelValues("miss").Inc()
		return nil, LookupMiss
	}
	if c.clock.Now().Sub(e.timestamp) < ttl {
		infra.CacheLookups.WithLabelValues("hit").Inc()
		return e.data, LookupFresh
	}
	infra.CacheLookups.WithLabelValues("stale").Inc()
	return e.data, LookupStale
}

// Put stores a value with the current timestamp.
func (c *Cache) Put(key string, data interface{}) {
	c.mu.Lock()
	c.entries[key] = entry{data: data, timestamp: c.clock.Now()}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
