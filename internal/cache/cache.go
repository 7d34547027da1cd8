package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry is a cached upstream response and the instant it stops being served.
type Entry struct {
	Data    json.RawMessage `json:"data"`
	Expires time.Time       `json:"expires"`
}

// Fresh reports whether the entry may be served at now (Expires strictly after now).
func (e Entry) Fresh(now time.Time) bool {
	return e.Expires.After(now)
}

// Cache stores forecast responses by cache key.
// Get returns the stored entry without judging freshness; callers compare
// Expires against their own clock. Set overwrites. Reset removes everything.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Reset(ctx context.Context) error
}

// InMemoryCache implements Cache with a process-local map. Entries are never
// evicted; stale ones are overwritten on the next refresh or dropped by Reset.
// Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]Entry),
	}
}

// Get returns the entry for key. The returned Data shares its backing array
// with the stored entry, so repeated hits observe the same value.
func (c *InMemoryCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.data[key]
	return entry, ok, nil
}

// Set stores entry under key, replacing any previous entry.
func (c *InMemoryCache) Set(ctx context.Context, key string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry
	return nil
}

// Reset drops all entries.
func (c *InMemoryCache) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]Entry)
	return nil
}

// Len returns the number of stored entries, fresh or stale.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
