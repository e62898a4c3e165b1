// Package cache implements the vault's read-through TTL cache. No
// ecosystem TTL-cache library surfaced anywhere in the retrieved corpus —
// the closest candidate, hashicorp/golang-lru, has no TTL support at all —
// so this follows the same plain mutex-guarded map the source's own
// _get_cached/_set_cached used, just ported to Go.
package cache

import (
	"sync"
	"time"
)

// Key identifies a cached record by kind, id, and owning principal.
type Key struct {
	Kind  string
	ID    string
	Owner string
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a read-through TTL cache. It is correctness-neutral: its
// absence should only change latency, never observable behavior, so every
// write path that can affect a cached value must invalidate its key.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[Key]entry
}

// New returns a Cache with the given TTL (spec default is 300s).
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, entries: make(map[Key]entry)}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the cache's configured TTL.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate removes key, called on every write or delete that affects it.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
