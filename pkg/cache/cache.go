package cache

import (
	"sync"
	"time"
)

// Item is a cached value with an expiration deadline.
type Item struct {
	Value     interface{}
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the item is past its deadline.
func (item *Item) Expired() bool {
	return time.Now().After(item.ExpiresAt)
}

// Cache is a thread-safe in-memory cache with TTL support. The device catalog
// uses it to avoid re-running enumeration subprocesses on every request.
type Cache struct {
	items      map[string]*Item
	mu         sync.RWMutex
	defaultTTL time.Duration
}

// New creates a cache with the given default TTL.
func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		items:      make(map[string]*Item),
		defaultTTL: defaultTTL,
	}
}

// Get retrieves a value; expired entries read as missing.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || item.Expired() {
		return nil, false
	}
	return item.Value, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &Item{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Item)
}

// Prune drops expired entries. Callers that refresh on demand can invoke this
// opportunistically instead of running a background sweeper.
func (c *Cache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, item := range c.items {
		if item.Expired() {
			delete(c.items, key)
		}
	}
}
