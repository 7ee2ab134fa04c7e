package cache

import (
	"sync"
	"time"
)

type item struct {
	value      interface{}
	expiration time.Time
}

// Cache is an in-memory TTL cache. It is an explicit object passed to the
// components that need it; entries can be invalidated individually or all at
// once.
type Cache struct {
	items map[string]*item
	mu    sync.RWMutex
	stop  chan struct{}
}

// New creates a cache and starts its cleanup goroutine
func New() *Cache {
	c := &Cache{
		items: make(map[string]*item),
		stop:  make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Set stores a value with an expiration
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &item{
		value:      value,
		expiration: time.Now().Add(ttl),
	}
}

// Get retrieves a value; expired entries are treated as absent
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	it, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().After(it.expiration) {
		c.Delete(key)
		return nil, false
	}
	return it.value, true
}

// Delete removes a single entry
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Flush removes all entries
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*item)
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	close(c.stop)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, it := range c.items {
				if now.After(it.expiration) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}
