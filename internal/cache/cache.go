// Package cache keeps short-lived lookups in memory: directory users and
// their folder ACLs, address book results, verified tokens and users whose
// personal folder is known to exist.
package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value   V
	expires time.Time
}

// Cache is a map whose entries expire. It is safe for concurrent use;
// expired entries are dropped when they are read.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]item[V]
	ttl   time.Duration
	now   func() time.Time
}

// New returns a cache whose Put entries live for ttl.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{items: make(map[K]item[V]), ttl: ttl, now: time.Now}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(it.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return it.value, true
}

// Put stores value for the cache TTL.
func (c *Cache[K, V]) Put(key K, value V) {
	c.Set(key, value, c.now().Add(c.ttl))
}

// Set stores value until expires.
func (c *Cache[K, V]) Set(key K, value V, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[V]{value: value, expires: expires}
}

// Len counts the stored entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
