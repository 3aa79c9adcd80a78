// Package cache provides a process-wide TTL cache for retrieval results,
// keyed by tenant and query. Entries expire lazily on read; when the
// cache is full the oldest inserted entry is evicted.
package cache

import (
	"container/list"
	"strconv"
	"sync"
	"time"
)

// TTLCache is a capacity-bounded map with per-entry expiry. Construct in
// main and inject; safe for concurrent use.
type TTLCache struct {
	capacity int
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // insertion order, oldest at front
	now     func() time.Time
}

type entry struct {
	value     interface{}
	expiresAt time.Time
	elem      *list.Element
}

// New creates a TTL cache with the given capacity and entry lifetime.
func New(capacity int, ttl time.Duration) *TTLCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &TTLCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*entry),
		order:    list.New(),
		now:      time.Now,
	}
}

// Key builds the tenant+query scoped cache key.
func Key(tenantID, query string, topK int) string {
	return tenantID + "|" + query + "|" + strconv.Itoa(topK)
}

// Get returns the cached value, expiring it lazily when past its TTL.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.remove(key, e)
		return nil, false
	}
	return e.value, true
}

// Set stores a value, evicting the oldest inserted entry when at capacity.
func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = c.now().Add(c.ttl)
		return
	}

	if len(c.entries) >= c.capacity {
		if front := c.order.Front(); front != nil {
			oldest := front.Value.(string)
			c.remove(oldest, c.entries[oldest])
		}
	}

	c.entries[key] = &entry{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
		elem:      c.order.PushBack(key),
	}
}

// Len reports the number of stored entries, including not-yet-expired ones.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache) remove(key string, e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, key)
}
