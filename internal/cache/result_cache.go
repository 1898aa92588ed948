package cache

import (
	"container/list"
	"fmt"
	"sync"
)

// Key identifies one cached analysis result
type Key struct {
	Symbol      string
	Timeframe   string
	Fingerprint string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Symbol, k.Timeframe, k.Fingerprint)
}

type entry struct {
	key   string
	value interface{}
}

// ResultCache is a bounded LRU map from (symbol, timeframe, fingerprint) to
// an immutable prior result. Entries are snapshots and never mutated in
// place; eviction drops the least recently used entry once capacity is hit.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
	hits     int64
	misses   int64
}

// NewResultCache creates an empty cache holding at most capacity entries
func NewResultCache(capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &ResultCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get retrieves a cached result and marks it most recently used
func (c *ResultCache) Get(key Key) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key.String()]
	if !ok {
		c.misses++
		return nil, false
	}

	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Put stores a result snapshot, evicting the oldest entry past capacity
func (c *ResultCache) Put(key Key, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ks := key.String()
	if el, ok := c.items[ks]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.items[ks] = c.order.PushFront(&entry{key: ks, value: value})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// Resize changes capacity, evicting oldest entries if shrinking
func (c *ResultCache) Resize(capacity int) {
	if capacity <= 0 {
		capacity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = capacity
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// Clear removes all cached results
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of cached entries
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the configured maximum entry count
func (c *ResultCache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Stats returns hit/miss counters for diagnostics
func (c *ResultCache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]interface{}{
		"entries":  c.order.Len(),
		"capacity": c.capacity,
		"hits":     c.hits,
		"misses":   c.misses,
	}
}
