package cache

import (
	"sort"
	"sync"
)

// Store is a thread-safe keyed cache. The renderer keeps one retained
// drawable per particle in it, keyed by particle name, and updates it from
// plain per-frame state.
type Store[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewStore creates an empty Store.
func NewStore[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		items: make(map[K]V),
	}
}

// Get retrieves a value by key
func (c *Store[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

// Set stores a value by key
func (c *Store[K, V]) Set(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = v
}

// GetOrCreate returns the cached value for key, creating it with create on
// first use.
func (c *Store[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.RLock()
	v, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.items[key]; ok {
		return v
	}
	v = create()
	c.items[key] = v
	return v
}

// Delete removes a value by key
func (c *Store[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of cached values.
func (c *Store[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reset clears the cache
func (c *Store[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

// Keys returns the cached keys ordered by less.
func (c *Store[K, V]) Keys(less func(a, b K) bool) []K {
	c.mu.RLock()
	keys := make([]K, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
