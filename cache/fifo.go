package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the number of resident entries used when none is given.
const DefaultCapacity = 5

type entry[K comparable, V any] struct {
	key   K
	value V
}

// FIFO is a bounded map with insertion-order eviction.
// It is safe for concurrent use.
type FIFO[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = oldest
	onEvict  func(K, V)
}

// New creates a cache holding at most capacity entries. A non-positive
// capacity means DefaultCapacity.
func New[K comparable, V any](capacity int) *FIFO[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FIFO[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// OnEvict registers fn to be called with every entry removed by capacity
// eviction. fn runs after the cache lock is released.
func (c *FIFO[K, V]) OnEvict(fn func(key K, value V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns the value stored for key. A hit does not change eviction order.
func (c *FIFO[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		return el.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is resident.
func (c *FIFO[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Put stores value under key.
//
// A new key arriving at a full cache first evicts the oldest entry, so the
// size never exceeds the capacity. Storing an existing key replaces its value
// and keeps its original position.
func (c *FIFO[K, V]) Put(key K, value V) {
	c.mu.Lock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.mu.Unlock()
		return
	}

	var evicted *entry[K, V]
	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		evicted = c.order.Remove(oldest).(*entry[K, V])
		delete(c.items, evicted.key)
	}

	c.items[key] = c.order.PushBack(&entry[K, V]{key: key, value: value})
	onEvict := c.onEvict
	c.mu.Unlock()

	if evicted != nil && onEvict != nil {
		onEvict(evicted.key, evicted.value)
	}
}

// Len returns the number of resident entries.
func (c *FIFO[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Cap returns the capacity.
func (c *FIFO[K, V]) Cap() int {
	return c.capacity
}

// Keys returns the resident keys, oldest first.
func (c *FIFO[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Values returns the resident values, oldest first.
func (c *FIFO[K, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := make([]V, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		values = append(values, el.Value.(*entry[K, V]).value)
	}
	return values
}
