// Package cache provides a bounded map with first-in-first-out eviction.
package cache

// FIFO is a map bounded to a fixed number of entries. When full, Put evicts
// the entry inserted earliest. Updating an existing key keeps its position.
//
// FIFO is not safe for concurrent use; callers hold their own lock.
type FIFO[K comparable, V any] struct {
	entries map[K]V
	ring    []K // insertion order, oldest at head
	head    int
	size    int
}

// NewFIFO returns a FIFO holding at most capacity entries.
// A capacity below 1 is treated as 1.
func NewFIFO[K comparable, V any](capacity int) *FIFO[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO[K, V]{
		entries: make(map[K]V, capacity),
		ring:    make([]K, capacity),
	}
}

// Get returns the value stored under key.
func (c *FIFO[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// Put stores value under key and reports whether an older entry was evicted.
func (c *FIFO[K, V]) Put(key K, value V) (evicted bool) {
	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return false
	}
	if c.size == len(c.ring) {
		oldest := c.ring[c.head]
		delete(c.entries, oldest)
		c.ring[c.head] = key
		c.head = (c.head + 1) % len(c.ring)
		c.entries[key] = value
		return true
	}
	c.ring[(c.head+c.size)%len(c.ring)] = key
	c.size++
	c.entries[key] = value
	return false
}

// Len returns the number of stored entries.
func (c *FIFO[K, V]) Len() int { return c.size }

// Cap returns the maximum number of entries.
func (c *FIFO[K, V]) Cap() int { return len(c.ring) }

// Clear removes every entry.
func (c *FIFO[K, V]) Clear() {
	clear(c.entries)
	var zero K
	for i := range c.ring {
		c.ring[i] = zero
	}
	c.head = 0
	c.size = 0
}

// RemoveFunc removes every entry whose key satisfies pred and returns the
// number removed. Surviving entries keep their relative order.
func (c *FIFO[K, V]) RemoveFunc(pred func(K) bool) int {
	kept := make([]K, 0, c.size)
	for i := 0; i < c.size; i++ {
		k := c.ring[(c.head+i)%len(c.ring)]
		if pred(k) {
			delete(c.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	removed := c.size - len(kept)
	if removed == 0 {
		return 0
	}

	var zero K
	for i := range c.ring {
		c.ring[i] = zero
	}
	copy(c.ring, kept)
	c.head = 0
	c.size = len(kept)
	return removed
}

// Keys returns the stored keys, oldest first.
func (c *FIFO[K, V]) Keys() []K {
	keys := make([]K, c.size)
	for i := range keys {
		keys[i] = c.ring[(c.head+i)%len(c.ring)]
	}
	return keys
}
