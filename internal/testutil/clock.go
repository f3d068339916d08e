package testutil

import "sync"

// DeterministicClock is a thread-safe stepping clock of epoch milliseconds
// for tests.
//
// Each call to Now advances by a fixed step, so the same test run always
// stamps the same CreatedAt values.
type DeterministicClock struct {
	mu   sync.Mutex
	base int64
	step int64
	n    int64
}

// NewDeterministicClock creates a clock whose first Now returns base.
// A step below 1 is treated as 1.
func NewDeterministicClock(base, step int64) *DeterministicClock {
	return &DeterministicClock{base: base, step: max(step, 1)}
}

// Now returns the current time and advances the clock.
func (c *DeterministicClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base + c.n*c.step
	c.n++
	return t
}

// Reset rewinds the clock to base.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
