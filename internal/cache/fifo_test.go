package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOGetPut(t *testing.T) {
	c := NewFIFO[string, int](3)

	assert.False(t, c.Put("a", 1))
	assert.False(t, c.Put("b", 2))

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, c.Cap())
}

func TestFIFOEvictsEarliestInserted(t *testing.T) {
	c := NewFIFO[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	// Reads do not refresh position.
	_, _ = c.Get("a")

	evicted := c.Put("c", 3)
	assert.True(t, evicted)

	_, ok := c.Get("a")
	assert.False(t, ok, "earliest insertion goes first regardless of access")
	assert.Equal(t, []string{"b", "c"}, c.Keys())
}

func TestFIFOUpdateKeepsPosition(t *testing.T) {
	c := NewFIFO[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	assert.False(t, c.Put("a", 10))
	c.Put("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "updated key still evicted in insertion order")
	assert.Equal(t, 2, c.Len())
}

func TestFIFONeverExceedsCapacity(t *testing.T) {
	c := NewFIFO[int, int](5)
	for i := range 100 {
		c.Put(i, i)
		assert.LessOrEqual(t, c.Len(), 5)
	}
	assert.Equal(t, []int{95, 96, 97, 98, 99}, c.Keys())
}

func TestFIFOMinimumCapacity(t *testing.T) {
	c := NewFIFO[string, int](0)
	assert.Equal(t, 1, c.Cap())

	c.Put("a", 1)
	c.Put("b", 2)
	assert.Equal(t, []string{"b"}, c.Keys())
}

func TestFIFOClear(t *testing.T) {
	c := NewFIFO[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("c", 3)
	assert.Equal(t, []string{"c"}, c.Keys())
}

func TestFIFORemoveFunc(t *testing.T) {
	c := NewFIFO[string, int](4)
	c.Put("x:1", 1)
	c.Put("y:1", 2)
	c.Put("x:2", 3)
	c.Put("y:2", 4)
	c.Put("z:1", 5) // evicts x:1, head is now mid-ring

	removed := c.RemoveFunc(func(k string) bool { return k[0] == 'y' })
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"x:2", "z:1"}, c.Keys())

	// Freed slots are reusable without evicting survivors.
	c.Put("a", 6)
	c.Put("b", 7)
	assert.Equal(t, []string{"x:2", "z:1", "a", "b"}, c.Keys())
}
