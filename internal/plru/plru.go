// Package plru implements bit-PLRU (pseudo-LRU): a lockless approximate
// cache-replacement tracker organizing cache lines into 64-bit "bulks" of
// hot/cold flags. touch sets a line's bit; replace finds a cold line in the
// bulk chosen by a round-robin counter, inflating (zeroing) a fully-hot
// bulk in the process.
package plru

import (
	"math/bits"
	"sync/atomic"
)

// Cache tracks "hotness" for a fixed number of cache lines, identified by
// index 0..Len()-1.
type Cache struct {
	bulks   []atomic.Uint64
	counter atomic.Uint32
}

// New creates a Cache with at least lines cache lines (rounded up to a
// multiple of 64).
func New(lines int) *Cache {
	n := (lines + 63) / 64
	if n < 1 {
		n = 1
	}
	return &Cache{bulks: make([]atomic.Uint64, n)}
}

// Len returns the number of cache lines this Cache tracks.
func (c *Cache) Len() int {
	return len(c.bulks) * 64
}

// Touch marks line n as recently used.
func (c *Cache) Touch(n int) {
	c.bulks[n/64].Or(1 << uint(n%64))
}

// Trash marks line n as cold, queuing it for replacement until touched
// again.
func (c *Cache) Trash(n int) {
	c.bulks[n/64].And(^(uint64(1) << uint(n%64)))
}

// IsHot reports whether line n was touched since it was last cold.
func (c *Cache) IsHot(n int) bool {
	return c.bulks[n/64].Load()&(1<<uint(n%64)) != 0
}

// Replace returns the approximate least-recently-used line. It does not
// mark the returned line as touched; callers that immediately use it must
// call Touch separately. The result is not guaranteed unique across calls.
func (c *Cache) Replace() int {
	idx := int(c.counter.Add(1)-1) % len(c.bulks)

	bulk := &c.bulks[idx]
	old := bulk.Load()
	if old == ^uint64(0) {
		// Every line in this bulk is hot; inflate by zeroing it so all of
		// its lines become cold candidates again.
		bulk.CompareAndSwap(old, 0)
		old = bulk.Load()
		if old == ^uint64(0) {
			old = 0
		}
	}

	ffz := bits.TrailingZeros64(^old) % 64
	return idx*64 + ffz
}
