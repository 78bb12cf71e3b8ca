// Package chashmap implements the resizable, open-addressed concurrent hash
// map used as the sector cache's index: a RwLock-per-bucket table under a
// process-wide resize lock.
//
// Key duplicates can transiently exist across a contended insert race; they
// are only compacted away at the next resize's rebuild, not during normal
// operation — this is a deliberate, documented choice (see DESIGN.md).
package chashmap

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

type bucketState int

const (
	bucketEmpty bucketState = iota
	bucketRemoved
	bucketFilled
)

type bucket[K comparable, V any] struct {
	mu    sync.RWMutex
	state bucketState
	key   K
	value V
}

// Map is a concurrent, resizable, open-addressed hash map.
type Map[K comparable, V any] struct {
	hash func(K) uint64

	resizeMu sync.RWMutex
	table    []*bucket[K, V]
	total    int // approximate live-entry count, used for the resize threshold
}

// New constructs an empty Map with initialCapacity buckets (rounded up to a
// minimum), hashing keys with hash.
func New[K comparable, V any](initialCapacity int, hash func(K) uint64) *Map[K, V] {
	if initialCapacity < 16 {
		initialCapacity = 16
	}
	m := &Map[K, V]{hash: hash}
	m.table = newTable[K, V](initialCapacity)
	return m
}

// NewBytesKeyed constructs a Map keyed by any comparable type whose values
// are hashed through xxhash by way of keyBytes, a fast non-cryptographic
// hash well suited to bucket placement.
func NewBytesKeyed[K comparable, V any](initialCapacity int, keyBytes func(K) []byte) *Map[K, V] {
	return New[K, V](initialCapacity, func(k K) uint64 {
		return xxhash.Sum64(keyBytes(k))
	})
}

func newTable[K comparable, V any](n int) []*bucket[K, V] {
	t := make([]*bucket[K, V], n)
	for i := range t {
		t[i] = &bucket[K, V]{}
	}
	return t
}

// Get returns the value stored for key, if any.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.resizeMu.RLock()
	table := m.table
	m.resizeMu.RUnlock()

	idx := m.hash(key) % uint64(len(table))
	for i := 0; i < len(table); i++ {
		b := table[(idx+uint64(i))%uint64(len(table))]
		b.mu.RLock()
		switch b.state {
		case bucketEmpty:
			b.mu.RUnlock()
			var zero V
			return zero, false
		case bucketFilled:
			if b.key == key {
				v := b.value
				b.mu.RUnlock()
				return v, true
			}
		}
		b.mu.RUnlock()
		// bucketRemoved or non-matching bucketFilled: keep scanning, the
		// run is not terminated by a tombstone.
	}
	var zero V
	return zero, false
}

// Insert stores value for key, overwriting any existing entry, and triggers
// a resize if the load factor threshold is crossed.
func (m *Map[K, V]) Insert(key K, value V) {
	for {
		m.resizeMu.RLock()
		table := m.table
		idx := m.hash(key) % uint64(len(table))

		inserted := false
		// An entry for key further along the run (past a tombstone) is
		// overwritten in place rather than shadowed by a second entry.
		for i := 0; i < len(table) && !inserted; i++ {
			b := table[(idx+uint64(i))%uint64(len(table))]
			b.mu.Lock()
			if b.state == bucketFilled && b.key == key {
				b.value = value
				inserted = true
			}
			empty := b.state == bucketEmpty
			b.mu.Unlock()
			if empty {
				break
			}
		}
		for i := 0; i < len(table) && !inserted; i++ {
			b := table[(idx+uint64(i))%uint64(len(table))]
			b.mu.Lock()
			if b.state != bucketFilled || b.key == key {
				wasFilled := b.state == bucketFilled
				b.state = bucketFilled
				b.key = key
				b.value = value
				b.mu.Unlock()
				inserted = true
				if !wasFilled {
					m.bumpTotal(1)
				}
				break
			}
			b.mu.Unlock()
		}
		m.resizeMu.RUnlock()

		if !inserted {
			// Table is full along this probe sequence; force a resize and
			// retry (mirrors the source's resize-on-overflow behavior).
			m.maybeResize(true)
			continue
		}

		m.maybeResize(false)
		return
	}
}

// GetOrInsert returns the existing value for key if present; otherwise it
// calls makeValue, stores the result, and returns that. The check and the
// insert happen under the same bucket lock, so two concurrent callers for
// the same absent key never both win — exactly one makeValue call's result
// is stored and returned to both.
func (m *Map[K, V]) GetOrInsert(key K, makeValue func() V) V {
	for {
		// Find key anywhere in its run first, so a tombstone ahead of it
		// does not receive a second, fresh entry.
		if v, ok := m.Get(key); ok {
			return v
		}
		m.resizeMu.RLock()
		table := m.table
		idx := m.hash(key) % uint64(len(table))

		var result V
		found, inserted := false, false
		for i := 0; i < len(table); i++ {
			b := table[(idx+uint64(i))%uint64(len(table))]
			b.mu.Lock()
			if b.state == bucketFilled && b.key == key {
				result = b.value
				found = true
				b.mu.Unlock()
				break
			}
			if b.state != bucketFilled {
				result = makeValue()
				b.state = bucketFilled
				b.key = key
				b.value = result
				b.mu.Unlock()
				inserted = true
				break
			}
			b.mu.Unlock()
		}
		m.resizeMu.RUnlock()

		if found {
			return result
		}
		if inserted {
			m.bumpTotal(1)
			m.maybeResize(false)
			return result
		}
		m.maybeResize(true)
	}
}

// Remove tombstones key's bucket, if present.
func (m *Map[K, V]) Remove(key K) {
	m.resizeMu.RLock()
	table := m.table
	idx := m.hash(key) % uint64(len(table))

	removed := false
	for i := 0; i < len(table); i++ {
		b := table[(idx+uint64(i))%uint64(len(table))]
		b.mu.Lock()
		if b.state == bucketEmpty {
			b.mu.Unlock()
			break
		}
		if b.state == bucketFilled && b.key == key {
			b.state = bucketRemoved
			var zero V
			b.value = zero
			b.mu.Unlock()
			removed = true
			break
		}
		b.mu.Unlock()
	}
	m.resizeMu.RUnlock()

	if removed {
		m.bumpTotal(-1)
	}
}

// Len returns the approximate number of live entries.
func (m *Map[K, V]) Len() int {
	m.resizeMu.RLock()
	defer m.resizeMu.RUnlock()
	return m.total
}

func (m *Map[K, V]) bumpTotal(delta int) {
	m.resizeMu.Lock()
	m.total += delta
	m.resizeMu.Unlock()
}

// maybeResize reallocates the table at 4x capacity when
// total*100 >= buckets*85, or unconditionally when force is set (a probe
// sequence overflowed).
func (m *Map[K, V]) maybeResize(force bool) {
	m.resizeMu.Lock()
	defer m.resizeMu.Unlock()

	buckets := len(m.table)
	if !force && m.total*100 < buckets*85 {
		return
	}

	newCap := buckets * 4
	if newCap < 16 {
		newCap = 16
	}
	newT := newTable[K, V](newCap)
	live := 0
	for _, b := range m.table {
		b.mu.RLock()
		if b.state == bucketFilled && insertInto(newT, m.hash, b.key, b.value) {
			live++
		}
		b.mu.RUnlock()
	}
	m.table = newT
	m.total = live
}

// insertInto writes key into table, merging it into an existing entry for
// the same key (which compacts duplicates during a rebuild). It reports
// whether a new bucket was filled.
func insertInto[K comparable, V any](table []*bucket[K, V], hash func(K) uint64, key K, value V) bool {
	idx := hash(key) % uint64(len(table))
	for i := 0; i < len(table); i++ {
		b := table[(idx+uint64(i))%uint64(len(table))]
		if b.state != bucketFilled || b.key == key {
			fresh := b.state != bucketFilled
			b.state = bucketFilled
			b.key = key
			b.value = value
			return fresh
		}
	}
	return false
}

// Range calls f for every live (key, value) pair in unspecified order.
// Concurrent mutation during Range is not supported.
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.resizeMu.RLock()
	table := m.table
	m.resizeMu.RUnlock()

	for _, b := range table {
		b.mu.RLock()
		if b.state == bucketFilled {
			k, v := b.key, b.value
			b.mu.RUnlock()
			if !f(k, v) {
				return
			}
			continue
		}
		b.mu.RUnlock()
	}
}
