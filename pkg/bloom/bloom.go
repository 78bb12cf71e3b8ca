// Package bloom implements a concurrent Bloom filter backed by an array of
// atomic 64-bit words, used by the SMR global GC for approximate hazard
// membership checks.
//
// This is hand-built on sync/atomic rather than depending on a third-party
// bloom-filter package: ipfs/bbloom guards its bit array with a mutex,
// which cannot satisfy the lock-free atomic-OR/load-and-mask contract this
// component needs (see DESIGN.md).
package bloom

import "sync/atomic"

// Filter is a concurrent Bloom filter.
type Filter struct {
	bits    []atomic.Uint64
	hashers int
}

// New creates a Filter with at least bytes bytes of internal storage and
// the number of hash functions that is optimal for expected_elements,
// following the same ln(2)-derived approximation as the original:
// hashers = (bytes/expected_elements * 45426 + 0x8000) >> 16.
func New(bytes, expectedElements int) *Filter {
	if expectedElements <= 0 {
		expectedElements = 1
	}
	hashers := (bytes/expectedElements*45426 + 0x8000) >> 16
	return WithSizeAndHashers(bytes, hashers)
}

// WithSizeAndHashers creates a Filter with at least bytes bytes of internal
// storage and exactly hashers hash functions (clamped to a minimum of 1).
func WithSizeAndHashers(bytes, hashers int) *Filter {
	if hashers < 1 {
		hashers = 1
	}
	n := (bytes + 7) / 8
	if n < 1 {
		n = 1
	}
	return &Filter{bits: make([]atomic.Uint64, n), hashers: hashers}
}

// hash is SeaHash's helper-module PCG-derived permutation, XORed with a
// constant to make it zero-sensitive, exactly as the original uses for its
// Bloom filter's internal hash sequence (distinct from the seahash package's
// own diffuse, which this intentionally mirrors rather than imports, to
// match the upstream cbloom crate byte-for-byte).
func hash(x uint64) uint64 {
	x *= 0x6eed0e9da4d94a4f
	a := x >> 32
	b := x >> 60
	x ^= a >> b
	x *= 0x6eed0e9da4d94a4f
	return x ^ 0x11c92f7574d3e84f
}

func (f *Filter) word(h uint64) *atomic.Uint64 {
	return &f.bits[(h/64)%uint64(len(f.bits))]
}

// Clear removes every element. Not atomic as a whole: concurrent inserts
// during Clear may survive.
func (f *Filter) Clear() {
	for i := range f.bits {
		f.bits[i].Store(0)
	}
}

// Insert adds x to the filter.
func (f *Filter) Insert(x uint64) {
	h := x
	for i := 0; i < f.hashers; i++ {
		h = hash(h)
		f.word(h).Or(1 << (h % 8))
	}
}

// MaybeContains reports whether x might have been inserted. false is a
// certain negative; true may be a false positive.
func (f *Filter) MaybeContains(x uint64) bool {
	h := x
	for i := 0; i < f.hashers; i++ {
		h = hash(h)
		if f.word(h).Load()&(1<<(h%8)) == 0 {
			return false
		}
	}
	return true
}
