// Package speck implements the Speck128/128 block cipher (two 64-bit words,
// two 64-bit key words, 32 rounds) exactly as specified by the original
// Rust crate, plus an XEX-mode wrapper so it can encrypt whole sectors.
//
// No Go implementation of Speck exists in the wider ecosystem (see
// DESIGN.md); this is reimplemented directly from original_source/speck.
package speck

import "math/bits"

const rounds = 32

func round(x, y, k uint64) (uint64, uint64) {
	x = bits.RotateLeft64(x, -8)
	x += y
	x ^= k
	y = bits.RotateLeft64(y, 3)
	y ^= x
	return x, y
}

func invRound(x, y, k uint64) (uint64, uint64) {
	y ^= x
	y = bits.RotateLeft64(y, -3)
	x ^= k
	x -= y
	x = bits.RotateLeft64(x, 8)
	return x, y
}

// Key is a precomputed Speck key schedule, generated once and reused across
// many blocks.
type Key struct {
	schedule [rounds]uint64
}

// NewKey derives a schedule from the two 64-bit seed words.
func NewKey(k1, k2 uint64) Key {
	var key Key
	for i := uint64(0); i < rounds; i++ {
		key.schedule[i] = k2
		k1, k2 = round(k1, k2, i)
	}
	return key
}

// EncryptBlock encrypts one 128-bit block (m1, m2).
func (k Key) EncryptBlock(m1, m2 uint64) (uint64, uint64) {
	for _, sub := range k.schedule {
		m1, m2 = round(m1, m2, sub)
	}
	return m1, m2
}

// DecryptBlock decrypts one 128-bit block (c1, c2).
func (k Key) DecryptBlock(c1, c2 uint64) (uint64, uint64) {
	for i := len(k.schedule) - 1; i >= 0; i-- {
		c1, c2 = invRound(c1, c2, k.schedule[i])
	}
	return c1, c2
}
