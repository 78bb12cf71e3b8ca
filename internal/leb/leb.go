// Package leb provides bijective little-endian encoding for the fixed-width
// integer fields used throughout the on-disk formats: every PutUintN is the
// exact inverse of UintN, and two PutUintN calls into non-overlapping
// sub-slices of the same buffer never interfere with each other.
package leb

import "encoding/binary"

// PutUint8 writes v into buf[0].
func PutUint8(buf []byte, v uint8) {
	buf[0] = v
}

// Uint8 reads a byte written by PutUint8.
func Uint8(buf []byte) uint8 {
	return buf[0]
}

// PutUint16 writes v into buf[0:2], little-endian.
func PutUint16(buf []byte, v uint16) {
	binary.LittleEndian.PutUint16(buf, v)
}

// Uint16 reads a value written by PutUint16.
func Uint16(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

// PutUint32 writes v into buf[0:4], little-endian.
func PutUint32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

// Uint32 reads a value written by PutUint32.
func Uint32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

// PutUint64 writes v into buf[0:8], little-endian.
func PutUint64(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

// Uint64 reads a value written by PutUint64.
func Uint64(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

// PutUint128 writes a 128-bit value as two little-endian uint64 lanes
// (low lane first) into buf[0:16].
func PutUint128(buf []byte, lo, hi uint64) {
	PutUint64(buf[0:8], lo)
	PutUint64(buf[8:16], hi)
}

// Uint128 reads a value written by PutUint128, returning (lo, hi).
func Uint128(buf []byte) (lo, hi uint64) {
	return Uint64(buf[0:8]), Uint64(buf[8:16])
}
