package checksum_test

import (
	"testing"

	"github.com/tfs-io/tfs/internal/checksum"
)

func TestSeaHashDeterministic(t *testing.T) {
	h := checksum.SeaHash{}
	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = byte(i)
	}
	if h.Sum64(buf) != h.Sum64(buf) {
		t.Fatal("hash not deterministic")
	}
}

func TestSeaHashDetectsBitFlip(t *testing.T) {
	h := checksum.SeaHash{}
	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = byte(i * 7)
	}
	orig := h.Sum64(buf)

	buf[300] ^= 0x01
	if h.Sum64(buf) == orig {
		t.Fatal("bit flip not detected")
	}
}

func TestSeaHashVariousLengths(t *testing.T) {
	h := checksum.SeaHash{}
	for _, n := range []int{0, 1, 7, 8, 15, 16, 31, 32, 33, 63, 504, 512} {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(i)
		}
		_ = h.Sum64(buf) // must not panic for any length
	}
}

func TestLookupKnownAndReserved(t *testing.T) {
	if _, err := checksum.Lookup(1); err != nil {
		t.Fatalf("Lookup(1) = %v", err)
	}
	if _, err := checksum.Lookup(0x8001); err == nil {
		t.Fatal("Lookup(0x8001) should error")
	}
	if _, err := checksum.Lookup(2); err == nil {
		t.Fatal("Lookup(2) should error (unknown, not reserved)")
	}
}
