package leb_test

import (
	"testing"

	"github.com/tfs-io/tfs/internal/leb"
)

func TestRoundTrip(t *testing.T) {
	buf := make([]byte, 16)

	leb.PutUint8(buf[0:1], 0xAB)
	if got := leb.Uint8(buf[0:1]); got != 0xAB {
		t.Fatalf("Uint8: got %x", got)
	}

	leb.PutUint16(buf[0:2], 0x1234)
	if got := leb.Uint16(buf[0:2]); got != 0x1234 {
		t.Fatalf("Uint16: got %x", got)
	}

	leb.PutUint32(buf[0:4], 0xDEADBEEF)
	if got := leb.Uint32(buf[0:4]); got != 0xDEADBEEF {
		t.Fatalf("Uint32: got %x", got)
	}

	leb.PutUint64(buf[0:8], 0x0102030405060708)
	if got := leb.Uint64(buf[0:8]); got != 0x0102030405060708 {
		t.Fatalf("Uint64: got %x", got)
	}

	leb.PutUint128(buf, 0x1111111111111111, 0x2222222222222222)
	lo, hi := leb.Uint128(buf)
	if lo != 0x1111111111111111 || hi != 0x2222222222222222 {
		t.Fatalf("Uint128: got lo=%x hi=%x", lo, hi)
	}
}

func TestNonOverlappingWrites(t *testing.T) {
	buf := make([]byte, 12)
	leb.PutUint32(buf[0:4], 1)
	leb.PutUint32(buf[4:8], 2)
	leb.PutUint32(buf[8:12], 3)

	if leb.Uint32(buf[0:4]) != 1 || leb.Uint32(buf[4:8]) != 2 || leb.Uint32(buf[8:12]) != 3 {
		t.Fatalf("writes interfered: %v", buf)
	}
}
