package alloc

import (
	"sync/atomic"

	"github.com/tfs-io/tfs/internal/diskfmt"
)

// MaxPagesInTable is the fixed slot count for the dedup table (component
// J): an array, not a growable map, since a missed dedup opportunity is
// cheap and a fixed table keeps lookups branch-free.
const MaxPagesInTable = 65536

// candidate is one dedup-table slot: the page it points at, plus the
// fingerprint of the data that produced it, so a checksum collision alone
// can never cause a false hit.
type candidate struct {
	page        diskfmt.PagePointer
	fingerprint [32]byte
}

// dedupTable is an array of atomic candidate slots indexed by
// checksum mod len(slots). Lookup is a single atomic load plus two
// comparisons (checksum, then fingerprint); insert unconditionally
// overwrites.
type dedupTable struct {
	slots []atomic.Pointer[candidate]
}

func newDedupTable() *dedupTable {
	return &dedupTable{slots: make([]atomic.Pointer[candidate], MaxPagesInTable)}
}

func (t *dedupTable) lookup(cksum32 uint32, fingerprint [32]byte) (diskfmt.PagePointer, bool) {
	slot := &t.slots[uint64(cksum32)%uint64(len(t.slots))]
	c := slot.Load()
	if c == nil {
		return diskfmt.PagePointer{}, false
	}
	if c.page.Checksum != cksum32 {
		return diskfmt.PagePointer{}, false
	}
	if c.fingerprint != fingerprint {
		return diskfmt.PagePointer{}, false
	}
	return c.page, true
}

func (t *dedupTable) insert(cksum32 uint32, fingerprint [32]byte, page diskfmt.PagePointer) {
	slot := &t.slots[uint64(cksum32)%uint64(len(t.slots))]
	slot.Store(&candidate{page: page, fingerprint: fingerprint})
}
