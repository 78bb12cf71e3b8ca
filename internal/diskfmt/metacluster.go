package diskfmt

import "github.com/tfs-io/tfs/internal/leb"

// MaxFreePerMetacluster is the number of free-cluster-pointer slots that fit
// in one metacluster sector alongside its 8-byte next_checksum and 8-byte
// next pointer: (SectorSize-16)/8. With a fixed 512-byte sector that
// arithmetic yields 62, which is what this implementation fits and tests
// against.
const MaxFreePerMetacluster = (SectorSize - 16) / 8

const (
	metaOffNextChecksum = 0
	metaOffNext         = 8
	metaOffFree         = 16
)

// Metacluster is a sector of freelist pointers chained to the next
// metacluster. Free is terminated by the first null pointer; Count (a
// SPEC_FULL supplement grounded on the original's informal accounting, see
// DESIGN.md) returns len(Free) and HasRoom reports whether the allocator's
// freelist-push path can add another pointer. No count is stored.
type Metacluster struct {
	NextChecksum uint64
	Next         ClusterPointer
	Free         []ClusterPointer
}

// Count returns the number of free pointers currently chained in this
// metacluster.
func (m Metacluster) Count() int {
	return len(m.Free)
}

// HasRoom reports whether one more pointer fits.
func (m Metacluster) HasRoom() bool {
	return len(m.Free) < MaxFreePerMetacluster
}

// Encode serializes m into a freshly allocated SectorSize-byte sector.
func (m Metacluster) Encode() []byte {
	buf := make([]byte, SectorSize)
	leb.PutUint64(buf[metaOffNextChecksum:metaOffNextChecksum+8], m.NextChecksum)
	leb.PutUint64(buf[metaOffNext:metaOffNext+8], uint64(m.Next))

	pos := metaOffFree
	for _, ptr := range m.Free {
		if pos+8 > SectorSize {
			break
		}
		leb.PutUint64(buf[pos:pos+8], uint64(ptr))
		pos += 8
	}
	// Remaining slots stay zero, which is the null-pointer terminator.

	return buf
}

// DecodeMetacluster parses a Metacluster from buf (must be SectorSize
// bytes), stopping at the first null pointer.
func DecodeMetacluster(buf []byte) Metacluster {
	var m Metacluster
	m.NextChecksum = leb.Uint64(buf[metaOffNextChecksum : metaOffNextChecksum+8])
	m.Next = ClusterPointer(leb.Uint64(buf[metaOffNext : metaOffNext+8]))

	for pos := metaOffFree; pos+8 <= SectorSize; pos += 8 {
		ptr := ClusterPointer(leb.Uint64(buf[pos : pos+8]))
		if ptr == 0 {
			break
		}
		m.Free = append(m.Free, ptr)
	}
	return m
}
