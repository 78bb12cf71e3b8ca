package diskfmt

import "github.com/tfs-io/tfs/internal/leb"

// PagePointerSize is the fixed on-disk/in-memory size of a PagePointer.
const PagePointerSize = 16

// offsetNone is the sentinel marking an uncompressed page (offset absent).
const offsetNone = 0xFFFFFFFF

// ClusterPointer identifies a sector at the allocator level; zero is null.
type ClusterPointer uint64

// PagePointer is the 16-byte triple (cluster_ptr, offset, checksum32)
// identifying a page. Offset is nil for uncompressed clusters, or the
// compressed-stream page index otherwise.
type PagePointer struct {
	Cluster  ClusterPointer
	Offset   *uint32
	Checksum uint32
}

// Encode writes p into buf[0:16].
func (p PagePointer) Encode(buf []byte) {
	leb.PutUint64(buf[0:8], uint64(p.Cluster))
	if p.Offset == nil {
		leb.PutUint32(buf[8:12], offsetNone)
	} else {
		leb.PutUint32(buf[8:12], *p.Offset)
	}
	leb.PutUint32(buf[12:16], p.Checksum)
}

// DecodePagePointer parses a PagePointer from buf[0:16].
func DecodePagePointer(buf []byte) PagePointer {
	cluster := ClusterPointer(leb.Uint64(buf[0:8]))
	off := leb.Uint32(buf[8:12])
	cksum := leb.Uint32(buf[12:16])

	var offset *uint32
	if off != offsetNone {
		v := off
		offset = &v
	}
	return PagePointer{Cluster: cluster, Offset: offset, Checksum: cksum}
}

// IsNull reports whether p is the all-zero null pointer.
func (p PagePointer) IsNull() bool {
	return p.Cluster == 0 && p.Offset == nil && p.Checksum == 0
}
