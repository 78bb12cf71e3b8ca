package diskfmt

import (
	"github.com/tfs-io/tfs/internal/checksum"
	"github.com/tfs-io/tfs/internal/leb"
	"github.com/tfs-io/tfs/internal/tfserr"
)

// Compression identifies the state block's compression-algorithm tag.
type Compression uint16

const (
	CompressionIdentity Compression = 0
	CompressionLZ4      Compression = 1
)

const (
	stateOffChecksum     = 0
	stateOffCompression  = 8
	stateOffSuperpage    = 16
	stateOffFreelistHead = 32
	stateSize            = SectorSize
)

// FreelistHead is the on-disk freelist-head descriptor: a cluster pointer
// plus the checksum of the metacluster it points to. Both zero means an
// empty freelist.
type FreelistHead struct {
	Cluster  ClusterPointer
	Checksum uint64
}

// IsEmpty reports whether the descriptor represents an empty freelist.
func (f FreelistHead) IsEmpty() bool {
	return f.Cluster == 0 && f.Checksum == 0
}

// State is the in-memory form of sector 1.
type State struct {
	Compression  Compression
	Superpage    PagePointer  // zero value means "none"
	FreelistHead FreelistHead
}

// Encode serializes s into a freshly allocated SectorSize-byte sector. The
// checksum covers bytes [8:512).
func (s State) Encode(algo checksum.Algorithm) []byte {
	buf := make([]byte, stateSize)

	leb.PutUint16(buf[stateOffCompression:stateOffCompression+2], uint16(s.Compression))
	s.Superpage.Encode(buf[stateOffSuperpage : stateOffSuperpage+PagePointerSize])
	leb.PutUint64(buf[stateOffFreelistHead:stateOffFreelistHead+8], uint64(s.FreelistHead.Cluster))
	leb.PutUint64(buf[stateOffFreelistHead+8:stateOffFreelistHead+16], s.FreelistHead.Checksum)

	sum := algo.Sum64(buf[stateOffCompression:])
	leb.PutUint64(buf[stateOffChecksum:stateOffChecksum+8], sum)

	return buf
}

// DecodeState parses a State from buf (must be SectorSize bytes),
// verifying the leading checksum over bytes [8:512).
func DecodeState(buf []byte, algo checksum.Algorithm) (State, error) {
	if len(buf) != stateSize {
		return State{}, &tfserr.CorruptionError{What: "state block: wrong sector size"}
	}

	want := leb.Uint64(buf[stateOffChecksum : stateOffChecksum+8])
	got := algo.Sum64(buf[stateOffCompression:])
	if want != got {
		return State{}, &tfserr.CorruptionError{
			What: "state block checksum", Want: want, Got: got, HasSums: true,
		}
	}

	var s State
	compTag := leb.Uint16(buf[stateOffCompression : stateOffCompression+2])
	switch {
	case compTag == uint16(CompressionIdentity) || compTag == uint16(CompressionLZ4):
		s.Compression = Compression(compTag)
	case compTag >= 0x8000:
		return State{}, &tfserr.ImplementationError{What: "state block: compression algorithm"}
	default:
		return State{}, &tfserr.CorruptionError{What: "state block: unknown compression algorithm"}
	}

	s.Superpage = DecodePagePointer(buf[stateOffSuperpage : stateOffSuperpage+PagePointerSize])
	s.FreelistHead = FreelistHead{
		Cluster:  ClusterPointer(leb.Uint64(buf[stateOffFreelistHead : stateOffFreelistHead+8])),
		Checksum: leb.Uint64(buf[stateOffFreelistHead+8 : stateOffFreelistHead+16]),
	}

	return s, nil
}
