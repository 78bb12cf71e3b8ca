// Package diskfmt implements the on-disk codecs for sector 0 (the disk
// header) and sector 1 (the state block), plus metacluster encoding.
//
// The fixed-offset, trailing-checksum codec style follows
// pkg/slotcache/format.go's encodeHeader/decodeHeader/computeHeaderCRC
// shape.
package diskfmt

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/tfs-io/tfs/internal/checksum"
	"github.com/tfs-io/tfs/internal/leb"
	"github.com/tfs-io/tfs/internal/tfserr"
)

// SectorSize is the fixed physical sector size used throughout TFS.
const SectorSize = 512

// StateFlag is the disk header's state_flag field.
type StateFlag uint8

const (
	StateClosed       StateFlag = 0
	StateOpen         StateFlag = 1
	StateInconsistent StateFlag = 2
)

// VdevLabel identifies a vdev-stack layer on disk.
type VdevLabel uint16

const (
	VdevTerminator VdevLabel = 0
	VdevMirror     VdevLabel = 1
	VdevSpeck      VdevLabel = 2
	VdevReserved   VdevLabel = 0xFFFF
)

var (
	magicTotal   = [8]byte{'T', 'F', 'S', ' ', 'f', 'm', 't', ' '}
	magicPartial = [8]byte{'~', 'T', 'F', 'S', ' ', 'f', 'm', 't'}
)

// implementation version this build writes and accepts as its own.
const (
	implMajor = 1
	implMinor = 0
)

const (
	offMagic        = 0
	offVersion      = 8
	offUID          = 16
	offChecksumAlgo = 32
	offStateFlag    = 48
	offVdevStack    = 64
	offChecksum     = 504
)

// Header is the in-memory form of sector 0.
type Header struct {
	Partial      bool // true if magic is the "~TFS fmt" partial-compatibility variant
	VersionMajor uint16
	VersionMinor uint16
	UID          [16]byte
	ChecksumAlgo uint16
	StateFlag    StateFlag
	VdevStack    []VdevLabel
}

// NewHeader constructs a fresh header for Format, with a random UID and the
// implementation's current version.
func NewHeader(checksumAlgo uint16, vdevStack []VdevLabel) Header {
	id := uuid.New()
	var uidBuf [16]byte
	copy(uidBuf[:], id[:])
	return Header{
		VersionMajor: implMajor,
		VersionMinor: implMinor,
		UID:          uidBuf,
		ChecksumAlgo: checksumAlgo,
		StateFlag:    StateClosed,
		VdevStack:    vdevStack,
	}
}

// Encode serializes h into a freshly allocated SectorSize-byte sector,
// computing the trailing checksum over bytes [0:504) under algo.
func (h Header) Encode(algo checksum.Algorithm) ([]byte, error) {
	buf := make([]byte, SectorSize)

	if h.Partial {
		copy(buf[offMagic:offMagic+8], magicPartial[:])
	} else {
		copy(buf[offMagic:offMagic+8], magicTotal[:])
	}

	leb.PutUint32(buf[offVersion:offVersion+4], uint32(h.VersionMajor)<<16|uint32(h.VersionMinor))
	copy(buf[offUID:offUID+16], h.UID[:])
	leb.PutUint16(buf[offChecksumAlgo:offChecksumAlgo+2], h.ChecksumAlgo)
	buf[offStateFlag] = byte(h.StateFlag)

	pos := offVdevStack
	for _, label := range h.VdevStack {
		if pos+2 > offChecksum {
			return nil, &tfserr.ImplementationError{What: "vdev stack too long for header"}
		}
		leb.PutUint16(buf[pos:pos+2], uint16(label))
		pos += 2
	}
	leb.PutUint16(buf[pos:pos+2], uint16(VdevTerminator))

	sum := algo.Sum64(buf[0:offChecksum])
	leb.PutUint64(buf[offChecksum:offChecksum+8], sum)

	return buf, nil
}

// DecodeHeader parses buf (must be SectorSize bytes) following the mandated
// parse order: magic -> version -> uid -> state_flag -> vdev_stack ->
// checksum_algo -> verify checksum.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) != SectorSize {
		return Header{}, &tfserr.CorruptionError{What: "disk header: wrong sector size"}
	}

	var h Header
	switch {
	case bytes.Equal(buf[offMagic:offMagic+8], magicTotal[:]):
		h.Partial = false
	case bytes.Equal(buf[offMagic:offMagic+8], magicPartial[:]):
		h.Partial = true
	default:
		return Header{}, &tfserr.CorruptionError{What: "disk header: bad magic"}
	}

	version := leb.Uint32(buf[offVersion : offVersion+4])
	h.VersionMajor = uint16(version >> 16)
	h.VersionMinor = uint16(version)
	if h.VersionMajor != implMajor {
		return Header{}, &tfserr.ImplementationError{What: "disk header: incompatible major version"}
	}
	if h.VersionMinor > implMinor {
		return Header{}, &tfserr.ImplementationError{What: "disk header: incompatible minor version"}
	}

	copy(h.UID[:], buf[offUID:offUID+16])

	h.StateFlag = StateFlag(buf[offStateFlag])
	if h.StateFlag != StateClosed && h.StateFlag != StateOpen && h.StateFlag != StateInconsistent {
		return Header{}, &tfserr.CorruptionError{What: "disk header: bad state flag"}
	}

	stack, err := decodeVdevStack(buf[offVdevStack:offChecksum])
	if err != nil {
		return Header{}, err
	}
	h.VdevStack = stack

	algoTag := leb.Uint16(buf[offChecksumAlgo : offChecksumAlgo+2])
	h.ChecksumAlgo = algoTag
	algo, err := checksum.Lookup(algoTag)
	if err != nil {
		return Header{}, err
	}

	want := leb.Uint64(buf[offChecksum : offChecksum+8])
	got := algo.Sum64(buf[0:offChecksum])
	if want != got {
		return Header{}, &tfserr.CorruptionError{
			What: "disk header checksum", Want: want, Got: got, HasSums: true,
		}
	}

	return h, nil
}

func decodeVdevStack(buf []byte) ([]VdevLabel, error) {
	var stack []VdevLabel
	for pos := 0; pos+2 <= len(buf); pos += 2 {
		label := VdevLabel(leb.Uint16(buf[pos : pos+2]))
		switch label {
		case VdevTerminator:
			return stack, nil
		case VdevMirror, VdevSpeck:
			stack = append(stack, label)
		case VdevReserved:
			return nil, &tfserr.ImplementationError{What: "disk header: implementation-defined vdev"}
		default:
			return nil, &tfserr.CorruptionError{What: "disk header: unknown vdev label"}
		}
	}
	return nil, &tfserr.CorruptionError{What: "disk header: missing vdev stack terminator"}
}
