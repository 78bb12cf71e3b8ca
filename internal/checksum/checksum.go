package checksum

import "github.com/tfs-io/tfs/internal/tfserr"

// Algo identifies a checksum algorithm by its on-disk tag (disk-header
// checksum_algo field).
type Algo uint16

const (
	// AlgoSeaHash is the only algorithm with a fixed meaning (value 1, per
	// the disk-header layout). Values 0x8000-0xFFFF are
	// implementation-defined; everything else is corruption.
	AlgoSeaHash Algo = 1
)

// Lookup resolves a checksum_algo tag to an Algorithm implementation.
func Lookup(tag uint16) (Algorithm, error) {
	switch {
	case tag == uint16(AlgoSeaHash):
		return SeaHash{}, nil
	case tag >= 0x8000:
		return nil, &tfserr.ImplementationError{What: "checksum algorithm"}
	default:
		return nil, &tfserr.CorruptionError{What: "unknown checksum algorithm"}
	}
}
