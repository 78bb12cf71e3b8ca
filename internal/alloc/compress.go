package alloc

import (
	"errors"

	"github.com/pierrec/lz4/v4"

	"github.com/tfs-io/tfs/internal/diskfmt"
)

// maxAccumulator is the safety cap on a thread-local compression
// accumulator.
const maxAccumulator = 512 * 2048

// errCompressedTooLarge means the compressed form (plus its delimiter)
// does not fit in one sector; callers fall back to writing uncompressed.
var errCompressedTooLarge = errors.New("tfs: alloc: compressed data does not fit in one sector")

// errPaddingCorrupt means a sector claiming to hold compressed data failed
// the trailing-delimiter scan: either all-zero or the scan ran off the
// front of the sector without finding 0xFF.
var errPaddingCorrupt = errors.New("tfs: alloc: compression padding corrupt")

// compressPad compresses buf and appends the sector's padding convention: a
// single 0xFF delimiter followed by zero padding to diskfmt.SectorSize. It
// fails with errCompressedTooLarge if the compressed form (plus delimiter)
// would not fit, and relies on lz4.UncompressBlock's self-limiting
// decompression rather than storing an explicit length.
func compressPad(buf []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(buf))
	dst := make([]byte, bound)

	var c lz4.Compressor
	n, err := c.CompressBlock(buf, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 || n+1 > diskfmt.SectorSize {
		return nil, errCompressedTooLarge
	}

	out := make([]byte, diskfmt.SectorSize)
	copy(out, dst[:n])
	out[n] = 0xFF
	return out, nil
}

// decompressPadded reverses compressPad: scans sector from the end for the
// last non-zero byte (which must be the 0xFF delimiter), decompresses the
// prefix before it, and returns the recovered bytes.
func decompressPadded(sector []byte) ([]byte, error) {
	idx := -1
	for i := len(sector) - 1; i >= 0; i-- {
		if sector[i] != 0 {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return nil, errPaddingCorrupt
	}
	if sector[idx] != 0xFF {
		return nil, errPaddingCorrupt
	}

	dst := make([]byte, maxAccumulator)
	n, err := lz4.UncompressBlock(sector[:idx], dst)
	if err != nil {
		return nil, errPaddingCorrupt
	}
	return dst[:n], nil
}
