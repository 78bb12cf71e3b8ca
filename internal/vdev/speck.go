package vdev

import "github.com/tfs-io/tfs/internal/speck"

// speckLayer encrypts/decrypts every sector in place with Speck in XEX
// mode, tweaked by the sector's logical index. Grounded on
// original_source/core/src/disk/vdev.rs's Speck variant; the cipher itself
// lives in internal/speck.
type speckLayer struct {
	under Disk
	xex   speck.XEX
}

func newSpeckLayer(under Disk, xex speck.XEX) *speckLayer {
	return &speckLayer{under: under, xex: xex}
}

func (s *speckLayer) NumberOfSectors() uint64 { return s.under.NumberOfSectors() }

func (s *speckLayer) Read(sector uint64) ([]byte, error) {
	buf, err := s.under.Read(sector)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	s.xex.DecryptSector(out, sector)
	return out, nil
}

// ReadHealed forwards to the underlying layer's ReadHealed (if it has one)
// and decrypts the result, so healing is transparent through a Speck layer
// sitting above a Mirror layer in the stack.
func (s *speckLayer) ReadHealed(sector uint64) ([]byte, error) {
	healer, ok := s.under.(Healer)
	if !ok {
		return s.Read(sector)
	}
	buf, err := healer.ReadHealed(sector)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	s.xex.DecryptSector(out, sector)
	return out, nil
}

func (s *speckLayer) Write(sector uint64, buf []byte) error {
	out := make([]byte, len(buf))
	copy(out, buf)
	s.xex.EncryptSector(out, sector)
	return s.under.Write(sector, out)
}

func (s *speckLayer) Trim(sector uint64) error {
	return s.under.Trim(sector)
}
