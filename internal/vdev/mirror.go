package vdev

import "github.com/tfs-io/tfs/internal/tfserr"

// mirror duplicates every write across two equal halves of the underlying
// disk and heals a failed primary read from the secondary half. Grounded on
// original_source/core/src/disk/vdev.rs's Mirror variant.
type mirror struct {
	under Disk
	half  uint64
}

func newMirror(under Disk) *mirror {
	return &mirror{under: under, half: under.NumberOfSectors() / 2}
}

func (m *mirror) NumberOfSectors() uint64 { return m.half }

// ReadHealed reads the secondary (mirror) half directly, bypassing the
// primary. Used by Driver.HealRead when a caller has detected that the
// primary copy it already read is logically corrupt, not merely I/O-failed.
func (m *mirror) ReadHealed(sector uint64) ([]byte, error) {
	if sector >= m.half {
		return nil, &tfserr.ImplementationError{What: "mirror: sector out of range"}
	}
	return m.under.Read(sector + m.half)
}

func (m *mirror) Read(sector uint64) ([]byte, error) {
	if sector >= m.half {
		return nil, &tfserr.ImplementationError{What: "mirror: sector out of range"}
	}
	buf, err := m.under.Read(sector)
	if err == nil {
		return buf, nil
	}
	// Primary half failed; heal from the secondary.
	return m.under.Read(sector + m.half)
}

func (m *mirror) Write(sector uint64, buf []byte) error {
	if sector >= m.half {
		return &tfserr.ImplementationError{What: "mirror: sector out of range"}
	}
	if err := m.under.Write(sector, buf); err != nil {
		return err
	}
	return m.under.Write(sector+m.half, buf)
}

func (m *mirror) Trim(sector uint64) error {
	if sector >= m.half {
		return &tfserr.ImplementationError{What: "mirror: sector out of range"}
	}
	if err := m.under.Trim(sector); err != nil {
		return err
	}
	return m.under.Trim(sector + m.half)
}
