package vdev

import (
	"fmt"

	"github.com/tfs-io/tfs/internal/checksum"
	"github.com/tfs-io/tfs/internal/diskfmt"
	"github.com/tfs-io/tfs/internal/speck"
	"github.com/tfs-io/tfs/internal/tfserr"
	"github.com/tfs-io/tfs/internal/tfslog"
	"github.com/tfs-io/tfs/pkg/fs"
)

// Driver owns the backing file, the disk header, and the built layer
// stack. It is the only thing above it (the cache/allocator) ever talks to.
// Grounded on original_source/core/src/disk/vdev.rs's Driver<D>: open()
// validates state, warns on a dirty reopen, refuses an inconsistent image,
// and Drop writes the header back as Closed.
type Driver struct {
	f      fs.File
	log    tfslog.Logger
	header diskfmt.Header
	algo   checksum.Algorithm
	disk   Disk
	closed bool
}

// Open validates and opens an existing disk image, building the vdev layer
// stack described by the header. password may be nil if the stack has no
// Speck layer.
func Open(f fs.File, log tfslog.Logger, password []byte) (*Driver, error) {
	if log == nil {
		log = tfslog.Nop()
	}

	if err := lockImage(f); err != nil {
		return nil, err
	}

	hbuf := make([]byte, diskfmt.SectorSize)
	if _, err := f.ReadAt(hbuf, 0); err != nil {
		_ = unlockImage(f)
		return nil, fmt.Errorf("vdev: read header: %w", err)
	}

	header, err := diskfmt.DecodeHeader(hbuf)
	if err != nil {
		_ = unlockImage(f)
		return nil, err
	}

	switch header.StateFlag {
	case diskfmt.StateInconsistent:
		_ = unlockImage(f)
		return nil, tfserr.ErrInconsistent
	case diskfmt.StateOpen:
		log.Warn("disk image was not closed cleanly, reopening anyway", "uid", header.UID)
	}

	algo, err := checksum.Lookup(header.ChecksumAlgo)
	if err != nil {
		_ = unlockImage(f)
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = unlockImage(f)
		return nil, fmt.Errorf("vdev: stat: %w", err)
	}
	physicalSectors := uint64(info.Size()) / diskfmt.SectorSize

	disk, err := buildStack(f, physicalSectors, header.VdevStack, header.UID[:], password)
	if err != nil {
		_ = unlockImage(f)
		return nil, err
	}

	d := &Driver{f: f, log: log, header: header, algo: algo, disk: disk}
	d.header.StateFlag = diskfmt.StateOpen
	if err := d.FlushHeader(); err != nil {
		_ = unlockImage(f)
		return nil, err
	}
	return d, nil
}

// Format initializes a fresh disk image: truncates f to hold dataSectors
// worth of sectors plus the header sector itself, and writes a Closed
// header. It does not open the resulting image.
func Format(f fs.File, algo checksum.Algorithm, checksumAlgoTag uint16, vdevStack []diskfmt.VdevLabel, dataSectors uint64) (diskfmt.Header, error) {
	h := diskfmt.NewHeader(checksumAlgoTag, vdevStack)

	totalSectors := dataSectors + 1
	if err := f.Truncate(int64(totalSectors) * diskfmt.SectorSize); err != nil {
		return diskfmt.Header{}, fmt.Errorf("vdev: truncate: %w", err)
	}

	buf, err := h.Encode(algo)
	if err != nil {
		return diskfmt.Header{}, err
	}
	if _, err := f.WriteAt(buf, 0); err != nil {
		return diskfmt.Header{}, fmt.Errorf("vdev: write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return diskfmt.Header{}, fmt.Errorf("vdev: sync: %w", err)
	}
	return h, nil
}

func buildStack(f fs.File, physicalSectors uint64, labels []diskfmt.VdevLabel, uid []byte, password []byte) (Disk, error) {
	var disk Disk = newRawDisk(f, physicalSectors)

	for _, label := range labels {
		switch label {
		case diskfmt.VdevMirror:
			disk = newMirror(disk)
		case diskfmt.VdevSpeck:
			if len(password) == 0 {
				return nil, &tfserr.ImplementationError{What: "vdev: speck layer requires a password"}
			}
			xex, err := speck.DeriveXEX(password, uid)
			if err != nil {
				return nil, fmt.Errorf("vdev: derive cipher key: %w", err)
			}
			disk = newSpeckLayer(disk, xex)
		default:
			return nil, &tfserr.ImplementationError{What: "vdev: unsupported vdev label"}
		}
	}
	return disk, nil
}

// NumberOfSectors returns the number of logical data sectors available
// above the layer stack.
func (d *Driver) NumberOfSectors() uint64 { return d.disk.NumberOfSectors() }

// Read reads one logical sector, already untransformed by every layer.
func (d *Driver) Read(sector uint64) ([]byte, error) { return d.disk.Read(sector) }

// Write writes one logical sector, transformed by every layer on the way
// down to the backing file.
func (d *Driver) Write(sector uint64, buf []byte) error { return d.disk.Write(sector, buf) }

// Trim marks a logical sector as no longer holding live data.
func (d *Driver) Trim(sector uint64) error { return d.disk.Trim(sector) }

// HealRead re-reads a sector from whatever secondary copy the layer stack
// can offer, for a caller that already read the primary copy via Read and
// found it logically corrupt. Layers that have no secondary copy (Speck
// alone, or a bare raw disk) fall back to an ordinary Read.
func (d *Driver) HealRead(sector uint64) ([]byte, error) {
	if healer, ok := d.disk.(Healer); ok {
		return healer.ReadHealed(sector)
	}
	return d.disk.Read(sector)
}

// Algo returns the checksum algorithm named in the header.
func (d *Driver) Algo() checksum.Algorithm { return d.algo }

// Header returns a copy of the in-memory disk header.
func (d *Driver) Header() diskfmt.Header { return d.header }

// FlushHeader writes the current in-memory header (including whatever
// StateFlag the caller has set) back to sector 0 and syncs.
func (d *Driver) FlushHeader() error {
	buf, err := d.header.Encode(d.algo)
	if err != nil {
		return err
	}
	if _, err := d.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("vdev: write header: %w", err)
	}
	return d.f.Sync()
}

// MarkInconsistent flags the image as inconsistent and flushes the header
// immediately, so a crash between this call and the next clean Close is
// caught on the next Open.
func (d *Driver) MarkInconsistent() error {
	d.header.StateFlag = diskfmt.StateInconsistent
	return d.FlushHeader()
}

// Close writes the header back as Closed, syncs, releases the advisory
// lock, and closes the backing file. Mirrors the original's Drop-equivalent
// cleanup, made explicit since Go has no destructors.
func (d *Driver) Close() error {
	if d.closed {
		return tfserr.ErrClosed
	}
	d.closed = true

	d.header.StateFlag = diskfmt.StateClosed
	if err := d.FlushHeader(); err != nil {
		_ = unlockImage(d.f)
		_ = d.f.Close()
		return err
	}
	if err := unlockImage(d.f); err != nil {
		_ = d.f.Close()
		return err
	}
	return d.f.Close()
}
