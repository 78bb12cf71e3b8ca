// Package tfs is the public entry point for the content-addressed,
// compressing, optionally-encrypted block storage engine: it wires the vdev
// driver, the write-back sector cache, and the page allocator into a single
// handle.
//
// tfs is a throwaway-free, durable store: once Open returns successfully the
// handle is attached to a specific disk image's UID, vdev stack, and
// checksum algorithm, all fixed at Format time.
//
// # Basic Usage
//
//	tfs.Format("image.tfs", tfs.WithDataSectors(131072))
//
//	t, err := tfs.Open("image.tfs")
//	if err != nil {
//	    // handle errors.Is(err, tfserr.ErrCorrupt) / errors.Is(err, tfserr.ErrInconsistent)
//	}
//	defer t.Close()
//
//	reg := t.NewRegistry()
//	p, err := t.Alloc(reg, page)
//	buf, err := t.Read(p)
//	err = t.Free(p.Cluster)
//
// # Concurrency
//
// [*TFS] is safe for concurrent use across goroutines once opened. Each
// goroutine that calls [TFS.Alloc] under LZ4 compression should own its own
// [*tlocal.Registry] (see [TFS.NewRegistry]): the registry holds the
// calling goroutine's in-progress compression accumulator, mirroring the
// per-thread "last_cluster" slot of the original design.
//
// # Error Handling
//
// Errors fall into the kinds named in package tfserr: [tfserr.ErrCorrupt]
// (checksum/magic/padding failures, surfaced as a *tfserr.CorruptionError),
// [tfserr.ErrImplementation] (unsupported format extension), and
// [tfserr.ErrOutOfSpace] (freelist exhausted). A corrupt image should be
// treated as unrecoverable by this package; recovery is the caller's concern.
package tfs

import (
	"errors"
	"fmt"
	"os"

	"github.com/tfs-io/tfs/internal/alloc"
	"github.com/tfs-io/tfs/internal/cache"
	"github.com/tfs-io/tfs/internal/checksum"
	"github.com/tfs-io/tfs/internal/diskfmt"
	"github.com/tfs-io/tfs/internal/smr"
	"github.com/tfs-io/tfs/internal/tfserr"
	"github.com/tfs-io/tfs/internal/tfslog"
	"github.com/tfs-io/tfs/internal/tlocal"
	"github.com/tfs-io/tfs/internal/vdev"
	"github.com/tfs-io/tfs/pkg/fs"
)

// Options configures [Open] and [Format]. Construct via the WithX functions
// rather than by literal.
type Options struct {
	Password      []byte
	VdevStack     []diskfmt.VdevLabel
	DataSectors   uint64
	Compression   diskfmt.Compression
	ZeroOnFree    bool
	CacheCapacity int
	Logger        tfslog.Logger
	SMRSettings   smr.Settings
	FS            fs.FS
}

// Option mutates an Options in place.
type Option func(*Options)

// WithPassword sets the password used to derive the Speck vdev layer's key.
// Required if and only if [WithVdevStack] includes a Speck layer.
func WithPassword(password []byte) Option {
	return func(o *Options) { o.Password = password }
}

// WithVdevStack sets the ordered vdev transform stack written by [Format].
// Opening an existing image ignores this option: the stack actually applied
// is whatever the disk header names.
func WithVdevStack(stack ...diskfmt.VdevLabel) Option {
	return func(o *Options) { o.VdevStack = stack }
}

// WithDataSectors sets the number of data sectors [Format] allocates,
// beyond the single header sector.
func WithDataSectors(n uint64) Option {
	return func(o *Options) { o.DataSectors = n }
}

// WithCompression selects the page allocator's packing strategy.
func WithCompression(c diskfmt.Compression) Option {
	return func(o *Options) { o.Compression = c }
}

// WithZeroOnFree overwrites a cluster's contents before it rejoins the
// freelist (the "security" option).
func WithZeroOnFree(zero bool) Option {
	return func(o *Options) { o.ZeroOnFree = zero }
}

// WithCacheCapacity sets the initial sizing of the sector cache's index and
// replacement tracker. It does not bound the number of resident blocks.
func WithCacheCapacity(n int) Option {
	return func(o *Options) { o.CacheCapacity = n }
}

// WithLogger sets the structured logger used by the vdev driver, the SMR
// global GC, and the sector cache's heal path.
func WithLogger(log tfslog.Logger) Option {
	return func(o *Options) { o.Logger = log }
}

// WithSMRSettings overrides the GC tunables of this handle's SMR Local (§4.B).
func WithSMRSettings(settings smr.Settings) Option {
	return func(o *Options) { o.SMRSettings = settings }
}

// WithFS swaps the filesystem abstraction the disk image is opened through,
// for tests or fault injection.
func WithFS(fsys fs.FS) Option {
	return func(o *Options) { o.FS = fsys }
}

func resolveOptions(opts []Option) Options {
	o := Options{
		Compression:   diskfmt.CompressionIdentity,
		CacheCapacity: 1024,
		Logger:        tfslog.Nop(),
		SMRSettings:   smr.DefaultSettings(),
		FS:            fs.NewReal(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Format initializes a fresh disk image at path: a disk header (state
// Closed) followed by DataSectors data sectors in the vdev stack order
// named by [WithVdevStack], plus a freshly initialized state block (logical
// sector 0, no superpage) written through the built vdev stack so an
// encrypted or mirrored layer sees a well-formed sector rather than raw zero
// bytes, and a freelist seeded with every other data cluster. It does not
// leave the resulting image open.
func Format(path string, opts ...Option) (diskfmt.Header, error) {
	o := resolveOptions(opts)

	f, err := o.FS.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return diskfmt.Header{}, fmt.Errorf("tfs: format: open: %w", err)
	}

	algo := checksum.SeaHash{}
	header, err := vdev.Format(f, algo, uint16(checksum.AlgoSeaHash), o.VdevStack, o.DataSectors)
	if err != nil {
		_ = f.Close()
		return diskfmt.Header{}, err
	}

	driver, err := vdev.Open(f, o.Logger, o.Password)
	if err != nil {
		_ = f.Close()
		return diskfmt.Header{}, err
	}

	initial := diskfmt.State{Compression: o.Compression}
	if err := driver.Write(0, initial.Encode(algo)); err != nil {
		_ = driver.Close()
		return diskfmt.Header{}, fmt.Errorf("tfs: format: write initial state: %w", err)
	}

	if err := seedFreelist(driver, algo, o); err != nil {
		_ = driver.Close()
		return diskfmt.Header{}, fmt.Errorf("tfs: format: seed freelist: %w", err)
	}

	if err := driver.Close(); err != nil {
		return diskfmt.Header{}, fmt.Errorf("tfs: format: close: %w", err)
	}
	return header, nil
}

// seedFreelist chains every data cluster (logical sector 1..N-1; logical
// sector 0 holds the state block) onto the freelist via the allocator's own
// push algorithm, so the image's very first Alloc after Open has something
// to pop. Reuses Allocator.Free rather than hand-writing metaclusters, the
// same way a real mkfs would build its freelist by pushing every free
// cluster once.
func seedFreelist(driver *vdev.Driver, algo checksum.Algorithm, o Options) error {
	c := cache.New(driver, 256, o.Logger)
	local := smr.NewLocal(smr.NewGlobal(o.Logger), o.SMRSettings)
	a := alloc.New(c, algo, local, diskfmt.State{Compression: o.Compression}, alloc.Options{
		Compression: o.Compression,
		ZeroOnFree:  o.ZeroOnFree,
	})

	total := driver.NumberOfSectors()
	for cluster := uint64(1); cluster < total; cluster++ {
		if err := a.Free(diskfmt.ClusterPointer(cluster)); err != nil {
			return err
		}
	}
	return a.Close()
}

// TFS is an open disk image: the composed vdev driver, sector cache, and
// page allocator.
type TFS struct {
	driver *vdev.Driver
	cache  *cache.Cache
	global *smr.Global
	local  *smr.Local
	alloc  *alloc.Allocator
	log    tfslog.Logger
}

// Open opens an existing disk image at path, built with [Format]. Refuses
// an image whose state flag is Inconsistent ([tfserr.ErrInconsistent]), and
// warns (via the configured logger) on an unclean reopen (state Open).
func Open(path string, opts ...Option) (*TFS, error) {
	o := resolveOptions(opts)

	f, err := o.FS.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tfs: open: %w", err)
	}

	driver, err := vdev.Open(f, o.Logger, o.Password)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	c := cache.New(driver, o.CacheCapacity, o.Logger)

	st, err := readState(c, driver.Algo())
	if err != nil {
		_ = driver.Close()
		return nil, err
	}

	global := smr.NewGlobal(o.Logger)
	local := smr.NewLocal(global, o.SMRSettings)

	a := alloc.New(c, driver.Algo(), local, st, alloc.Options{
		Compression: o.Compression,
		ZeroOnFree:  o.ZeroOnFree,
	})

	return &TFS{driver: driver, cache: c, global: global, local: local, alloc: a, log: o.Logger}, nil
}

// readState reads and decodes the state block (logical sector 0), healing
// once through the driver if its checksum fails to verify.
func readState(c *cache.Cache, algo checksum.Algorithm) (diskfmt.State, error) {
	var st diskfmt.State
	err := c.ReadThen(0, func(data []byte) error {
		s, err := diskfmt.DecodeState(data, algo)
		if err != nil {
			if errors.Is(err, tfserr.ErrCorrupt) {
				return cache.ErrVerifyFailed
			}
			return err
		}
		st = s
		return nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrVerifyFailed) {
			return diskfmt.State{}, &tfserr.CorruptionError{What: "state block checksum", HasSums: true}
		}
		return diskfmt.State{}, err
	}
	return st, nil
}

// NewRegistry allocates a fresh thread-local registry for a calling
// goroutine (component L). Pass the same *tlocal.Registry on every Alloc
// call from that goroutine; do not share one across goroutines.
func (t *TFS) NewRegistry() *tlocal.Registry {
	return tlocal.NewRegistry()
}

// Alloc stores one page (exactly one sector's worth of data), deduplicating
// and optionally compression-packing it, and returns the pointer identifying
// it.
func (t *TFS) Alloc(reg *tlocal.Registry, buf []byte) (diskfmt.PagePointer, error) {
	return t.alloc.Alloc(reg, buf)
}

// Read fetches the page identified by p.
func (t *TFS) Read(p diskfmt.PagePointer) ([]byte, error) {
	return t.alloc.Read(p)
}

// Free returns cluster to the freelist.
func (t *TFS) Free(cluster diskfmt.ClusterPointer) error {
	return t.alloc.Free(cluster)
}

// Header returns the disk header this handle was opened with: UID,
// version, checksum algorithm, and vdev stack.
func (t *TFS) Header() diskfmt.Header {
	return t.driver.Header()
}

// Superpage returns the current superpage pointer, the zero value if none
// has ever been set.
func (t *TFS) Superpage() (diskfmt.PagePointer, error) {
	return t.alloc.Superpage()
}

// SetSuperpage records page as the superpage pointer and flushes the state
// block.
func (t *TFS) SetSuperpage(page diskfmt.PagePointer) error {
	return t.alloc.SetSuperpage(page)
}

// Flush drains every dirty sector-cache block to the driver without closing
// the handle.
func (t *TFS) Flush() error {
	return t.alloc.Close()
}

// GC blocks until one SMR collection cycle completes.
func (t *TFS) GC() {
	t.global.GC()
}

// TryGC attempts one SMR collection cycle, returning tfserr.ErrBusy if
// another goroutine is already collecting.
func (t *TFS) TryGC() error {
	return t.global.TryGC()
}

// Close flushes all dirty cache blocks, drains this handle's thread-local
// SMR garbage, and writes the disk header back as Closed.
func (t *TFS) Close() error {
	if err := t.alloc.Close(); err != nil {
		_ = t.driver.Close()
		return err
	}
	t.local.Close()
	return t.driver.Close()
}
