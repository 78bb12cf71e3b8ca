// Package alloc implements the page allocator (component I) and its dedup
// table (component J): content-addressed, optionally compressing,
// optionally deduplicating allocation of fixed-size pages onto clusters
// managed through the sector cache's freelist.
//
// Grounded on original_source/core/src/alloc/mod.rs (alloc/read/freelist
// algorithms), dedup.rs (the dedup table), and page.rs (page pointer
// semantics); the STM/Treiber-stack/tlocal building blocks are this
// module's pkg/conc and internal/tlocal.
package alloc

import (
	"errors"
	"sync"

	"github.com/tfs-io/tfs/internal/cache"
	"github.com/tfs-io/tfs/internal/checksum"
	"github.com/tfs-io/tfs/internal/diskfmt"
	"github.com/tfs-io/tfs/internal/smr"
	"github.com/tfs-io/tfs/internal/tfserr"
	"github.com/tfs-io/tfs/internal/tlocal"
	"github.com/tfs-io/tfs/pkg/conc"
)

// stateSector is the cache/driver logical sector holding the state block
// (component F): the vdev driver already remaps physical sector 1 to
// logical sector 0, so the allocator only ever addresses logical sectors.
const stateSector = 0

// Options configures an Allocator.
type Options struct {
	// Compression selects the page-packing strategy. CompressionIdentity
	// disables packing; CompressionLZ4 enables it.
	Compression diskfmt.Compression
	// ZeroOnFree overwrites a cluster's data before it is chained back onto
	// the freelist.
	ZeroOnFree bool
}

// Allocator is the page allocator: it owns the sector cache, a cached
// checksum algorithm, the mutable state sub-block (held in an STM cell), a
// buffered queue of freed clusters (a Treiber stack), and the dedup table.
type Allocator struct {
	cache   *cache.Cache
	algo    checksum.Algorithm
	options Options

	local *smr.Local
	state *conc.STM[diskfmt.State]

	freeQueue  *conc.Stack[diskfmt.ClusterPointer]
	freelistMu sync.Mutex

	dedup             *dedupTable
	lastClusterHandle tlocal.Handle
}

// New constructs an Allocator over c, seeded with the state block read
// from sector 0 (state) at open time.
func New(c *cache.Cache, algo checksum.Algorithm, local *smr.Local, initial diskfmt.State, options Options) *Allocator {
	st := initial
	return &Allocator{
		cache:             c,
		algo:              algo,
		options:           options,
		local:             local,
		state:             conc.NewSTM(local, &st),
		freeQueue:         conc.NewStack[diskfmt.ClusterPointer](local),
		dedup:             newDedupTable(),
		lastClusterHandle: tlocal.NewHandle(),
	}
}

// Alloc stores buf (exactly one SectorSize page), deduplicating and
// optionally compression-packing it, and returns the page pointer
// identifying it. reg is the calling goroutine's thread-local registry,
// used to look up its compression accumulator.
func (a *Allocator) Alloc(reg *tlocal.Registry, buf []byte) (diskfmt.PagePointer, error) {
	cksum32 := uint32(a.algo.Sum64(buf))
	fingerprint := checksum.Fingerprint256(buf)

	if page, ok := a.dedup.lookup(cksum32, fingerprint); ok {
		return page, nil
	}

	var page diskfmt.PagePointer
	var allocErr error

	if a.options.Compression == diskfmt.CompressionIdentity {
		page, allocErr = a.allocUncompressed(buf, cksum32)
	} else {
		tlocal.With(reg, a.lastClusterHandle, defaultLastCluster, func(lc *lastCluster) {
			page, allocErr = a.allocCompressed(lc, buf, cksum32)
		})
	}
	if allocErr != nil {
		return diskfmt.PagePointer{}, allocErr
	}

	a.dedup.insert(cksum32, fingerprint, page)
	return page, nil
}

func (a *Allocator) allocUncompressed(buf []byte, cksum32 uint32) (diskfmt.PagePointer, error) {
	cluster, err := a.popFreelist()
	if err != nil {
		return diskfmt.PagePointer{}, err
	}
	a.cache.Write(uint64(cluster), buf).Execute()
	return diskfmt.PagePointer{Cluster: cluster, Checksum: cksum32}, nil
}

func (a *Allocator) allocCompressed(lc *lastCluster, buf []byte, cksum32 uint32) (diskfmt.PagePointer, error) {
	if lc.has && len(lc.uncompressed)+len(buf) < maxAccumulator {
		oldLen := len(lc.uncompressed)
		candidate := make([]byte, 0, oldLen+len(buf))
		candidate = append(candidate, lc.uncompressed...)
		candidate = append(candidate, buf...)

		if packed, err := compressPad(candidate); err == nil {
			a.cache.Write(uint64(lc.cluster), packed).Execute()
			lc.uncompressed = candidate
			offset := uint32(oldLen / diskfmt.SectorSize)
			return diskfmt.PagePointer{Cluster: lc.cluster, Offset: &offset, Checksum: cksum32}, nil
		}
		// Does not fit: leave lc untouched (the append is not persisted)
		// and fall through to a fresh cluster.
	}

	cluster, err := a.popFreelist()
	if err != nil {
		return diskfmt.PagePointer{}, err
	}

	if packed, err := compressPad(buf); err == nil {
		a.cache.Write(uint64(cluster), packed).Execute()
		lc.cluster = cluster
		lc.has = true
		lc.uncompressed = append([]byte(nil), buf...)
		offset := uint32(0)
		return diskfmt.PagePointer{Cluster: cluster, Offset: &offset, Checksum: cksum32}, nil
	}

	a.cache.Write(uint64(cluster), buf).Execute()
	return diskfmt.PagePointer{Cluster: cluster, Checksum: cksum32}, nil
}

// Read fetches the page identified by p, decompressing and slicing it out
// of its cluster if necessary, and verifies its checksum. On a cache miss a
// checksum mismatch triggers one heal-and-retry through the cache before
// being reported as corruption; a mismatch against an already-resident copy
// is reported as corruption directly.
func (a *Allocator) Read(p diskfmt.PagePointer) ([]byte, error) {
	var raw []byte
	var gotSum uint32
	err := a.cache.ReadThen(uint64(p.Cluster), func(data []byte) error {
		var candidate []byte
		if p.Offset == nil {
			candidate = data
		} else {
			decompressed, err := decompressPadded(data)
			if err != nil {
				return cache.ErrVerifyFailed
			}
			off := int(*p.Offset) * diskfmt.SectorSize
			if off < 0 || off+diskfmt.SectorSize > len(decompressed) {
				return cache.ErrVerifyFailed
			}
			candidate = decompressed[off : off+diskfmt.SectorSize]
		}

		gotSum = uint32(a.algo.Sum64(candidate))
		if gotSum != p.Checksum {
			return cache.ErrVerifyFailed
		}
		raw = append([]byte(nil), candidate...)
		return nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrVerifyFailed) {
			return nil, &tfserr.CorruptionError{
				What: "page checksum", Sector: uint64(p.Cluster),
				Want: uint64(p.Checksum), Got: uint64(gotSum), HasSums: true,
			}
		}
		return nil, err
	}
	return raw, nil
}

// Free returns cluster to the freelist, per the push algorithm.
func (a *Allocator) Free(cluster diskfmt.ClusterPointer) error {
	return a.pushFreelist(cluster, a.options.ZeroOnFree)
}

// Superpage returns the current superpage pointer, the zero PagePointer if
// none has ever been set.
func (a *Allocator) Superpage() (diskfmt.PagePointer, error) {
	guard, ok := a.state.Load()
	if !ok {
		return diskfmt.PagePointer{}, &tfserr.ImplementationError{What: "alloc: state not initialized"}
	}
	p := guard.Value().Superpage
	guard.Release(false)
	return p, nil
}

// SetSuperpage records page as the new superpage pointer, flushes the
// state block, then drops the previous superpage's cluster from the
// cache. The old cluster's data stays on disk; only its cache residency
// is released.
func (a *Allocator) SetSuperpage(page diskfmt.PagePointer) error {
	old, err := a.Superpage()
	if err != nil {
		return err
	}

	a.state.Update(func(current *diskfmt.State) *diskfmt.State {
		next := *current
		next.Superpage = page
		return &next
	})
	if err := a.flushState(); err != nil {
		return err
	}

	if !old.IsNull() {
		return a.cache.Forget(uint64(old.Cluster))
	}
	return nil
}

// Close flushes every dirty block through the sector cache, mirroring the
// original's Drop-time flush. It does not close the underlying driver;
// callers compose Allocator.Close with vdev.Driver.Close themselves.
func (a *Allocator) Close() error {
	return a.cache.FlushAll()
}
