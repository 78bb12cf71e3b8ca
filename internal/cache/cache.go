// Package cache implements a write-back sector cache: a map from physical
// sector number to in-memory block, backed by the vdev driver, with a
// flush-dependency DAG and a pluggable replacement tracker.
//
// The cache keys an in-memory map by sector number behind a narrow
// storage interface; the flush-dependency DAG and bit-PLRU tracker handle
// TFS's crash-consistency and eviction needs. The index itself is
// pkg/chashmap, as that package's own doc comment anticipates.
package cache

import (
	"errors"

	"github.com/tfs-io/tfs/internal/leb"
	"github.com/tfs-io/tfs/internal/plru"
	"github.com/tfs-io/tfs/internal/tfslog"
	"github.com/tfs-io/tfs/pkg/chashmap"
)

// ErrVerifyFailed is the sentinel a ReadThen callback returns to ask the
// cache to heal and retry the read once before giving up.
var ErrVerifyFailed = errors.New("tfs: cache: data verification failed")

// backing is the subset of *vdev.Driver the cache depends on.
type backing interface {
	NumberOfSectors() uint64
	Read(sector uint64) ([]byte, error)
	Write(sector uint64, buf []byte) error
	Trim(sector uint64) error
	HealRead(sector uint64) ([]byte, error)
}

// Cache is a write-back cache of fixed-size sectors, keyed by physical
// sector number.
type Cache struct {
	driver  backing
	log     tfslog.Logger
	blocks  *chashmap.Map[uint64, *block]
	tracker *plru.Tracker
}

// New creates a cache over driver, sizing its sector index and replacement
// tracker for capacity resident sectors. capacity is not a limit: blocks
// leave the cache only through Trim, Forget, or an explicit Reduce.
func New(driver backing, capacity int, log tfslog.Logger) *Cache {
	if log == nil {
		log = tfslog.Nop()
	}
	return &Cache{
		driver: driver,
		log:    log,
		blocks: chashmap.NewBytesKeyed[uint64, *block](capacity, func(sector uint64) []byte {
			buf := make([]byte, 8)
			leb.PutUint64(buf, sector)
			return buf
		}),
		tracker: plru.NewTracker(capacity),
	}
}

func (c *Cache) getOrCreateBlock(sector uint64) *block {
	return c.blocks.GetOrInsert(sector, func() *block { return &block{} })
}

// Write opens (or creates) the block for sector, sets its data, marks it
// dirty, and returns a transaction handle the caller must Execute or chain.
func (c *Cache) Write(sector uint64, buf []byte) *Transaction {
	b := c.getOrCreateBlock(sector)

	data := make([]byte, len(buf))
	copy(data, buf)

	b.mu.Lock()
	b.data = data
	b.loaded = true
	b.dirty = true
	b.mu.Unlock()

	c.tracker.Touch(sector)
	return newTransaction(c, sector)
}

// ReadThen calls f with the sector's data. On a cache hit f runs directly
// against the resident copy; on a miss the sector is read through the
// driver first. If f returns ErrVerifyFailed, the cache asks the driver to
// heal the sector and retries f once against the healed data before
// propagating the failure.
func (c *Cache) ReadThen(sector uint64, f func([]byte) error) error {
	b := c.getOrCreateBlock(sector)

	b.mu.Lock()
	hit := b.loaded
	data := b.data
	b.mu.Unlock()

	if hit {
		c.tracker.Touch(sector)
		return f(data)
	}

	buf, err := c.driver.Read(sector)
	if err != nil {
		return err
	}

	if err := f(buf); err != nil {
		if !errors.Is(err, ErrVerifyFailed) {
			return err
		}
		c.log.Warn("sector failed verification, healing", "sector", sector)
		healed, herr := c.driver.HealRead(sector)
		if herr != nil {
			return herr
		}
		if err := f(healed); err != nil {
			return err
		}
		buf = healed
	}

	b.mu.Lock()
	b.data = buf
	b.loaded = true
	b.dirty = false
	b.mu.Unlock()

	c.tracker.Touch(sector)
	return nil
}

// Trim discards the cached block for sector (if any) and forwards the trim
// to the driver.
func (c *Cache) Trim(sector uint64) error {
	c.blocks.Remove(sector)
	c.tracker.Remove(sector)
	return c.driver.Trim(sector)
}

// Forget drops sector's resident copy, flushing it first if dirty. Unlike
// Trim, the driver is not told the sector is free: the data stays live on
// disk, only the cache's hold on it is released. Used to evict hot-but-large
// objects (e.g. a stale superpage) from the cache without freeing them.
func (c *Cache) Forget(sector uint64) error {
	if err := c.flushSector(sector, make(map[uint64]bool)); err != nil {
		return err
	}
	c.blocks.Remove(sector)
	c.tracker.Remove(sector)
	return nil
}

// FlushAll flushes every resident dirty block to the driver, in
// dependency order, sharing one visited set across the whole pass so each
// sector is written at most once. Used by Allocator.Close and by
// cmd/tfsctl's format/inspect path to guarantee a clean on-disk state
// before the driver is closed.
func (c *Cache) FlushAll() error {
	sectors := make([]uint64, 0, c.blocks.Len())
	c.blocks.Range(func(sector uint64, _ *block) bool {
		sectors = append(sectors, sector)
		return true
	})

	visited := make(map[uint64]bool)
	for _, sector := range sectors {
		if err := c.flushSector(sector, visited); err != nil {
			return err
		}
	}
	return nil
}

// Reduce evicts blocks, coldest first, until at most to blocks remain
// resident. Dirty blocks are flushed (dependency-ordered) before eviction;
// clean blocks are dropped outright.
func (c *Cache) Reduce(to int) error {
	for {
		n := c.blocks.Len()
		if n <= to {
			return nil
		}

		victims := c.tracker.Trim(n - to)
		if len(victims) == 0 {
			return nil
		}

		visited := make(map[uint64]bool)
		for _, sector := range victims {
			if err := c.flushSector(sector, visited); err != nil {
				return err
			}
			c.blocks.Remove(sector)
		}
	}
}

// Flush writes sector's block to disk if dirty, first flushing (in
// dependency order) every sector it depends on. Each sector is flushed at
// most once per call.
func (c *Cache) Flush(sector uint64) error {
	return c.flushSector(sector, make(map[uint64]bool))
}
