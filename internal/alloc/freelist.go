package alloc

import (
	"errors"

	"github.com/tfs-io/tfs/internal/cache"
	"github.com/tfs-io/tfs/internal/diskfmt"
	"github.com/tfs-io/tfs/internal/tfserr"
)

// popFreelist pops one cluster off the freelist. The
// read-modify-write of the metacluster and the state block's FreelistHead
// is a single disk round trip with a non-idempotent side effect (the
// metacluster read), so it is serialized with freelistMu rather than
// folded into the STM cell's optimistic retry loop; the STM cell still
// gives lock-free readers (e.g. a status query) a consistent snapshot
// without contending with this path.
func (a *Allocator) popFreelist() (diskfmt.ClusterPointer, error) {
	if cluster, ok := a.freeQueue.Pop(); ok {
		return cluster, nil
	}

	a.freelistMu.Lock()
	defer a.freelistMu.Unlock()

	if cluster, ok := a.freeQueue.Pop(); ok {
		return cluster, nil
	}

	head, err := a.freelistHead()
	if err != nil {
		return 0, err
	}
	if head.IsEmpty() {
		return 0, tfserr.ErrOutOfSpace
	}

	meta, err := a.readMetacluster(head)
	if err != nil {
		return 0, err
	}

	for _, ptr := range meta.Free {
		a.freeQueue.Push(ptr)
	}

	a.setFreelistHead(diskfmt.FreelistHead{Cluster: meta.Next, Checksum: meta.NextChecksum})

	if err := a.cache.Trim(uint64(head.Cluster)); err != nil {
		return 0, err
	}
	if err := a.flushState(); err != nil {
		return 0, err
	}

	return head.Cluster, nil
}

// pushFreelist chains cluster back onto the freelist. zero, when true,
// overwrites the cluster's data before it is chained back in.
func (a *Allocator) pushFreelist(cluster diskfmt.ClusterPointer, zero bool) error {
	if zero {
		a.cache.Write(uint64(cluster), make([]byte, diskfmt.SectorSize)).Execute()
	}

	a.freelistMu.Lock()
	defer a.freelistMu.Unlock()

	head, err := a.freelistHead()
	if err != nil {
		return err
	}

	if head.IsEmpty() {
		return a.installNewHead(cluster, diskfmt.Metacluster{})
	}

	meta, err := a.readMetacluster(head)
	if err != nil {
		return err
	}

	if meta.HasRoom() {
		meta.Free = append(meta.Free, cluster)
		buf := meta.Encode()
		a.cache.Write(uint64(head.Cluster), buf).Execute()
		a.setFreelistHead(diskfmt.FreelistHead{Cluster: head.Cluster, Checksum: a.algo.Sum64(buf)})
		return a.flushState()
	}

	return a.installNewHead(cluster, diskfmt.Metacluster{Next: head.Cluster, NextChecksum: head.Checksum})
}

func (a *Allocator) installNewHead(cluster diskfmt.ClusterPointer, meta diskfmt.Metacluster) error {
	buf := meta.Encode()
	a.cache.Write(uint64(cluster), buf).Execute()
	a.setFreelistHead(diskfmt.FreelistHead{Cluster: cluster, Checksum: a.algo.Sum64(buf)})
	return a.flushState()
}

func (a *Allocator) freelistHead() (diskfmt.FreelistHead, error) {
	guard, ok := a.state.Load()
	if !ok {
		return diskfmt.FreelistHead{}, &tfserr.ImplementationError{What: "alloc: state not initialized"}
	}
	head := guard.Value().FreelistHead
	guard.Release(false)
	return head, nil
}

func (a *Allocator) setFreelistHead(head diskfmt.FreelistHead) {
	a.state.Update(func(current *diskfmt.State) *diskfmt.State {
		next := *current
		next.FreelistHead = head
		return &next
	})
}

func (a *Allocator) readMetacluster(head diskfmt.FreelistHead) (diskfmt.Metacluster, error) {
	var meta diskfmt.Metacluster
	var gotSum uint64
	err := a.cache.ReadThen(uint64(head.Cluster), func(data []byte) error {
		gotSum = a.algo.Sum64(data)
		if gotSum != head.Checksum {
			return cache.ErrVerifyFailed
		}
		meta = diskfmt.DecodeMetacluster(data)
		return nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrVerifyFailed) {
			return diskfmt.Metacluster{}, &tfserr.CorruptionError{
				What: "freelist metacluster checksum", Sector: uint64(head.Cluster),
				Want: head.Checksum, Got: gotSum, HasSums: true,
			}
		}
		return diskfmt.Metacluster{}, err
	}
	return meta, nil
}

// flushState writes the current state block to its fixed sector (logical
// sector 0, immediately after the vdev's header remap) and flushes it
// through to disk: freelist-head and superpage updates must be durable
// before the corresponding cache writes are allowed to become clean, so
// this always flushes rather than leaving the state block for ordinary
// eviction.
func (a *Allocator) flushState() error {
	guard, ok := a.state.Load()
	if !ok {
		return &tfserr.ImplementationError{What: "alloc: state not initialized"}
	}
	st := *guard.Value()
	guard.Release(false)

	buf := st.Encode(a.algo)
	a.cache.Write(stateSector, buf).Execute()
	return a.cache.Flush(stateSector)
}
