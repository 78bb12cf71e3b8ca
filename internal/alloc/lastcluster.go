package alloc

import "github.com/tfs-io/tfs/internal/diskfmt"

// lastCluster is the per-goroutine "current compression target" the
// allocator accumulates small writes into: a cluster pointer paired with
// the uncompressed bytes packed into it so far.
// Go has no thread-affine storage, so every Alloc call takes an explicit
// *tlocal.Registry the caller owns (typically one per goroutine), the same
// pattern used by internal/smr.Local.
type lastCluster struct {
	has          bool
	cluster      diskfmt.ClusterPointer
	uncompressed []byte
}

func defaultLastCluster() lastCluster {
	return lastCluster{}
}
