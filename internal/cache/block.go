package cache

import "sync"

// block is the cache's in-memory record for one physical sector: a
// per-sector lock (so two concurrent writes to the same sector serialize),
// the sector's data, and the set of sectors that must be flushed before
// this one becomes clean.
type block struct {
	mu     sync.Mutex
	data   []byte
	loaded bool // true once data holds either a write or a completed read-through
	dirty  bool
	deps   []uint64 // flush_dependencies: sectors flushed before this one
}
