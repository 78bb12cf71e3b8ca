package smr

import (
	"sync"

	"github.com/tfs-io/tfs/internal/tfserr"
	"github.com/tfs-io/tfs/internal/tfslog"
	"github.com/tfs-io/tfs/pkg/bloom"
)

// bloomBytesPerHazard sizes the per-cycle approximate-membership filter
// (component K) against the number of currently live hazards, so its false
// positive rate stays roughly constant as the hazard set grows.
const bloomBytesPerHazard = 2

type message struct {
	newHazard *Reader
	garbage   []garbage
}

// Global is the process-wide (or test-scoped) SMR state: a buffered channel
// of pending messages feeding a mutex-protected garbo of garbage and
// hazards. TryGC attempts the garbo's mutex non-blockingly; GC blocks until
// it succeeds.
type Global struct {
	log tfslog.Logger

	ch chan message // MPSC: Go channels already serialize concurrent sends

	garboMu sync.Mutex
	garbage []garbage
	hazards []*Reader
}

// NewGlobal constructs a fresh Global state. Most programs want exactly one,
// shared across all Local states; tests may construct isolated ones.
func NewGlobal(log tfslog.Logger) *Global {
	if log == nil {
		log = tfslog.Nop()
	}
	return &Global{
		log: log,
		ch:  make(chan message, 1024),
	}
}

// CreateHazard registers a new hazard with the global state and returns its
// writer half.
func (g *Global) CreateHazard() Writer {
	w, r := newHazard()
	g.ch <- message{newHazard: &r}
	return w
}

// ExportGarbage enqueues garbage for eventual collection. Does not tick;
// callers that want a GC attempt afterward call GC or TryGC themselves.
func (g *Global) ExportGarbage(items []garbage) {
	if len(items) == 0 {
		return
	}
	g.ch <- message{garbage: items}
}

// TryGC attempts one collection cycle. Returns tfserr.ErrBusy if another
// goroutine currently holds the garbo lock.
func (g *Global) TryGC() error {
	if !g.garboMu.TryLock() {
		return tfserr.ErrBusy
	}
	defer g.garboMu.Unlock()
	g.gcLocked()
	return nil
}

// GC blocks until a collection cycle completes.
func (g *Global) GC() {
	g.garboMu.Lock()
	defer g.garboMu.Unlock()
	g.gcLocked()
}

func (g *Global) gcLocked() {
	g.log.Debug("smr: collecting garbage")

	// Drain pending messages.
drain:
	for {
		select {
		case msg := <-g.ch:
			if msg.newHazard != nil {
				g.hazards = append(g.hazards, msg.newHazard)
			}
			g.garbage = append(g.garbage, msg.garbage...)
		default:
			break drain
		}
	}

	active := make(map[uintptr]struct{}, len(g.hazards))
	filter := bloom.New(bloomBytesPerHazard*(len(g.hazards)+1), len(g.hazards)+1)
	live := g.hazards[:0]
	for _, r := range g.hazards {
		// Get spins past a transient Blocked state itself (see hazard.go),
		// so by the time it returns this hazard is Free, Dead, or publishing
		// a pointer — never still mid-protect.
		ptr, dead := r.Get()
		if dead {
			// Reader side destroyed implicitly (no explicit free list in Go;
			// the backing *Hazard is garbage-collected once unreferenced).
			continue
		}
		if ptr != nil {
			u := uintptrOf(ptr)
			active[u] = struct{}{}
			filter.Insert(uint64(u))
		}
		live = append(live, r)
	}
	g.hazards = live

	kept := g.garbage[:0]
	for _, item := range g.garbage {
		u := uintptrOf(item.ptr)
		// The filter can return false positives but never false negatives:
		// a clean miss proves the pointer is not protected without touching
		// the exact map, and a hit falls through to the exact check below.
		if !filter.MaybeContains(uint64(u)) {
			item.dtor(item.ptr)
			continue
		}
		if _, ok := active[u]; ok {
			kept = append(kept, item)
		} else {
			item.dtor(item.ptr)
		}
	}
	g.garbage = kept
}
