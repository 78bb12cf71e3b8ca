package smr

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// hazardSpinBound is the number of times Reader.Get retries a Blocked
// hazard before giving up. A writer only holds Blocked for the brief
// window between obtaining a hazard and publishing Protect(p); a reader
// that still sees Blocked after this many iterations indicates the
// protocol has been violated (a writer died mid-publish, or a bug), so
// Get panics rather than risk destroying a pointer that is about to be
// protected.
const hazardSpinBound = 100_000_000

// hazState is the logical state a hazard can be in. Blocked, Free, and Dead
// are encoded as distinct non-nil sentinel pointers so that a single
// unsafe.Pointer word can represent all four states; Protect(p) is any other
// pointer value.
type hazState = unsafe.Pointer

var (
	sentinelBlocked = new(byte)
	sentinelFree    = new(byte)
	sentinelDead    = new(byte)
)

func sentinelPtr(b *byte) hazState { return unsafe.Pointer(b) }

// Hazard is a process-wide cell in one of four states: Blocked, Free, Dead,
// or Protect(ptr). It is owned jointly by a Writer (held by whichever
// goroutine currently uses it to protect a pointer) and a Reader (held by
// the global GC's hazard list).
type Hazard struct {
	state atomic.Pointer[byte]
}

// Writer is the mutating half of a Hazard, held by the protecting goroutine.
type Writer struct {
	h *Hazard
}

// Reader is the observing half of a Hazard, held by the global GC.
type Reader struct {
	h *Hazard
}

// newHazard creates a Hazard in Blocked state and returns its two halves.
func newHazard() (Writer, Reader) {
	h := &Hazard{}
	h.state.Store((*byte)(sentinelBlocked))
	return Writer{h: h}, Reader{h: h}
}

// Block sets the hazard to Blocked. Must be called before a guard publishes
// a new protected pointer, so a concurrent GC cycle that reads the hazard in
// between spins in Reader.Get until the published Protect(p) appears.
func (w Writer) Block() {
	w.h.state.Store((*byte)(sentinelBlocked))
}

// IsBlocked reports whether the hazard is currently Blocked.
func (w Writer) IsBlocked() bool {
	return w.h.state.Load() == sentinelBlocked
}

// Protect publishes p as the protected pointer, with release semantics.
func (w Writer) Protect(p unsafe.Pointer) {
	w.h.state.Store((*byte)(p))
}

// Free marks the hazard as not currently protecting anything.
func (w Writer) Free() {
	w.h.state.Store((*byte)(sentinelFree))
}

// Kill marks the hazard Dead, permitting the Reader side to destroy it.
// Used on thread exit and on unwind (panic) instead of re-entering the
// thread-local free-cache path.
func (w Writer) Kill() {
	w.h.state.Store((*byte)(sentinelDead))
}

// Get reads the current state, used by the global GC to classify hazards.
// A Blocked hazard is spun on rather than reported: the writer only holds
// Blocked for the brief window between obtaining the hazard and publishing
// Protect(p), so spinning here guarantees a concurrent GC cycle always
// ends up observing either Free, Dead, or the published Protect(p) —
// never a stale Blocked that could let it destroy a pointer the writer is
// mid-way through protecting.
func (r Reader) Get() (protecting unsafe.Pointer, dead bool) {
	for i := 0; ; i++ {
		p := r.h.state.Load()
		switch p {
		case sentinelBlocked:
			if i >= hazardSpinBound {
				panic("smr: hazard stuck in Blocked past spin bound")
			}
			if i%64 == 63 {
				runtime.Gosched()
			}
			continue
		case sentinelFree:
			return nil, false
		case sentinelDead:
			return nil, true
		default:
			return unsafe.Pointer(p), false
		}
	}
}
