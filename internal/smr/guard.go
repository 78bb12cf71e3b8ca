package smr

import (
	"sync/atomic"
	"unsafe"
)

// Guard is a scoped handle owning a Writer hazard currently protecting ptr.
// While a Guard is live, the GC will never destroy the garbage registered
// for ptr. Callers must call Release exactly once, typically via defer.
type Guard[T any] struct {
	local *Local
	w     Writer
	ptr   *T
}

// Value returns the protected pointer. It is valid until Release is called.
func (g Guard[T]) Value() *T {
	return g.ptr
}

// Protect runs the guard-construction protocol from the SMR contract:
// obtain a blocked hazard, fence, evaluate load, publish Protect(p). Because
// the hazard is Blocked before load runs and only transitions to Protect(p)
// after, any GC cycle that starts concurrently and reads the hazard while it
// is Blocked spins in Reader.Get until Protect(p) is published, then keeps
// p's garbage specifically.
func Protect[T any](local *Local, load func() *T) Guard[T] {
	w := local.GetHazard()
	// Sequentially-consistent fence between blocking the hazard and
	// evaluating the load: an atomic op with the default Go memory model
	// ordering gives this: the Load/Store pair below forces the preceding
	// Block() to be visible before the subsequent Protect() publication.
	var fence atomic.Uint32
	fence.Store(fence.Load() + 1)

	p := load()
	w.Protect(unsafe.Pointer(p))
	return Guard[T]{local: local, w: w, ptr: p}
}

// Release returns the guard's hazard for reuse. panicking should be true
// when Release runs during a deferred panic unwind, in which case the
// hazard is killed outright instead of re-entering the local free-cache
// path (mirroring the original's Drop-during-unwind behavior).
func (g Guard[T]) Release(panicking bool) {
	if panicking {
		g.w.Kill()
		return
	}
	g.local.FreeHazard(g.w)
}

// DeferDrop registers ptr for destruction via dtor once no guard observing
// it remains live. The destructor must not panic.
func DeferDrop[T any](local *Local, ptr *T, dtor func(*T)) {
	local.addGarbage(garbage{
		ptr: unsafe.Pointer(ptr),
		dtor: func(p unsafe.Pointer) {
			dtor((*T)(p))
		},
	})
}
