// Package conc provides lock-free containers built on top of internal/smr:
// AtomicOption, a Treiber stack, and an optimistic-retry STM cell.
package conc

import (
	"sync/atomic"

	"github.com/tfs-io/tfs/internal/smr"
)

// AtomicOption holds one nullable heap pointer, safe for concurrent
// load/store/swap/compare-and-swap across goroutines, with dethroned
// pointers reclaimed via SMR rather than freed immediately.
type AtomicOption[T any] struct {
	ptr   atomic.Pointer[T]
	local *smr.Local
	dtor  func(*T)
}

// NewAtomicOption constructs an empty AtomicOption using local for guard
// allocation and deferred destruction.
func NewAtomicOption[T any](local *smr.Local) *AtomicOption[T] {
	return &AtomicOption[T]{local: local, dtor: func(*T) {}}
}

// NewAtomicOptionWithDestructor is like NewAtomicOption but runs dtor on a
// dethroned value once no guard protecting it remains live, instead of
// discarding it silently. dtor must not panic.
func NewAtomicOptionWithDestructor[T any](local *smr.Local, dtor func(*T)) *AtomicOption[T] {
	return &AtomicOption[T]{local: local, dtor: dtor}
}

// Load returns a guard over the current value, or ok=false if empty.
func (o *AtomicOption[T]) Load() (g smr.Guard[T], ok bool) {
	guard := smr.Protect(o.local, o.ptr.Load)
	if guard.Value() == nil {
		return smr.Guard[T]{}, false
	}
	return guard, true
}

// Store unconditionally replaces the value, deferring destruction of
// whatever was there before.
func (o *AtomicOption[T]) Store(v *T) {
	old := o.ptr.Swap(v)
	o.retire(old)
}

// Swap replaces the value and returns a guard over the old one (ok=false if
// it was empty).
func (o *AtomicOption[T]) Swap(v *T) (g smr.Guard[T], ok bool) {
	old := o.ptr.Swap(v)
	if old == nil {
		return smr.Guard[T]{}, false
	}
	guard := smr.Protect(o.local, func() *T { return old })
	o.retire(old)
	return guard, true
}

// CompareAndStore atomically stores new if the current raw pointer equals
// old, deferring destruction of the replaced value on success.
func (o *AtomicOption[T]) CompareAndStore(old, new *T) bool {
	if o.ptr.CompareAndSwap(old, new) {
		o.retire(old)
		return true
	}
	return false
}

// CompareAndSwap atomically stores new if the current raw pointer equals
// old. On success it returns a guard over the replaced value. On failure it
// returns new unchanged to the caller along with ok=false.
func (o *AtomicOption[T]) CompareAndSwap(old, new *T) (g smr.Guard[T], swappedNew *T, ok bool) {
	if o.ptr.CompareAndSwap(old, new) {
		if old == nil {
			return smr.Guard[T]{}, nil, true
		}
		guard := smr.Protect(o.local, func() *T { return old })
		o.retire(old)
		return guard, nil, true
	}
	return smr.Guard[T]{}, new, false
}

// Raw returns the current raw pointer without any hazard protection; it is
// only safe to dereference while the caller otherwise knows the value is
// reachable (e.g. it holds a guard from a previous Load).
func (o *AtomicOption[T]) Raw() *T {
	return o.ptr.Load()
}

func (o *AtomicOption[T]) retire(old *T) {
	if old == nil {
		return
	}
	smr.DeferDrop(o.local, old, o.dtor)
}
