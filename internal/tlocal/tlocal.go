// Package tlocal implements a thread-local object registry: a
// process-wide monotonically increasing id together with per-registry slot
// storage. Go has no thread-affine TLS, so a Registry is an explicit value
// the caller owns (typically one per goroutine), and Handle is the
// process-unique id identifying a logical slot across registries.
package tlocal

import "sync/atomic"

var nextID atomic.Uint64

// Handle is an opaque, process-unique identifier for a registered slot.
type Handle uint64

// NewHandle allocates a fresh, never-reused Handle.
func NewHandle() Handle {
	return Handle(nextID.Add(1))
}

// Registry is a single goroutine's id-to-value map, lazily initializing a
// slot from a default factory on first touch.
type Registry struct {
	slots map[Handle]any
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[Handle]any)}
}

// With borrows the slot for h, creating it from def() if absent, runs f
// against it, and stores whatever f leaves behind back into the slot.
func With[T any](r *Registry, h Handle, def func() T, f func(*T)) {
	var v T
	if existing, ok := r.slots[h]; ok {
		v = existing.(T)
	} else {
		v = def()
	}
	f(&v)
	r.slots[h] = v
}

// Get returns the current value for h without a default, if present.
func Get[T any](r *Registry, h Handle) (T, bool) {
	var zero T
	existing, ok := r.slots[h]
	if !ok {
		return zero, false
	}
	return existing.(T), true
}
