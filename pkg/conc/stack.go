package conc

import (
	"sync/atomic"

	"github.com/tfs-io/tfs/internal/smr"
)

// node is a Treiber-stack link: data plus a raw (unprotected) next pointer.
type node[T any] struct {
	data T
	next *node[T]
}

// Stack is a lock-free Treiber stack built on an atomic top-pointer CAS and
// SMR-guarded pops.
type Stack[T any] struct {
	top   atomic.Pointer[node[T]]
	local *smr.Local
}

// NewStack constructs an empty Stack using local for guard allocation.
func NewStack[T any](local *smr.Local) *Stack[T] {
	return &Stack[T]{local: local}
}

// Push adds v to the top of the stack.
func (s *Stack[T]) Push(v T) {
	n := &node[T]{data: v}
	for {
		old := s.top.Load()
		n.next = old
		if s.top.CompareAndSwap(old, n) {
			return
		}
	}
}

// Pop removes and returns the top value. ok is false if the stack was
// empty.
func (s *Stack[T]) Pop() (v T, ok bool) {
	for {
		guard := smr.Protect(s.local, s.top.Load)
		n := guard.Value()
		if n == nil {
			guard.Release(false)
			return v, false
		}
		if s.top.CompareAndSwap(n, n.next) {
			val := n.data
			smr.DeferDrop(s.local, n, func(*node[T]) {})
			guard.Release(false)
			return val, true
		}
		guard.Release(false)
	}
}
