package conc

import (
	"github.com/tfs-io/tfs/internal/smr"
)

// STM is an optimistic-concurrency cell: Update loads the current value,
// evaluates f against a guarded snapshot, and CASes the new value in,
// retrying on conflict.
type STM[T any] struct {
	opt *AtomicOption[T]
}

// NewSTM constructs an STM cell holding an initial value (which may be nil).
func NewSTM[T any](local *smr.Local, initial *T) *STM[T] {
	s := &STM[T]{opt: NewAtomicOption[T](local)}
	if initial != nil {
		s.opt.Store(initial)
	}
	return s
}

// Update repeatedly calls f with the current value (nil if empty) until f's
// result can be installed via CAS without a concurrent writer having
// changed the snapshot first. f may return nil to leave the cell empty.
func (s *STM[T]) Update(f func(current *T) *T) {
	for {
		guard, ok := s.opt.Load()
		var cur *T
		if ok {
			cur = guard.Value()
		}
		next := f(cur)

		old, _, swapped := s.opt.CompareAndSwap(cur, next)
		if swapped && cur != nil {
			old.Release(false)
		}
		if ok {
			guard.Release(false)
		}
		if swapped {
			return
		}
	}
}

// Load returns a guarded snapshot of the current value.
func (s *STM[T]) Load() (smr.Guard[T], bool) {
	return s.opt.Load()
}
