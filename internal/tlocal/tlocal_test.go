package tlocal_test

import (
	"testing"

	"github.com/tfs-io/tfs/internal/tlocal"
)

func TestWithLazyInitAndMutate(t *testing.T) {
	r := tlocal.NewRegistry()
	h := tlocal.NewHandle()

	tlocal.With(r, h, func() int { return 10 }, func(v *int) { *v++ })
	got, ok := tlocal.Get[int](r, h)
	if !ok || got != 11 {
		t.Fatalf("got %v, %v", got, ok)
	}

	tlocal.With(r, h, func() int { return 10 }, func(v *int) { *v++ })
	got, _ = tlocal.Get[int](r, h)
	if got != 12 {
		t.Fatalf("got %v, want 12", got)
	}
}

func TestHandlesAreUnique(t *testing.T) {
	seen := map[tlocal.Handle]bool{}
	for i := 0; i < 1000; i++ {
		h := tlocal.NewHandle()
		if seen[h] {
			t.Fatalf("duplicate handle %v", h)
		}
		seen[h] = true
	}
}
