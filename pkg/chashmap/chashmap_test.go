package chashmap_test

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/tfs-io/tfs/pkg/chashmap"
)

func uint64Key(k uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], k)
	return b[:]
}

func TestInsertGetRemove(t *testing.T) {
	m := chashmap.NewBytesKeyed[uint64, string](16, uint64Key)

	m.Insert(1, "one")
	m.Insert(2, "two")

	if v, ok := m.Get(1); !ok || v != "one" {
		t.Fatalf("get(1) = %v, %v", v, ok)
	}
	if v, ok := m.Get(2); !ok || v != "two" {
		t.Fatalf("get(2) = %v, %v", v, ok)
	}
	if _, ok := m.Get(3); ok {
		t.Fatal("get(3) should miss")
	}

	m.Remove(1)
	if _, ok := m.Get(1); ok {
		t.Fatal("get(1) should miss after remove")
	}
	// Scan past a tombstone must still find 2.
	if v, ok := m.Get(2); !ok || v != "two" {
		t.Fatalf("get(2) after remove(1) = %v, %v", v, ok)
	}
}

func TestResizeGrowsAndPreservesEntries(t *testing.T) {
	m := chashmap.NewBytesKeyed[uint64, int](16, uint64Key)
	const n = 500
	for i := uint64(0); i < n; i++ {
		m.Insert(i, int(i))
	}
	for i := uint64(0); i < n; i++ {
		v, ok := m.Get(i)
		if !ok || v != int(i) {
			t.Fatalf("get(%d) = %v, %v", i, v, ok)
		}
	}
}

func TestGetOrInsertRunsMakeValueOnceForConcurrentMiss(t *testing.T) {
	m := chashmap.NewBytesKeyed[uint64, int](16, uint64Key)
	const goroutines = 16

	var calls sync.WaitGroup
	var started sync.WaitGroup
	started.Add(goroutines)
	release := make(chan struct{})

	var madeCount int
	var madeMu sync.Mutex

	calls.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer calls.Done()
			started.Done()
			<-release
			m.GetOrInsert(42, func() int {
				madeMu.Lock()
				madeCount++
				madeMu.Unlock()
				return g
			})
		}(g)
	}
	started.Wait()
	close(release)
	calls.Wait()

	if madeCount != 1 {
		t.Fatalf("makeValue ran %d times, want exactly 1", madeCount)
	}
	if _, ok := m.Get(42); !ok {
		t.Fatal("expected key 42 to be present")
	}
}

func TestGetOrInsertReturnsExistingValue(t *testing.T) {
	m := chashmap.NewBytesKeyed[uint64, string](16, uint64Key)
	m.Insert(7, "seven")

	got := m.GetOrInsert(7, func() string {
		t.Fatal("makeValue should not run for an existing key")
		return "wrong"
	})
	if got != "seven" {
		t.Fatalf("GetOrInsert(7) = %q, want %q", got, "seven")
	}
}

func TestConcurrentInsertGet(t *testing.T) {
	m := chashmap.NewBytesKeyed[uint64, uint64](16, uint64Key)
	const goroutines = 8
	const perGoroutine = 500

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				k := uint64(g*perGoroutine + i)
				m.Insert(k, k*2)
			}
		}(g)
	}
	wg.Wait()

	for g := 0; g < goroutines; g++ {
		for i := 0; i < perGoroutine; i++ {
			k := uint64(g*perGoroutine + i)
			v, ok := m.Get(k)
			if !ok || v != k*2 {
				t.Fatalf("get(%d) = %v, %v", k, v, ok)
			}
		}
	}
}
