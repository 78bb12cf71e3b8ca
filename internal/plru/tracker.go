package plru

import "sync"

// Tracker adapts a bit-PLRU Cache to the component-L contract: touch(id),
// remove(id), and trim(n) yielding approximately the n coldest ids. It maps
// arbitrary uint64 ids (physical sector numbers, in the sector cache) onto
// plru line indices, growing the underlying Cache as new ids arrive.
type Tracker struct {
	mu       sync.Mutex
	cache    *Cache
	idToLine map[uint64]int
	lineToID map[int]uint64
	free     []int
	nextLine int
}

// NewTracker creates an empty Tracker with initial room for capacity ids.
func NewTracker(capacity int) *Tracker {
	return &Tracker{
		cache:    New(capacity),
		idToLine: make(map[uint64]int),
		lineToID: make(map[int]uint64),
	}
}

// Touch marks id as recently used, registering it if unseen.
func (t *Tracker) Touch(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line, ok := t.idToLine[id]
	if !ok {
		line = t.allocLineLocked(id)
	}
	t.cache.Touch(line)
}

// Remove forgets id entirely, freeing its line for reuse.
func (t *Tracker) Remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line, ok := t.idToLine[id]
	if !ok {
		return
	}
	t.cache.Trash(line)
	delete(t.idToLine, id)
	delete(t.lineToID, line)
	t.free = append(t.free, line)
}

// Trim returns up to n approximately-coldest ids currently tracked,
// removing them from the tracker.
func (t *Tracker) Trim(n int) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]uint64, 0, n)
	seen := make(map[int]bool)
	attempts := 0
	maxAttempts := len(t.idToLine)*4 + n*4 + 16
	for len(out) < n && len(t.idToLine) > 0 && attempts < maxAttempts {
		attempts++
		line := t.cache.Replace()
		id, ok := t.lineToID[line]
		if !ok || seen[line] {
			// Mark untracked or already-taken lines hot so Replace moves
			// past them instead of returning them again.
			t.cache.Touch(line)
			continue
		}
		seen[line] = true
		out = append(out, id)
		t.cache.Trash(line)
		delete(t.idToLine, id)
		delete(t.lineToID, line)
		t.free = append(t.free, line)
	}
	return out
}

func (t *Tracker) allocLineLocked(id uint64) int {
	var line int
	if n := len(t.free); n > 0 {
		line = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if t.nextLine >= t.cache.Len() {
			t.growLocked()
		}
		line = t.nextLine
		t.nextLine++
	}
	t.idToLine[id] = line
	t.lineToID[line] = id
	return line
}

func (t *Tracker) growLocked() {
	newCache := New(t.cache.Len() + 64)
	for line, id := range t.lineToID {
		if t.cache.IsHot(line) {
			newCache.Touch(line)
		}
		_ = id
	}
	t.cache = newCache
}
