package smr

import "sync"

// Local is SMR state shared by whatever set of goroutines hold a reference
// to it: a cache of reusable hazards and a queue of garbage awaiting export
// to the Global state, guarded by mu.
//
// The original keys this off the OS thread via TLS, giving each thread its
// own lock-free Local; Go has no equivalent of thread-local storage tied to
// a scheduler-visible thread, and callers such as [*TFS] hand one Local to
// many concurrent goroutines (one per open handle rather than one per
// goroutine), so mu trades the original's lock-freedom for correctness
// under that sharing. Callers that do want one Local per goroutine (the
// closer original-shaped usage) still work; the mutex is uncontended in
// that case.
type Local struct {
	global   *Global
	settings Settings

	mu sync.Mutex

	garbage []garbage

	availableHazards         []Writer
	availableHazardsFreeFrom int
}

// NewLocal creates a Local bound to global, using settings for its
// export/free thresholds.
func NewLocal(global *Global, settings Settings) *Local {
	return &Local{global: global, settings: settings}
}

// GetHazard returns a Blocked writer hazard, reusing one from the local
// cache when available.
func (l *Local) GetHazard() Writer {
	l.mu.Lock()
	if n := len(l.availableHazards); n > 0 {
		w := l.availableHazards[n-1]
		l.availableHazards = l.availableHazards[:n-1]
		if l.availableHazardsFreeFrom > n-1 {
			l.availableHazardsFreeFrom = n - 1
		}
		l.mu.Unlock()
		w.Block()
		return w
	}
	l.mu.Unlock()
	return l.global.CreateHazard()
}

// FreeHazard returns a no-longer-needed (non-blocked) hazard to the local
// cache, bulk-freeing the cache's tail once it grows past
// Settings.MaxNonFreeHazards.
func (l *Local) FreeHazard(w Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.availableHazards = append(l.availableHazards, w)

	nonFree := len(l.availableHazards) - l.availableHazardsFreeFrom
	max := l.settings.MaxNonFreeHazards
	if max <= 0 {
		max = DefaultSettings().MaxNonFreeHazards
	}
	if nonFree > max {
		for _, h := range l.availableHazards[l.availableHazardsFreeFrom:] {
			h.Free()
		}
		l.availableHazardsFreeFrom = len(l.availableHazards)
	}
}

// addGarbage queues ptr/dtor for eventual destruction, exporting to the
// global state (and ticking) once the local queue exceeds
// Settings.MaxGarbageBeforeExport.
func (l *Local) addGarbage(g garbage) {
	l.mu.Lock()
	l.garbage = append(l.garbage, g)

	max := l.settings.MaxGarbageBeforeExport
	if max <= 0 {
		max = DefaultSettings().MaxGarbageBeforeExport
	}
	shouldExport := !l.settings.DisableAutomaticExport && len(l.garbage) > max
	l.mu.Unlock()

	if shouldExport {
		l.ExportGarbage()
		l.global.tick(l.settings)
	}
}

// ExportGarbage flushes the local garbage queue to the global state without
// ticking.
func (l *Local) ExportGarbage() {
	l.mu.Lock()
	if len(l.garbage) == 0 {
		l.mu.Unlock()
		return
	}
	batch := l.garbage
	l.garbage = nil
	l.mu.Unlock()

	l.global.ExportGarbage(batch)
}

// Close flushes remaining garbage and kills every cached hazard. It must be
// called when every goroutine sharing this Local is done with it, and must
// not itself tick (a tick could run a destructor that touches this Local
// after it logically no longer exists).
func (l *Local) Close() {
	l.ExportGarbage()

	l.mu.Lock()
	hazards := l.availableHazards
	l.availableHazards = nil
	l.mu.Unlock()

	for _, h := range hazards {
		h.Kill()
	}
}
