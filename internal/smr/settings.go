package smr

// Settings holds the process-wide (or Local-overridden) tunables for the GC.
type Settings struct {
	// GCProbability is compared against a uniform random float64 in [0, 1)
	// on every automatic local garbage export; below it, a TryGC is attempted.
	GCProbability float64
	// MaxGarbageBeforeExport bounds a Local's garbage queue before it is
	// flushed to the global garbo.
	MaxGarbageBeforeExport int
	// MaxNonFreeHazards bounds a Local's cached-but-not-yet-freed hazards
	// before the suffix is bulk-transitioned to Free.
	MaxNonFreeHazards int
	// DisableAutomaticGC forces ticks to be no-ops.
	DisableAutomaticGC bool
	// DisableAutomaticExport disables exporting local garbage on overflow;
	// callers must call Local.ExportGarbage explicitly.
	DisableAutomaticExport bool
}

// DefaultSettings mirrors the original's constants (conc::local's
// MAX_GARBAGE / MAX_NON_FREE_HAZARDS and a conservative default GC
// probability).
func DefaultSettings() Settings {
	return Settings{
		GCProbability:          1.0 / 8192,
		MaxGarbageBeforeExport: 128,
		MaxNonFreeHazards:      128,
	}
}
