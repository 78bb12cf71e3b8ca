package smr

import "math/rand/v2"

// tick draws a uniform random number and attempts a GC cycle with
// probability settings.GCProbability, unless automatic GC is disabled.
func (g *Global) tick(settings Settings) {
	if settings.DisableAutomaticGC {
		return
	}
	p := settings.GCProbability
	if p <= 0 {
		p = DefaultSettings().GCProbability
	}
	if rand.Float64() < p {
		_ = g.TryGC()
	}
}
