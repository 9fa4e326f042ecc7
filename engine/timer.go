package engine

// frameTimer produces per-frame deltas from a monotonically increasing clock
// reading. After a suspension the next tick re-primes instead of reporting a
// delta spanning the whole suspended period.
type frameTimer struct {
	last      float64
	suspended bool
}

func (t *frameTimer) suspend() {
	t.suspended = true
}

func (t *frameTimer) tick(now float64) float64 {
	if t.suspended {
		t.last = now
		t.suspended = false
	}
	delta := now - t.last
	t.last = now
	return delta
}
