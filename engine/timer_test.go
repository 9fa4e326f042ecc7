package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameTimerDeltaBetweenTicks(t *testing.T) {
	timer := frameTimer{last: 1.0}

	assert.InDelta(t, 0.016, timer.tick(1.016), 1e-9)
	assert.InDelta(t, 0.020, timer.tick(1.036), 1e-9)
}

func TestFrameTimerRePrimesAfterSuspension(t *testing.T) {
	timer := frameTimer{last: 1.0}
	timer.tick(1.016)

	// A long minimized stretch must not leak into the first restored frame.
	timer.suspend()
	timer.suspend()
	assert.Zero(t, timer.tick(61.016))

	assert.InDelta(t, 0.016, timer.tick(61.032), 1e-9)
}
