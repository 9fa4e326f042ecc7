package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrawCallsAreFrameScoped(t *testing.T) {
	tel := NewFrameTelemetry()

	tel.BeginFrame()
	tel.AddDrawCalls(3)
	tel.AddDrawCalls(2)
	tel.EndFrame(0.016, 0)
	assert.Equal(t, uint32(5), tel.DrawCalls())

	tel.BeginFrame()
	tel.EndFrame(0.016, 0)
	assert.Zero(t, tel.DrawCalls(), "counter must reset every frame")
}

func TestFrameTimeAverageFoldsAfterWindow(t *testing.T) {
	tel := NewFrameTelemetry()

	for i := 0; i < int(frameAvgCount); i++ {
		tel.BeginFrame()
		tel.EndFrame(0.010, 0)
	}
	assert.InDelta(t, 10.0, tel.FrameTimeMS(), 0.001)
}

func TestGPUTimeSmoothingIgnoresMissingSamples(t *testing.T) {
	tel := NewFrameTelemetry()

	tel.BeginFrame()
	tel.EndFrame(0.016, 4.0)
	first := tel.SmoothedGPUTimeMS()
	assert.Greater(t, first, 0.0)
	assert.Equal(t, 4.0, tel.GPUTimeMS())

	// A zero sample means "no timestamp retired this frame" and must not
	// drag the average down.
	tel.BeginFrame()
	tel.EndFrame(0.016, 0)
	assert.Equal(t, first, tel.SmoothedGPUTimeMS())
	assert.Equal(t, 4.0, tel.GPUTimeMS())

	tel.BeginFrame()
	tel.EndFrame(0.016, 8.0)
	assert.Greater(t, tel.SmoothedGPUTimeMS(), first)
}
