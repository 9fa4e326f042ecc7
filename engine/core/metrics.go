package core

const frameAvgCount uint8 = 30

// EMA factor for smoothing the displayed GPU time. Higher reacts faster.
const emaSmoothing = 0.1

// FrameTelemetry accumulates per-frame counters owned by the frame loop.
// It is written by a single thread; there is no internal locking.
type FrameTelemetry struct {
	frameAvgCounter    uint8
	msTimes            [frameAvgCount]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64

	gpuTimeMS         float64
	smoothedGPUTimeMS float64

	drawCalls          uint32
	lastFrameDrawCalls uint32
}

func NewFrameTelemetry() *FrameTelemetry {
	return &FrameTelemetry{}
}

// BeginFrame resets the frame-scoped counters. Called once at the top of the
// frame, before any module records.
func (t *FrameTelemetry) BeginFrame() {
	t.drawCalls = 0
}

func (t *FrameTelemetry) AddDrawCalls(count uint32) {
	t.drawCalls += count
}

// EndFrame folds the finished frame into the rolling averages.
// frameElapsed is in seconds, gpuMS is the retired GPU duration in
// milliseconds (zero when timestamps are unavailable).
func (t *FrameTelemetry) EndFrame(frameElapsed float64, gpuMS float64) {
	frameMS := frameElapsed * 1000.0
	t.msTimes[t.frameAvgCounter] = frameMS
	if t.frameAvgCounter == frameAvgCount-1 {
		sum := 0.0
		for i := uint8(0); i < frameAvgCount; i++ {
			sum += t.msTimes[i]
		}
		t.msAvg = sum / float64(frameAvgCount)
	}
	t.frameAvgCounter++
	t.frameAvgCounter %= frameAvgCount

	t.accumulatedFrameMS += frameMS
	if t.accumulatedFrameMS > 1000 {
		t.fps = float64(t.frames)
		t.accumulatedFrameMS -= 1000
		t.frames = 0
	}
	t.frames++

	if gpuMS > 0 {
		t.gpuTimeMS = gpuMS
		t.smoothedGPUTimeMS = emaSmoothing*gpuMS + (1.0-emaSmoothing)*t.smoothedGPUTimeMS
	}

	t.lastFrameDrawCalls = t.drawCalls
}

func (t *FrameTelemetry) FPS() float64 {
	return t.fps
}

func (t *FrameTelemetry) FrameTimeMS() float64 {
	return t.msAvg
}

// GPUTimeMS returns the last retired GPU duration in milliseconds.
func (t *FrameTelemetry) GPUTimeMS() float64 {
	return t.gpuTimeMS
}

// SmoothedGPUTimeMS returns the EMA-smoothed GPU duration, suited for display.
func (t *FrameTelemetry) SmoothedGPUTimeMS() float64 {
	return t.smoothedGPUTimeMS
}

// DrawCalls returns the number of draw calls issued during the last
// completed frame.
func (t *FrameTelemetry) DrawCalls() uint32 {
	return t.lastFrameDrawCalls
}
