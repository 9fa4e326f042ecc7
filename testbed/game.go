package testbed

import (
	stdmath "math"

	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine"
	"github.com/vesta-engine/vesta/engine/assets"
	"github.com/vesta-engine/vesta/engine/core"
	"github.com/vesta-engine/vesta/engine/renderer/passes"
	"github.com/vesta-engine/vesta/engine/renderer/vulkan"
)

// demoState renders an animated instanced triangle plus any cooked meshes
// found in the asset directory.
type demoState struct {
	triangles *passes.Triangles
	meshes    *passes.StaticMesh

	triangleVB *vulkan.Buffer
	cube       assets.Handle

	elapsed   float64
	statsTick float64
}

func NewTestGame() *engine.Game {
	state := &demoState{}
	return &engine.Game{
		ConfigPath: "vesta.toml",
		State:      state,
		FnSetup:    state.setup,
		FnUpdate:   state.update,
		FnShutdown: state.shutdown,
	}
}

func (s *demoState) setup(e *engine.Engine) error {
	context := e.Context()
	shaderDir := e.AssetPath("shaders")

	// One triangle: vec2 position + vec3 color per vertex.
	triangleVB, err := vulkan.CreateDeviceLocalBuffer(context, passes.FloatBytes([]float32{
		0.0, -0.5, 1, 0, 0,
		0.5, 0.5, 0, 1, 0,
		-0.5, 0.5, 0, 0, 1,
	}), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return err
	}
	s.triangleVB = triangleVB

	s.triangles = passes.NewTriangles(context, shaderDir)
	s.triangles.SetVertices(passes.VertexBinding{Buffer: triangleVB, Count: 3})
	if err := e.Renderer().RegisterModule(s.triangles); err != nil {
		return err
	}

	// A 3x3 grid of tinted instances.
	instances := make([]float32, 0, 9*5)
	for y := -1; y <= 1; y++ {
		for x := -1; x <= 1; x++ {
			instances = append(instances,
				float32(x)*0.6, float32(y)*0.6,
				0.5+float32(x)*0.25, 0.5+float32(y)*0.25, 1.0)
		}
	}
	if err := s.triangles.UploadInstances(instances, 9); err != nil {
		return err
	}

	s.meshes = passes.NewStaticMesh(context, e.Registry(), shaderDir)
	if err := e.Renderer().RegisterModule(s.meshes); err != nil {
		return err
	}

	// Optional cooked mesh; the demo still runs without it.
	s.cube = e.Registry().Load(e.AssetPath("meshes", "cube.vmsh"))
	if s.cube.IsValid() {
		s.meshes.Attach(s.cube)
		e.Registry().Release(s.cube)
	}

	return nil
}

func (s *demoState) update(e *engine.Engine, deltaTime float64) error {
	s.elapsed += deltaTime
	s.triangles.SetOffset(
		float32(0.15*stdmath.Sin(s.elapsed)),
		float32(0.15*stdmath.Cos(s.elapsed)))

	if s.cube.IsValid() && e.Registry().Modified(s.cube) {
		core.LogInfo("cube mesh changed on disk")
		e.Registry().ClearModified(s.cube)
	}

	s.statsTick += deltaTime
	if s.statsTick >= 2.0 {
		s.statsTick = 0
		stats := e.Renderer().Telemetry()
		core.LogInfo("fps %.0f, frame %.2f ms, gpu %.3f ms, %d draw calls",
			stats.FPS(), stats.FrameTimeMS(), stats.SmoothedGPUTimeMS(), stats.DrawCalls())
	}
	return nil
}

func (s *demoState) shutdown(e *engine.Engine) {
	if s.meshes != nil {
		s.meshes.ReleaseAll()
	}
	if s.triangleVB != nil {
		s.triangleVB.Destroy(e.Context())
		s.triangleVB = nil
	}
	e.Registry().Collect()
}
