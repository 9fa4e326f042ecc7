package passes

import (
	"path/filepath"

	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/assets"
	"github.com/vesta-engine/vesta/engine/core"
	"github.com/vesta-engine/vesta/engine/renderer"
	"github.com/vesta-engine/vesta/engine/renderer/vulkan"
)

// Cooked mesh vertex layout: vec3 position + vec3 normal + vec2 uv.
const meshVertexStride = 8 * 4

// StaticMesh draws registry-backed meshes with depth testing. Handles are
// referenced while attached and released when detached or on destruction of
// the pass itself; the registry still owns collection.
type StaticMesh struct {
	context   *vulkan.Context
	registry  *assets.Registry
	shaderDir string

	extent   vk.Extent2D
	pipeline *vulkan.Pipeline

	handles []assets.Handle
}

func NewStaticMesh(context *vulkan.Context, registry *assets.Registry, shaderDir string) *StaticMesh {
	return &StaticMesh{
		context:   context,
		registry:  registry,
		shaderDir: shaderDir,
	}
}

func (s *StaticMesh) Name() string { return "static-mesh" }

// Attach adds a mesh to the draw list, taking a registry reference.
func (s *StaticMesh) Attach(h assets.Handle) {
	if !h.IsValid() {
		return
	}
	s.registry.AddRef(h)
	s.handles = append(s.handles, h)
}

// Detach removes a mesh from the draw list and drops its reference.
func (s *StaticMesh) Detach(h assets.Handle) {
	for i, held := range s.handles {
		if held == h {
			s.handles = append(s.handles[:i], s.handles[i+1:]...)
			s.registry.Release(h)
			return
		}
	}
}

func (s *StaticMesh) OnCreate(target *renderer.Target) error {
	s.extent = target.Extent
	return s.createPipeline(target.Pass)
}

func (s *StaticMesh) OnResize(extent vk.Extent2D) error {
	s.extent = extent
	return nil
}

func (s *StaticMesh) Record(frame *renderer.FrameInfo) error {
	if len(s.handles) == 0 {
		return nil
	}

	cmd := frame.CommandBuffer.Handle
	s.pipeline.Bind(frame.CommandBuffer, vk.PipelineBindPointGraphics)
	setViewportAndScissor(cmd, s.extent)

	for _, h := range s.handles {
		mesh := s.registry.Resolve(h)
		if mesh == nil {
			core.LogWarn("skipping dead mesh handle %d", h.ID)
			continue
		}

		vk.CmdBindVertexBuffers(cmd, 0, 1,
			[]vk.Buffer{mesh.VertexBuffer.Handle},
			[]vk.DeviceSize{0})
		vk.CmdBindIndexBuffer(cmd, mesh.IndexBuffer.Handle, 0, mesh.IndexType)
		vk.CmdDrawIndexed(cmd, mesh.IndexCount, 1, 0, 0, 0)
		frame.Stats.AddDrawCalls(1)
	}
	return nil
}

func (s *StaticMesh) OnDestroy() {
	if s.pipeline != nil {
		s.pipeline.Destroy(s.context)
		s.pipeline = nil
	}
}

// ReleaseAll drops every held reference, typically right before registry
// collection at shutdown.
func (s *StaticMesh) ReleaseAll() {
	for _, h := range s.handles {
		s.registry.Release(h)
	}
	s.handles = nil
}

func (s *StaticMesh) createPipeline(pass *vulkan.RenderPass) error {
	vert, err := vulkan.LoadShaderStage(s.context, filepath.Join(s.shaderDir, "mesh.vert.spv"), vk.ShaderStageVertexBit)
	if err != nil {
		return err
	}
	defer vert.Destroy(s.context)

	frag, err := vulkan.LoadShaderStage(s.context, filepath.Join(s.shaderDir, "mesh.frag.spv"), vk.ShaderStageFragmentBit)
	if err != nil {
		return err
	}
	defer frag.Destroy(s.context)

	pipeline, err := vulkan.NewGraphicsPipeline(s.context, &vulkan.PipelineConfig{
		RenderPass: pass,
		Stride:     meshVertexStride,
		Attributes: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 3 * 4},
			{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 6 * 4},
		},
		Stages: []vk.PipelineShaderStageCreateInfo{
			vert.StageCreateInfo,
			frag.StageCreateInfo,
		},
		CullMode:   vk.CullModeBackBit,
		DepthTest:  true,
		DepthWrite: true,
	})
	if err != nil {
		return err
	}
	s.pipeline = pipeline
	return nil
}
