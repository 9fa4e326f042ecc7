package passes

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/renderer"
	"github.com/vesta-engine/vesta/engine/renderer/vulkan"
)

// Per-vertex layout: vec2 position + vec3 color.
// Per-instance layout: vec2 offset + vec3 color.
const triangleVertexStride = 5 * 4
const triangleInstanceStride = 5 * 4

// VertexBinding points a pass at externally owned vertex data.
type VertexBinding struct {
	Buffer *vulkan.Buffer
	Offset vk.DeviceSize
	Count  uint32
}

// Triangles draws instanced colored primitives. Viewport and scissor are
// dynamic state, so resize only updates the cached extent; the pipeline
// survives until the target itself is rebuilt.
type Triangles struct {
	context   *vulkan.Context
	shaderDir string

	extent   vk.Extent2D
	pipeline *vulkan.Pipeline

	vertices VertexBinding

	instanceBuffer  *vulkan.Buffer
	instanceCount   uint32
	defaultInstance *vulkan.Buffer

	// Push-constant offset applied to every vertex.
	offset [2]float32
}

func NewTriangles(context *vulkan.Context, shaderDir string) *Triangles {
	return &Triangles{
		context:   context,
		shaderDir: shaderDir,
	}
}

func (t *Triangles) Name() string { return "triangles" }

// SetVertices binds the vertex data to draw. The buffer stays owned by the
// caller.
func (t *Triangles) SetVertices(binding VertexBinding) {
	t.vertices = binding
}

// SetOffset sets the push-constant offset applied to all instances.
func (t *Triangles) SetOffset(x, y float32) {
	t.offset = [2]float32{x, y}
}

// UploadInstances streams per-instance data (offset + color per instance)
// into the grow-only instance buffer.
func (t *Triangles) UploadInstances(instances []float32, count uint32) error {
	buffer, err := vulkan.CreateOrUpdateBuffer(t.context, t.instanceBuffer, FloatBytes(instances),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return err
	}
	t.instanceBuffer = buffer
	t.instanceCount = count
	return nil
}

func (t *Triangles) OnCreate(target *renderer.Target) error {
	t.extent = target.Extent

	// A single white instance at the origin, so one draw works without any
	// streamed instance data.
	defaultInstance, err := vulkan.CreateOrUpdateBuffer(t.context, nil,
		FloatBytes([]float32{0, 0, 1, 1, 1}),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return err
	}
	t.defaultInstance = defaultInstance

	return t.createPipeline(target.Pass)
}

func (t *Triangles) OnResize(extent vk.Extent2D) error {
	t.extent = extent
	return nil
}

func (t *Triangles) Record(frame *renderer.FrameInfo) error {
	if t.vertices.Buffer == nil || t.vertices.Count == 0 {
		return nil
	}

	cmd := frame.CommandBuffer.Handle
	t.pipeline.Bind(frame.CommandBuffer, vk.PipelineBindPointGraphics)

	vk.CmdPushConstants(cmd, t.pipeline.Layout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit)|vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		0, uint32(unsafe.Sizeof(t.offset)), unsafe.Pointer(&t.offset[0]))

	setViewportAndScissor(cmd, t.extent)

	instanceBuffer := t.defaultInstance
	instanceCount := uint32(1)
	if t.instanceBuffer != nil && t.instanceCount > 0 {
		instanceBuffer = t.instanceBuffer
		instanceCount = t.instanceCount
	}

	vk.CmdBindVertexBuffers(cmd, 0, 2,
		[]vk.Buffer{t.vertices.Buffer.Handle, instanceBuffer.Handle},
		[]vk.DeviceSize{t.vertices.Offset, 0})
	vk.CmdDraw(cmd, t.vertices.Count, instanceCount, 0, 0)
	frame.Stats.AddDrawCalls(1)

	return nil
}

func (t *Triangles) OnDestroy() {
	if t.pipeline != nil {
		t.pipeline.Destroy(t.context)
		t.pipeline = nil
	}
	if t.defaultInstance != nil {
		t.defaultInstance.Destroy(t.context)
		t.defaultInstance = nil
	}
	if t.instanceBuffer != nil {
		t.instanceBuffer.Destroy(t.context)
		t.instanceBuffer = nil
		t.instanceCount = 0
	}
}

func (t *Triangles) createPipeline(pass *vulkan.RenderPass) error {
	vert, err := vulkan.LoadShaderStage(t.context, filepath.Join(t.shaderDir, "triangle.vert.spv"), vk.ShaderStageVertexBit)
	if err != nil {
		return err
	}
	defer vert.Destroy(t.context)

	frag, err := vulkan.LoadShaderStage(t.context, filepath.Join(t.shaderDir, "triangle.frag.spv"), vk.ShaderStageFragmentBit)
	if err != nil {
		return err
	}
	defer frag.Destroy(t.context)

	pipeline, err := vulkan.NewGraphicsPipeline(t.context, &vulkan.PipelineConfig{
		RenderPass: pass,
		Stride:     triangleVertexStride,
		Attributes: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 2 * 4},
		},
		InstanceStride: triangleInstanceStride,
		InstanceAttributes: []vk.VertexInputAttributeDescription{
			{Location: 2, Binding: 1, Format: vk.FormatR32g32Sfloat, Offset: 0},
			{Location: 3, Binding: 1, Format: vk.FormatR32g32b32Sfloat, Offset: 2 * 4},
		},
		Stages: []vk.PipelineShaderStageCreateInfo{
			vert.StageCreateInfo,
			frag.StageCreateInfo,
		},
		PushConstantSize: 2 * 4,
		CullMode:         vk.CullModeNone,
	})
	if err != nil {
		return err
	}
	t.pipeline = pipeline
	return nil
}

func setViewportAndScissor(cmd vk.CommandBuffer, extent vk.Extent2D) {
	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{viewport})

	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{scissor})
}

// FloatBytes packs float32 values into the little-endian byte layout GPU
// buffers expect.
func FloatBytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
