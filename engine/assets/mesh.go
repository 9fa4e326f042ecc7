package assets

import (
	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/renderer/vulkan"
)

// Mesh is the GPU-resident form of a decoded mesh: device-local vertex and
// index buffers plus the metadata passes need to draw it.
type Mesh struct {
	VertexBuffer *vulkan.Buffer
	IndexBuffer  *vulkan.Buffer

	VertexCount uint32
	IndexCount  uint32
	IndexType   vk.IndexType

	AABBMin [3]float32
	AABBMax [3]float32
}

// UploadMesh pushes decoded mesh data into fresh device-local buffers via
// staging copies. The call blocks until the data is resident.
func UploadMesh(context *vulkan.Context, data *MeshData) (*Mesh, error) {
	vertexBuffer, err := vulkan.CreateDeviceLocalBuffer(context, data.VertexBytes,
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return nil, err
	}

	indexType := vk.IndexTypeUint16
	if data.IndexFormat == IndexFormatUint32 {
		indexType = vk.IndexTypeUint32
	}

	indexBuffer, err := vulkan.CreateDeviceLocalBuffer(context, data.IndexBytes,
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		vertexBuffer.Destroy(context)
		return nil, err
	}

	return &Mesh{
		VertexBuffer: vertexBuffer,
		IndexBuffer:  indexBuffer,
		VertexCount:  data.VertexCount,
		IndexCount:   data.IndexCount,
		IndexType:    indexType,
		AABBMin:      data.AABBMin,
		AABBMax:      data.AABBMax,
	}, nil
}

// Destroy releases both GPU buffers. The caller must guarantee no in-flight
// frame still references them.
func (m *Mesh) Destroy(context *vulkan.Context) {
	if m.VertexBuffer != nil {
		m.VertexBuffer.Destroy(context)
		m.VertexBuffer = nil
	}
	if m.IndexBuffer != nil {
		m.IndexBuffer.Destroy(context)
		m.IndexBuffer = nil
	}
	m.IndexCount = 0
}
