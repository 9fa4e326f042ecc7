package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/core"
)

// Buffer is a GPU buffer and its backing allocation. The two are created and
// destroyed together; Capacity is the allocated size, which may exceed the
// bytes last written.
type Buffer struct {
	Handle   vk.Buffer
	Memory   vk.DeviceMemory
	Capacity vk.DeviceSize
}

// NeedsRealloc reports whether a buffer holding capacity bytes must be
// replaced to hold required bytes. Capacity only ever grows.
func NeedsRealloc(capacity, required vk.DeviceSize) bool {
	return required > capacity
}

// BufferCreate allocates a buffer of the given size with dedicated memory of
// the requested property flags bound at offset zero.
func BufferCreate(context *Context, size vk.DeviceSize, usage vk.BufferUsageFlags, memoryProperties vk.MemoryPropertyFlags) (*Buffer, error) {
	buffer := &Buffer{
		Capacity: size,
	}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create buffer of size %d: %s", size, ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, memoryProperties)
	if memoryType == -1 {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer.Handle, context.Allocator)
		err := fmt.Errorf("required memory type not found for buffer")
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer.Handle, context.Allocator)
		err := fmt.Errorf("failed to allocate %d bytes for buffer: %s", memoryRequirements.Size, ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, buffer.Handle, buffer.Memory, 0); res != vk.Success {
		buffer.Destroy(context)
		err := fmt.Errorf("failed to bind buffer memory: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	return buffer, nil
}

func (b *Buffer) Destroy(context *Context) {
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	b.Capacity = 0
}

// Upload maps the buffer memory and copies data into it starting at offset
// zero. The buffer must have been created host-visible.
func (b *Buffer) Upload(context *Context, data []byte) error {
	if vk.DeviceSize(len(data)) > b.Capacity {
		err := fmt.Errorf("upload of %d bytes exceeds buffer capacity %d", len(data), b.Capacity)
		core.LogError(err.Error())
		return err
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(len(data)), 0, &mapped); res != vk.Success {
		err := fmt.Errorf("failed to map buffer memory: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return nil
}

// CreateOrUpdateBuffer writes data into a host-visible buffer, reusing the
// existing allocation when it is large enough and replacing it otherwise.
// Pass nil to create fresh. The caller must ensure no in-flight GPU work
// still reads the old buffer when a replacement happens.
func CreateOrUpdateBuffer(context *Context, existing *Buffer, data []byte, usage vk.BufferUsageFlags) (*Buffer, error) {
	required := vk.DeviceSize(len(data))

	buffer := existing
	if buffer == nil || NeedsRealloc(buffer.Capacity, required) {
		if buffer != nil {
			buffer.Destroy(context)
		}
		var err error
		buffer, err = BufferCreate(context, required, usage,
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			return nil, err
		}
	}

	if err := buffer.Upload(context, data); err != nil {
		if existing == nil || buffer != existing {
			buffer.Destroy(context)
		}
		return nil, err
	}
	return buffer, nil
}

// CreateDeviceLocalBuffer uploads data through a host-visible staging buffer
// into a new device-local buffer. The copy is synchronous; when the call
// returns the data is resident and the staging buffer is gone.
func CreateDeviceLocalBuffer(context *Context, data []byte, usage vk.BufferUsageFlags) (*Buffer, error) {
	size := vk.DeviceSize(len(data))

	staging, err := BufferCreate(context, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)

	if err := staging.Upload(context, data); err != nil {
		return nil, err
	}

	deviceLocal, err := BufferCreate(context, size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}

	if err := CopyBuffer(context, staging, deviceLocal, size); err != nil {
		deviceLocal.Destroy(context)
		return nil, err
	}
	return deviceLocal, nil
}

// CopyBuffer records and submits a one-shot transfer of size bytes from src
// to dst on the graphics queue, waiting for it to retire.
func CopyBuffer(context *Context, src, dst *Buffer, size vk.DeviceSize) error {
	commandBuffer, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}

	region := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      size,
	}
	vk.CmdCopyBuffer(commandBuffer.Handle, src.Handle, dst.Handle, 1, []vk.BufferCopy{region})

	return commandBuffer.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue)
}
