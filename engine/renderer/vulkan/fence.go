package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/core"
)

// Fence is a CPU-observable completion signal for submitted GPU work.
type Fence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *Context, createSignaled bool) (*Fence, error) {
	fence := &Fence{
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create fence: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = handle
	return fence, nil
}

func (f *Fence) Destroy(context *Context) {
	if f.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, f.Handle, context.Allocator)
		f.Handle = vk.NullFence
	}
	f.IsSignaled = false
}

// Wait blocks until the fence signals or the timeout elapses. Returns true
// when the fence was observed signaled.
func (f *Fence) Wait(context *Context, timeoutNS uint64) bool {
	if f.IsSignaled {
		return true
	}

	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, timeoutNS)
	switch result {
	case vk.Success:
		f.IsSignaled = true
		return true
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
	default:
		core.LogError("fence wait failed: %s", ResultString(result))
	}
	return false
}

// Reset returns the fence to the unsignaled state. Must only be called once
// the previous submission guarded by this fence has been waited on.
func (f *Fence) Reset(context *Context) error {
	if !f.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		err := fmt.Errorf("failed to reset fence: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	f.IsSignaled = false
	return nil
}
