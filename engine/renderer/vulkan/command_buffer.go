package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/core"
)

type CommandBufferState int

const (
	CommandBufferStateReady CommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
	CommandBufferStateNotAllocated
)

// CommandBuffer is the per-frame recording context.
type CommandBuffer struct {
	Handle vk.CommandBuffer
	State  CommandBufferState
}

func NewCommandBuffer(context *Context, pool vk.CommandPool, isPrimary bool) (*CommandBuffer, error) {
	commandBuffer := &CommandBuffer{
		State: CommandBufferStateNotAllocated,
	}

	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		err := fmt.Errorf("failed to allocate command buffer: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	commandBuffer.Handle = handles[0]
	commandBuffer.State = CommandBufferStateReady

	return commandBuffer, nil
}

func (c *CommandBuffer) Free(context *Context, pool vk.CommandPool) {
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{c.Handle})
	c.Handle = nil
	c.State = CommandBufferStateNotAllocated
}

func (c *CommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(c.Handle, beginInfo); res != vk.Success {
		err := fmt.Errorf("failed to begin command buffer: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	c.State = CommandBufferStateRecording
	return nil
}

func (c *CommandBuffer) End() error {
	if res := vk.EndCommandBuffer(c.Handle); res != vk.Success {
		err := fmt.Errorf("failed to end command buffer: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	c.State = CommandBufferStateRecordingEnded
	return nil
}

func (c *CommandBuffer) UpdateSubmitted() {
	c.State = CommandBufferStateSubmitted
}

// Reset resets the recording context. The caller must have observed the
// guarding fence signaled first.
func (c *CommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(c.Handle, 0); res != vk.Success {
		err := fmt.Errorf("failed to reset command buffer: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	c.State = CommandBufferStateReady
	return nil
}

// AllocateAndBeginSingleUse allocates a primary command buffer and begins a
// one-time-submit recording on it.
func AllocateAndBeginSingleUse(context *Context, pool vk.CommandPool) (*CommandBuffer, error) {
	commandBuffer, err := NewCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := commandBuffer.Begin(true, false, false); err != nil {
		commandBuffer.Free(context, pool)
		return nil, err
	}
	return commandBuffer, nil
}

// EndSingleUse ends recording, submits to the queue, waits for the work to
// retire and frees the command buffer. Intended for infrequent bulk work.
func (c *CommandBuffer) EndSingleUse(context *Context, pool vk.CommandPool, queue vk.Queue) error {
	if err := c.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{c.Handle},
	}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		err := fmt.Errorf("failed to submit single-use command buffer: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}

	if res := vk.QueueWaitIdle(queue); res != vk.Success {
		err := fmt.Errorf("queue wait idle failed: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}

	c.Free(context, pool)
	return nil
}
