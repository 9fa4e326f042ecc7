package renderer

import (
	"fmt"
	stdmath "math"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/vesta-engine/vesta/engine/core"
	"github.com/vesta-engine/vesta/engine/renderer/vulkan"
)

// Options configures the frame loop. FramesInFlight bounds how many frames
// may be recorded ahead of the GPU.
type Options struct {
	FramesInFlight uint8
	ClearColor     [4]float32
	VSync          bool
	Timestamps     bool
}

// frameSlot is the reusable bundle of per-frame synchronization and
// recording resources. A slot's command buffer may not be reset until its
// fence has been observed signaled.
type frameSlot struct {
	index          uint32
	commandBuffer  *vulkan.CommandBuffer
	imageAcquired  vk.Semaphore
	renderFinished vk.Semaphore
	inFlight       *vulkan.Fence

	timestampsWritten bool
}

// Renderer owns the shared render target and drives the per-frame
// acquire/record/submit/present state machine across all registered modules.
// All methods must be called from the same thread.
type Renderer struct {
	context   *vulkan.Context
	opts      Options
	sessionID uuid.UUID

	swapchain    *vulkan.Swapchain
	mainPass     *vulkan.RenderPass
	depthImage   *vulkan.Image
	framebuffers []*vulkan.Framebuffer

	slots       []*frameSlot
	currentSlot uint32

	queryPool         vk.QueryPool
	timestampsEnabled bool

	modules []Module
	overlay OverlayFunc

	telemetry   *core.FrameTelemetry
	initialized bool
}

func New(context *vulkan.Context, opts Options) *Renderer {
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = 2
	}
	return &Renderer{
		context:   context,
		opts:      opts,
		sessionID: uuid.New(),
		telemetry: core.NewFrameTelemetry(),
	}
}

// Initialize builds the swapchain, the render target set and every frame
// slot, then notifies already-registered modules of creation. Any failure
// here is fatal; the renderer must not be used afterwards.
func (r *Renderer) Initialize(width, height uint32) error {
	swapchain, err := vulkan.SwapchainCreate(r.context, width, height, r.opts.VSync)
	if err != nil {
		return err
	}
	r.swapchain = swapchain

	if err := r.buildRenderTarget(); err != nil {
		return err
	}

	if err := r.createFrameSlots(); err != nil {
		return err
	}

	r.timestampsEnabled = r.opts.Timestamps && r.context.Device.TimestampsSupported
	if r.opts.Timestamps && !r.timestampsEnabled {
		core.LogWarn("GPU timestamps requested but not supported by the device")
	}
	if r.timestampsEnabled {
		if err := r.createQueryPool(); err != nil {
			return err
		}
	}

	r.initialized = true
	for _, module := range r.modules {
		if err := module.OnCreate(r.target()); err != nil {
			return fmt.Errorf("module %s creation failed: %w", module.Name(), err)
		}
	}

	core.LogInfo("Renderer initialized (session %s, %d frames in flight).", r.sessionID, r.opts.FramesInFlight)
	return nil
}

// RegisterModule appends the module to the active list. When the renderer is
// already initialized the module's creation hook runs immediately against
// the current target, so it can build target-dependent state without waiting
// for the next frame.
func (r *Renderer) RegisterModule(module Module) error {
	r.modules = append(r.modules, module)
	if r.initialized {
		if err := module.OnCreate(r.target()); err != nil {
			return fmt.Errorf("module %s creation failed: %w", module.Name(), err)
		}
	}
	core.LogDebug("registered render module %s", module.Name())
	return nil
}

// SetOverlay installs an end-of-pass callback invoked after all modules.
func (r *Renderer) SetOverlay(fn OverlayFunc) {
	r.overlay = fn
}

func (r *Renderer) Telemetry() *core.FrameTelemetry {
	return r.telemetry
}

func (r *Renderer) target() *Target {
	return &Target{
		Pass:       r.mainPass,
		Extent:     r.swapchain.CurrentExtent(),
		ImageCount: r.swapchain.ImageCount,
	}
}

// DrawFrame runs one pass of the frame state machine. A stale surface skips
// the frame and rebuilds the render target; the slot's fence is deliberately
// left untouched on every skip path so the next call re-waits on the same
// fence state.
func (r *Renderer) DrawFrame(deltaTime float64) error {
	slot := r.slots[r.currentSlot]
	device := r.context.Device

	if !slot.inFlight.Wait(r.context, stdmath.MaxUint64) {
		return fmt.Errorf("frame slot %d fence wait failed", slot.index)
	}

	imageIndex, stale, err := r.swapchain.AcquireNextImageIndex(r.context, stdmath.MaxUint64, slot.imageAcquired, vk.NullFence)
	if stale {
		return r.recreateRenderTarget()
	}
	if err != nil {
		core.LogError("dropping frame: %s", err)
		return err
	}

	r.telemetry.BeginFrame()

	commandBuffer := slot.commandBuffer
	if err := commandBuffer.Reset(); err != nil {
		return err
	}
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return err
	}

	if r.timestampsEnabled {
		vk.CmdResetQueryPool(commandBuffer.Handle, r.queryPool, slot.index*2, 2)
		vk.CmdWriteTimestamp(commandBuffer.Handle, vk.PipelineStageTopOfPipeBit, r.queryPool, slot.index*2)
	}

	extent := r.swapchain.CurrentExtent()
	r.mainPass.Begin(commandBuffer, r.framebuffers[imageIndex].Handle, extent)

	frame := &FrameInfo{
		CommandBuffer: commandBuffer,
		Extent:        extent,
		SlotIndex:     slot.index,
		ImageIndex:    imageIndex,
		DeltaTime:     deltaTime,
		Stats:         r.telemetry,
	}
	r.recordModules(frame)

	r.mainPass.End(commandBuffer)

	if r.timestampsEnabled {
		vk.CmdWriteTimestamp(commandBuffer.Handle, vk.PipelineStageBottomOfPipeBit, r.queryPool, slot.index*2+1)
	}

	if err := commandBuffer.End(); err != nil {
		return err
	}

	// The fence is reset only here, immediately before the submission it
	// will guard.
	if err := slot.inFlight.Reset(r.context); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{slot.imageAcquired},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.renderFinished},
	}
	if res := vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, slot.inFlight.Handle); res != vk.Success {
		// Nothing guards the fence now, so mark it signaled and let the
		// next frame reuse the slot.
		slot.inFlight.IsSignaled = true
		err := fmt.Errorf("queue submit failed: %s", vulkan.ResultString(res))
		core.LogError("dropping frame: %s", err)
		return err
	}
	commandBuffer.UpdateSubmitted()
	slot.timestampsWritten = r.timestampsEnabled

	// The previous slot's submission retired before this frame's fence wait,
	// so its timestamp pair is safe to read without blocking.
	gpuMS := r.retiredGPUTimeMS()

	stale, err = r.swapchain.Present(r.context, device.PresentQueue, slot.renderFinished, imageIndex)
	if stale {
		if err := r.recreateRenderTarget(); err != nil {
			return err
		}
	} else if err != nil {
		core.LogError("%s", err)
	}

	r.telemetry.EndFrame(deltaTime, gpuMS)
	r.currentSlot = nextSlotIndex(r.currentSlot, uint32(r.opts.FramesInFlight))
	return nil
}

// recordModules invokes every registered module's record operation in
// registration order, then the overlay callback. A module failure is logged
// and does not stop later modules; the pass keeps recording.
func (r *Renderer) recordModules(frame *FrameInfo) {
	for _, module := range r.modules {
		if err := module.Record(frame); err != nil {
			core.LogError("module %s record failed: %s", module.Name(), err)
		}
	}
	if r.overlay != nil {
		r.overlay(frame)
	}
}

// notifyDestroyed tells every module the target is going away.
func (r *Renderer) notifyDestroyed() {
	for _, module := range r.modules {
		module.OnDestroy()
	}
}

// notifyRebuilt tells every module about a freshly rebuilt target: resize
// first so extent-dependent state updates, then creation against the new
// target.
func (r *Renderer) notifyRebuilt(target *Target) error {
	for _, module := range r.modules {
		if err := module.OnResize(target.Extent); err != nil {
			return fmt.Errorf("module %s resize failed: %w", module.Name(), err)
		}
	}
	for _, module := range r.modules {
		if err := module.OnCreate(target); err != nil {
			return fmt.Errorf("module %s re-creation failed: %w", module.Name(), err)
		}
	}
	return nil
}

func nextSlotIndex(current, count uint32) uint32 {
	return (current + 1) % count
}

// Resize records the new surface size and rebuilds the render target. Driven
// by the window layer; the same sequence runs when acquire or present report
// staleness.
func (r *Renderer) Resize(width, height uint32) error {
	r.context.FramebufferWidth = width
	r.context.FramebufferHeight = height
	if !r.initialized {
		return nil
	}
	return r.recreateRenderTarget()
}

// Shutdown waits for all GPU work to retire, notifies every module of
// destruction and releases all frame and target resources.
func (r *Renderer) Shutdown() {
	device := r.context.Device
	if device == nil || device.LogicalDevice == nil {
		return
	}
	vk.DeviceWaitIdle(device.LogicalDevice)

	r.notifyDestroyed()
	r.modules = nil

	if r.queryPool != vk.NullQueryPool {
		vk.DestroyQueryPool(device.LogicalDevice, r.queryPool, r.context.Allocator)
		r.queryPool = vk.NullQueryPool
	}

	r.destroyRenderTarget()
	if r.swapchain != nil {
		r.swapchain.Destroy(r.context)
		r.swapchain = nil
	}

	for _, slot := range r.slots {
		if slot.commandBuffer != nil {
			slot.commandBuffer.Free(r.context, device.GraphicsCommandPool)
		}
		if slot.imageAcquired != vk.NullSemaphore {
			vk.DestroySemaphore(device.LogicalDevice, slot.imageAcquired, r.context.Allocator)
		}
		if slot.renderFinished != vk.NullSemaphore {
			vk.DestroySemaphore(device.LogicalDevice, slot.renderFinished, r.context.Allocator)
		}
		if slot.inFlight != nil {
			slot.inFlight.Destroy(r.context)
		}
	}
	r.slots = nil
	r.initialized = false

	core.LogInfo("Renderer shut down (session %s).", r.sessionID)
}

// recreateRenderTarget runs the staleness recovery sequence: every module is
// told of destruction, the swapchain and target set are rebuilt as a unit
// from the surface's current extent, then every module is told of the resize
// and of creation, in that order. Fence state is not touched.
func (r *Renderer) recreateRenderTarget() error {
	vk.DeviceWaitIdle(r.context.Device.LogicalDevice)

	r.notifyDestroyed()
	r.destroyRenderTarget()

	swapchain, err := r.swapchain.Recreate(r.context, r.context.FramebufferWidth, r.context.FramebufferHeight)
	if err != nil {
		return err
	}
	r.swapchain = swapchain

	if err := r.buildRenderTarget(); err != nil {
		return err
	}

	target := r.target()
	if err := r.notifyRebuilt(target); err != nil {
		return err
	}

	core.LogDebug("render target recreated (%dx%d)", target.Extent.Width, target.Extent.Height)
	return nil
}

// buildRenderTarget creates the depth attachment, the pass descriptor and
// one framebuffer per presentable image against the current swapchain.
func (r *Renderer) buildRenderTarget() error {
	extent := r.swapchain.CurrentExtent()

	depthImage, err := vulkan.ImageCreate(r.context, extent.Width, extent.Height, r.context.Device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return err
	}
	r.depthImage = depthImage

	mainPass, err := vulkan.RenderPassCreate(r.context, r.swapchain.ChosenFormat(), r.context.Device.DepthFormat, r.opts.ClearColor)
	if err != nil {
		return err
	}
	r.mainPass = mainPass

	views := r.swapchain.ImageViews()
	r.framebuffers = make([]*vulkan.Framebuffer, len(views))
	for i, view := range views {
		framebuffer, err := vulkan.FramebufferCreate(r.context, r.mainPass, extent.Width, extent.Height,
			[]vk.ImageView{view, r.depthImage.View})
		if err != nil {
			return err
		}
		r.framebuffers[i] = framebuffer
	}
	return nil
}

func (r *Renderer) destroyRenderTarget() {
	for _, framebuffer := range r.framebuffers {
		framebuffer.Destroy(r.context)
	}
	r.framebuffers = nil

	if r.mainPass != nil {
		r.mainPass.Destroy(r.context)
		r.mainPass = nil
	}
	if r.depthImage != nil {
		r.depthImage.Destroy(r.context)
		r.depthImage = nil
	}
}

func (r *Renderer) createFrameSlots() error {
	count := uint32(r.opts.FramesInFlight)
	r.slots = make([]*frameSlot, count)

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	for i := uint32(0); i < count; i++ {
		slot := &frameSlot{index: i}

		commandBuffer, err := vulkan.NewCommandBuffer(r.context, r.context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		slot.commandBuffer = commandBuffer

		if res := vk.CreateSemaphore(r.context.Device.LogicalDevice, &semaphoreCreateInfo, r.context.Allocator, &slot.imageAcquired); res != vk.Success {
			return fmt.Errorf("failed to create acquire semaphore: %s", vulkan.ResultString(res))
		}
		if res := vk.CreateSemaphore(r.context.Device.LogicalDevice, &semaphoreCreateInfo, r.context.Allocator, &slot.renderFinished); res != vk.Success {
			return fmt.Errorf("failed to create present semaphore: %s", vulkan.ResultString(res))
		}

		// Created signaled so the first frame's wait passes immediately.
		fence, err := vulkan.NewFence(r.context, true)
		if err != nil {
			return err
		}
		slot.inFlight = fence

		r.slots[i] = slot
	}
	return nil
}

func (r *Renderer) createQueryPool() error {
	createInfo := vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeTimestamp,
		QueryCount: uint32(r.opts.FramesInFlight) * 2,
	}
	var pool vk.QueryPool
	if res := vk.CreateQueryPool(r.context.Device.LogicalDevice, &createInfo, r.context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create timestamp query pool: %s", vulkan.ResultString(res))
		core.LogError(err.Error())
		return err
	}
	r.queryPool = pool
	return nil
}

// retiredGPUTimeMS reads the previous slot's timestamp pair and converts the
// tick delta to milliseconds. Returns zero when timestamps are disabled, not
// yet written for that slot, or not ready.
func (r *Renderer) retiredGPUTimeMS() float64 {
	if !r.timestampsEnabled {
		return 0
	}
	count := uint32(r.opts.FramesInFlight)
	previous := r.slots[(r.currentSlot+count-1)%count]
	if !previous.timestampsWritten {
		return 0
	}

	var ticks [2]uint64
	res := vk.GetQueryPoolResults(r.context.Device.LogicalDevice, r.queryPool,
		previous.index*2, 2,
		uint64(unsafe.Sizeof(ticks)), unsafe.Pointer(&ticks[0]),
		vk.DeviceSize(unsafe.Sizeof(ticks[0])),
		vk.QueryResultFlags(vk.QueryResult64Bit))
	if res == vk.NotReady {
		return 0
	}
	if res != vk.Success {
		core.LogWarn("timestamp readback failed: %s", vulkan.ResultString(res))
		return 0
	}
	if ticks[1] <= ticks[0] {
		return 0
	}
	return float64(ticks[1]-ticks[0]) * float64(r.context.Device.TimestampPeriod) / 1e6
}
