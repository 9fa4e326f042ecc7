package renderer

import (
	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/core"
	"github.com/vesta-engine/vesta/engine/renderer/vulkan"
)

// Target is the shared render-target description handed to modules when it
// is (re)built: the compiled pass the target commits to, the extent of its
// framebuffers and how many presentable images rotate through it.
type Target struct {
	Pass       *vulkan.RenderPass
	Extent     vk.Extent2D
	ImageCount uint32
}

// FrameInfo is the per-frame recording context passed to every module's
// Record call and to the overlay callback. The pass has already begun on
// CommandBuffer when Record runs.
type FrameInfo struct {
	CommandBuffer *vulkan.CommandBuffer
	Extent        vk.Extent2D
	SlotIndex     uint32
	ImageIndex    uint32
	DeltaTime     float64
	Stats         *core.FrameTelemetry
}

// Module is a pluggable drawing unit composited into the shared target.
//
// OnCreate runs when the target is built, and again after every recreation;
// it may build target-bound pipeline state. Record runs exactly once per
// active frame, in registration order, and must not assume anything about
// other modules' state. OnResize receives the new extent before OnCreate
// during recreation; modules using dynamic viewport/scissor state may no-op.
// OnDestroy must release everything OnCreate (or any later re-creation)
// allocated.
type Module interface {
	Name() string
	OnCreate(target *Target) error
	Record(frame *FrameInfo) error
	OnResize(extent vk.Extent2D) error
	OnDestroy()
}

// OverlayFunc is an optional end-of-pass hook invoked after all registered
// modules each frame, intended for UI or debug overlay drawing.
type OverlayFunc func(frame *FrameInfo)
