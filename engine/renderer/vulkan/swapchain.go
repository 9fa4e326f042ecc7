package vulkan

import (
	"fmt"
	stdmath "math"

	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/core"
	"github.com/vesta-engine/vesta/engine/math"
)

// Swapchain is the presentation surface binding: a rotating set of
// displayable images plus acquire/present. Depth attachments and
// framebuffers are owned by the render target set, not here.
type Swapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView
	Extent      vk.Extent2D

	vsync bool
}

type SwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func SwapchainCreate(context *Context, width, height uint32, vsync bool) (*Swapchain, error) {
	return createSwapchain(context, width, height, vsync)
}

// Recreate destroys the old swapchain and builds a new one against the
// surface's current state. The caller is responsible for rebuilding
// everything that referenced the old image views.
func (s *Swapchain) Recreate(context *Context, width, height uint32) (*Swapchain, error) {
	vsync := s.vsync
	s.Destroy(context)
	if err := QuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, &context.Device.SwapchainSupport); err != nil {
		return nil, err
	}
	return createSwapchain(context, width, height, vsync)
}

func (s *Swapchain) Destroy(context *Context) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)

	// Only destroy the views, not the images, since those are owned by the
	// swapchain and are destroyed when it is.
	for i := 0; i < int(s.ImageCount); i++ {
		vk.DestroyImageView(context.Device.LogicalDevice, s.Views[i], context.Allocator)
	}
	vk.DestroySwapchain(context.Device.LogicalDevice, s.Handle, context.Allocator)
	s.Handle = vk.NullSwapchain
}

// AcquireNextImageIndex requests the next presentable image, signaling the
// given semaphore once it is available. stale reports that the swapchain no
// longer matches the surface and must be recreated before rendering.
func (s *Swapchain) AcquireNextImageIndex(context *Context, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (index uint32, stale bool, err error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, s.Handle, timeoutNS, imageAvailableSemaphore, fence, &imageIndex)

	switch {
	case result == vk.ErrorOutOfDate:
		return 0, true, nil
	case result != vk.Success && result != vk.Suboptimal:
		return 0, false, fmt.Errorf("failed to acquire swapchain image: %s", ResultString(result))
	}
	return imageIndex, false, nil
}

// Present returns the image to the swapchain for presentation, gated on the
// render-complete semaphore. stale reports that the swapchain must be
// recreated before the next frame.
func (s *Swapchain) Present(context *Context, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) (stale bool, err error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	result := vk.QueuePresent(presentQueue, &presentInfo)
	switch {
	case result == vk.ErrorOutOfDate || result == vk.Suboptimal:
		return true, nil
	case result != vk.Success:
		return false, fmt.Errorf("failed to present swapchain image: %s", ResultString(result))
	}
	return false, nil
}

// CurrentExtent returns the extent the swapchain images were created with.
func (s *Swapchain) CurrentExtent() vk.Extent2D {
	return s.Extent
}

func (s *Swapchain) ImageViews() []vk.ImageView {
	return s.Views
}

// ChosenFormat returns the color format of the presentable images.
func (s *Swapchain) ChosenFormat() vk.Format {
	return s.ImageFormat.Format
}

func createSwapchain(context *Context, width, height uint32, vsync bool) (*Swapchain, error) {
	support := &context.Device.SwapchainSupport
	swapchain := &Swapchain{vsync: vsync}

	// Choose a swap surface format. Preferred: BGRA8 + sRGB nonlinear.
	found := false
	for i := 0; i < int(support.FormatCount); i++ {
		format := support.Formats[i]
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			found = true
			break
		}
	}
	if !found {
		swapchain.ImageFormat = support.Formats[0]
	}

	// FIFO is always available; mailbox avoids tearing without throttling.
	presentMode := vk.PresentModeFifo
	if !vsync {
		for i := 0; i < int(support.PresentModeCount); i++ {
			if support.PresentModes[i] == vk.PresentModeMailbox {
				presentMode = vk.PresentModeMailbox
				break
			}
		}
	}

	swapchainExtent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != stdmath.MaxUint32 {
		swapchainExtent = support.Capabilities.CurrentExtent
	}
	min := support.Capabilities.MinImageExtent
	max := support.Capabilities.MaxImageExtent
	swapchainExtent.Width = math.Clamp(swapchainExtent.Width, min.Width, max.Width)
	swapchainExtent.Height = math.Clamp(swapchainExtent.Height, min.Height, max.Height)
	swapchain.Extent = swapchainExtent

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		queueFamilyIndices := []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = queueFamilyIndices
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchainHandle); res != vk.Success {
		err := fmt.Errorf("failed to create swapchain: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Handle = swapchainHandle

	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, nil); res != vk.Success {
		return nil, fmt.Errorf("failed to get swapchain images: %s", ResultString(res))
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, swapchain.Images); res != vk.Success {
		return nil, fmt.Errorf("failed to get swapchain images: %s", ResultString(res))
	}

	for i := 0; i < int(swapchain.ImageCount); i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    swapchain.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &swapchain.Views[i]); res != vk.Success {
			return nil, fmt.Errorf("failed to create swapchain image view: %s", ResultString(res))
		}
	}

	core.LogInfo("Swapchain created (%dx%d, %d images).", swapchainExtent.Width, swapchainExtent.Height, swapchain.ImageCount)
	return swapchain, nil
}
