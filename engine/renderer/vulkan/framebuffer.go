package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/core"
)

type Framebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
}

func FramebufferCreate(context *Context, renderPass *RenderPass, width, height uint32, attachments []vk.ImageView) (*Framebuffer, error) {
	framebuffer := &Framebuffer{
		Attachments: make([]vk.ImageView, len(attachments)),
	}
	copy(framebuffer.Attachments, attachments)

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass.Handle,
		AttachmentCount: uint32(len(framebuffer.Attachments)),
		PAttachments:    framebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create framebuffer: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	framebuffer.Handle = handle
	return framebuffer, nil
}

func (f *Framebuffer) Destroy(context *Context) {
	if f.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, f.Handle, context.Allocator)
		f.Handle = vk.NullFramebuffer
	}
	f.Attachments = nil
}
