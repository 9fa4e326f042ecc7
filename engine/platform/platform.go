package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// ResizeFunc receives the new framebuffer size in pixels.
type ResizeFunc func(width, height uint32)

type Platform struct {
	Window *glfw.Window

	onResize ResizeFunc
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(title string, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), title, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		if p.onResize != nil {
			p.onResize(uint32(w), uint32(h))
		}
	})

	return nil
}

// SetResizeCallback registers the handler invoked whenever the framebuffer
// size changes.
func (p *Platform) SetResizeCallback(fn ResizeFunc) {
	p.onResize = fn
}

// RequiredExtensionNames returns the instance extensions glfw needs for
// surface creation on this platform.
func (p *Platform) RequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateSurface creates a presentation surface for the window.
func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("platform: surface creation failed: %w", err)
	}
	return vk.SurfaceFromPointer(surface), nil
}

// FramebufferSize returns the current framebuffer size in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

// WaitMessages blocks until at least one event arrives. Used instead of
// polling while the window is minimized, so the loop does not spin.
func (p *Platform) WaitMessages() {
	glfw.WaitEvents()
}

func (p *Platform) Shutdown() {
	glfw.Terminate()
}
