package vulkan

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/core"
	"github.com/vesta-engine/vesta/engine/platform"
)

// Backend bootstraps the Vulkan instance, surface and device. Everything
// frame-related lives in the renderer package; the backend only owns the API
// context.
type Backend struct {
	platform *platform.Platform
	Context  *Context
}

func NewBackend(p *platform.Platform) *Backend {
	return &Backend{
		platform: p,
		Context:  &Context{},
	}
}

func (b *Backend) Initialize(appName string, width, height uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("vulkan loader is unavailable")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vulkan: %s", err)
		return err
	}

	b.Context.FramebufferWidth = width
	b.Context.FramebufferHeight = height

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   SafeString(appName),
		PEngineName:        SafeString("Vesta"),
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, b.platform.RequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: SafeStrings(requiredExtensions),
	}
	if runtime.GOOS == "darwin" {
		createInfo.Flags |= 1 // VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	}

	if res := vk.CreateInstance(&createInfo, b.Context.Allocator, &b.Context.Instance); res != vk.Success {
		err := fmt.Errorf("failed to create instance: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(b.Context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan instance created.")

	surface, err := b.platform.CreateSurface(b.Context.Instance)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	b.Context.Surface = surface
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(b.Context); err != nil {
		core.LogError("failed to create device: %s", err)
		return err
	}

	return nil
}

func (b *Backend) Shutdown() {
	if b.Context.Device != nil && b.Context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(b.Context.Device.LogicalDevice)
		DeviceDestroy(b.Context)
	}

	if b.Context.Surface != vk.NullSurface {
		vk.DestroySurface(b.Context.Instance, b.Context.Surface, b.Context.Allocator)
		b.Context.Surface = vk.NullSurface
	}

	if b.Context.Instance != nil {
		vk.DestroyInstance(b.Context.Instance, b.Context.Allocator)
		b.Context.Instance = nil
	}
}
