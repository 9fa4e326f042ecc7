package vulkan

import (
	"fmt"
	"os"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vesta-engine/vesta/engine/core"
)

// ShaderStage is a loaded shader module together with the stage description
// used during pipeline creation.
type ShaderStage struct {
	Handle          vk.ShaderModule
	StageCreateInfo vk.PipelineShaderStageCreateInfo
}

// LoadShaderStage reads a compiled SPIR-V file and wraps it as a stage for
// the given shader stage flag.
func LoadShaderStage(context *Context, path string, stageFlag vk.ShaderStageFlagBits) (*ShaderStage, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("unable to read shader file %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	return NewShaderStage(context, code, stageFlag)
}

// NewShaderStage creates a shader module from SPIR-V bytes.
func NewShaderStage(context *Context, code []byte, stageFlag vk.ShaderStageFlagBits) (*ShaderStage, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		err := fmt.Errorf("shader code length %d is not a multiple of 4", len(code))
		core.LogError(err.Error())
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    sliceUint32(code),
	}

	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create shader module: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	return &ShaderStage{
		Handle: handle,
		StageCreateInfo: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stageFlag,
			Module: handle,
			PName:  SafeString("main"),
		},
	}, nil
}

func (s *ShaderStage) Destroy(context *Context) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullShaderModule
	}
}

// sliceUint32 reinterprets SPIR-V bytes as the word slice Vulkan expects.
// The caller must keep the byte slice alive for the duration of the call
// that consumes the result.
func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
