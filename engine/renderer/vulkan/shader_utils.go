package vulkan

import (
	"encoding/binary"
	"fmt"
	"os"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

const spirvMagic uint32 = 0x07230203

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// decodeSPIRV turns a SPIR-V binary into words, checking its magic number.
func decodeSPIRV(code []byte) ([]uint32, error) {
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, fmt.Errorf("spir-v binary of %d bytes is not a whole number of words", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("spir-v magic number 0x%08x does not match", words[0])
	}
	return words, nil
}

// NewShaderModule reads the stage's SPIR-V file and creates its module.
func NewShaderModule(context *VulkanContext, stage metadata.ShaderStageConfig) (*VulkanShaderStage, error) {
	code, err := os.ReadFile(stage.FilePath)
	if err != nil {
		err = fmt.Errorf("unable to read shader module %s: %w", stage.FilePath, err)
		core.LogError(err.Error())
		return nil, err
	}
	words, err := decodeSPIRV(code)
	if err != nil {
		err = fmt.Errorf("shader module %s: %w", stage.FilePath, err)
		core.LogError(err.Error())
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}

	out := &VulkanShaderStage{}
	err = context.Locks.SafeCall(ShaderManagement, func() error {
		if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &out.Handle); res != vk.Success {
			return vulkanError("vkCreateShaderModule", res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFlagBits(stage.Stage),
		Module: out.Handle,
		PName:  VulkanSafeString("main"),
	}
	return out, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle == nil {
		return
	}
	_ = context.Locks.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		return nil
	})
	s.Handle = nil
}
