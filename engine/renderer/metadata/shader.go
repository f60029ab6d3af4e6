package metadata

// ShaderStage values match VkShaderStageFlagBits.
type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageGeometry ShaderStage = 0x00000008
	ShaderStageFragment ShaderStage = 0x00000010
	ShaderStageCompute  ShaderStage = 0x00000020
)

/**
 * @brief Configuration for one shader stage.
 */
type ShaderStageConfig struct {
	Stage ShaderStage
	/** @brief Path of the compiled SPIR-V file. Watched for hot reload. */
	FilePath string
	/** @brief The backend shader module (vk.ShaderModule for vulkan). */
	InternalData interface{}
}

/**
 * @brief Represents a shader program on the frontend.
 */
type Shader struct {
	/** @brief The shader identifier. Part of every pipeline key. */
	ID   uint32
	Name string
	/** @brief Stages in pipeline order. */
	Stages []ShaderStageConfig
	/** @brief Backend descriptor set layouts used to build the pipeline layout. */
	DescriptorSetLayouts []interface{}
	/** @brief Push constant ranges declared by the shader. */
	PushConstantRanges []PushConstantRange
}

/**
 * @brief A push constant range. Offset and size are in bytes.
 */
type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

/**
 * @brief A descriptor set allocated by an external factory.
 */
type DescriptorSet struct {
	ID           uint32
	InternalData interface{}
}
