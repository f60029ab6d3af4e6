package metadata

// Format values match VkFormat so backends can convert without a table.
type Format uint32

const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatB8G8R8A8Unorm      Format = 44
	FormatR16G16B16A16Sfloat Format = 97
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatD32Sfloat          Format = 126
	FormatD24UnormS8Uint     Format = 129
)

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f == FormatD24UnormS8Uint
}

/**
 * @brief Represents a texture used as a render target attachment or sampled input.
 */
type Texture struct {
	/** @brief The unique texture identifier. */
	ID uint32
	/** @brief The texture Name. */
	Name   string
	Format Format
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	/** @brief Set when the texture is read as a subpass input attachment. */
	IsInputAttachment bool
	/** @brief The backend image (*vulkan.VulkanImage for vulkan). */
	InternalData interface{}
}

/**
 * @brief A GPU buffer. Data mirrors the contents for meshes built on the CPU.
 */
type Buffer struct {
	ID   uint32
	Size uint64
	Data []byte
	/** @brief The backend buffer (vk.Buffer for vulkan). */
	InternalData interface{}
}
