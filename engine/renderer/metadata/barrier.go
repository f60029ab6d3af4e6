package metadata

// PipelineStage values match VkPipelineStageFlagBits.
type PipelineStage uint32

const (
	PipelineStageTopOfPipe             PipelineStage = 0x00000001
	PipelineStageVertexInput           PipelineStage = 0x00000004
	PipelineStageVertexShader          PipelineStage = 0x00000008
	PipelineStageFragmentShader        PipelineStage = 0x00000080
	PipelineStageEarlyFragmentTests    PipelineStage = 0x00000100
	PipelineStageLateFragmentTests     PipelineStage = 0x00000200
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
	PipelineStageTransfer              PipelineStage = 0x00001000
	PipelineStageBottomOfPipe          PipelineStage = 0x00002000
	PipelineStageAllGraphics           PipelineStage = 0x00008000
)

// AccessFlags values match VkAccessFlagBits.
type AccessFlags uint32

const (
	AccessIndexRead                   AccessFlags = 0x00000002
	AccessVertexAttributeRead         AccessFlags = 0x00000004
	AccessUniformRead                 AccessFlags = 0x00000008
	AccessInputAttachmentRead         AccessFlags = 0x00000010
	AccessShaderRead                  AccessFlags = 0x00000020
	AccessShaderWrite                 AccessFlags = 0x00000040
	AccessColorAttachmentRead         AccessFlags = 0x00000080
	AccessColorAttachmentWrite        AccessFlags = 0x00000100
	AccessDepthStencilAttachmentRead  AccessFlags = 0x00000200
	AccessDepthStencilAttachmentWrite AccessFlags = 0x00000400
	AccessTransferRead                AccessFlags = 0x00000800
	AccessTransferWrite               AccessFlags = 0x00001000
)

// DependencyFlags values match VkDependencyFlagBits.
type DependencyFlags uint32

const (
	DependencyByRegion DependencyFlags = 0x00000001
)

// ImageLayout values match VkImageLayout.
type ImageLayout uint32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

// ImageAspect values match VkImageAspectFlagBits.
type ImageAspect uint32

const (
	ImageAspectColor   ImageAspect = 0x00000001
	ImageAspectDepth   ImageAspect = 0x00000002
	ImageAspectStencil ImageAspect = 0x00000004
)

type MemoryBarrier struct {
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

type BufferMemoryBarrier struct {
	SrcAccess AccessFlags
	DstAccess AccessFlags
	Buffer    *Buffer
	Offset    uint64
	/** @brief Zero means the whole buffer. */
	Size uint64
}

type ImageMemoryBarrier struct {
	SrcAccess AccessFlags
	DstAccess AccessFlags
	OldLayout ImageLayout
	NewLayout ImageLayout
	Image     *Texture
	Aspect    ImageAspect
	/** @brief Zero counts mean one mip level and one array layer. */
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// ShaderReadBarrier transitions a colour or depth attachment that was just
// written so the following draws can sample it.
func ShaderReadBarrier(tex *Texture) ImageMemoryBarrier {
	if tex.Format.IsDepth() {
		return ImageMemoryBarrier{
			SrcAccess: AccessDepthStencilAttachmentWrite,
			DstAccess: AccessShaderRead,
			OldLayout: ImageLayoutDepthStencilAttachmentOptimal,
			NewLayout: ImageLayoutShaderReadOnlyOptimal,
			Image:     tex,
			Aspect:    ImageAspectDepth,
		}
	}
	return ImageMemoryBarrier{
		SrcAccess: AccessColorAttachmentWrite,
		DstAccess: AccessShaderRead,
		OldLayout: ImageLayoutColorAttachmentOptimal,
		NewLayout: ImageLayoutShaderReadOnlyOptimal,
		Image:     tex,
		Aspect:    ImageAspectColor,
	}
}
