package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/texture"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Aspect vk.ImageAspectFlags
}

// ImageAllocator creates render target images for the texture cache.
type ImageAllocator struct {
	context *VulkanContext
}

var _ texture.Allocator = (*ImageAllocator)(nil)

func NewImageAllocator(context *VulkanContext) *ImageAllocator {
	return &ImageAllocator{context: context}
}

// imageUsage returns the usage of an attachment described by info. Every
// attachment can be sampled once the wait barrier moved it to a read layout.
func imageUsage(info texture.AllocInfo) vk.ImageUsageFlags {
	usage := vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	if info.Format.IsDepth() {
		usage |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	} else {
		usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if info.IsInputAttachment {
		usage |= vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit)
	}
	return usage
}

func imageAspect(format metadata.Format) vk.ImageAspectFlags {
	if format.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func (a *ImageAllocator) Create(info texture.AllocInfo) (*metadata.Texture, error) {
	image := &VulkanImage{
		Width:  info.Width,
		Height: info.Height,
		Aspect: imageAspect(info.Format),
	}
	device := a.context.Device.LogicalDevice

	err := a.context.Locks.SafeCall(ImageManagement, func() error {
		imageCreateInfo := vk.ImageCreateInfo{
			SType:     vk.StructureTypeImageCreateInfo,
			ImageType: vk.ImageType2d,
			Format:    vk.Format(info.Format),
			Extent: vk.Extent3D{
				Width:  info.Width,
				Height: info.Height,
				Depth:  1,
			},
			MipLevels:     1,
			ArrayLayers:   1,
			Samples:       vk.SampleCount1Bit,
			Tiling:        vk.ImageTilingOptimal,
			Usage:         imageUsage(info),
			SharingMode:   vk.SharingModeExclusive,
			InitialLayout: vk.ImageLayoutUndefined,
		}
		if res := vk.CreateImage(device, &imageCreateInfo, a.context.Allocator, &image.Handle); res != vk.Success {
			return vulkanError("vkCreateImage", res)
		}

		var memReqs vk.MemoryRequirements
		vk.GetImageMemoryRequirements(device, image.Handle, &memReqs)
		memReqs.Deref()

		memoryType := a.context.FindMemoryIndex(memReqs.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
		if memoryType < 0 {
			return fmt.Errorf("no device local memory for a %dx%d image", info.Width, info.Height)
		}
		allocInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  memReqs.Size,
			MemoryTypeIndex: uint32(memoryType),
		}
		if res := vk.AllocateMemory(device, &allocInfo, a.context.Allocator, &image.Memory); res != vk.Success {
			return vulkanError("vkAllocateMemory", res)
		}
		if res := vk.BindImageMemory(device, image.Handle, image.Memory, 0); res != vk.Success {
			return vulkanError("vkBindImageMemory", res)
		}

		viewCreateInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image.Handle,
			ViewType: vk.ImageViewType2d,
			Format:   vk.Format(info.Format),
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: image.Aspect,
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(device, &viewCreateInfo, a.context.Allocator, &image.View); res != vk.Success {
			return vulkanError("vkCreateImageView", res)
		}
		return nil
	})
	if err != nil {
		a.destroyImage(image)
		return nil, err
	}

	core.LogDebug("created %dx%d attachment image (format %d)", info.Width, info.Height, info.Format)
	return &metadata.Texture{
		ID:                core.NextID(),
		Format:            info.Format,
		Width:             info.Width,
		Height:            info.Height,
		IsInputAttachment: info.IsInputAttachment,
		InternalData:      image,
	}, nil
}

func (a *ImageAllocator) Destroy(tex *metadata.Texture) {
	image, ok := tex.InternalData.(*VulkanImage)
	if !ok {
		return
	}
	_ = a.context.Locks.SafeCall(ImageManagement, func() error {
		a.destroyImage(image)
		return nil
	})
	tex.InternalData = nil
}

func (a *ImageAllocator) destroyImage(image *VulkanImage) {
	device := a.context.Device.LogicalDevice
	if image.View != nil {
		vk.DestroyImageView(device, image.View, a.context.Allocator)
		image.View = nil
	}
	if image.Memory != nil {
		vk.FreeMemory(device, image.Memory, a.context.Allocator)
		image.Memory = nil
	}
	if image.Handle != nil {
		vk.DestroyImage(device, image.Handle, a.context.Allocator)
		image.Handle = nil
	}
}
