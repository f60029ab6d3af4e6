package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/material"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

type VulkanRenderpass struct {
	Handle vk.RenderPass
	// AttachmentCount is the number of framebuffer attachments the pass expects.
	AttachmentCount uint32
}

// Targets creates the private render passes and framebuffers of deferred
// materials.
type Targets struct {
	context *VulkanContext
}

var _ material.TargetFactory = (*Targets)(nil)

func NewTargets(context *VulkanContext) *Targets {
	return &Targets{context: context}
}

// deferredLayout holds everything needed to create a deferred render pass.
// Attachment 0 is the colour, then one per G-buffer, then depth.
type deferredLayout struct {
	attachments   []vk.AttachmentDescription
	gbufferRefs   []vk.AttachmentReference
	inputRefs     []vk.AttachmentReference
	colorRef      vk.AttachmentReference
	depthRef      vk.AttachmentReference
	dependency    vk.SubpassDependency
	colorCounts   []uint8
	subpassCounts uint32
}

func newDeferredLayout(desc material.DeferredRenderPassDesc) (*deferredLayout, error) {
	if len(desc.GBufferFormats) == 0 || len(desc.GBufferFormats) > VULKAN_MAX_COLOR_ATTACHMENTS {
		return nil, fmt.Errorf("deferred render pass '%s' needs 1 to %d G-buffers, got %d: %w",
			desc.Name, VULKAN_MAX_COLOR_ATTACHMENTS, len(desc.GBufferFormats), core.ErrConfiguration)
	}
	if !desc.DepthFormat.IsDepth() {
		return nil, fmt.Errorf("deferred render pass '%s' depth format %d is not a depth format: %w",
			desc.Name, desc.DepthFormat, core.ErrConfiguration)
	}

	l := &deferredLayout{subpassCounts: 2}

	// The colour and depth attachments are sampled by the trunk after the
	// wait barrier, which performs the transition to a read layout.
	l.attachments = append(l.attachments, vk.AttachmentDescription{
		Format:         vk.Format(desc.ColorFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
	})
	l.colorRef = vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}

	// G-buffers only live between the two subpasses.
	for i, format := range desc.GBufferFormats {
		index := uint32(i + 1)
		l.attachments = append(l.attachments, vk.AttachmentDescription{
			Format:         vk.Format(format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutShaderReadOnlyOptimal,
		})
		l.gbufferRefs = append(l.gbufferRefs, vk.AttachmentReference{Attachment: index, Layout: vk.ImageLayoutColorAttachmentOptimal})
		l.inputRefs = append(l.inputRefs, vk.AttachmentReference{Attachment: index, Layout: vk.ImageLayoutShaderReadOnlyOptimal})
	}

	depthIndex := uint32(len(l.attachments))
	l.attachments = append(l.attachments, vk.AttachmentDescription{
		Format:         vk.Format(desc.DepthFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	})
	l.depthRef = vk.AttachmentReference{Attachment: depthIndex, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}

	l.dependency = vk.SubpassDependency{
		SrcSubpass:      material.GBufferSubpass,
		DstSubpass:      material.CompositionSubpass,
		SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit),
		DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
	}
	l.colorCounts = []uint8{uint8(len(desc.GBufferFormats)), 1}
	return l, nil
}

func (t *Targets) CreateRenderPass(desc material.DeferredRenderPassDesc) (*metadata.RenderPass, error) {
	l, err := newDeferredLayout(desc)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	subpasses := []vk.SubpassDescription{
		{
			PipelineBindPoint:       vk.PipelineBindPointGraphics,
			ColorAttachmentCount:    uint32(len(l.gbufferRefs)),
			PColorAttachments:       l.gbufferRefs,
			PDepthStencilAttachment: &l.depthRef,
		},
		{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			InputAttachmentCount: uint32(len(l.inputRefs)),
			PInputAttachments:    l.inputRefs,
			ColorAttachmentCount: 1,
			PColorAttachments:    []vk.AttachmentReference{l.colorRef},
		},
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(l.attachments)),
		PAttachments:    l.attachments,
		SubpassCount:    l.subpassCounts,
		PSubpasses:      subpasses,
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{l.dependency},
	}

	out := &VulkanRenderpass{AttachmentCount: uint32(len(l.attachments))}
	err = t.context.Locks.SafeCall(RenderpassManagement, func() error {
		if res := vk.CreateRenderPass(t.context.Device.LogicalDevice, &renderpassCreateInfo, t.context.Allocator, &out.Handle); res != vk.Success {
			return vulkanError("vkCreateRenderPass", res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	core.LogDebug("created deferred render pass '%s' with %d attachments", desc.Name, out.AttachmentCount)
	return &metadata.RenderPass{
		ID:                    core.NextID(),
		Name:                  desc.Name,
		SubpassCount:          l.subpassCounts,
		ColorAttachmentCounts: l.colorCounts,
		InternalData:          out,
	}, nil
}

func (t *Targets) DestroyRenderPass(rp *metadata.RenderPass) {
	vr, ok := rp.InternalData.(*VulkanRenderpass)
	if !ok || vr.Handle == nil {
		return
	}
	_ = t.context.Locks.SafeCall(RenderpassManagement, func() error {
		vk.DestroyRenderPass(t.context.Device.LogicalDevice, vr.Handle, t.context.Allocator)
		vr.Handle = nil
		return nil
	})
	rp.InternalData = nil
}

func (t *Targets) CreateFramebuffer(rp *metadata.RenderPass, attachments []*metadata.Texture, width, height uint32) (*metadata.Framebuffer, error) {
	vr, ok := rp.InternalData.(*VulkanRenderpass)
	if !ok {
		return nil, fmt.Errorf("render pass '%s' was not created by vulkan: %w", rp.Name, core.ErrConfiguration)
	}
	views := make([]vk.ImageView, len(attachments))
	for i, tex := range attachments {
		image, ok := tex.InternalData.(*VulkanImage)
		if !ok {
			return nil, fmt.Errorf("attachment %d of render pass '%s' has no vulkan image: %w", i, rp.Name, core.ErrConfiguration)
		}
		views[i] = image.View
	}

	var fb *VulkanFramebuffer
	err := t.context.Locks.SafeCall(RenderpassManagement, func() error {
		var err error
		fb, err = FramebufferCreate(t.context, vr, width, height, views)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &metadata.Framebuffer{
		ID:           core.NextID(),
		RenderPass:   rp,
		Width:        width,
		Height:       height,
		Attachments:  attachments,
		InternalData: fb,
	}, nil
}

func (t *Targets) DestroyFramebuffer(fb *metadata.Framebuffer) {
	vfb, ok := fb.InternalData.(*VulkanFramebuffer)
	if !ok {
		return
	}
	_ = t.context.Locks.SafeCall(RenderpassManagement, func() error {
		vfb.Destroy(t.context)
		return nil
	})
	fb.InternalData = nil
}
