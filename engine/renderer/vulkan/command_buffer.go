package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/command"
	"github.com/spaghettifunk/anima-graph/engine/renderer/executor"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandBuffer is the executor backend for vulkan: every executor
// call is recorded into Handle.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

var _ executor.Backend = (*VulkanCommandBuffer)(nil)

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	err := context.Locks.SafeCall(CommandBufferManagement, func() error {
		if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
			return vulkanError("vkAllocateCommandBuffers", res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	_ = context.Locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	vBeginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}

	if isSingleUse {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, vBeginInfo); res != vk.Success {
		return vulkanError("vkBeginCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING

	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return vulkanError("vkEndCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}

/**
 * Allocates and begins recording to a primary command buffer.
 */
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to the graphics queue, waits on a fence and frees
 * the command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool) error {
	defer v.Free(context, pool)

	if err := v.End(); err != nil {
		return err
	}

	fence, err := NewFence(context, false)
	if err != nil {
		return err
	}
	defer fence.Destroy(context)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	err = context.Locks.SafeQueueCall(context.Device.GraphicsQueueIndex, func() error {
		if res := vk.QueueSubmit(context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); res != vk.Success {
			return vulkanError("vkQueueSubmit", res)
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.UpdateSubmitted()

	if !fence.Wait(context, VULKAN_SINGLE_USE_TIMEOUT) {
		err := fmt.Errorf("single use command buffer did not complete: %w", core.ErrResourceExhausted)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func clearValues(values []metadata.ClearValue) []vk.ClearValue {
	out := make([]vk.ClearValue, len(values))
	for i, cv := range values {
		if cv.IsDepthStencil {
			out[i].SetDepthStencil(cv.Depth, cv.Stencil)
		} else {
			out[i].SetColor(cv.Color[:])
		}
	}
	return out
}

func rect2D(r executor.Rect) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}
}

func one(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	return n
}

func memoryBarriers(barriers []metadata.MemoryBarrier) []vk.MemoryBarrier {
	out := make([]vk.MemoryBarrier, len(barriers))
	for i, b := range barriers {
		out[i] = vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: vk.AccessFlags(b.SrcAccess),
			DstAccessMask: vk.AccessFlags(b.DstAccess),
		}
	}
	return out
}

func bufferBarriers(barriers []metadata.BufferMemoryBarrier) []vk.BufferMemoryBarrier {
	out := make([]vk.BufferMemoryBarrier, len(barriers))
	for i, b := range barriers {
		size := vk.DeviceSize(vk.WholeSize)
		if b.Size != 0 {
			size = vk.DeviceSize(b.Size)
		}
		var handle vk.Buffer
		if b.Buffer != nil {
			handle, _ = b.Buffer.InternalData.(vk.Buffer)
		}
		out[i] = vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              handle,
			Offset:              vk.DeviceSize(b.Offset),
			Size:                size,
		}
	}
	return out
}

func imageBarriers(barriers []metadata.ImageMemoryBarrier) []vk.ImageMemoryBarrier {
	out := make([]vk.ImageMemoryBarrier, len(barriers))
	for i, b := range barriers {
		var handle vk.Image
		if b.Image != nil {
			if image, ok := b.Image.InternalData.(*VulkanImage); ok {
				handle = image.Handle
			}
		}
		out[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			OldLayout:           vk.ImageLayout(b.OldLayout),
			NewLayout:           vk.ImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(b.Aspect),
				BaseMipLevel:   b.BaseMipLevel,
				LevelCount:     one(b.LevelCount),
				BaseArrayLayer: b.BaseArrayLayer,
				LayerCount:     one(b.LayerCount),
			},
		}
	}
	return out
}

func (v *VulkanCommandBuffer) BeginRenderPass(rp *metadata.RenderPass, fb *metadata.Framebuffer, area executor.Rect, values []metadata.ClearValue) {
	renderpass, _ := rp.InternalData.(*VulkanRenderpass)
	framebuffer, _ := fb.InternalData.(*VulkanFramebuffer)
	if renderpass == nil || framebuffer == nil {
		core.LogError("render pass '%s' has no vulkan render pass or framebuffer, skipping", rp.Name)
		return
	}

	clears := clearValues(values)
	beginInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      renderpass.Handle,
		Framebuffer:     framebuffer.Handle,
		RenderArea:      rect2D(area),
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}

	vk.CmdBeginRenderPass(v.Handle, &beginInfo, vk.SubpassContentsInline)
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) NextSubpass() {
	vk.CmdNextSubpass(v.Handle, vk.SubpassContentsInline)
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *VulkanCommandBuffer) BindPipeline(p *pipeline.Pipeline) {
	handle, _ := p.Handle.(vk.Pipeline)
	vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, handle)
}

func (v *VulkanCommandBuffer) SetViewport(viewport math.Viewport) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (v *VulkanCommandBuffer) SetScissor(scissor executor.Rect) {
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{rect2D(scissor)})
}

func (v *VulkanCommandBuffer) BindDescriptorSets(p *pipeline.Pipeline, sets []*metadata.DescriptorSet) {
	layout, _ := p.Layout.(vk.PipelineLayout)
	handles := make([]vk.DescriptorSet, 0, len(sets))
	for _, set := range sets {
		if h, ok := set.InternalData.(vk.DescriptorSet); ok {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		return
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, layout, 0, uint32(len(handles)), handles, 0, nil)
}

func (v *VulkanCommandBuffer) PushConstants(p *pipeline.Pipeline, stages metadata.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	layout, _ := p.Layout.(vk.PipelineLayout)
	vk.CmdPushConstants(v.Handle, layout, vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) BindVertexBuffers(buffers []*metadata.Buffer) {
	handles := make([]vk.Buffer, 0, len(buffers))
	for _, b := range buffers {
		if h, ok := b.InternalData.(vk.Buffer); ok {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		return
	}
	offsets := make([]vk.DeviceSize, len(handles))
	vk.CmdBindVertexBuffers(v.Handle, 0, uint32(len(handles)), handles, offsets)
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer *metadata.Buffer) {
	if h, ok := buffer.InternalData.(vk.Buffer); ok {
		vk.CmdBindIndexBuffer(v.Handle, h, 0, vk.IndexTypeUint32)
	}
}

func (v *VulkanCommandBuffer) Draw(draw command.Draw) {
	vk.CmdDraw(v.Handle, draw.VertexCount, one(draw.InstanceCount), draw.FirstVertex, draw.FirstInstance)
}

func (v *VulkanCommandBuffer) DrawIndexed(draw command.DrawIndexed) {
	vk.CmdDrawIndexed(v.Handle, draw.IndexCount, one(draw.InstanceCount), draw.FirstIndex, draw.VertexOffset, draw.FirstInstance)
}

func (v *VulkanCommandBuffer) PipelineBarrier(barrier *command.BarrierRecord) {
	memory := memoryBarriers(barrier.Memory)
	buffers := bufferBarriers(barrier.Buffers)
	images := imageBarriers(barrier.Images)
	vk.CmdPipelineBarrier(v.Handle,
		vk.PipelineStageFlags(barrier.SrcStage),
		vk.PipelineStageFlags(barrier.DstStage),
		vk.DependencyFlags(barrier.Dependency),
		uint32(len(memory)), memory,
		uint32(len(buffers)), buffers,
		uint32(len(images)), images)
}
