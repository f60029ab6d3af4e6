package vulkan

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/command"
	"github.com/spaghettifunk/anima-graph/engine/renderer/executor"
	"github.com/spaghettifunk/anima-graph/engine/renderer/material"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
	"github.com/spaghettifunk/anima-graph/engine/renderer/texture"
)

func TestDecodeSPIRV(t *testing.T) {
	code := binary.LittleEndian.AppendUint32(nil, spirvMagic)
	code = binary.LittleEndian.AppendUint32(code, 0x00010000)
	words, err := decodeSPIRV(code)
	if err != nil {
		t.Fatalf("valid module rejected: %v", err)
	}
	if len(words) != 2 || words[1] != 0x00010000 {
		t.Fatalf("unexpected words %v", words)
	}

	if _, err := decodeSPIRV(code[:6]); err == nil {
		t.Fatalf("partial word accepted")
	}
	if _, err := decodeSPIRV([]byte{1, 2, 3, 4}); err == nil {
		t.Fatalf("wrong magic accepted")
	}
	if _, err := decodeSPIRV(nil); err == nil {
		t.Fatalf("empty module accepted")
	}
}

func TestDeferredLayout(t *testing.T) {
	desc := material.DeferredRenderPassDesc{
		Name:           "gbuffer",
		ColorFormat:    metadata.FormatR8G8B8A8Unorm,
		GBufferFormats: []metadata.Format{metadata.FormatR16G16B16A16Sfloat, metadata.FormatR16G16B16A16Sfloat, metadata.FormatR8G8B8A8Unorm},
		DepthFormat:    metadata.FormatD32Sfloat,
	}
	l, err := newDeferredLayout(desc)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(l.attachments) != 5 {
		t.Fatalf("want colour + 3 G-buffers + depth, got %d attachments", len(l.attachments))
	}
	if l.depthRef.Attachment != 4 || l.attachments[4].Format != vk.Format(metadata.FormatD32Sfloat) {
		t.Fatalf("depth must be the last attachment")
	}
	for i, ref := range l.gbufferRefs {
		if ref.Attachment != uint32(i+1) || l.inputRefs[i].Attachment != uint32(i+1) {
			t.Fatalf("G-buffer %d referenced as %d/%d", i, ref.Attachment, l.inputRefs[i].Attachment)
		}
		if l.attachments[i+1].StoreOp != vk.AttachmentStoreOpDontCare {
			t.Fatalf("G-buffer %d must not be stored", i)
		}
	}
	if l.dependency.SrcSubpass != material.GBufferSubpass || l.dependency.DstSubpass != material.CompositionSubpass {
		t.Fatalf("dependency must go from the G-buffer to the composition subpass")
	}
	if len(l.colorCounts) != 2 || l.colorCounts[0] != 3 || l.colorCounts[1] != 1 {
		t.Fatalf("unexpected colour counts %v", l.colorCounts)
	}
}

func TestDeferredLayoutRejectsBadDescriptions(t *testing.T) {
	tests := []struct {
		name string
		desc material.DeferredRenderPassDesc
	}{
		{"no gbuffers", material.DeferredRenderPassDesc{DepthFormat: metadata.FormatD32Sfloat}},
		{"too many gbuffers", material.DeferredRenderPassDesc{
			GBufferFormats: make([]metadata.Format, VULKAN_MAX_COLOR_ATTACHMENTS+1),
			DepthFormat:    metadata.FormatD32Sfloat,
		}},
		{"colour depth", material.DeferredRenderPassDesc{
			GBufferFormats: []metadata.Format{metadata.FormatR8G8B8A8Unorm},
			DepthFormat:    metadata.FormatR8G8B8A8Unorm,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newDeferredLayout(tt.desc); !errors.Is(err, core.ErrConfiguration) {
				t.Fatalf("want a configuration error, got %v", err)
			}
		})
	}
}

func TestImageUsage(t *testing.T) {
	depth := imageUsage(texture.AllocInfo{Format: metadata.FormatD24UnormS8Uint})
	if depth&vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit) == 0 || depth&vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) != 0 {
		t.Fatalf("depth usage %b", depth)
	}
	gbuffer := imageUsage(texture.AllocInfo{Format: metadata.FormatR16G16B16A16Sfloat, IsInputAttachment: true})
	for _, bit := range []vk.ImageUsageFlagBits{vk.ImageUsageColorAttachmentBit, vk.ImageUsageInputAttachmentBit, vk.ImageUsageSampledBit} {
		if gbuffer&vk.ImageUsageFlags(bit) == 0 {
			t.Fatalf("G-buffer usage %b misses %b", gbuffer, bit)
		}
	}
	if imageAspect(metadata.FormatD32Sfloat) != vk.ImageAspectFlags(vk.ImageAspectDepthBit) {
		t.Fatalf("depth aspect")
	}
}

func TestBlendAttachment(t *testing.T) {
	if blendAttachment(metadata.BlendModeOpaque).BlendEnable != vk.False {
		t.Fatalf("opaque must not blend")
	}
	alpha := blendAttachment(metadata.BlendModeAlpha)
	if alpha.BlendEnable != vk.True || alpha.DstColorBlendFactor != vk.BlendFactorOneMinusSrcAlpha {
		t.Fatalf("alpha blend %+v", alpha)
	}
	additive := blendAttachment(metadata.BlendModeAdditive)
	if additive.DstColorBlendFactor != vk.BlendFactorOne {
		t.Fatalf("additive blend %+v", additive)
	}
}

func TestFixedFunctionState(t *testing.T) {
	state := metadata.DefaultPipelineState()
	raster := rasterizationState(state)
	if raster.CullMode != vk.CullModeFlags(vk.CullModeBackBit) || raster.FrontFace != vk.FrontFaceCounterClockwise || raster.LineWidth != 1 {
		t.Fatalf("rasterization %+v", raster)
	}
	depth := depthStencilState(state)
	if depth.DepthTestEnable != vk.True || depth.DepthCompareOp != vk.CompareOpLessOrEqual {
		t.Fatalf("depth %+v", depth)
	}

	state.DepthTest = false
	state.DepthWrite = false
	state.LineWidth = 0
	if d := depthStencilState(state); d.DepthTestEnable != vk.False || d.DepthWriteEnable != vk.False {
		t.Fatalf("depth should be off")
	}
	if r := rasterizationState(state); r.LineWidth != 1 {
		t.Fatalf("zero line width should default to 1")
	}
}

func TestVertexInput(t *testing.T) {
	bindings, attributes := vertexInput(metadata.Vertex2DLayout)
	if len(bindings) != 1 || bindings[0].Stride != 16 {
		t.Fatalf("bindings %+v", bindings)
	}
	if len(attributes) != 2 || attributes[1].Offset != 8 || attributes[1].Format != vk.FormatR32g32Sfloat {
		t.Fatalf("attributes %+v", attributes)
	}
	if b, a := vertexInput(nil); b != nil || a != nil {
		t.Fatalf("meshless passes need no vertex input")
	}
}

func TestPushConstantRanges(t *testing.T) {
	ranges, err := pushConstantRanges([]metadata.PushConstantRange{{Stages: metadata.ShaderStageVertex, Size: 128}})
	if err != nil || len(ranges) != 1 || ranges[0].Size != 128 {
		t.Fatalf("ranges %+v %v", ranges, err)
	}
	if _, err := pushConstantRanges(make([]metadata.PushConstantRange, VULKAN_MAX_PUSH_CONSTANT_RANGES+1)); err == nil {
		t.Fatalf("too many ranges accepted")
	}
}

func TestCompileNeedsShaderAndRenderPass(t *testing.T) {
	c := NewPipelineCompiler(nil)
	if _, err := c.Compile(pipeline.Info{}); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("missing pass: %v", err)
	}
	pass := &metadata.Pass{Shader: &metadata.Shader{ID: 1, Name: "s"}}
	if _, err := c.Compile(pipeline.Info{Pass: pass}); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("missing render pass: %v", err)
	}
	rp := &metadata.RenderPass{Name: "foreign", InternalData: "not vulkan"}
	if _, err := c.Compile(pipeline.Info{Pass: pass, RenderPass: rp}); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("foreign render pass: %v", err)
	}
}

func TestBarrierConversion(t *testing.T) {
	image := &VulkanImage{}
	tex := &metadata.Texture{Format: metadata.FormatD32Sfloat, InternalData: image}
	barrier := &command.BarrierRecord{
		Images:  []metadata.ImageMemoryBarrier{metadata.ShaderReadBarrier(tex)},
		Buffers: []metadata.BufferMemoryBarrier{{Offset: 16}},
		Memory:  []metadata.MemoryBarrier{{SrcAccess: metadata.AccessFlags(1)}},
	}

	images := imageBarriers(barrier.Images)
	if len(images) != 1 {
		t.Fatalf("want one image barrier")
	}
	sub := images[0].SubresourceRange
	if sub.LevelCount != 1 || sub.LayerCount != 1 {
		t.Fatalf("zero counts must become one, got %+v", sub)
	}
	if images[0].SrcQueueFamilyIndex != vk.QueueFamilyIgnored {
		t.Fatalf("barriers never transfer ownership")
	}
	if images[0].NewLayout != vk.ImageLayout(barrier.Images[0].NewLayout) {
		t.Fatalf("layout not carried over")
	}

	buffers := bufferBarriers(barrier.Buffers)
	if buffers[0].Size != vk.DeviceSize(vk.WholeSize) || buffers[0].Offset != 16 {
		t.Fatalf("buffer barrier %+v", buffers[0])
	}
	if memory := memoryBarriers(barrier.Memory); memory[0].SrcAccessMask != 1 {
		t.Fatalf("memory barrier %+v", memory[0])
	}
}

func TestRectConversion(t *testing.T) {
	r := rect2D(executor.Rect{X: 4, Y: 8, Width: 100, Height: 50})
	if r.Offset.X != 4 || r.Offset.Y != 8 || r.Extent.Width != 100 || r.Extent.Height != 50 {
		t.Fatalf("rect %+v", r)
	}
	if len(clearValues([]metadata.ClearValue{metadata.ClearColor(0, 0, 0, 1), metadata.ClearDepthStencil(1, 0)})) != 2 {
		t.Fatalf("clear values lost")
	}
}

func TestResultStrings(t *testing.T) {
	if !VulkanResultIsSuccess(vk.Success) || !VulkanResultIsSuccess(vk.Incomplete) {
		t.Fatalf("positive results are successes")
	}
	if VulkanResultIsSuccess(vk.ErrorDeviceLost) {
		t.Fatalf("device lost is an error")
	}
	if got := VulkanResultString(vk.ErrorDeviceLost, false); got != "VK_ERROR_DEVICE_LOST" {
		t.Fatalf("short name %q", got)
	}
	if got := VulkanResultString(vk.ErrorDeviceLost, true); !strings.Contains(got, "lost") {
		t.Fatalf("extended name %q", got)
	}
	if got := VulkanResultString(vk.Result(-12345), false); got != "VkResult(-12345)" {
		t.Fatalf("unknown result %q", got)
	}
	if VulkanSafeString("main") != "main\x00" || VulkanSafeString("") != "\x00" {
		t.Fatalf("safe strings must be null terminated")
	}
}
