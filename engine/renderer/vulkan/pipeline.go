package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
)

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
}

// PipelineCompiler builds graphics pipelines for the pipeline cache. It is
// safe for concurrent use: device calls go through the context lock pool.
type PipelineCompiler struct {
	context *VulkanContext
}

var _ pipeline.Compiler = (*PipelineCompiler)(nil)

func NewPipelineCompiler(context *VulkanContext) *PipelineCompiler {
	return &PipelineCompiler{context: context}
}

func rasterizationState(state metadata.PipelineState) vk.PipelineRasterizationStateCreateInfo {
	lineWidth := state.LineWidth
	if lineWidth <= 0 {
		lineWidth = 1
	}
	return vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonMode(state.Polygon),
		CullMode:                vk.CullModeFlags(state.Cull),
		FrontFace:               vk.FrontFace(state.FrontFace),
		DepthBiasEnable:         vk.False,
		LineWidth:               lineWidth,
	}
}

func depthStencilState(state metadata.PipelineState) vk.PipelineDepthStencilStateCreateInfo {
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.False,
		DepthWriteEnable:      vk.False,
		DepthCompareOp:        vk.CompareOpAlways,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}
	if state.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOp(state.DepthCompare)
	}
	if state.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}
	return depthStencil
}

func blendAttachment(mode metadata.BlendMode) vk.PipelineColorBlendAttachmentState {
	attachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	switch mode {
	case metadata.BlendModeAlpha:
		attachment.BlendEnable = vk.True
		attachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		attachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		attachment.SrcAlphaBlendFactor = vk.BlendFactorSrcAlpha
		attachment.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	case metadata.BlendModeAdditive:
		attachment.BlendEnable = vk.True
		attachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		attachment.DstColorBlendFactor = vk.BlendFactorOne
		attachment.DstAlphaBlendFactor = vk.BlendFactorOne
	}
	return attachment
}

// vertexInput describes a single interleaved binding. Meshless passes, such
// as a full-screen triangle, get no binding at all.
func vertexInput(layout *metadata.VertexLayout) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	if layout == nil {
		return nil, nil
	}
	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    layout.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}
	attributes := make([]vk.VertexInputAttributeDescription, len(layout.Attributes))
	for i, a := range layout.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	return bindings, attributes
}

func pushConstantRanges(ranges []metadata.PushConstantRange) ([]vk.PushConstantRange, error) {
	if len(ranges) > VULKAN_MAX_PUSH_CONSTANT_RANGES {
		return nil, fmt.Errorf("cannot have more than %d push constant ranges, got %d", VULKAN_MAX_PUSH_CONSTANT_RANGES, len(ranges))
	}
	out := make([]vk.PushConstantRange, len(ranges))
	for i, r := range ranges {
		out[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	return out, nil
}

func descriptorSetLayouts(shader *metadata.Shader) ([]vk.DescriptorSetLayout, error) {
	out := make([]vk.DescriptorSetLayout, len(shader.DescriptorSetLayouts))
	for i, l := range shader.DescriptorSetLayouts {
		layout, ok := l.(vk.DescriptorSetLayout)
		if !ok {
			return nil, fmt.Errorf("descriptor set layout %d of shader '%s' is a %T", i, shader.Name, l)
		}
		out[i] = layout
	}
	return out, nil
}

func (c *PipelineCompiler) Compile(info pipeline.Info) (*pipeline.Pipeline, error) {
	if info.Pass == nil || info.Pass.Shader == nil {
		return nil, fmt.Errorf("no shader to build a pipeline from: %w", core.ErrConfiguration)
	}
	shader := info.Pass.Shader
	if info.RenderPass == nil {
		return nil, fmt.Errorf("no render pass to build a pipeline for: %w", core.ErrConfiguration)
	}
	renderpass, ok := info.RenderPass.InternalData.(*VulkanRenderpass)
	if !ok {
		return nil, fmt.Errorf("render pass '%s' was not created by vulkan: %w", info.RenderPass.Name, core.ErrConfiguration)
	}
	key := info.Key()

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(shader.Stages))
	for _, stageConfig := range shader.Stages {
		stage, err := NewShaderModule(c.context, stageConfig)
		if err != nil {
			return nil, err
		}
		// Modules are only needed while the pipeline is created.
		defer stage.Destroy(c.context)
		stages = append(stages, stage.ShaderStageCreateInfo)
	}

	setLayouts, err := descriptorSetLayouts(shader)
	if err != nil {
		return nil, err
	}
	ranges, err := pushConstantRanges(shader.PushConstantRanges)
	if err != nil {
		return nil, err
	}

	outPipeline := &VulkanPipeline{}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	if err := c.context.Locks.SafeCall(PipelineManagement, func() error {
		if res := vk.CreatePipelineLayout(c.context.Device.LogicalDevice, &pipelineLayoutCreateInfo, c.context.Allocator, &outPipeline.PipelineLayout); !VulkanResultIsSuccess(res) {
			return vulkanError("vkCreatePipelineLayout", res)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	// Viewport and scissor are set per draw.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateLineWidth,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	var layout *metadata.VertexLayout
	if info.Mesh != nil {
		layout = info.Mesh.Layout()
	}
	bindings, attributes := vertexInput(layout)
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(key.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	rasterizerCreateInfo := rasterizationState(info.Pass.State)
	depthStencil := depthStencilState(info.Pass.State)
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, key.ColorAttachments)
	for i := range blendAttachments {
		blendAttachments[i] = blendAttachment(info.Pass.State.Blend)
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          renderpass.Handle,
		Subpass:             info.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := c.context.Locks.SafeCall(PipelineManagement, func() error {
		res := vk.CreateGraphicsPipelines(c.context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, c.context.Allocator, pipelines)
		if !VulkanResultIsSuccess(res) {
			return vulkanError("vkCreateGraphicsPipelines", res)
		}
		return nil
	}); err != nil {
		outPipeline.Destroy(c.context)
		return nil, err
	}
	outPipeline.Handle = pipelines[0]

	core.LogDebug("graphics pipeline created for shader '%s', subpass %d", shader.Name, info.Subpass)
	return &pipeline.Pipeline{
		Handle:        outPipeline.Handle,
		Layout:        outPipeline.PipelineLayout,
		PushConstants: shader.PushConstantRanges,
	}, nil
}

func (c *PipelineCompiler) Destroy(p *pipeline.Pipeline) {
	vp := &VulkanPipeline{}
	vp.Handle, _ = p.Handle.(vk.Pipeline)
	vp.PipelineLayout, _ = p.Layout.(vk.PipelineLayout)
	vp.Destroy(c.context)
	p.Handle = nil
	p.Layout = nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	_ = context.Locks.SafeCall(PipelineManagement, func() error {
		if pipeline.Handle != nil {
			vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
			pipeline.Handle = nil
		}
		if pipeline.PipelineLayout != nil {
			vk.DestroyPipelineLayout(context.Device.LogicalDevice, pipeline.PipelineLayout, context.Allocator)
			pipeline.PipelineLayout = nil
		}
		return nil
	})
}
