package executor

import (
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/command"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
)

// Rect is a rectangle in framebuffer pixels.
type Rect struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

/**
 * @brief The native command recording context the executor issues into.
 * Viewports and rects are already converted to framebuffer pixels.
 */
type Backend interface {
	BeginRenderPass(rp *metadata.RenderPass, fb *metadata.Framebuffer, area Rect, clearValues []metadata.ClearValue)
	NextSubpass()
	EndRenderPass()

	BindPipeline(p *pipeline.Pipeline)
	SetViewport(viewport math.Viewport)
	SetScissor(scissor Rect)
	BindDescriptorSets(p *pipeline.Pipeline, sets []*metadata.DescriptorSet)
	PushConstants(p *pipeline.Pipeline, stages metadata.ShaderStage, offset uint32, data []byte)
	BindVertexBuffers(buffers []*metadata.Buffer)
	BindIndexBuffer(buffer *metadata.Buffer)

	Draw(draw command.Draw)
	DrawIndexed(draw command.DrawIndexed)

	PipelineBarrier(barrier *command.BarrierRecord)
}
