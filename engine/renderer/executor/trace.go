package executor

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/command"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
)

// TraceBackend is a Backend that records what it is asked to do. The testbed
// renders into it and tests assert on its trace.
type TraceBackend struct {
	Calls []string

	// Last state seen, for assertions.
	Viewports []math.Viewport
	Scissors  []Rect
	Pushes    [][]byte
}

func NewTraceBackend() *TraceBackend {
	return &TraceBackend{}
}

func (t *TraceBackend) Reset() {
	t.Calls = t.Calls[:0]
	t.Viewports = t.Viewports[:0]
	t.Scissors = t.Scissors[:0]
	t.Pushes = t.Pushes[:0]
}

// Ops returns the calls with their arguments stripped.
func (t *TraceBackend) Ops() []string {
	out := make([]string, len(t.Calls))
	for i, c := range t.Calls {
		op, _, _ := strings.Cut(c, " ")
		out[i] = op
	}
	return out
}

func (t *TraceBackend) String() string {
	return strings.Join(t.Calls, "\n")
}

func (t *TraceBackend) add(format string, args ...interface{}) {
	t.Calls = append(t.Calls, fmt.Sprintf(format, args...))
}

func (t *TraceBackend) BeginRenderPass(rp *metadata.RenderPass, fb *metadata.Framebuffer, area Rect, clearValues []metadata.ClearValue) {
	t.add("BeginRenderPass %s %dx%d area=%v clears=%d", rp.Name, fb.Width, fb.Height, area, len(clearValues))
}

func (t *TraceBackend) NextSubpass() {
	t.add("NextSubpass")
}

func (t *TraceBackend) EndRenderPass() {
	t.add("EndRenderPass")
}

func (t *TraceBackend) BindPipeline(p *pipeline.Pipeline) {
	t.add("BindPipeline shader=%d pass=%d subpass=%d", p.Key.ShaderID, p.Key.RenderPassID, p.Key.Subpass)
}

func (t *TraceBackend) SetViewport(viewport math.Viewport) {
	t.Viewports = append(t.Viewports, viewport)
	t.add("SetViewport %v", viewport)
}

func (t *TraceBackend) SetScissor(scissor Rect) {
	t.Scissors = append(t.Scissors, scissor)
	t.add("SetScissor %v", scissor)
}

func (t *TraceBackend) BindDescriptorSets(p *pipeline.Pipeline, sets []*metadata.DescriptorSet) {
	t.add("BindDescriptorSets count=%d", len(sets))
}

func (t *TraceBackend) PushConstants(p *pipeline.Pipeline, stages metadata.ShaderStage, offset uint32, data []byte) {
	t.Pushes = append(t.Pushes, data)
	t.add("PushConstants stages=%#x offset=%d size=%d", uint32(stages), offset, len(data))
}

func (t *TraceBackend) BindVertexBuffers(buffers []*metadata.Buffer) {
	t.add("BindVertexBuffers count=%d", len(buffers))
}

func (t *TraceBackend) BindIndexBuffer(buffer *metadata.Buffer) {
	t.add("BindIndexBuffer size=%d", buffer.Size)
}

func (t *TraceBackend) Draw(draw command.Draw) {
	t.add("Draw vertices=%d instances=%d", draw.VertexCount, draw.InstanceCount)
}

func (t *TraceBackend) DrawIndexed(draw command.DrawIndexed) {
	t.add("DrawIndexed indices=%d instances=%d", draw.IndexCount, draw.InstanceCount)
}

func (t *TraceBackend) PipelineBarrier(barrier *command.BarrierRecord) {
	t.add("PipelineBarrier src=%#x dst=%#x images=%d", uint32(barrier.SrcStage), uint32(barrier.DstStage), len(barrier.Images))
}
