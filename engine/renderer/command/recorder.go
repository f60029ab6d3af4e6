package command

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

const noDraw int32 = -1

// renderPassEntry is a RenderPassRecord with its variable parts replaced by
// indices into sibling columns.
type renderPassEntry struct {
	renderPass  *metadata.RenderPass
	framebuffer *metadata.Framebuffer
	subpass     uint32
	renderArea  math.Rect2D
	viewport    math.Viewport
	scissor     math.Rect2D
	clearValues span
	projection  math.Mat4
	view        math.Mat4
	model       math.Mat4
	draw        int32
	drawIndexed int32
	pass        *metadata.Pass
	mesh        metadata.Mesh
	subMesh     uint32
	objectID    uuid.UUID
}

type barrierEntry struct {
	srcStage   metadata.PipelineStage
	dstStage   metadata.PipelineStage
	dependency metadata.DependencyFlags
	memory     span
	buffers    span
	images     span
}

/**
 * @brief An append-only command stream stored as a structure of arrays.
 *
 * Begin opens a bracket and resets every logical count while keeping the
 * storage. Indices returned by AddRenderPass and AddBarrier stay valid until
 * the next Begin, whatever the number of growths in between.
 */
type Recorder struct {
	name      string
	recording bool
	brackets  uint64

	commands       column[Command]
	renderPasses   column[renderPassEntry]
	draws          column[Draw]
	drawsIndexed   column[DrawIndexed]
	clearValues    column[metadata.ClearValue]
	barriers       column[barrierEntry]
	memoryBarriers column[metadata.MemoryBarrier]
	bufferBarriers column[metadata.BufferMemoryBarrier]
	imageBarriers  column[metadata.ImageMemoryBarrier]
}

// NewRecorder creates a recorder. A zero capacity picks a small default.
func NewRecorder(name string, capacity uint32) *Recorder {
	return &Recorder{
		name:           name,
		commands:       newColumn[Command](capacity),
		renderPasses:   newColumn[renderPassEntry](capacity),
		draws:          newColumn[Draw](capacity),
		drawsIndexed:   newColumn[DrawIndexed](capacity),
		clearValues:    newColumn[metadata.ClearValue](capacity),
		barriers:       newColumn[barrierEntry](capacity),
		memoryBarriers: newColumn[metadata.MemoryBarrier](capacity),
		bufferBarriers: newColumn[metadata.BufferMemoryBarrier](capacity),
		imageBarriers:  newColumn[metadata.ImageMemoryBarrier](capacity),
	}
}

func (r *Recorder) Name() string {
	return r.name
}

func (r *Recorder) Begin() {
	if r.recording {
		core.LogWarn("recorder '%s': Begin called on an open bracket, previous commands dropped", r.name)
	}
	r.commands.reset()
	r.renderPasses.reset()
	r.draws.reset()
	r.drawsIndexed.reset()
	r.clearValues.reset()
	r.barriers.reset()
	r.memoryBarriers.reset()
	r.bufferBarriers.reset()
	r.imageBarriers.reset()
	r.recording = true
	r.brackets++
}

// End closes the bracket. The commands stay readable until the next Begin.
func (r *Recorder) End() {
	r.recording = false
}

// Recording reports whether the bracket is still open.
func (r *Recorder) Recording() bool {
	return r.recording
}

// Brackets is the number of Begin calls since creation.
func (r *Recorder) Brackets() uint64 {
	return r.brackets
}

func (r *Recorder) Len() int {
	return int(r.commands.count)
}

// AddRenderPass appends rec together with its draw record and clear values
// and returns the index of the render pass record.
func (r *Recorder) AddRenderPass(rec RenderPassRecord) uint32 {
	entry := renderPassEntry{
		renderPass:  rec.RenderPass,
		framebuffer: rec.Framebuffer,
		subpass:     rec.Subpass,
		renderArea:  rec.RenderArea,
		viewport:    rec.Viewport,
		scissor:     rec.Scissor,
		clearValues: r.clearValues.addAll(rec.ClearValues),
		projection:  rec.Projection,
		view:        rec.View,
		model:       rec.Model,
		draw:        noDraw,
		drawIndexed: noDraw,
		pass:        rec.Pass,
		mesh:        rec.Mesh,
		subMesh:     rec.SubMesh,
		objectID:    rec.ObjectID,
	}
	if rec.Draw != nil {
		entry.draw = int32(r.draws.add(*rec.Draw))
	}
	if rec.DrawIndexed != nil {
		entry.drawIndexed = int32(r.drawsIndexed.add(*rec.DrawIndexed))
	}
	index := r.renderPasses.add(entry)
	r.commands.add(Command{Type: CommandTypeRenderPass, Index: index})
	return index
}

// AddBarrier appends rec and its barrier lists and returns the index of the
// barrier record.
func (r *Recorder) AddBarrier(rec BarrierRecord) uint32 {
	index := r.barriers.add(barrierEntry{
		srcStage:   rec.SrcStage,
		dstStage:   rec.DstStage,
		dependency: rec.Dependency,
		memory:     r.memoryBarriers.addAll(rec.Memory),
		buffers:    r.bufferBarriers.addAll(rec.Buffers),
		images:     r.imageBarriers.addAll(rec.Images),
	})
	r.commands.add(Command{Type: CommandTypeBarrier, Index: index})
	return index
}

// Commands is the ordered, read-only view of the current bracket.
func (r *Recorder) Commands() []Command {
	return r.commands.view()
}

// RenderPass resolves the record stored at index.
func (r *Recorder) RenderPass(index uint32) RenderPassRecord {
	e := r.renderPasses.at(index)
	rec := RenderPassRecord{
		RenderPass:  e.renderPass,
		Framebuffer: e.framebuffer,
		Subpass:     e.subpass,
		RenderArea:  e.renderArea,
		Viewport:    e.viewport,
		Scissor:     e.scissor,
		ClearValues: r.clearValues.slice(e.clearValues),
		Projection:  e.projection,
		View:        e.view,
		Model:       e.model,
		Pass:        e.pass,
		Mesh:        e.mesh,
		SubMesh:     e.subMesh,
		ObjectID:    e.objectID,
	}
	if e.draw != noDraw {
		d := r.draws.at(uint32(e.draw))
		rec.Draw = &d
	}
	if e.drawIndexed != noDraw {
		d := r.drawsIndexed.at(uint32(e.drawIndexed))
		rec.DrawIndexed = &d
	}
	return rec
}

// Barrier resolves the barrier record stored at index.
func (r *Recorder) Barrier(index uint32) BarrierRecord {
	e := r.barriers.at(index)
	return BarrierRecord{
		SrcStage:   e.srcStage,
		DstStage:   e.dstStage,
		Dependency: e.dependency,
		Memory:     r.memoryBarriers.slice(e.memory),
		Buffers:    r.bufferBarriers.slice(e.buffers),
		Images:     r.imageBarriers.slice(e.images),
	}
}

func (r *Recorder) Stats() Stats {
	growths := r.commands.grows + r.renderPasses.grows + r.draws.grows + r.drawsIndexed.grows +
		r.clearValues.grows + r.barriers.grows + r.memoryBarriers.grows +
		r.bufferBarriers.grows + r.imageBarriers.grows
	return Stats{
		Commands:     r.commands.count,
		RenderPasses: r.renderPasses.count,
		Barriers:     r.barriers.count,
		Draws:        r.draws.count + r.drawsIndexed.count,
		ClearValues:  r.clearValues.count,
		Capacity:     r.renderPasses.capacity(),
		Growths:      growths,
	}
}
