package command

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

type CommandType uint8

const (
	CommandTypeRenderPass CommandType = iota
	CommandTypeBarrier
)

func (t CommandType) String() string {
	switch t {
	case CommandTypeRenderPass:
		return "render-pass"
	case CommandTypeBarrier:
		return "barrier"
	}
	return "unknown"
}

// Command is one entry of a stream. Index points into the recorder's render
// pass or barrier storage depending on Type.
type Command struct {
	Type  CommandType
	Index uint32
}

type Draw struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

type DrawIndexed struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// RenderPassRecord asks the executor to draw one submesh with one material
// pass inside a render pass.
//
// A nil RenderPass is the trunk sentinel: the pass was begun outside the
// stream and only per-draw state is emitted.
type RenderPassRecord struct {
	RenderPass  *metadata.RenderPass
	Framebuffer *metadata.Framebuffer
	Subpass     uint32
	// RenderArea, Viewport and Scissor are normalized to the target size.
	RenderArea  math.Rect2D
	Viewport    math.Viewport
	Scissor     math.Rect2D
	ClearValues []metadata.ClearValue

	Projection math.Mat4
	View       math.Mat4
	Model      math.Mat4

	// At most one of Draw and DrawIndexed is set. With neither, the executor
	// derives the draw from the submesh.
	Draw        *Draw
	DrawIndexed *DrawIndexed

	Pass     *metadata.Pass
	Mesh     metadata.Mesh
	SubMesh  uint32
	ObjectID uuid.UUID
}

// IsTrunk reports whether the record targets the externally begun trunk pass.
func (r *RenderPassRecord) IsTrunk() bool {
	return r.RenderPass == nil
}

type BarrierRecord struct {
	SrcStage   metadata.PipelineStage
	DstStage   metadata.PipelineStage
	Dependency metadata.DependencyFlags
	Memory     []metadata.MemoryBarrier
	Buffers    []metadata.BufferMemoryBarrier
	Images     []metadata.ImageMemoryBarrier
}

// Stats describes a recorder's current bracket and storage.
type Stats struct {
	Commands     uint32
	RenderPasses uint32
	Barriers     uint32
	Draws        uint32
	ClearValues  uint32
	// Capacity is the render pass storage capacity.
	Capacity uint32
	// Growths counts reallocations across every column since creation.
	Growths uint32
}
