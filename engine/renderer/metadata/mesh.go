package metadata

import (
	"encoding/binary"
	stdmath "math"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
)

/**
 * @brief A single vertex input attribute.
 */
type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

/**
 * @brief Describes how vertex buffers of a mesh are laid out. Meshes sharing
 * a layout share its ID, which is part of every pipeline key.
 */
type VertexLayout struct {
	ID         uint32
	Stride     uint32
	Attributes []VertexAttribute
}

// Vertex2DLayout is the layout of math.Vertex2D: position then texcoord.
var Vertex2DLayout = &VertexLayout{
	ID:     core.NextID(),
	Stride: 16,
	Attributes: []VertexAttribute{
		{Location: 0, Format: FormatR32G32Sfloat, Offset: 0},
		{Location: 1, Format: FormatR32G32Sfloat, Offset: 8},
	},
}

/**
 * @brief Draw parameters of one submesh.
 */
type SubMesh struct {
	Topology PrimitiveTopology
	/** @brief Used when the mesh has an index buffer. */
	IndexCount   uint32
	FirstIndex   uint32
	VertexOffset int32
	/** @brief Used when the mesh has no index buffer. */
	VertexCount uint32
	FirstVertex uint32
}

// Mesh is the collaborator exposing buffers and per-submesh draw parameters.
type Mesh interface {
	ID() uint32
	Layout() *VertexLayout
	VertexBuffers() []*Buffer
	// IndexBuffer returns nil for non-indexed meshes.
	IndexBuffer() *Buffer
	SubMeshes() []SubMesh
	Extents() math.Extents3D
}

/**
 * @brief A mesh whose buffers were created elsewhere.
 */
type StaticMesh struct {
	id       uint32
	layout   *VertexLayout
	vertices []*Buffer
	indices  *Buffer
	subs     []SubMesh
	extents  math.Extents3D
}

func NewStaticMesh(layout *VertexLayout, vertices []*Buffer, indices *Buffer, subs []SubMesh, extents math.Extents3D) *StaticMesh {
	return &StaticMesh{
		id:       core.NextID(),
		layout:   layout,
		vertices: vertices,
		indices:  indices,
		subs:     subs,
		extents:  extents,
	}
}

func (m *StaticMesh) ID() uint32               { return m.id }
func (m *StaticMesh) Layout() *VertexLayout    { return m.layout }
func (m *StaticMesh) VertexBuffers() []*Buffer { return m.vertices }
func (m *StaticMesh) IndexBuffer() *Buffer     { return m.indices }
func (m *StaticMesh) SubMeshes() []SubMesh     { return m.subs }
func (m *StaticMesh) Extents() math.Extents3D  { return m.extents }

var quadIndices = [6]uint32{0, 1, 3, 3, 1, 2}

/**
 * @brief A screen-space quad used to composite an intermediate target into
 * the trunk pass. Vertex data lives in the CPU mirror of its buffers and is
 * rewritten by SetRect.
 */
type QuadMesh struct {
	id       uint32
	Vertices [4]math.Vertex2D
	vertex   *Buffer
	index    *Buffer
}

func NewQuadMesh() *QuadMesh {
	q := &QuadMesh{
		id:     core.NextID(),
		vertex: &Buffer{ID: core.NextID(), Size: 4 * 16},
		index:  &Buffer{ID: core.NextID(), Size: 6 * 4},
	}
	for _, i := range quadIndices {
		q.index.Data = binary.LittleEndian.AppendUint32(q.index.Data, i)
	}
	q.SetRect(math.FullRect(), math.NewVec2(1, 1))
	return q
}

// SetRect places the quad over rect (normalized trunk space) and scales the
// texture coordinates by uvScale, the used fraction of the source target.
func (q *QuadMesh) SetRect(rect math.Rect2D, uvScale math.Vec2) {
	x0, y0 := rect.X*2-1, rect.Y*2-1
	x1, y1 := (rect.X+rect.Width)*2-1, (rect.Y+rect.Height)*2-1
	q.Vertices = [4]math.Vertex2D{
		{Position: math.NewVec2(x0, y0), Texcoord: math.NewVec2(0, 0)},
		{Position: math.NewVec2(x0, y1), Texcoord: math.NewVec2(0, uvScale.Y)},
		{Position: math.NewVec2(x1, y1), Texcoord: math.NewVec2(uvScale.X, uvScale.Y)},
		{Position: math.NewVec2(x1, y0), Texcoord: math.NewVec2(uvScale.X, 0)},
	}
	data := q.vertex.Data[:0]
	for _, v := range q.Vertices {
		for _, f := range [4]float32{v.Position.X, v.Position.Y, v.Texcoord.X, v.Texcoord.Y} {
			data = binary.LittleEndian.AppendUint32(data, stdmath.Float32bits(f))
		}
	}
	q.vertex.Data = data
}

func (q *QuadMesh) ID() uint32               { return q.id }
func (q *QuadMesh) Layout() *VertexLayout    { return Vertex2DLayout }
func (q *QuadMesh) VertexBuffers() []*Buffer { return []*Buffer{q.vertex} }
func (q *QuadMesh) IndexBuffer() *Buffer     { return q.index }

func (q *QuadMesh) SubMeshes() []SubMesh {
	return []SubMesh{{Topology: TopologyTriangleList, IndexCount: 6}}
}

func (q *QuadMesh) Extents() math.Extents3D {
	return math.Extents3D{Min: math.NewVec3(-1, -1, 0), Max: math.NewVec3(1, 1, 0)}
}
