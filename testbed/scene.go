package testbed

import (
	stdmath "math"
	"slices"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/binder"
	"github.com/spaghettifunk/anima-graph/engine/renderer/material"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

// cubeLayout is position, normal, texcoord.
var cubeLayout = &metadata.VertexLayout{
	ID:     core.NextID(),
	Stride: 32,
	Attributes: []metadata.VertexAttribute{
		{Location: 0, Format: metadata.FormatR32G32B32Sfloat, Offset: 0},
		{Location: 1, Format: metadata.FormatR32G32B32Sfloat, Offset: 12},
		{Location: 2, Format: metadata.FormatR32G32Sfloat, Offset: 24},
	},
}

func newCube(size float32) metadata.Mesh {
	half := size / 2
	vertices := &metadata.Buffer{ID: core.NextID(), Size: 24 * uint64(cubeLayout.Stride)}
	indices := &metadata.Buffer{ID: core.NextID(), Size: 36 * 4}
	return metadata.NewStaticMesh(cubeLayout, []*metadata.Buffer{vertices}, indices,
		[]metadata.SubMesh{{Topology: metadata.TopologyTriangleList, IndexCount: 36}},
		math.Extents3D{Min: math.NewVec3(-half, -half, -half), Max: math.NewVec3(half, half, half)})
}

type Camera struct {
	position   math.Vec3
	target     math.Vec3
	projection math.Mat4
}

func NewCamera(width, height uint32) *Camera {
	c := &Camera{target: math.NewVec3Zero()}
	c.SetAspect(width, height)
	c.Orbit(0)
	return c
}

func (c *Camera) SetAspect(width, height uint32) {
	c.projection = math.NewMat4Perspective(math.DegToRad(45), float32(width)/float32(height), 0.1, 1000)
}

// Orbit places the camera on a circle around the target.
func (c *Camera) Orbit(angle float64) {
	const radius = 12
	c.position = math.NewVec3(float32(radius*stdmath.Sin(angle)), 4, float32(radius*stdmath.Cos(angle)))
}

func (c *Camera) Projection() math.Mat4 { return c.projection }

func (c *Camera) View() math.Mat4 {
	return math.NewMat4LookAt(c.position, c.target, math.NewVec3Up())
}

type Object struct {
	id       uuid.UUID
	name     string
	material material.Material
	mesh     metadata.Mesh
	position math.Vec3
}

func (o *Object) ID() uuid.UUID               { return o.id }
func (o *Object) Material() material.Material { return o.material }
func (o *Object) Mesh() metadata.Mesh         { return o.mesh }

func (o *Object) ModelMatrix() math.Mat4 {
	return math.NewMat4Translation(o.position)
}

// Scene keeps its objects in render queue order, then priority.
type Scene struct {
	objects []binder.VisualObject
}

func (s *Scene) Add(name string, mat material.Material, mesh metadata.Mesh, position math.Vec3) *Object {
	obj := &Object{id: core.NewInstanceID(), name: name, material: mat, mesh: mesh, position: position}
	s.objects = append(s.objects, obj)
	slices.SortStableFunc(s.objects, func(a, b binder.VisualObject) int {
		ma, mb := a.Material(), b.Material()
		if ma.RenderQueue() != mb.RenderQueue() {
			return int(ma.RenderQueue()) - int(mb.RenderQueue())
		}
		return int(ma.RenderPriority()) - int(mb.RenderPriority())
	})
	return obj
}

// VisibleObjects returns every object: the testbed scene is small enough
// to never cull.
func (s *Scene) VisibleObjects(binder.Camera) []binder.VisualObject {
	return s.objects
}
