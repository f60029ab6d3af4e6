package binder

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/material"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

// Camera supplies the matrices every object is drawn with.
type Camera interface {
	Projection() math.Mat4
	View() math.Mat4
}

// VisualObject is one drawable of the scene. A nil material or mesh means
// the object contributes nothing.
type VisualObject interface {
	ID() uuid.UUID
	Material() material.Material
	Mesh() metadata.Mesh
	ModelMatrix() math.Mat4
}

// Clipped is implemented by objects knowing their own normalized screen
// footprint.
type Clipped interface {
	ClipRect() (math.Rect2D, bool)
}

// Scene returns the visible objects for a camera, already culled and in
// render queue order.
type Scene interface {
	VisibleObjects(camera Camera) []VisualObject
}
