package binder

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/material"
)

type RenderBinderConfig struct {
	TrunkWidth  uint32
	TrunkHeight uint32
	// ClipFromBounds derives a clip rect from the mesh bounds of objects that
	// do not provide one.
	ClipFromBounds bool
}

type BindStats struct {
	Objects uint32
	Skipped uint32
	Binds   uint32
}

type boundSubMesh struct {
	material material.Material
	objectID uuid.UUID
	subMesh  uint32
}

/**
 * @brief Turns the visible objects of a scene into the branch, wait-barrier
 * and trunk streams by asking each material to bind every submesh.
 */
type RenderBinder struct {
	trunkWidth     uint32
	trunkHeight    uint32
	clipFromBounds bool
	bound          []boundSubMesh
	stats          BindStats
}

func NewRenderBinder(config *RenderBinderConfig) (*RenderBinder, error) {
	if config.TrunkWidth == 0 || config.TrunkHeight == 0 {
		err := fmt.Errorf("render binder needs a trunk size, got %dx%d: %w", config.TrunkWidth, config.TrunkHeight, core.ErrConfiguration)
		core.LogError(err.Error())
		return nil, err
	}
	return &RenderBinder{
		trunkWidth:     config.TrunkWidth,
		trunkHeight:    config.TrunkHeight,
		clipFromBounds: config.ClipFromBounds,
	}, nil
}

func (b *RenderBinder) SetTrunkSize(width, height uint32) {
	b.trunkWidth = width
	b.trunkHeight = height
}

func (b *RenderBinder) TrunkSize() (uint32, uint32) {
	return b.trunkWidth, b.trunkHeight
}

// Stats describes the last Bind.
func (b *RenderBinder) Stats() BindStats {
	return b.stats
}

// Bind records the scene into streams. The streams are begun here and ended
// before returning. Every material bound is handed EndBind after the
// traversal, also when a later bind failed.
func (b *RenderBinder) Bind(scene Scene, camera Camera, streams material.BindResult) error {
	if streams.Branch == nil || streams.TrunkWaitBarrier == nil || streams.Trunk == nil {
		return fmt.Errorf("render binder needs branch, wait-barrier and trunk streams: %w", core.ErrUsage)
	}
	streams.Branch.Begin()
	streams.TrunkWaitBarrier.Begin()
	streams.Trunk.Begin()
	b.bound = b.bound[:0]
	b.stats = BindStats{}

	defer func() {
		for _, e := range b.bound {
			e.material.EndBind(material.EndBindInfo{ObjectID: e.objectID, SubMesh: e.subMesh})
		}
		clear(b.bound)
		b.bound = b.bound[:0]
		streams.Branch.End()
		streams.TrunkWaitBarrier.End()
		streams.Trunk.End()
	}()

	projection := camera.Projection()
	view := camera.View()
	for _, obj := range scene.VisibleObjects(camera) {
		b.stats.Objects++
		mat := obj.Material()
		mesh := obj.Mesh()
		if mat == nil || mesh == nil {
			b.stats.Skipped++
			continue
		}

		info := material.BindInfo{
			TrunkWidth:  b.trunkWidth,
			TrunkHeight: b.trunkHeight,
			Projection:  projection,
			View:        view,
			Model:       obj.ModelMatrix(),
			ObjectID:    obj.ID(),
			Mesh:        mesh,
		}
		info.ClipRect, info.HasClipRect = b.clipRect(obj, &info)

		for i := range mesh.SubMeshes() {
			info.SubMesh = uint32(i)
			if err := mat.BeginBind(info, streams); err != nil {
				return fmt.Errorf("binding object %s submesh %d with material '%s': %w", info.ObjectID, i, mat.Name(), err)
			}
			b.bound = append(b.bound, boundSubMesh{material: mat, objectID: info.ObjectID, subMesh: info.SubMesh})
			b.stats.Binds++
		}
	}
	return nil
}

func (b *RenderBinder) clipRect(obj VisualObject, info *material.BindInfo) (math.Rect2D, bool) {
	if c, ok := obj.(Clipped); ok {
		if rect, has := c.ClipRect(); has {
			return rect.Intersect(math.FullRect()), true
		}
	}
	if !b.clipFromBounds {
		return math.Rect2D{}, false
	}
	mvp := info.Model.Mul(info.View).Mul(info.Projection)
	return projectBounds(info.Mesh.Extents(), mvp)
}

// projectBounds returns the normalized screen rect covering the corners of
// ext. Boxes crossing the near plane or leaving the screen have none.
func projectBounds(ext math.Extents3D, mvp math.Mat4) (math.Rect2D, bool) {
	minX, minY := float32(1), float32(1)
	maxX, maxY := float32(-1), float32(-1)
	for i := 0; i < 8; i++ {
		corner := math.Vec4{X: ext.Min.X, Y: ext.Min.Y, Z: ext.Min.Z, W: 1}
		if i&1 != 0 {
			corner.X = ext.Max.X
		}
		if i&2 != 0 {
			corner.Y = ext.Max.Y
		}
		if i&4 != 0 {
			corner.Z = ext.Max.Z
		}
		clip := corner.Transform(mvp)
		if clip.W <= 0 {
			return math.Rect2D{}, false
		}
		x, y := clip.X/clip.W, clip.Y/clip.W
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	rect := math.Rect2D{
		X:      (minX + 1) / 2,
		Y:      (minY + 1) / 2,
		Width:  (maxX - minX) / 2,
		Height: (maxY - minY) / 2,
	}.Intersect(math.FullRect())
	if rect.Empty() {
		return math.Rect2D{}, false
	}
	return rect, true
}
