package material

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/command"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

// Kind enumerates the bind behaviours a material can have.
type Kind uint8

const (
	KindSimple Kind = iota
	KindDeferred
	KindOutline
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindDeferred:
		return "deferred"
	case KindOutline:
		return "outline"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// RenderQueue orders materials. Lower queues are submitted first by the scene.
type RenderQueue uint32

const (
	RenderQueueBackground  RenderQueue = 1000
	RenderQueueOpaque      RenderQueue = 2000
	RenderQueueTransparent RenderQueue = 3000
	RenderQueueOverlay     RenderQueue = 4000
)

func (q RenderQueue) String() string {
	switch q {
	case RenderQueueBackground:
		return "background"
	case RenderQueueOpaque:
		return "opaque"
	case RenderQueueTransparent:
		return "transparent"
	case RenderQueueOverlay:
		return "overlay"
	}
	return fmt.Sprintf("queue(%d)", uint32(q))
}

// BindInfo is everything a material needs to record one submesh.
type BindInfo struct {
	TrunkWidth  uint32
	TrunkHeight uint32
	Projection  math.Mat4
	View        math.Mat4
	Model       math.Mat4
	ObjectID    uuid.UUID
	Mesh        metadata.Mesh
	SubMesh     uint32
	// ClipRect is the normalized screen footprint of the object, valid when
	// HasClipRect is set.
	HasClipRect bool
	ClipRect    math.Rect2D
}

func (i *BindInfo) clipOrFull() math.Rect2D {
	if i.HasClipRect {
		return i.ClipRect
	}
	return math.FullRect()
}

// BindResult holds the three streams a material records into.
type BindResult struct {
	Branch           *command.Recorder
	TrunkWaitBarrier *command.Recorder
	Trunk            *command.Recorder
}

type EndBindInfo struct {
	ObjectID uuid.UUID
	SubMesh  uint32
}

// Material is the bind capability every material variant implements.
type Material interface {
	Name() string
	Kind() Kind
	Passes() []*metadata.Pass
	MainPass() *metadata.Pass
	RenderQueue() RenderQueue
	RenderPriority() uint32
	// BeginBind records the commands drawing one submesh. A bind-once
	// material fails with core.ErrConfiguration when bound again before EndBind.
	BeginBind(info BindInfo, result BindResult) error
	EndBind(info EndBindInfo)
}

// base carries what all variants share: passes, queue data and the
// bind-once guard.
type base struct {
	name     string
	kind     Kind
	onlyOnce bool
	// bindTarget is the object currently bound, uuid.Nil when unbound.
	bindTarget uuid.UUID
	queue      RenderQueue
	priority   uint32
	passes     []*metadata.Pass
	mainPass   *metadata.Pass
}

func newBase(name string, kind Kind, onlyOnce bool, main *metadata.Pass) base {
	return base{
		name:     name,
		kind:     kind,
		onlyOnce: onlyOnce,
		queue:    RenderQueueOpaque,
		passes:   []*metadata.Pass{main},
		mainPass: main,
	}
}

func (b *base) Name() string                 { return b.name }
func (b *base) Kind() Kind                   { return b.kind }
func (b *base) Passes() []*metadata.Pass     { return b.passes }
func (b *base) MainPass() *metadata.Pass     { return b.mainPass }
func (b *base) RenderQueue() RenderQueue     { return b.queue }
func (b *base) RenderPriority() uint32       { return b.priority }
func (b *base) SetRenderQueue(q RenderQueue) { b.queue = q }
func (b *base) SetRenderPriority(p uint32)   { b.priority = p }

func (b *base) addPass(p *metadata.Pass) {
	for _, existing := range b.passes {
		if existing == p {
			return
		}
	}
	b.passes = append(b.passes, p)
}

func (b *base) acquire(info BindInfo) error {
	if !b.onlyOnce {
		return nil
	}
	if b.bindTarget != uuid.Nil {
		err := fmt.Errorf("material '%s' binds only once but object %s is bound while %s still holds it: %w",
			b.name, info.ObjectID, b.bindTarget, core.ErrConfiguration)
		core.LogError(err.Error())
		return err
	}
	b.bindTarget = info.ObjectID
	if b.bindTarget == uuid.Nil {
		b.bindTarget = core.NewInstanceID()
	}
	return nil
}

func (b *base) release() {
	b.bindTarget = uuid.Nil
}

// Bound reports whether a bind-once material is waiting for EndBind.
func (b *base) Bound() bool {
	return b.bindTarget != uuid.Nil
}

func (b *base) EndBind(info EndBindInfo) {
	if b.onlyOnce {
		b.release()
	}
}

// trunkRecord draws the submesh into the externally begun trunk pass.
func trunkRecord(info *BindInfo, pass *metadata.Pass, scissor math.Rect2D) command.RenderPassRecord {
	rec := command.RenderPassRecord{
		RenderArea: math.FullRect(),
		Viewport:   fullViewport(),
		Scissor:    scissor,
		Projection: info.Projection,
		View:       info.View,
		Model:      info.Model,
		Pass:       pass,
		Mesh:       info.Mesh,
		SubMesh:    info.SubMesh,
		ObjectID:   info.ObjectID,
	}
	setDraw(&rec)
	return rec
}

func fullViewport() math.Viewport {
	return math.Viewport{X: 0, Y: 0, Width: 1, Height: 1, MinDepth: 0, MaxDepth: 1}
}

// setDraw fills the draw descriptor from the record's submesh.
func setDraw(rec *command.RenderPassRecord) {
	if rec.Mesh == nil {
		return
	}
	subs := rec.Mesh.SubMeshes()
	if int(rec.SubMesh) >= len(subs) {
		return
	}
	sub := subs[rec.SubMesh]
	if rec.Mesh.IndexBuffer() != nil {
		rec.DrawIndexed = &command.DrawIndexed{
			IndexCount:    sub.IndexCount,
			InstanceCount: 1,
			FirstIndex:    sub.FirstIndex,
			VertexOffset:  sub.VertexOffset,
		}
		return
	}
	rec.Draw = &command.Draw{
		VertexCount:   sub.VertexCount,
		InstanceCount: 1,
		FirstVertex:   sub.FirstVertex,
	}
}
