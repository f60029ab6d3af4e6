package command

import (
	"testing"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

func passRecord(subpass uint32, clears int) RenderPassRecord {
	rec := RenderPassRecord{
		RenderPass: &metadata.RenderPass{ID: 7, SubpassCount: 2},
		Subpass:    subpass,
		Viewport:   math.Viewport{Width: 1, Height: 1, MaxDepth: 1},
		Scissor:    math.FullRect(),
		Model:      math.NewMat4Translation(math.NewVec3(float32(subpass), 0, 0)),
		Draw:       &Draw{VertexCount: subpass + 3, InstanceCount: 1},
		ObjectID:   uuid.New(),
	}
	for i := 0; i < clears; i++ {
		rec.ClearValues = append(rec.ClearValues, metadata.ClearColor(float32(subpass), float32(i), 0, 1))
	}
	return rec
}

func TestBeginEmptiesStream(t *testing.T) {
	r := NewRecorder("branch", 4)
	r.Begin()
	for i := 0; i < 10; i++ {
		r.AddRenderPass(passRecord(uint32(i), 2))
	}
	r.AddBarrier(BarrierRecord{SrcStage: metadata.PipelineStageColorAttachmentOutput})
	r.End()
	if len(r.Commands()) != 11 {
		t.Fatalf("got %d commands, want 11", len(r.Commands()))
	}

	r.Begin()
	if len(r.Commands()) != 0 {
		t.Fatalf("commands survived Begin: %d", len(r.Commands()))
	}
	st := r.Stats()
	if st.RenderPasses != 0 || st.Barriers != 0 || st.Draws != 0 || st.ClearValues != 0 {
		t.Fatalf("counts survived Begin: %+v", st)
	}
	if st.Capacity < 10 {
		t.Fatalf("Begin released storage, capacity %d", st.Capacity)
	}
}

func TestIndicesSurviveGrowth(t *testing.T) {
	r := NewRecorder("trunk", 2)
	r.Begin()

	first := passRecord(1, 3)
	firstIdx := r.AddRenderPass(first)
	barrierIdx := r.AddBarrier(BarrierRecord{
		SrcStage:   metadata.PipelineStageColorAttachmentOutput,
		DstStage:   metadata.PipelineStageFragmentShader,
		Dependency: metadata.DependencyByRegion,
		Images: []metadata.ImageMemoryBarrier{
			metadata.ShaderReadBarrier(&metadata.Texture{ID: 1, Format: metadata.FormatR8G8B8A8Unorm}),
			metadata.ShaderReadBarrier(&metadata.Texture{ID: 2, Format: metadata.FormatD32Sfloat}),
		},
	})

	before := r.Stats().Growths
	for i := 0; i < 64; i++ {
		r.AddRenderPass(passRecord(uint32(i%2), 2))
	}
	if grown := r.Stats().Growths - before; grown < 2 {
		t.Fatalf("expected at least two growth events, got %d", grown)
	}

	got := r.RenderPass(firstIdx)
	if got.Subpass != 1 || got.ObjectID != first.ObjectID || got.Model != first.Model {
		t.Fatalf("render pass record changed after growth: %+v", got)
	}
	if len(got.ClearValues) != 3 || got.ClearValues[2] != first.ClearValues[2] {
		t.Fatalf("clear values changed after growth: %+v", got.ClearValues)
	}
	if got.Draw == nil || got.Draw.VertexCount != 4 || got.DrawIndexed != nil {
		t.Fatalf("draw record changed after growth: %+v %+v", got.Draw, got.DrawIndexed)
	}

	b := r.Barrier(barrierIdx)
	if len(b.Images) != 2 || b.Images[1].Image.ID != 2 || b.Dependency != metadata.DependencyByRegion {
		t.Fatalf("barrier record changed after growth: %+v", b)
	}

	cmds := r.Commands()
	if cmds[0] != (Command{Type: CommandTypeRenderPass, Index: firstIdx}) ||
		cmds[1] != (Command{Type: CommandTypeBarrier, Index: barrierIdx}) {
		t.Fatalf("unexpected leading commands %+v", cmds[:2])
	}
}

func TestClearValuesAreNotShared(t *testing.T) {
	r := NewRecorder("branch", 1)
	r.Begin()
	a := r.AddRenderPass(passRecord(0, 1))
	b := r.AddRenderPass(passRecord(1, 1))

	cv := r.RenderPass(a).ClearValues
	cv = append(cv, metadata.ClearColor(9, 9, 9, 9))
	_ = cv
	if r.RenderPass(b).ClearValues[0].Color[0] != 1 {
		t.Fatalf("appending to a returned slice overwrote recorder storage")
	}
}

func TestDrawIndexedAndTrunkSentinel(t *testing.T) {
	r := NewRecorder("trunk", 0)
	r.Begin()
	idx := r.AddRenderPass(RenderPassRecord{
		DrawIndexed: &DrawIndexed{IndexCount: 6, InstanceCount: 1, VertexOffset: -2},
	})
	r.End()
	rec := r.RenderPass(idx)
	if !rec.IsTrunk() {
		t.Fatalf("record without render pass should be the trunk sentinel")
	}
	if rec.Draw != nil || rec.DrawIndexed == nil || rec.DrawIndexed.VertexOffset != -2 {
		t.Fatalf("unexpected draw data %+v %+v", rec.Draw, rec.DrawIndexed)
	}
	if len(rec.ClearValues) != 0 {
		t.Fatalf("unexpected clear values %v", rec.ClearValues)
	}
	if r.Recording() {
		t.Fatalf("recorder still recording after End")
	}
	if r.Stats().Draws != 1 {
		t.Fatalf("draw count %d", r.Stats().Draws)
	}
}
