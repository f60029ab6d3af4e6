package metadata

import (
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/spaghettifunk/anima-graph/engine/math"
)

func TestQuadMeshSetRect(t *testing.T) {
	q := NewQuadMesh()
	q.SetRect(math.Rect2D{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.25}, math.NewVec2(0.5, 0.25))

	if q.Vertices[0].Position != math.NewVec2(-0.5, 0) {
		t.Errorf("first corner at %+v", q.Vertices[0].Position)
	}
	if q.Vertices[2].Position != math.NewVec2(0.5, 0.5) {
		t.Errorf("opposite corner at %+v", q.Vertices[2].Position)
	}
	if q.Vertices[2].Texcoord != math.NewVec2(0.5, 0.25) {
		t.Errorf("uv not scaled: %+v", q.Vertices[2].Texcoord)
	}

	vb := q.VertexBuffers()[0]
	if len(vb.Data) != 64 {
		t.Fatalf("vertex mirror holds %d bytes, want 64", len(vb.Data))
	}
	x := stdmath.Float32frombits(binary.LittleEndian.Uint32(vb.Data[32:]))
	if x != 0.5 {
		t.Errorf("third vertex x = %f in the buffer mirror", x)
	}
	if got := len(q.IndexBuffer().Data); got != 24 {
		t.Errorf("index mirror holds %d bytes, want 24", got)
	}
}

func TestShaderReadBarrier(t *testing.T) {
	color := ShaderReadBarrier(&Texture{Format: FormatR8G8B8A8Unorm})
	if color.NewLayout != ImageLayoutShaderReadOnlyOptimal || color.SrcAccess != AccessColorAttachmentWrite {
		t.Errorf("unexpected colour barrier %+v", color)
	}
	depth := ShaderReadBarrier(&Texture{Format: FormatD32Sfloat})
	if depth.Aspect != ImageAspectDepth || depth.SrcAccess != AccessDepthStencilAttachmentWrite {
		t.Errorf("unexpected depth barrier %+v", depth)
	}
}

func TestPushConstantBlockBytes(t *testing.T) {
	b := PushConstantBlock{ViewProjection: math.NewMat4Identity(), Model: math.NewMat4Translation(math.NewVec3(3, 0, 0))}
	data := b.Bytes()
	if len(data) != PushConstantBlockSize {
		t.Fatalf("encoded %d bytes", len(data))
	}
	if v := stdmath.Float32frombits(binary.LittleEndian.Uint32(data[64+12*4:])); v != 3 {
		t.Errorf("model translation encoded as %f", v)
	}
}

func TestColorAttachmentCount(t *testing.T) {
	rp := &RenderPass{SubpassCount: 2, ColorAttachmentCounts: []uint8{4, 1}}
	if rp.ColorAttachmentCount(0) != 4 || rp.ColorAttachmentCount(1) != 1 || rp.ColorAttachmentCount(7) != 1 {
		t.Fatalf("unexpected attachment counts")
	}
	var none *RenderPass
	if none.ColorAttachmentCount(0) != 1 {
		t.Fatalf("nil render pass should default to one attachment")
	}
}
