package executor

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/command"
	"github.com/spaghettifunk/anima-graph/engine/renderer/material"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
	"github.com/spaghettifunk/anima-graph/engine/renderer/texture"
)

var (
	goodShader = &metadata.Shader{ID: 10, Name: "good"}
	badShader  = &metadata.Shader{ID: 11, Name: "bad"}
)

func newCache(t *testing.T, pushConstants []metadata.PushConstantRange) *pipeline.Cache {
	t.Helper()
	compiler := pipeline.CompilerFunc(func(info pipeline.Info) (*pipeline.Pipeline, error) {
		if info.Pass != nil && info.Pass.Shader == badShader {
			return nil, errors.New("spir-v module rejected")
		}
		return &pipeline.Pipeline{PushConstants: pushConstants}, nil
	})
	cache, err := pipeline.NewCache(compiler, &pipeline.CacheConfig{Capacity: 32})
	if err != nil {
		t.Fatal(err)
	}
	return cache
}

func newExecutor(t *testing.T, policy FailurePolicy, pushConstants ...metadata.PushConstantRange) *Executor {
	t.Helper()
	e, err := NewExecutor(&ExecutorConfig{Cache: newCache(t, pushConstants), Policy: policy})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func mesh() metadata.Mesh {
	return metadata.NewStaticMesh(&metadata.VertexLayout{ID: 1, Stride: 32}, nil, nil,
		[]metadata.SubMesh{{Topology: metadata.TopologyTriangleList, VertexCount: 3}}, math.Extents3D{})
}

func pass(shader *metadata.Shader) *metadata.Pass {
	return &metadata.Pass{ID: core.NextID(), Shader: shader, State: metadata.DefaultPipelineState()}
}

func explicit(rp *metadata.RenderPass, fb *metadata.Framebuffer, subpass uint32, p *metadata.Pass) command.RenderPassRecord {
	return command.RenderPassRecord{
		RenderPass:  rp,
		Framebuffer: fb,
		Subpass:     subpass,
		RenderArea:  math.FullRect(),
		Viewport:    math.Viewport{Width: 1, Height: 1, MaxDepth: 1},
		Scissor:     math.FullRect(),
		Pass:        p,
		Mesh:        mesh(),
		ObjectID:    uuid.New(),
	}
}

func trunkRecord(p *metadata.Pass) command.RenderPassRecord {
	return explicit(nil, nil, 0, p)
}

func renderTarget(name string, subpasses uint32) (*metadata.RenderPass, *metadata.Framebuffer) {
	rp := &metadata.RenderPass{ID: core.NextID(), Name: name, SubpassCount: subpasses}
	return rp, &metadata.Framebuffer{ID: core.NextID(), RenderPass: rp, Width: 256, Height: 256}
}

func stream(name string, fill func(r *command.Recorder)) *command.Recorder {
	r := command.NewRecorder(name, 0)
	r.Begin()
	if fill != nil {
		fill(r)
	}
	r.End()
	return r
}

// run executes a whole frame. Streams may be nil for empty ones.
func run(e *Executor, b Backend, branch, barrier, trunk *command.Recorder, trunkPass *metadata.RenderPass, trunkFB *metadata.Framebuffer) error {
	if branch == nil {
		branch = stream("branch", nil)
	}
	if barrier == nil {
		barrier = stream("wait-barrier", nil)
	}
	if trunk == nil {
		trunk = stream("trunk", nil)
	}
	e.BeginFrame()
	if err := e.RecordBranch(b, branch); err != nil {
		return err
	}
	if err := e.RecordWaitBarrier(b, barrier); err != nil {
		return err
	}
	return e.RecordTrunk(b, trunk, trunkPass, trunkFB)
}

type textures struct{ n uint32 }

func (c *textures) Allocate(info texture.AllocInfo) (*metadata.Texture, error) {
	c.n++
	return &metadata.Texture{ID: c.n, Format: info.Format, Width: info.Width, Height: info.Height}, nil
}

func (c *textures) Free(*metadata.Texture) {}

type targets struct{}

func (targets) CreateRenderPass(desc material.DeferredRenderPassDesc) (*metadata.RenderPass, error) {
	return &metadata.RenderPass{ID: core.NextID(), Name: desc.Name, SubpassCount: 2}, nil
}

func (targets) CreateFramebuffer(rp *metadata.RenderPass, atts []*metadata.Texture, w, h uint32) (*metadata.Framebuffer, error) {
	return &metadata.Framebuffer{ID: core.NextID(), RenderPass: rp, Width: w, Height: h, Attachments: atts}, nil
}

func (targets) DestroyFramebuffer(*metadata.Framebuffer) {}

func TestDeferredThenSimpleTrace(t *testing.T) {
	deferred, err := material.NewDeferred(&material.DeferredConfig{Name: "deferred", Shader: goodShader}, &textures{}, targets{})
	if err != nil {
		t.Fatal(err)
	}
	simple := material.NewSimple(&material.SimpleConfig{Name: "simple", Shader: goodShader})

	streams := material.BindResult{
		Branch:           command.NewRecorder("branch", 0),
		TrunkWaitBarrier: command.NewRecorder("wait-barrier", 0),
		Trunk:            command.NewRecorder("trunk", 0),
	}
	streams.Branch.Begin()
	streams.TrunkWaitBarrier.Begin()
	streams.Trunk.Begin()
	info := material.BindInfo{
		TrunkWidth:  640,
		TrunkHeight: 480,
		Projection:  math.NewMat4Identity(),
		View:        math.NewMat4Identity(),
		Model:       math.NewMat4Identity(),
		ObjectID:    uuid.New(),
		Mesh:        mesh(),
		HasClipRect: true,
		ClipRect:    math.Rect2D{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5},
	}
	if err := deferred.BeginBind(info, streams); err != nil {
		t.Fatal(err)
	}
	info.ObjectID = uuid.New()
	info.HasClipRect = false
	if err := simple.BeginBind(info, streams); err != nil {
		t.Fatal(err)
	}
	streams.Branch.End()
	streams.TrunkWaitBarrier.End()
	streams.Trunk.End()

	e := newExecutor(t, FailureAbort)
	backend := NewTraceBackend()
	trunkPass, trunkFB := renderTarget("trunk", 1)
	if err := run(e, backend, streams.Branch, streams.TrunkWaitBarrier, streams.Trunk, trunkPass, trunkFB); err != nil {
		t.Fatalf("frame failed: %v", err)
	}

	want := []string{
		// branch: G-buffer fill then composition in one render pass
		"BeginRenderPass", "BindPipeline", "SetViewport", "SetScissor", "Draw",
		"NextSubpass", "BindPipeline", "SetViewport", "SetScissor", "Draw",
		"EndRenderPass",
		// wait-barrier
		"PipelineBarrier",
		// trunk: deferred quad then the simple draw
		"BindPipeline", "SetViewport", "SetScissor", "BindVertexBuffers", "BindIndexBuffer", "DrawIndexed",
		"BindPipeline", "SetViewport", "SetScissor", "Draw",
	}
	if got := backend.Ops(); !slices.Equal(got, want) {
		t.Fatalf("unexpected trace:\n%s", backend)
	}

	st := e.Stats()
	if st.RenderPasses != 1 || st.Subpasses != 1 || st.Draws != 4 || st.Barriers != 1 || st.Skipped != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}

	// The deferred quad is scissored to the clip rect of the trunk.
	if got := backend.Scissors[len(backend.Scissors)-2]; got != (Rect{X: 64, Y: 64, Width: 128, Height: 128}) {
		t.Fatalf("deferred trunk scissor = %+v", got)
	}
}

func TestSubpassesAdvanceAndRestart(t *testing.T) {
	rp, fb := renderTarget("three", 3)
	other, otherFB := renderTarget("other", 1)
	p := pass(goodShader)
	branch := stream("branch", func(r *command.Recorder) {
		r.AddRenderPass(explicit(rp, fb, 0, p))
		r.AddRenderPass(explicit(rp, fb, 2, p))
		r.AddRenderPass(explicit(rp, fb, 1, p))
		r.AddRenderPass(explicit(other, otherFB, 0, p))
	})

	e := newExecutor(t, FailureAbort)
	backend := NewTraceBackend()
	if err := run(e, backend, branch, nil, nil, nil, nil); err != nil {
		t.Fatal(err)
	}

	var structure []string
	for _, op := range backend.Ops() {
		switch op {
		case "BeginRenderPass", "NextSubpass", "EndRenderPass":
			structure = append(structure, op)
		}
	}
	want := []string{
		"BeginRenderPass", "NextSubpass", "NextSubpass",
		"EndRenderPass", "BeginRenderPass", "NextSubpass",
		"EndRenderPass", "BeginRenderPass",
		"EndRenderPass",
	}
	if !slices.Equal(structure, want) {
		t.Fatalf("render pass structure = %v, want %v", structure, want)
	}
	if st := e.Stats(); st.RenderPasses != 3 || st.Subpasses != 3 || st.Draws != 4 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestBarrierEndsOpenPass(t *testing.T) {
	rp, fb := renderTarget("gbuffer", 1)
	p := pass(goodShader)
	branch := stream("branch", func(r *command.Recorder) {
		r.AddRenderPass(explicit(rp, fb, 0, p))
		r.AddBarrier(command.BarrierRecord{SrcStage: metadata.PipelineStageColorAttachmentOutput, DstStage: metadata.PipelineStageFragmentShader})
		r.AddRenderPass(explicit(rp, fb, 0, p))
	})

	e := newExecutor(t, FailureAbort)
	backend := NewTraceBackend()
	if err := run(e, backend, branch, nil, nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	ops := backend.Ops()
	i := slices.Index(ops, "PipelineBarrier")
	if i < 1 || ops[i-1] != "EndRenderPass" || ops[i+1] != "BeginRenderPass" {
		t.Fatalf("barrier issued inside a render pass:\n%s", backend)
	}
}

func TestCompileFailurePolicy(t *testing.T) {
	rp, fb := renderTarget("target", 1)
	branch := func() *command.Recorder {
		return stream("branch", func(r *command.Recorder) {
			r.AddRenderPass(explicit(rp, fb, 0, pass(badShader)))
			r.AddRenderPass(explicit(rp, fb, 0, pass(goodShader)))
		})
	}

	t.Run("abort", func(t *testing.T) {
		e := newExecutor(t, FailureAbort)
		backend := NewTraceBackend()
		err := run(e, backend, branch(), nil, nil, nil, nil)
		if !errors.Is(err, core.ErrCompilation) {
			t.Fatalf("err = %v, want ErrCompilation", err)
		}
		ops := backend.Ops()
		if ops[len(ops)-1] != "EndRenderPass" || slices.Contains(ops, "Draw") {
			t.Fatalf("aborted stream left a pass open or drew:\n%s", backend)
		}
	})

	t.Run("skip", func(t *testing.T) {
		e := newExecutor(t, FailureSkip)
		backend := NewTraceBackend()
		if err := run(e, backend, branch(), nil, nil, nil, nil); err != nil {
			t.Fatal(err)
		}
		if st := e.Stats(); st.Skipped != 1 || st.Draws != 1 {
			t.Fatalf("unexpected stats %+v", st)
		}
	})
}

func TestPhaseMisuse(t *testing.T) {
	e := newExecutor(t, FailureAbort)
	backend := NewTraceBackend()
	empty := stream("empty", nil)
	trunkPass, trunkFB := renderTarget("trunk", 1)

	if err := e.RecordBranch(backend, empty); !errors.Is(err, core.ErrUsage) {
		t.Fatalf("branch before BeginFrame: %v", err)
	}

	e.BeginFrame()
	if err := e.RecordTrunk(backend, empty, trunkPass, trunkFB); !errors.Is(err, core.ErrUsage) {
		t.Fatalf("trunk before branch: %v", err)
	}
	if err := e.RecordWaitBarrier(backend, empty); !errors.Is(err, core.ErrUsage) {
		t.Fatalf("wait-barrier before branch: %v", err)
	}

	open := command.NewRecorder("open", 0)
	open.Begin()
	if err := e.RecordBranch(backend, open); !errors.Is(err, core.ErrUsage) {
		t.Fatalf("open stream accepted: %v", err)
	}
	if err := e.RecordBranch(backend, empty); err != nil {
		t.Fatalf("branch after refused open stream: %v", err)
	}
	if err := e.RecordBranch(backend, empty); !errors.Is(err, core.ErrUsage) {
		t.Fatalf("branch recorded twice: %v", err)
	}
	if len(backend.Calls) != 0 {
		t.Fatalf("misuse reached the backend:\n%s", backend)
	}
}

func TestTrunkRecordNeedsTrunkTarget(t *testing.T) {
	p := pass(goodShader)
	branch := stream("branch", func(r *command.Recorder) {
		r.AddRenderPass(trunkRecord(p))
	})
	e := newExecutor(t, FailureAbort)
	if err := run(e, NewTraceBackend(), branch, nil, nil, nil, nil); !errors.Is(err, core.ErrUsage) {
		t.Fatalf("trunk record in branch stream: %v", err)
	}

	trunk := stream("trunk", func(r *command.Recorder) {
		r.AddRenderPass(trunkRecord(p))
	})
	if err := run(e, NewTraceBackend(), nil, nil, trunk, nil, nil); !errors.Is(err, core.ErrUsage) {
		t.Fatalf("trunk stream without target: %v", err)
	}
}

func TestInvalidSubpass(t *testing.T) {
	rp, fb := renderTarget("single", 1)
	branch := stream("branch", func(r *command.Recorder) {
		r.AddRenderPass(explicit(rp, fb, 1, pass(goodShader)))
	})
	e := newExecutor(t, FailureSkip)
	backend := NewTraceBackend()
	if err := run(e, backend, branch, nil, nil, nil, nil); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if len(backend.Calls) != 0 {
		t.Fatalf("invalid subpass reached the backend:\n%s", backend)
	}
}

func TestPixelConversion(t *testing.T) {
	vp := pixelViewport(math.Viewport{X: -0.5, Y: 0.25, Width: 2, Height: 0.5, MaxDepth: 1}, 200, 100)
	if vp != (math.Viewport{X: -100, Y: 25, Width: 400, Height: 50, MaxDepth: 1}) {
		t.Fatalf("viewport = %+v", vp)
	}

	tests := []struct {
		name string
		in   math.Rect2D
		want Rect
	}{
		{"full", math.FullRect(), Rect{0, 0, 200, 100}},
		{"negative offset", math.Rect2D{X: -0.1, Y: 0.5, Width: 0.5, Height: 0.7}, Rect{0, 50, 80, 50}},
		{"float noise", math.Rect2D{X: 0.15, Y: 0.2, Width: 0.7, Height: 0.6}, Rect{30, 20, 140, 60}},
		{"outside", math.Rect2D{X: 1.5, Y: 0, Width: 1, Height: 1}, Rect{200, 0, 0, 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pixelRect(tt.in, 200, 100); got != tt.want {
				t.Fatalf("pixelRect(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPushConstants(t *testing.T) {
	rng := metadata.PushConstantRange{Stages: metadata.ShaderStageVertex, Offset: 0, Size: metadata.PushConstantBlockSize}
	e := newExecutor(t, FailureAbort, rng)
	rp, fb := renderTarget("target", 1)
	rec := explicit(rp, fb, 0, pass(goodShader))
	rec.Projection = math.NewMat4Perspective(1, 1, 0.1, 10)
	rec.View = math.NewMat4Translation(math.NewVec3(0, 0, -5))
	rec.Model = math.NewMat4Scale(math.NewVec3(2, 2, 2))

	backend := NewTraceBackend()
	branch := stream("branch", func(r *command.Recorder) { r.AddRenderPass(rec) })
	if err := run(e, backend, branch, nil, nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	want := metadata.PushConstantBlock{ViewProjection: rec.View.Mul(rec.Projection), Model: rec.Model}.Bytes()
	if len(backend.Pushes) != 1 || !bytes.Equal(backend.Pushes[0], want) {
		t.Fatalf("pushed %d blocks, want the view-projection and model block", len(backend.Pushes))
	}
}

func TestParseFailurePolicy(t *testing.T) {
	if p, err := ParseFailurePolicy("Skip"); err != nil || p != FailureSkip {
		t.Fatalf("ParseFailurePolicy(Skip) = %v, %v", p, err)
	}
	if _, err := ParseFailurePolicy("retry"); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("unknown policy accepted: %v", err)
	}
}
