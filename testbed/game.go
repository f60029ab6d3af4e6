package testbed

import (
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/anima-graph/engine/assets"
	"github.com/spaghettifunk/anima-graph/engine/config"
	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer"
	"github.com/spaghettifunk/anima-graph/engine/renderer/executor"
	"github.com/spaghettifunk/anima-graph/engine/renderer/material"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
	"github.com/spaghettifunk/anima-graph/engine/renderer/texture"
)

var worldPushConstants = []metadata.PushConstantRange{
	{Stages: metadata.ShaderStageVertex, Offset: 0, Size: 128},
}

/**
 * @brief A headless demo rendering four objects, one per material kind,
 * into a trace backend.
 */
type TestGame struct {
	config *config.Config

	compiler *nullCompiler
	textures *texture.PooledCache
	renderer *renderer.Renderer
	watcher  *assets.ShaderWatcher
	backend  *executor.TraceBackend

	trunkPass        *metadata.RenderPass
	trunkFramebuffer *metadata.Framebuffer

	shaders  []*metadata.Shader
	camera   *Camera
	scene    *Scene
	deferred *material.Deferred
	frame    uint64
}

func NewTestGame(cfg *config.Config) (*TestGame, error) {
	g := &TestGame{
		config:   cfg,
		compiler: &nullCompiler{},
		backend:  executor.NewTraceBackend(),
		camera:   NewCamera(cfg.Renderer.TrunkWidth, cfg.Renderer.TrunkHeight),
		scene:    &Scene{},
	}

	r, err := renderer.New(g.compiler, &renderer.RendererConfig{
		TrunkWidth:     cfg.Renderer.TrunkWidth,
		TrunkHeight:    cfg.Renderer.TrunkHeight,
		ClipFromBounds: cfg.Renderer.ClipFromBounds,
		ClearValues:    cfg.ClearValues(),
		CacheCapacity:  cfg.PipelineCache.Capacity,
		WarmWorkers:    cfg.PipelineCache.WarmWorkers,
		Policy:         cfg.Policy(),
	})
	if err != nil {
		return nil, err
	}
	g.renderer = r

	g.textures, err = texture.NewPooledCache(&texture.PooledCacheConfig{MaxTextureCount: 64}, nullAllocator{})
	if err != nil {
		return nil, err
	}

	g.trunkPass = &metadata.RenderPass{
		ID:                    core.NextID(),
		Name:                  "swapchain",
		SubpassCount:          1,
		ColorAttachmentCounts: []uint8{1},
	}
	g.trunkFramebuffer = &metadata.Framebuffer{
		ID:         core.NextID(),
		RenderPass: g.trunkPass,
		Width:      cfg.Renderer.TrunkWidth,
		Height:     cfg.Renderer.TrunkHeight,
	}

	if err := g.buildScene(); err != nil {
		return nil, err
	}

	if cfg.Assets.WatchShaders {
		if g.watcher, err = assets.NewShaderWatcher(r.Cache()); err != nil {
			return nil, err
		}
		for _, s := range g.shaders {
			g.watcher.Register(s)
		}
		if err := g.watcher.Watch(cfg.Assets.ShaderDir); err != nil {
			core.LogWarn("shader hot reload disabled: %s", err)
		}
	}
	return g, nil
}

func (g *TestGame) shader(name string, pushConstants []metadata.PushConstantRange) *metadata.Shader {
	dir := g.config.Assets.ShaderDir
	s := &metadata.Shader{
		ID:   core.NextID(),
		Name: name,
		Stages: []metadata.ShaderStageConfig{
			{Stage: metadata.ShaderStageVertex, FilePath: filepath.Join(dir, name+".vert.spv")},
			{Stage: metadata.ShaderStageFragment, FilePath: filepath.Join(dir, name+".frag.spv")},
		},
		PushConstantRanges: pushConstants,
	}
	g.shaders = append(g.shaders, s)
	return s
}

func (g *TestGame) buildScene() error {
	world := g.shader("Builtin.World", worldPushConstants)

	opaque := material.NewSimple(&material.SimpleConfig{
		Name:   "opaque",
		Shader: world,
		State:  metadata.DefaultPipelineState(),
		Queue:  material.RenderQueueOpaque,
	})

	transparentState := metadata.DefaultPipelineState()
	transparentState.Blend = metadata.BlendModeAlpha
	transparentState.DepthWrite = false
	transparent := material.NewSimple(&material.SimpleConfig{
		Name:   "glass",
		Shader: world,
		State:  transparentState,
		Queue:  material.RenderQueueTransparent,
	})

	deferred, err := material.NewDeferred(&material.DeferredConfig{
		Name:              "gbuffer",
		GBufferShader:     g.shader("Builtin.GBuffer", worldPushConstants),
		CompositionShader: g.shader("Builtin.Composition", nil),
		Shader:            g.shader("Builtin.Composite", nil),
		Queue:             material.RenderQueueOpaque,
	}, g.textures, nullTargets{})
	if err != nil {
		return err
	}
	g.deferred = deferred

	outline := material.NewOutline(&material.OutlineConfig{
		Name:          "selected",
		Shader:        world,
		OutlineShader: g.shader("Builtin.Outline", worldPushConstants),
		State:         metadata.DefaultPipelineState(),
		Queue:         material.RenderQueueOpaque,
		Width:         4,
		Color:         math.Vec4{X: 1, Y: 0.6, Z: 0, W: 1},
	})

	g.scene.Add("A", opaque, newCube(2), math.NewVec3(-4, 0, 0))
	g.scene.Add("B", deferred, newCube(2), math.NewVec3(0, 0, 0))
	g.scene.Add("C", transparent, newCube(2), math.NewVec3(4, 0, 0))
	g.scene.Add("D", outline, newCube(1), math.NewVec3(0, 3, 0))
	return nil
}

// Warm precompiles the trunk pipelines of the forward materials.
func (g *TestGame) Warm() error {
	var infos []pipeline.Info
	for _, obj := range g.scene.objects {
		mat := obj.Material()
		if mat.Kind() == material.KindDeferred {
			continue
		}
		for _, pass := range mat.Passes() {
			infos = append(infos, pipeline.Info{RenderPass: g.trunkPass, Pass: pass, Mesh: obj.Mesh()})
		}
	}
	return g.renderer.Warm(infos)
}

// Render draws one frame, orbiting the camera a little every frame.
func (g *TestGame) Render() error {
	g.camera.Orbit(float64(g.frame) * 0.05)
	g.backend.Reset()
	err := g.renderer.RenderFrame(&renderer.Frame{
		Scene:            g.scene,
		Camera:           g.camera,
		Backend:          g.backend,
		TrunkPass:        g.trunkPass,
		TrunkFramebuffer: g.trunkFramebuffer,
	})
	g.frame++
	return err
}

func (g *TestGame) OnResize(width, height uint32) error {
	if err := g.renderer.Resize(width, height); err != nil {
		return err
	}
	g.camera.SetAspect(width, height)
	g.trunkFramebuffer.Width = width
	g.trunkFramebuffer.Height = height
	return nil
}

// Run renders frames and logs the trace of the last one.
func (g *TestGame) Run(frames int) error {
	if err := g.Warm(); err != nil {
		return err
	}
	for i := 0; i < frames; i++ {
		if err := g.Render(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	core.LogInfo("last frame trace:\n%s", g.backend)

	stats := g.renderer.Stats()
	core.LogInfo("%d frames, %.3fms avg; cache: %d entries, %d hits, %d misses, %d compiles",
		stats.Frames, stats.FrameTime, stats.Cache.Entries, stats.Cache.Hits, stats.Cache.Misses, stats.Cache.Compiles)
	core.LogInfo("last frame: %d render passes, %d subpasses, %d draws, %d barriers; deferred attachments %dpx (%d reallocations)",
		stats.Execute.RenderPasses, stats.Execute.Subpasses, stats.Execute.Draws, stats.Execute.Barriers,
		g.deferred.AttachmentSize(), g.deferred.Reallocations())
	return nil
}

func (g *TestGame) Backend() *executor.TraceBackend {
	return g.backend
}

func (g *TestGame) Renderer() *renderer.Renderer {
	return g.renderer
}

func (g *TestGame) Shutdown() error {
	var err error
	if g.watcher != nil {
		err = g.watcher.Close()
	}
	g.deferred.Release()
	g.renderer.Shutdown()
	g.textures.Trim()
	core.LogInfo("testbed shut down, %d pipelines compiled, %d destroyed", g.compiler.compiled.Load(), g.compiler.destroyed.Load())
	return err
}
