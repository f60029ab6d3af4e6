package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/binder"
	"github.com/spaghettifunk/anima-graph/engine/renderer/command"
	"github.com/spaghettifunk/anima-graph/engine/renderer/executor"
	"github.com/spaghettifunk/anima-graph/engine/renderer/material"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
)

const defaultStreamCapacity uint32 = 64

type RendererConfig struct {
	TrunkWidth     uint32
	TrunkHeight    uint32
	ClipFromBounds bool
	// ClearValues are used when the trunk pass is begun.
	ClearValues []metadata.ClearValue

	CacheCapacity int
	WarmWorkers   int
	Policy        executor.FailurePolicy
	// StreamCapacity is the initial render pass capacity of each stream.
	StreamCapacity uint32
}

// Frame is everything RenderFrame needs from the application. The trunk
// render pass and framebuffer are owned by the application, typically the
// swapchain pass of the current image.
type Frame struct {
	Scene            binder.Scene
	Camera           binder.Camera
	Backend          executor.Backend
	TrunkPass        *metadata.RenderPass
	TrunkFramebuffer *metadata.Framebuffer
}

type Stats struct {
	Frames    uint64
	FPS       float64
	FrameTime float64
	Bind      binder.BindStats
	Execute   executor.FrameStats
	Cache     pipeline.CacheStats
}

/**
 * @brief Drives one frame through the graph: the scene is bound into the
 * branch, wait-barrier and trunk streams, which are then executed in order
 * into the backend.
 */
type Renderer struct {
	clearValues []metadata.ClearValue

	cache    *pipeline.Cache
	binder   *binder.RenderBinder
	executor *executor.Executor
	streams  material.BindResult

	clock   *core.Clock
	metrics *core.FrameMetrics
	frames  uint64
}

func New(compiler pipeline.Compiler, config *RendererConfig) (*Renderer, error) {
	cache, err := pipeline.NewCache(compiler, &pipeline.CacheConfig{
		Capacity:    config.CacheCapacity,
		WarmWorkers: config.WarmWorkers,
	})
	if err != nil {
		return nil, err
	}
	b, err := binder.NewRenderBinder(&binder.RenderBinderConfig{
		TrunkWidth:     config.TrunkWidth,
		TrunkHeight:    config.TrunkHeight,
		ClipFromBounds: config.ClipFromBounds,
	})
	if err != nil {
		return nil, err
	}
	e, err := executor.NewExecutor(&executor.ExecutorConfig{
		Cache:  cache,
		Policy: config.Policy,
	})
	if err != nil {
		return nil, err
	}

	capacity := config.StreamCapacity
	if capacity == 0 {
		capacity = defaultStreamCapacity
	}
	clearValues := config.ClearValues
	if len(clearValues) == 0 {
		clearValues = []metadata.ClearValue{
			metadata.ClearColor(0, 0, 0, 1),
			metadata.ClearDepthStencil(1, 0),
		}
	}

	core.LogDebug("renderer created with a %dx%d trunk, cache capacity %d, %s policy",
		config.TrunkWidth, config.TrunkHeight, config.CacheCapacity, config.Policy)
	return &Renderer{
		clearValues: clearValues,
		cache:       cache,
		binder:      b,
		executor:    e,
		streams: material.BindResult{
			Branch:           command.NewRecorder("branch", capacity),
			TrunkWaitBarrier: command.NewRecorder("trunk-wait-barrier", capacity),
			Trunk:            command.NewRecorder("trunk", capacity),
		},
		clock:   core.NewClock(),
		metrics: core.NewFrameMetrics(),
	}, nil
}

func (r *Renderer) Cache() *pipeline.Cache {
	return r.cache
}

// Streams exposes the recorders of the last frame.
func (r *Renderer) Streams() material.BindResult {
	return r.streams
}

func (r *Renderer) Stats() Stats {
	fps, frameTime := r.metrics.Frame()
	return Stats{
		Frames:    r.frames,
		FPS:       fps,
		FrameTime: frameTime,
		Bind:      r.binder.Stats(),
		Execute:   r.executor.Stats(),
		Cache:     r.cache.Stats(),
	}
}

// Warm compiles the pipelines described by infos ahead of the first frame.
func (r *Renderer) Warm(infos []pipeline.Info) error {
	return r.cache.Warm(infos)
}

// RenderFrame binds and executes one frame. The pipeline cache bracket is
// always closed, even when binding or recording failed.
func (r *Renderer) RenderFrame(frame *Frame) (err error) {
	if frame.Backend == nil || frame.TrunkPass == nil || frame.TrunkFramebuffer == nil {
		err := fmt.Errorf("a frame needs a backend and a trunk render pass and framebuffer: %w", core.ErrUsage)
		core.LogError(err.Error())
		return err
	}

	r.clock.Start()
	if err := r.cache.Start(); err != nil {
		core.LogError(err.Error())
		return err
	}
	defer func() {
		if endErr := r.cache.End(); endErr != nil && err == nil {
			err = endErr
		}
		r.clock.Stop()
		r.metrics.Update(r.clock.Elapsed())
		r.frames++
	}()

	if err := r.binder.Bind(frame.Scene, frame.Camera, r.streams); err != nil {
		return err
	}

	backend := frame.Backend
	r.executor.BeginFrame()
	if err := r.executor.RecordBranch(backend, r.streams.Branch); err != nil {
		return err
	}
	if err := r.executor.RecordWaitBarrier(backend, r.streams.TrunkWaitBarrier); err != nil {
		return err
	}

	fb := frame.TrunkFramebuffer
	backend.BeginRenderPass(frame.TrunkPass, fb, executor.Rect{Width: fb.Width, Height: fb.Height}, r.clearValues)
	err = r.executor.RecordTrunk(backend, r.streams.Trunk, frame.TrunkPass, fb)
	backend.EndRenderPass()
	if err != nil {
		return err
	}

	stats := r.executor.Stats()
	core.LogDebug("frame %d: %d render passes, %d draws, %d barriers, %d skipped in %s",
		r.frames, stats.RenderPasses, stats.Draws, stats.Barriers, stats.Skipped, stats.RecordTime)
	return nil
}

// Resize drops every cached pipeline and records following frames at the
// new trunk size.
func (r *Renderer) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		err := fmt.Errorf("cannot resize the trunk to %dx%d: %w", width, height, core.ErrConfiguration)
		core.LogError(err.Error())
		return err
	}
	r.cache.Clear()
	r.binder.SetTrunkSize(width, height)
	core.LogInfo("trunk resized to %dx%d", width, height)
	return nil
}

func (r *Renderer) Shutdown() {
	r.cache.Clear()
	core.LogDebug("renderer shut down after %d frames", r.frames)
}
