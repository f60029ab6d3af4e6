package executor

import (
	"fmt"
	stdmath "math"
	"time"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/command"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
)

type phase uint8

const (
	phaseIdle phase = iota
	phaseFrame
	phaseBranch
	phaseWaitBarrier
	phaseTrunk
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseFrame:
		return "frame"
	case phaseBranch:
		return "branch"
	case phaseWaitBarrier:
		return "wait-barrier"
	case phaseTrunk:
		return "trunk"
	}
	return "unknown"
}

type ExecutorConfig struct {
	Cache  *pipeline.Cache
	Policy FailurePolicy
}

// FrameStats describes the commands issued since BeginFrame.
type FrameStats struct {
	RenderPasses uint32
	Subpasses    uint32
	Draws        uint32
	Barriers     uint32
	Skipped      uint32
	// PipelineTime is spent in cache lookups and compiles.
	PipelineTime time.Duration
	// RecordTime is spent in the three Record phases, pipelines included.
	RecordTime time.Duration
}

// target is the render pass and framebuffer draws are issued into.
type target struct {
	renderPass  *metadata.RenderPass
	framebuffer *metadata.Framebuffer
}

/**
 * @brief Issues the branch, wait-barrier and trunk streams of a frame into a
 * Backend, in that order, resolving pipelines through the cache.
 */
type Executor struct {
	cache  *pipeline.Cache
	policy FailurePolicy

	phase         phase
	stats         FrameStats
	recordClock   *core.Clock
	pipelineClock *core.Clock

	// open is the explicit render pass currently begun, if any.
	open    *target
	subpass uint32
}

func NewExecutor(config *ExecutorConfig) (*Executor, error) {
	if config.Cache == nil {
		err := fmt.Errorf("func NewExecutor - a pipeline cache is required: %w", core.ErrConfiguration)
		core.LogError(err.Error())
		return nil, err
	}
	return &Executor{
		cache:         config.Cache,
		policy:        config.Policy,
		recordClock:   core.NewClock(),
		pipelineClock: core.NewClock(),
	}, nil
}

func (e *Executor) Policy() FailurePolicy {
	return e.policy
}

func (e *Executor) SetPolicy(policy FailurePolicy) {
	e.policy = policy
}

// Stats describes the current frame.
func (e *Executor) Stats() FrameStats {
	return e.stats
}

// BeginFrame resets the per-frame state. A frame left incomplete is dropped.
func (e *Executor) BeginFrame() {
	if e.phase != phaseIdle && e.phase != phaseTrunk {
		core.LogWarn("executor frame restarted during the %s phase", e.phase)
	}
	e.phase = phaseFrame
	e.stats = FrameStats{}
	e.open = nil
	e.subpass = 0
}

func (e *Executor) RecordBranch(backend Backend, stream *command.Recorder) error {
	if err := e.enter(phaseFrame, phaseBranch, stream); err != nil {
		return err
	}
	return e.execute(backend, stream, nil)
}

func (e *Executor) RecordWaitBarrier(backend Backend, stream *command.Recorder) error {
	if err := e.enter(phaseBranch, phaseWaitBarrier, stream); err != nil {
		return err
	}
	return e.execute(backend, stream, nil)
}

// RecordTrunk issues the trunk stream. The trunk render pass must already be
// begun on backend; trunk records draw into trunkPass through trunkFramebuffer.
func (e *Executor) RecordTrunk(backend Backend, stream *command.Recorder, trunkPass *metadata.RenderPass, trunkFramebuffer *metadata.Framebuffer) error {
	if err := e.enter(phaseWaitBarrier, phaseTrunk, stream); err != nil {
		return err
	}
	var trunk *target
	if trunkPass != nil && trunkFramebuffer != nil {
		trunk = &target{renderPass: trunkPass, framebuffer: trunkFramebuffer}
	}
	return e.execute(backend, stream, trunk)
}

func (e *Executor) enter(from, to phase, stream *command.Recorder) error {
	if e.phase != from {
		err := fmt.Errorf("cannot record the %s stream during the %s phase: %w", to, e.phase, core.ErrUsage)
		core.LogError(err.Error())
		return err
	}
	if stream == nil {
		return fmt.Errorf("no %s stream given: %w", to, core.ErrUsage)
	}
	if stream.Recording() {
		err := fmt.Errorf("stream '%s' is still recording: %w", stream.Name(), core.ErrUsage)
		core.LogError(err.Error())
		return err
	}
	e.phase = to
	return nil
}

func (e *Executor) execute(backend Backend, stream *command.Recorder, trunk *target) error {
	e.recordClock.Start()
	defer func() {
		e.recordClock.Stop()
		e.stats.RecordTime += e.recordClock.Elapsed()
	}()

	for _, cmd := range stream.Commands() {
		switch cmd.Type {
		case command.CommandTypeBarrier:
			e.endPass(backend)
			rec := stream.Barrier(cmd.Index)
			backend.PipelineBarrier(&rec)
			e.stats.Barriers++
		case command.CommandTypeRenderPass:
			rec := stream.RenderPass(cmd.Index)
			if err := e.renderPass(backend, &rec, trunk); err != nil {
				e.endPass(backend)
				return fmt.Errorf("stream '%s' command %d: %w", stream.Name(), cmd.Index, err)
			}
		default:
			e.endPass(backend)
			return fmt.Errorf("stream '%s' holds unknown command type %d: %w", stream.Name(), cmd.Type, core.ErrUsage)
		}
	}
	e.endPass(backend)
	return nil
}

func (e *Executor) renderPass(backend Backend, rec *command.RenderPassRecord, trunk *target) error {
	var dst *target
	if rec.IsTrunk() {
		if trunk == nil {
			err := fmt.Errorf("trunk record without a trunk target: %w", core.ErrUsage)
			core.LogError(err.Error())
			return err
		}
		e.endPass(backend)
		dst = trunk
	} else {
		if rec.Framebuffer == nil {
			return fmt.Errorf("render pass '%s' recorded without a framebuffer: %w", rec.RenderPass.Name, core.ErrConfiguration)
		}
		if rec.Subpass >= rec.RenderPass.SubpassCount {
			err := fmt.Errorf("subpass %d out of range for render pass '%s' with %d subpasses: %w",
				rec.Subpass, rec.RenderPass.Name, rec.RenderPass.SubpassCount, core.ErrConfiguration)
			core.LogError(err.Error())
			return err
		}
		dst = &target{renderPass: rec.RenderPass, framebuffer: rec.Framebuffer}
		e.beginPass(backend, dst, rec)
	}
	return e.draw(backend, dst, rec)
}

// beginPass makes dst the open pass at rec.Subpass, beginning it or
// advancing its subpasses as needed.
func (e *Executor) beginPass(backend Backend, dst *target, rec *command.RenderPassRecord) {
	if e.open != nil && *e.open == *dst && rec.Subpass >= e.subpass {
		e.advance(backend, rec.Subpass)
		return
	}
	e.endPass(backend)
	w, h := dst.framebuffer.Width, dst.framebuffer.Height
	backend.BeginRenderPass(dst.renderPass, dst.framebuffer, pixelRect(rec.RenderArea, w, h), rec.ClearValues)
	e.open = dst
	e.subpass = 0
	e.stats.RenderPasses++
	e.advance(backend, rec.Subpass)
}

func (e *Executor) advance(backend Backend, subpass uint32) {
	for e.subpass < subpass {
		backend.NextSubpass()
		e.subpass++
		e.stats.Subpasses++
	}
}

func (e *Executor) endPass(backend Backend) {
	if e.open == nil {
		return
	}
	backend.EndRenderPass()
	e.open = nil
	e.subpass = 0
}

func (e *Executor) draw(backend Backend, dst *target, rec *command.RenderPassRecord) error {
	p, err := e.resolve(dst, rec)
	if err != nil {
		if e.policy == FailureSkip {
			core.LogWarn("skipping draw of object %s: %s", rec.ObjectID, err.Error())
			e.stats.Skipped++
			return nil
		}
		return err
	}

	w, h := dst.framebuffer.Width, dst.framebuffer.Height
	backend.BindPipeline(p)
	backend.SetViewport(pixelViewport(rec.Viewport, w, h))
	backend.SetScissor(pixelRect(rec.Scissor, w, h))
	if rec.Pass != nil && len(rec.Pass.DescriptorSets) > 0 {
		backend.BindDescriptorSets(p, rec.Pass.DescriptorSets)
	}
	if len(p.PushConstants) > 0 {
		block := metadata.PushConstantBlock{
			ViewProjection: rec.View.Mul(rec.Projection),
			Model:          rec.Model,
		}
		data := block.Bytes()
		for _, r := range p.PushConstants {
			if r.Offset >= uint32(len(data)) {
				continue
			}
			end := min(r.Offset+r.Size, uint32(len(data)))
			backend.PushConstants(p, r.Stages, r.Offset, data[r.Offset:end])
		}
	}

	var indices *metadata.Buffer
	if rec.Mesh != nil {
		if vbs := rec.Mesh.VertexBuffers(); len(vbs) > 0 {
			backend.BindVertexBuffers(vbs)
		}
		indices = rec.Mesh.IndexBuffer()
	}

	switch {
	case rec.DrawIndexed != nil:
		if indices == nil {
			return fmt.Errorf("indexed draw of object %s without an index buffer: %w", rec.ObjectID, core.ErrConfiguration)
		}
		backend.BindIndexBuffer(indices)
		backend.DrawIndexed(*rec.DrawIndexed)
	case rec.Draw != nil:
		backend.Draw(*rec.Draw)
	default:
		if rec.Mesh == nil || int(rec.SubMesh) >= len(rec.Mesh.SubMeshes()) {
			return fmt.Errorf("object %s has no draw and no submesh %d: %w", rec.ObjectID, rec.SubMesh, core.ErrConfiguration)
		}
		sub := rec.Mesh.SubMeshes()[rec.SubMesh]
		if indices != nil {
			backend.BindIndexBuffer(indices)
			backend.DrawIndexed(command.DrawIndexed{
				IndexCount:    sub.IndexCount,
				InstanceCount: 1,
				FirstIndex:    sub.FirstIndex,
				VertexOffset:  sub.VertexOffset,
			})
		} else {
			backend.Draw(command.Draw{VertexCount: sub.VertexCount, InstanceCount: 1, FirstVertex: sub.FirstVertex})
		}
	}
	e.stats.Draws++
	return nil
}

func (e *Executor) resolve(dst *target, rec *command.RenderPassRecord) (*pipeline.Pipeline, error) {
	e.pipelineClock.Start()
	defer func() {
		e.pipelineClock.Stop()
		e.stats.PipelineTime += e.pipelineClock.Elapsed()
	}()
	return e.cache.Caching(pipeline.Info{
		RenderPass: dst.renderPass,
		Subpass:    rec.Subpass,
		Pass:       rec.Pass,
		Mesh:       rec.Mesh,
		SubMesh:    rec.SubMesh,
	})
}

func pixelViewport(vp math.Viewport, width, height uint32) math.Viewport {
	w, h := float32(width), float32(height)
	return math.Viewport{
		X:        vp.X * w,
		Y:        vp.Y * h,
		Width:    vp.Width * w,
		Height:   vp.Height * h,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}
}

// pixelSnap absorbs float32 noise before rounding to whole pixels.
const pixelSnap = 1e-3

// pixelRect converts a normalized rect, clamping it to the framebuffer.
func pixelRect(r math.Rect2D, width, height uint32) Rect {
	w, h := float64(width), float64(height)
	x0 := math.Clamp(stdmath.Floor(float64(r.X)*w+pixelSnap), 0, w)
	y0 := math.Clamp(stdmath.Floor(float64(r.Y)*h+pixelSnap), 0, h)
	x1 := math.Clamp(stdmath.Ceil(float64(r.X+r.Width)*w-pixelSnap), x0, w)
	y1 := math.Clamp(stdmath.Ceil(float64(r.Y+r.Height)*h-pixelSnap), y0, h)
	return Rect{
		X:      int32(x0),
		Y:      int32(y0),
		Width:  uint32(x1 - x0),
		Height: uint32(y1 - y0),
	}
}
