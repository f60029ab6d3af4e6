package material

import (
	"fmt"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/command"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/texture"
)

// GBufferSubpass and CompositionSubpass are the subpasses of the private
// deferred render pass.
const (
	GBufferSubpass     uint32 = 0
	CompositionSubpass uint32 = 1
)

// DeferredRenderPassDesc describes the private render pass of a deferred
// material. Attachments are ordered colour, G-buffers, depth.
type DeferredRenderPassDesc struct {
	Name           string
	ColorFormat    metadata.Format
	GBufferFormats []metadata.Format
	DepthFormat    metadata.Format
}

// TargetFactory creates the backend objects behind the private pass.
type TargetFactory interface {
	CreateRenderPass(desc DeferredRenderPassDesc) (*metadata.RenderPass, error)
	CreateFramebuffer(rp *metadata.RenderPass, attachments []*metadata.Texture, width, height uint32) (*metadata.Framebuffer, error)
	DestroyFramebuffer(fb *metadata.Framebuffer)
}

type DeferredConfig struct {
	Name string
	// GBufferShader fills the G-buffers, CompositionShader lights them and
	// Shader composites the result into the trunk pass.
	GBufferShader     *metadata.Shader
	CompositionShader *metadata.Shader
	Shader            *metadata.Shader
	GBufferFormats    []metadata.Format
	ColorFormat       metadata.Format
	DepthFormat       metadata.Format
	Queue             RenderQueue
}

// DefaultGBufferFormats holds position, normal and albedo.
func DefaultGBufferFormats() []metadata.Format {
	return []metadata.Format{
		metadata.FormatR16G16B16A16Sfloat,
		metadata.FormatR16G16B16A16Sfloat,
		metadata.FormatR8G8B8A8Unorm,
	}
}

/**
 * @brief A material rendering the object into private G-buffers, lighting
 * them in a composition subpass and compositing the lit result into the
 * trunk pass through a screen-space quad.
 *
 * Attachments are square, sized to the object's screen footprint rounded up
 * to a power of two, and only reallocated when that rounded size changes.
 * The material binds at most once per frame.
 */
type Deferred struct {
	base
	config   DeferredConfig
	textures texture.Cache
	targets  TargetFactory

	gbufferPass     *metadata.Pass
	compositionPass *metadata.Pass
	renderPass      *metadata.RenderPass
	framebuffer     *metadata.Framebuffer
	quad            *metadata.QuadMesh

	attachmentSize uint32
	color          *metadata.Texture
	depth          *metadata.Texture
	gbuffers       []*metadata.Texture
	reallocations  uint32
}

func NewDeferred(config *DeferredConfig, textures texture.Cache, targets TargetFactory) (*Deferred, error) {
	if textures == nil || targets == nil {
		err := fmt.Errorf("deferred material '%s' needs a texture cache and a target factory: %w", config.Name, core.ErrConfiguration)
		core.LogError(err.Error())
		return nil, err
	}
	cfg := *config
	if len(cfg.GBufferFormats) == 0 {
		cfg.GBufferFormats = DefaultGBufferFormats()
	}
	if cfg.ColorFormat == metadata.FormatUndefined {
		cfg.ColorFormat = metadata.FormatR8G8B8A8Unorm
	}
	if cfg.DepthFormat == metadata.FormatUndefined {
		cfg.DepthFormat = metadata.FormatD32Sfloat
	}

	rp, err := targets.CreateRenderPass(DeferredRenderPassDesc{
		Name:           cfg.Name + ".deferred",
		ColorFormat:    cfg.ColorFormat,
		GBufferFormats: cfg.GBufferFormats,
		DepthFormat:    cfg.DepthFormat,
	})
	if err != nil {
		core.LogError("failed to create the render pass of deferred material '%s': %s", cfg.Name, err)
		return nil, err
	}
	if rp.SubpassCount <= CompositionSubpass {
		err := fmt.Errorf("deferred render pass '%s' has %d subpasses, need 2: %w", rp.Name, rp.SubpassCount, core.ErrConfiguration)
		core.LogError(err.Error())
		return nil, err
	}

	gbufferState := metadata.DefaultPipelineState()
	compositionState := metadata.PipelineState{
		Polygon:      metadata.PolygonModeFill,
		Cull:         metadata.CullModeNone,
		FrontFace:    metadata.FrontFaceCounterClockwise,
		DepthCompare: metadata.CompareOpAlways,
		Blend:        metadata.BlendModeOpaque,
		LineWidth:    1,
	}
	mainState := metadata.DefaultPipelineState()
	mainState.Cull = metadata.CullModeNone

	main := &metadata.Pass{ID: core.NextID(), Name: cfg.Name + ".main", Shader: cfg.Shader, State: mainState}
	m := &Deferred{
		base:     newBase(cfg.Name, KindDeferred, true, main),
		config:   cfg,
		textures: textures,
		targets:  targets,
		gbufferPass: &metadata.Pass{
			ID: core.NextID(), Name: cfg.Name + ".gbuffer", Shader: cfg.GBufferShader, State: gbufferState,
		},
		compositionPass: &metadata.Pass{
			ID: core.NextID(), Name: cfg.Name + ".composition", Shader: cfg.CompositionShader, State: compositionState,
		},
		renderPass: rp,
		quad:       metadata.NewQuadMesh(),
		gbuffers:   make([]*metadata.Texture, len(cfg.GBufferFormats)),
	}
	m.addPass(m.gbufferPass)
	m.addPass(m.compositionPass)
	if cfg.Queue != 0 {
		m.queue = cfg.Queue
	}
	return m, nil
}

func (m *Deferred) GBufferPass() *metadata.Pass        { return m.gbufferPass }
func (m *Deferred) CompositionPass() *metadata.Pass    { return m.compositionPass }
func (m *Deferred) RenderPass() *metadata.RenderPass   { return m.renderPass }
func (m *Deferred) Framebuffer() *metadata.Framebuffer { return m.framebuffer }
func (m *Deferred) QuadMesh() *metadata.QuadMesh       { return m.quad }
func (m *Deferred) AttachmentSize() uint32             { return m.attachmentSize }
func (m *Deferred) Reallocations() uint32              { return m.reallocations }
func (m *Deferred) ColorAttachment() *metadata.Texture { return m.color }
func (m *Deferred) DepthAttachment() *metadata.Texture { return m.depth }
func (m *Deferred) GBuffers() []*metadata.Texture      { return m.gbuffers }

func (m *Deferred) BeginBind(info BindInfo, result BindResult) error {
	if err := m.acquire(info); err != nil {
		return err
	}
	if err := m.beginBind(&info, result); err != nil {
		m.release()
		return err
	}
	return nil
}

func (m *Deferred) beginBind(info *BindInfo, result BindResult) error {
	if result.Branch == nil || result.TrunkWaitBarrier == nil || result.Trunk == nil {
		return fmt.Errorf("deferred material '%s' needs branch, wait-barrier and trunk streams: %w", m.name, core.ErrUsage)
	}

	clip := info.clipOrFull()
	footprint := uint32(max(clip.Width*float32(info.TrunkWidth), clip.Height*float32(info.TrunkHeight)))
	changed, err := m.updateAttachments(footprint)
	if err != nil {
		return err
	}
	if changed || m.framebuffer == nil {
		if err := m.updateFramebuffer(); err != nil {
			return err
		}
		m.updatePasses()
	}

	viewport := fullViewport()
	scissor := math.FullRect()
	if info.HasClipRect {
		// Only the part of the scene around the object is rendered: the clip
		// rect is moved to the origin of the attachment at trunk resolution.
		rateX := float32(info.TrunkWidth) / float32(m.attachmentSize)
		rateY := float32(info.TrunkHeight) / float32(m.attachmentSize)
		viewport = math.Viewport{
			X:        rateX * -clip.X,
			Y:        rateY * -clip.Y,
			Width:    rateX,
			Height:   rateY,
			MaxDepth: 1,
		}
		scissor = math.Rect2D{Width: rateX * clip.Width, Height: rateY * clip.Height}
		m.quad.SetRect(clip, math.NewVec2(scissor.Width, scissor.Height))
	} else {
		m.quad.SetRect(math.FullRect(), math.NewVec2(1, 1))
	}

	clearValues := make([]metadata.ClearValue, 0, len(m.gbuffers)+2)
	for i := 0; i < len(m.gbuffers)+1; i++ {
		clearValues = append(clearValues, metadata.ClearColor(0, 0, 0, 0))
	}
	clearValues = append(clearValues, metadata.ClearDepthStencil(1, 0))

	gbuffer := command.RenderPassRecord{
		RenderPass:  m.renderPass,
		Framebuffer: m.framebuffer,
		Subpass:     GBufferSubpass,
		RenderArea:  math.FullRect(),
		Viewport:    viewport,
		Scissor:     scissor,
		ClearValues: clearValues,
		Projection:  info.Projection,
		View:        info.View,
		Model:       info.Model,
		Pass:        m.gbufferPass,
		Mesh:        info.Mesh,
		SubMesh:     info.SubMesh,
		ObjectID:    info.ObjectID,
	}
	setDraw(&gbuffer)
	result.Branch.AddRenderPass(gbuffer)

	// Full-screen triangle generated by the vertex shader.
	identity := math.NewMat4Identity()
	result.Branch.AddRenderPass(command.RenderPassRecord{
		RenderPass:  m.renderPass,
		Framebuffer: m.framebuffer,
		Subpass:     CompositionSubpass,
		RenderArea:  math.FullRect(),
		Viewport:    fullViewport(),
		Scissor:     scissor,
		Projection:  identity,
		View:        identity,
		Model:       identity,
		Draw:        &command.Draw{VertexCount: 3, InstanceCount: 1},
		Pass:        m.compositionPass,
		ObjectID:    info.ObjectID,
	})

	result.TrunkWaitBarrier.AddBarrier(command.BarrierRecord{
		SrcStage:   metadata.PipelineStageColorAttachmentOutput | metadata.PipelineStageLateFragmentTests,
		DstStage:   metadata.PipelineStageFragmentShader,
		Dependency: metadata.DependencyByRegion,
		Images: []metadata.ImageMemoryBarrier{
			metadata.ShaderReadBarrier(m.color),
			metadata.ShaderReadBarrier(m.depth),
		},
	})

	trunk := command.RenderPassRecord{
		RenderArea: math.FullRect(),
		Viewport:   fullViewport(),
		Scissor:    clip,
		Projection: identity,
		View:       identity,
		Model:      identity,
		Pass:       m.mainPass,
		Mesh:       m.quad,
		ObjectID:   info.ObjectID,
	}
	setDraw(&trunk)
	result.Trunk.AddRenderPass(trunk)
	return nil
}

// updateAttachments makes sure the attachments fit footprint pixels. It
// reports whether they were reallocated.
func (m *Deferred) updateAttachments(footprint uint32) (bool, error) {
	size := math.NextPowerOfTwo(footprint)
	if size == m.attachmentSize {
		return false, nil
	}

	m.freeAttachments()
	old := m.attachmentSize
	m.attachmentSize = size

	err := m.allocateAttachments()
	if err != nil {
		core.LogError("deferred material '%s' failed to allocate %dpx attachments: %s", m.name, size, err)
		m.freeAttachments()
		m.attachmentSize = 0
		return false, err
	}
	m.reallocations++
	core.LogDebug("deferred material '%s' attachments resized from %d to %d", m.name, old, size)
	return true, nil
}

func (m *Deferred) allocateAttachments() error {
	var err error
	for i, format := range m.config.GBufferFormats {
		if m.gbuffers[i], err = m.allocate(format, true); err != nil {
			return err
		}
	}
	if m.color, err = m.allocate(m.config.ColorFormat, false); err != nil {
		return err
	}
	m.depth, err = m.allocate(m.config.DepthFormat, false)
	return err
}

func (m *Deferred) allocate(format metadata.Format, input bool) (*metadata.Texture, error) {
	return m.textures.Allocate(texture.AllocInfo{
		Format:            format,
		Width:             m.attachmentSize,
		Height:            m.attachmentSize,
		IsInputAttachment: input,
	})
}

func (m *Deferred) freeAttachments() {
	for i, tex := range m.gbuffers {
		if tex != nil {
			m.textures.Free(tex)
		}
		m.gbuffers[i] = nil
	}
	for _, tex := range []*metadata.Texture{m.color, m.depth} {
		if tex != nil {
			m.textures.Free(tex)
		}
	}
	m.color, m.depth = nil, nil
}

func (m *Deferred) updateFramebuffer() error {
	if m.framebuffer != nil {
		m.targets.DestroyFramebuffer(m.framebuffer)
		m.framebuffer = nil
	}
	attachments := make([]*metadata.Texture, 0, len(m.gbuffers)+2)
	attachments = append(attachments, m.color)
	attachments = append(attachments, m.gbuffers...)
	attachments = append(attachments, m.depth)

	fb, err := m.targets.CreateFramebuffer(m.renderPass, attachments, m.attachmentSize, m.attachmentSize)
	if err != nil {
		core.LogError("deferred material '%s' failed to create its framebuffer: %s", m.name, err)
		return err
	}
	m.framebuffer = fb
	return nil
}

func (m *Deferred) updatePasses() {
	m.compositionPass.Textures = append(m.compositionPass.Textures[:0], m.gbuffers...)
	m.mainPass.Textures = append(m.mainPass.Textures[:0], m.color, m.depth)
}

// Release hands the attachments back to the texture cache and destroys the
// framebuffer.
func (m *Deferred) Release() {
	if m.framebuffer != nil {
		m.targets.DestroyFramebuffer(m.framebuffer)
		m.framebuffer = nil
	}
	m.freeAttachments()
	m.attachmentSize = 0
	m.compositionPass.Textures = nil
	m.mainPass.Textures = nil
}
