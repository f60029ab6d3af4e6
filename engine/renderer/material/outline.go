package material

import (
	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/math"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

type OutlineConfig struct {
	Name          string
	Shader        *metadata.Shader
	OutlineShader *metadata.Shader
	State         metadata.PipelineState
	Queue         RenderQueue
	// Width of the outline in trunk pixels.
	Width float32
	Color math.Vec4
}

// Outline draws the submesh, then an expanded silhouette around it.
type Outline struct {
	base
	outlinePass *metadata.Pass
	width       float32
	color       math.Vec4
}

func NewOutline(config *OutlineConfig) *Outline {
	main := &metadata.Pass{
		ID:     core.NextID(),
		Name:   config.Name + ".main",
		Shader: config.Shader,
		State:  config.State,
	}
	outlineState := config.State
	// The silhouette is the back of an inflated mesh drawn behind the object.
	outlineState.Cull = metadata.CullModeFront
	outlineState.DepthWrite = false
	outline := &metadata.Pass{
		ID:     core.NextID(),
		Name:   config.Name + ".outline",
		Shader: config.OutlineShader,
		State:  outlineState,
	}
	m := &Outline{
		base:        newBase(config.Name, KindOutline, false, main),
		outlinePass: outline,
		color:       config.Color,
	}
	m.addPass(outline)
	m.SetWidth(config.Width)
	if config.Queue != 0 {
		m.queue = config.Queue
	}
	return m
}

func (m *Outline) OutlinePass() *metadata.Pass {
	return m.outlinePass
}

func (m *Outline) Width() float32 {
	return m.width
}

// SetWidth sets the outline width in pixels. Negative widths become zero.
func (m *Outline) SetWidth(width float32) {
	m.width = max(0, width)
}

func (m *Outline) Color() math.Vec4 {
	return m.color
}

func (m *Outline) SetColor(color math.Vec4) {
	m.color = color
}

func (m *Outline) BeginBind(info BindInfo, result BindResult) error {
	if err := m.acquire(info); err != nil {
		return err
	}
	if result.Trunk == nil {
		return nil
	}
	result.Trunk.AddRenderPass(trunkRecord(&info, m.mainPass, info.clipOrFull()))
	result.Trunk.AddRenderPass(trunkRecord(&info, m.outlinePass, m.outlineScissor(&info)))
	return nil
}

// outlineScissor grows the clip rect by the outline width, converted to
// normalized units of the trunk target.
func (m *Outline) outlineScissor(info *BindInfo) math.Rect2D {
	if !info.HasClipRect || info.TrunkWidth == 0 || info.TrunkHeight == 0 {
		return math.FullRect()
	}
	dx := m.width / float32(info.TrunkWidth)
	dy := m.width / float32(info.TrunkHeight)
	return info.ClipRect.Expand(dx, dy).Intersect(math.FullRect())
}
