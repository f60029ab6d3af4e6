package metadata

import (
	"encoding/binary"
	stdmath "math"

	"github.com/spaghettifunk/anima-graph/engine/math"
)

// The values below match their Vulkan counterparts.

type PrimitiveTopology uint32

const (
	TopologyPointList     PrimitiveTopology = 0
	TopologyLineList      PrimitiveTopology = 1
	TopologyLineStrip     PrimitiveTopology = 2
	TopologyTriangleList  PrimitiveTopology = 3
	TopologyTriangleStrip PrimitiveTopology = 4
)

type PolygonMode uint32

const (
	PolygonModeFill  PolygonMode = 0
	PolygonModeLine  PolygonMode = 1
	PolygonModePoint PolygonMode = 2
)

type CullMode uint32

const (
	CullModeNone  CullMode = 0
	CullModeFront CullMode = 1
	CullModeBack  CullMode = 2
)

type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type CompareOp uint32

const (
	CompareOpNever       CompareOp = 0
	CompareOpLess        CompareOp = 1
	CompareOpEqual       CompareOp = 2
	CompareOpLessOrEqual CompareOp = 3
	CompareOpGreater     CompareOp = 4
	CompareOpAlways      CompareOp = 7
)

// BlendMode selects one of the blend equations the backends know how to build.
type BlendMode uint8

const (
	BlendModeOpaque BlendMode = iota
	BlendModeAlpha
	BlendModeAdditive
)

/**
 * @brief Fixed-function state of a material pass. Only comparable scalars so
 * it can be embedded into a pipeline key.
 */
type PipelineState struct {
	Polygon      PolygonMode
	Cull         CullMode
	FrontFace    FrontFace
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp
	Blend        BlendMode
	LineWidth    float32
}

// DefaultPipelineState is an opaque, depth tested, back face culled state.
func DefaultPipelineState() PipelineState {
	return PipelineState{
		Polygon:      PolygonModeFill,
		Cull:         CullModeBack,
		FrontFace:    FrontFaceCounterClockwise,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: CompareOpLessOrEqual,
		Blend:        BlendModeOpaque,
		LineWidth:    1,
	}
}

/**
 * @brief One pass of a material: a shader plus fixed-function state and the
 * resources bound for it.
 */
type Pass struct {
	ID     uint32
	Name   string
	Shader *Shader
	State  PipelineState
	/** @brief Descriptor sets bound at set index 0 onwards. */
	DescriptorSets []*DescriptorSet
	/** @brief Textures the pass samples or reads as input attachments. Set by materials. */
	Textures []*Texture
}

// PushConstantBlock is the per-draw data pushed to passes declaring a push
// constant range: view-projection followed by the model matrix.
type PushConstantBlock struct {
	ViewProjection math.Mat4
	Model          math.Mat4
}

const PushConstantBlockSize = 128

// Bytes encodes the block as tightly packed little endian floats.
func (b PushConstantBlock) Bytes() []byte {
	out := make([]byte, 0, PushConstantBlockSize)
	for _, m := range [2]math.Mat4{b.ViewProjection, b.Model} {
		for _, f := range m.Data {
			out = binary.LittleEndian.AppendUint32(out, stdmath.Float32bits(f))
		}
	}
	return out
}
