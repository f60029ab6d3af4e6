package pipeline

import (
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

// Key is the structural identity of a compiled pipeline. It holds only
// comparable scalars so equal state always maps to the same cache entry.
type Key struct {
	ShaderID         uint32
	VertexLayoutID   uint32
	RenderPassID     uint32
	Subpass          uint32
	Topology         metadata.PrimitiveTopology
	ColorAttachments uint8
	State            metadata.PipelineState
}

// Info describes a pipeline lookup: what is drawn and where.
type Info struct {
	RenderPass *metadata.RenderPass
	Subpass    uint32
	Pass       *metadata.Pass
	Mesh       metadata.Mesh
	SubMesh    uint32
}

func (i Info) Key() Key {
	k := Key{
		Subpass:          i.Subpass,
		Topology:         metadata.TopologyTriangleList,
		ColorAttachments: i.RenderPass.ColorAttachmentCount(i.Subpass),
	}
	if i.RenderPass != nil {
		k.RenderPassID = i.RenderPass.ID
	}
	if i.Pass != nil {
		k.State = i.Pass.State
		if i.Pass.Shader != nil {
			k.ShaderID = i.Pass.Shader.ID
		}
	}
	if i.Mesh != nil {
		if l := i.Mesh.Layout(); l != nil {
			k.VertexLayoutID = l.ID
		}
		if subs := i.Mesh.SubMeshes(); int(i.SubMesh) < len(subs) {
			k.Topology = subs[i.SubMesh].Topology
		}
	}
	return k
}

// Pipeline is a compiled pipeline owned by the Cache.
type Pipeline struct {
	Key Key
	// Handle and Layout are backend objects (vk.Pipeline and vk.PipelineLayout for vulkan).
	Handle interface{}
	Layout interface{}
	// PushConstants is copied from the shader so the executor knows what to push.
	PushConstants []metadata.PushConstantRange
}

// Compiler builds and destroys backend pipelines.
type Compiler interface {
	Compile(info Info) (*Pipeline, error)
	Destroy(p *Pipeline)
}

// CompilerFunc adapts a function to a Compiler whose pipelines need no cleanup.
type CompilerFunc func(info Info) (*Pipeline, error)

func (f CompilerFunc) Compile(info Info) (*Pipeline, error) {
	return f(info)
}

func (f CompilerFunc) Destroy(p *Pipeline) {}
