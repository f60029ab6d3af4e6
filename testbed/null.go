package testbed

import (
	"sync/atomic"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/material"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-graph/engine/renderer/pipeline"
	"github.com/spaghettifunk/anima-graph/engine/renderer/texture"
)

// The null device stands in for a GPU: it hands out handles and counts what
// was created so the testbed runs headless.

type nullCompiler struct {
	compiled  atomic.Int64
	destroyed atomic.Int64
}

func (c *nullCompiler) Compile(info pipeline.Info) (*pipeline.Pipeline, error) {
	c.compiled.Add(1)
	p := &pipeline.Pipeline{Handle: core.NextID()}
	if info.Pass != nil && info.Pass.Shader != nil {
		p.PushConstants = info.Pass.Shader.PushConstantRanges
	}
	return p, nil
}

func (c *nullCompiler) Destroy(*pipeline.Pipeline) {
	c.destroyed.Add(1)
}

type nullAllocator struct{}

func (nullAllocator) Create(info texture.AllocInfo) (*metadata.Texture, error) {
	return &metadata.Texture{
		ID:                core.NextID(),
		Format:            info.Format,
		Width:             info.Width,
		Height:            info.Height,
		IsInputAttachment: info.IsInputAttachment,
	}, nil
}

func (nullAllocator) Destroy(*metadata.Texture) {}

type nullTargets struct{}

func (nullTargets) CreateRenderPass(desc material.DeferredRenderPassDesc) (*metadata.RenderPass, error) {
	return &metadata.RenderPass{
		ID:                    core.NextID(),
		Name:                  desc.Name,
		SubpassCount:          2,
		ColorAttachmentCounts: []uint8{uint8(len(desc.GBufferFormats)), 1},
	}, nil
}

func (nullTargets) CreateFramebuffer(rp *metadata.RenderPass, attachments []*metadata.Texture, width, height uint32) (*metadata.Framebuffer, error) {
	return &metadata.Framebuffer{ID: core.NextID(), RenderPass: rp, Width: width, Height: height, Attachments: attachments}, nil
}

func (nullTargets) DestroyFramebuffer(*metadata.Framebuffer) {}
