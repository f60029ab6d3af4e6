package material

import (
	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

type SimpleConfig struct {
	Name   string
	Shader *metadata.Shader
	State  metadata.PipelineState
	Queue  RenderQueue
	// OnlyOnce rejects a second bind before EndBind.
	OnlyOnce bool
}

// Simple draws each submesh once, straight into the trunk pass.
type Simple struct {
	base
}

func NewSimple(config *SimpleConfig) *Simple {
	main := &metadata.Pass{
		ID:     core.NextID(),
		Name:   config.Name + ".main",
		Shader: config.Shader,
		State:  config.State,
	}
	m := &Simple{base: newBase(config.Name, KindSimple, config.OnlyOnce, main)}
	if config.Queue != 0 {
		m.queue = config.Queue
	}
	return m
}

func (m *Simple) BeginBind(info BindInfo, result BindResult) error {
	if err := m.acquire(info); err != nil {
		return err
	}
	if result.Trunk != nil {
		result.Trunk.AddRenderPass(trunkRecord(&info, m.mainPass, info.clipOrFull()))
	}
	return nil
}
