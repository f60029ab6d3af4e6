package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/executor"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Policy() != executor.FailureAbort {
		t.Fatalf("default policy is abort")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.toml")
	data := `
[log]
level = "debug"

[renderer]
trunk_width = 800
trunk_height = 600
clear_color = [0.1, 0.2, 0.3, 1.0]
clip_from_bounds = true

[pipeline_cache]
capacity = 8
failure_policy = "skip"

[assets]
shader_dir = "shaders"
watch_shaders = true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Renderer.TrunkWidth != 800 || cfg.Renderer.TrunkHeight != 600 || !cfg.Renderer.ClipFromBounds {
		t.Fatalf("renderer section %+v", cfg.Renderer)
	}
	if cfg.PipelineCache.Capacity != 8 || cfg.Policy() != executor.FailureSkip {
		t.Fatalf("pipeline cache section %+v", cfg.PipelineCache)
	}
	// Keys missing from the file keep their defaults.
	if cfg.PipelineCache.WarmWorkers != Default().PipelineCache.WarmWorkers || cfg.Renderer.ClearDepth != 1 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	clears := cfg.ClearValues()
	if len(clears) != 2 || clears[0].Color[2] != 0.3 || !clears[1].IsDepthStencil {
		t.Fatalf("clear values %+v", clears)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "[renderer]\ntrunk_widht = 10\n", "trunk_widht"},
		{"zero trunk", "[renderer]\ntrunk_width = 0\n", "trunk size"},
		{"capacity", "[pipeline_cache]\ncapacity = 0\n", "capacity"},
		{"workers", "[pipeline_cache]\nwarm_workers = 0\n", "warm_workers"},
		{"policy", "[pipeline_cache]\nfailure_policy = \"retry\"\n", "retry"},
		{"level", "[log]\nlevel = \"loud\"\n", "loud"},
		{"watch without dir", "[assets]\nshader_dir = \"\"\nwatch_shaders = true\n", "shader_dir"},
		{"syntax", "[renderer\n", "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, core.ErrConfiguration) {
				t.Fatalf("want a configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want a not-exist error, got %v", err)
	}
}
