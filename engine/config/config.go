package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/executor"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	TrunkWidth     uint32     `toml:"trunk_width"`
	TrunkHeight    uint32     `toml:"trunk_height"`
	ClearColor     [4]float32 `toml:"clear_color"`
	ClearDepth     float32    `toml:"clear_depth"`
	ClearStencil   uint32     `toml:"clear_stencil"`
	ClipFromBounds bool       `toml:"clip_from_bounds"`
}

type PipelineCacheConfig struct {
	Capacity      int    `toml:"capacity"`
	WarmWorkers   int    `toml:"warm_workers"`
	FailurePolicy string `toml:"failure_policy"`
}

type AssetsConfig struct {
	ShaderDir    string `toml:"shader_dir"`
	WatchShaders bool   `toml:"watch_shaders"`
}

type Config struct {
	Log           LogConfig           `toml:"log"`
	Renderer      RendererConfig      `toml:"renderer"`
	PipelineCache PipelineCacheConfig `toml:"pipeline_cache"`
	Assets        AssetsConfig        `toml:"assets"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Renderer: RendererConfig{
			TrunkWidth:   1280,
			TrunkHeight:  720,
			ClearColor:   [4]float32{0, 0, 0, 1},
			ClearDepth:   1,
			ClearStencil: 0,
		},
		PipelineCache: PipelineCacheConfig{
			Capacity:      128,
			WarmWorkers:   4,
			FailurePolicy: executor.FailureAbort.String(),
		},
		Assets: AssetsConfig{
			ShaderDir: "assets/shaders",
		},
	}
}

// Load reads the TOML file at path on top of the defaults. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("unable to read config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			err = fmt.Errorf("unknown config keys:\n%s: %w", strict.String(), core.ErrConfiguration)
		} else {
			err = fmt.Errorf("invalid config: %v: %w", err, core.ErrConfiguration)
		}
		core.LogError(err.Error())
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Renderer.TrunkWidth == 0 || c.Renderer.TrunkHeight == 0 {
		problems = append(problems, fmt.Sprintf("renderer trunk size %dx%d must not be zero", c.Renderer.TrunkWidth, c.Renderer.TrunkHeight))
	}
	if c.PipelineCache.Capacity <= 0 {
		problems = append(problems, fmt.Sprintf("pipeline_cache.capacity must be positive, got %d", c.PipelineCache.Capacity))
	}
	if c.PipelineCache.WarmWorkers < 1 {
		problems = append(problems, fmt.Sprintf("pipeline_cache.warm_workers must be at least 1, got %d", c.PipelineCache.WarmWorkers))
	}
	if _, err := executor.ParseFailurePolicy(c.PipelineCache.FailurePolicy); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Assets.WatchShaders && c.Assets.ShaderDir == "" {
		problems = append(problems, "assets.watch_shaders needs assets.shader_dir")
	}
	if len(problems) > 0 {
		err := fmt.Errorf("%s: %w", strings.Join(problems, "; "), core.ErrConfiguration)
		core.LogError(err.Error())
		return err
	}
	return nil
}

// Policy returns the parsed failure policy. Validate must have passed.
func (c *Config) Policy() executor.FailurePolicy {
	policy, _ := executor.ParseFailurePolicy(c.PipelineCache.FailurePolicy)
	return policy
}

// ClearValues are the trunk clear values: colour then depth/stencil.
func (c *Config) ClearValues() []metadata.ClearValue {
	col := c.Renderer.ClearColor
	return []metadata.ClearValue{
		metadata.ClearColor(col[0], col[1], col[2], col[3]),
		metadata.ClearDepthStencil(c.Renderer.ClearDepth, c.Renderer.ClearStencil),
	}
}
