/*
Renders the testbed scene headless for a number of frames and logs the
command trace of the last one.
*/
package main

import (
	"flag"

	"github.com/spaghettifunk/anima-graph/engine/config"
	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/testbed"
)

func main() {
	configPath := flag.String("config", "", "path of a TOML config file, defaults are used when empty")
	frames := flag.Int("frames", 3, "number of frames to render")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			core.LogFatal("unable to load %s: %s", *configPath, err)
		}
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		core.LogFatal("invalid log level: %s", err)
	}

	tb, err := testbed.NewTestGame(cfg)
	if err != nil {
		core.LogFatal("unable to create the testbed: %s", err)
	}
	runErr := tb.Run(*frames)
	if err := tb.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("render loop failed: %s", runErr)
	}
}
