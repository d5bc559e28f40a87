package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/bandmask/internal/config"
)

// applyConfig copies config file values into the option structs for every
// flag the user did not set explicitly.
func applyConfig(c *cli.Command, cfg config.File, g *globalOptions, a *attentionOptions) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		g.logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		g.logFormat = cfg.LogFormat
	}
	if cfg.MaskCacheDir != "" && !c.IsSet("mask-cache-dir") {
		g.cacheDir = cfg.MaskCacheDir
	}
	if a == nil {
		return
	}
	// AttentionConfig falls back to the same defaults the flags carry.
	resolved := cfg.AttentionConfig()
	if !c.IsSet("capacity") {
		a.capacity = int64(resolved.SequenceCapacity)
	}
	if !c.IsSet("window") {
		a.window = int64(resolved.Window)
	}
	if !c.IsSet("workers") {
		a.workers = int64(resolved.Workers)
	}
}
