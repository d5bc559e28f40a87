package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/bandmask/internal/config"
	"github.com/samcharles93/bandmask/internal/logger"
)

// globalOptions holds the flags every subcommand accepts.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	debug      bool
	cacheDir   string
}

func globalFlags(o *globalOptions) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to a YAML or JSON config file (default ~/.config/bandmask/config.yaml)",
			Destination: &o.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &o.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &o.logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &o.debug,
		},
		&cli.StringFlag{
			Name:        "mask-cache-dir",
			Usage:       "directory for persisted masks (disabled when empty)",
			Destination: &o.cacheDir,
		},
	}
}

// attentionOptions are the mask shape flags shared by mask, forward and
// serve.
type attentionOptions struct {
	capacity int64
	window   int64
	workers  int64
}

func attentionFlags(o *attentionOptions) []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "capacity",
			Aliases:     []string{"c", "block-size"},
			Usage:       "sequence capacity the mask is built for",
			Value:       config.DefaultSequenceCapacity,
			Destination: &o.capacity,
		},
		&cli.Int64Flag{
			Name:        "window",
			Aliases:     []string{"w"},
			Usage:       "attention window, including the query position",
			Value:       config.DefaultWindow,
			Destination: &o.window,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "parallel head workers (0 = GOMAXPROCS)",
			Destination: &o.workers,
		},
	}
}

// prepare loads the config file, applies it under any explicitly set flags
// and installs the logger in the returned context.
func prepare(ctx context.Context, cmd *cli.Command, g *globalOptions, a *attentionOptions) (context.Context, config.File, error) {
	path := g.configPath
	optional := path == ""
	if optional {
		path = config.DefaultPath()
	}
	var cfg config.File
	if path != "" {
		var err error
		cfg, err = config.Load(path, optional)
		if err != nil {
			return ctx, cfg, err
		}
	}
	applyConfig(cmd, cfg, g, a)

	level, err := logger.ParseLevel(g.logLevel)
	if err != nil {
		return ctx, cfg, err
	}
	if g.debug {
		level, _ = logger.ParseLevel("debug")
	}
	log, err := logger.ForFormat(os.Stderr, g.logFormat, level, stderrIsTTY())
	if err != nil {
		return ctx, cfg, err
	}
	return logger.WithContext(ctx, log), cfg, nil
}
