package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/bandmask/internal/api"
	"github.com/samcharles93/bandmask/internal/config"
	"github.com/samcharles93/bandmask/internal/logger"
	"github.com/samcharles93/bandmask/internal/mask"
	"github.com/samcharles93/bandmask/internal/maskfile"
	"github.com/samcharles93/bandmask/internal/version"
)

func serveCmd() *cli.Command {
	var (
		g            globalOptions
		a            attentionOptions
		addr         string
		readTimeout  time.Duration
		maxCapacity  int64
		maxInstances int64
	)

	flags := append(globalFlags(&g), attentionFlags(&a)...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       config.DefaultServerAddress,
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.Int64Flag{
			Name:        "max-capacity",
			Usage:       "largest capacity a request may ask for",
			Value:       4096,
			Destination: &maxCapacity,
		},
		&cli.Int64Flag{
			Name:        "max-instances",
			Usage:       "attention instances and cached masks kept alive at once",
			Value:       api.DefaultMaxInstances,
			Destination: &maxInstances,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve masks and forward passes over HTTP",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, err := prepare(ctx, cmd, &g, &a)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			if !cmd.IsSet("addr") {
				addr = cfg.Address()
			}

			masks := mask.NewCacheSize(int(maxInstances))
			if g.cacheDir != "" {
				// Warm the shared cache with the configured shape.
				m, err := maskfile.LoadOrBuild(g.cacheDir, int(a.capacity), int(a.window), log)
				if err != nil {
					return err
				}
				masks.Add(m)
			}
			provider := api.NewProvider(api.ProviderConfig{
				Masks:       masks,
				MaxCapacity:  int(maxCapacity),
				MaxInstances: int(maxInstances),
				Workers:      int(a.workers),
				Logger:       log,
			})
			defer func() { _ = provider.Close() }()

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			api.NewServer(provider).Register(e)
			log.Info("starting server", "address", addr, "version", version.String())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
