package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/bandmask/internal/logger"
	"github.com/samcharles93/bandmask/internal/mask"
	"github.com/samcharles93/bandmask/internal/maskfile"
)

type maskSummary struct {
	Capacity int      `json:"capacity"`
	Window   int      `json:"window"`
	Count    int      `json:"count"`
	Expected int      `json:"expected_count"`
	RowSums  []int    `json:"row_sums"`
	ColSums  []int    `json:"col_sums"`
	Rows     []string `json:"rows"`
}

func maskCmd() *cli.Command {
	var (
		g      globalOptions
		a      attentionOptions
		format string
		save   string
		load   string
	)

	flags := append(globalFlags(&g), attentionFlags(&a)...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "output format (text, json)",
			Value:       "text",
			Destination: &format,
		},
		&cli.StringFlag{
			Name:        "save",
			Usage:       "also write the mask to this file",
			Destination: &save,
		},
		&cli.StringFlag{
			Name:        "load",
			Usage:       "print the mask stored in this file instead of building one",
			Destination: &load,
		},
	)

	return &cli.Command{
		Name:  "mask",
		Usage: "Build a mask and print it with its row and column sums",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, _, err := prepare(ctx, cmd, &g, &a)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)

			var m *mask.Mask
			switch {
			case load != "":
				m, err = maskfile.Load(load)
			case g.cacheDir != "":
				m, err = maskfile.LoadOrBuild(g.cacheDir, int(a.capacity), int(a.window), log)
			default:
				m, err = mask.Build(int(a.capacity), int(a.window))
			}
			if err != nil {
				return err
			}
			if load == "" && int(a.window) > m.Size() {
				log.Debug("window clamped to capacity", "window", a.window, "capacity", m.Size())
			}
			if save != "" {
				if err := maskfile.Write(save, m); err != nil {
					return fmt.Errorf("save mask: %w", err)
				}
				log.Info("mask saved", "path", save)
			}
			return printMask(cmd.Root().Writer, m, format)
		},
	}
}

func summarize(m *mask.Mask) maskSummary {
	rows := strings.Split(strings.TrimSuffix(m.String(), "\n"), "\n")
	return maskSummary{
		Capacity: m.Size(),
		Window:   m.Window(),
		Count:    m.Count(),
		Expected: mask.ExpectedCount(m.Size(), m.Window()),
		RowSums:  m.RowSums(),
		ColSums:  m.ColSums(),
		Rows:     rows,
	}
}

func printMask(w io.Writer, m *mask.Mask, format string) error {
	s := summarize(m)
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "text", "":
		_, _ = fmt.Fprintf(w, "capacity=%d window=%d count=%d\n", s.Capacity, s.Window, s.Count)
		for i, row := range s.Rows {
			_, _ = fmt.Fprintf(w, "%4d  %s  %d\n", i, row, s.RowSums[i])
		}
		_, err := fmt.Fprintf(w, "col sums: %v\n", s.ColSums)
		return err
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
}
