package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/bandmask/internal/attention"
	"github.com/samcharles93/bandmask/internal/logger"
	"github.com/samcharles93/bandmask/internal/mask"
	"github.com/samcharles93/bandmask/internal/maskfile"
	"github.com/samcharles93/bandmask/internal/tensor"
)

func forwardCmd() *cli.Command {
	var (
		g         globalOptions
		a         attentionOptions
		seqLen    int64
		batch     int64
		heads     int64
		headDim   int64
		seed      int64
		showProbs bool
	)

	flags := append(globalFlags(&g), attentionFlags(&a)...)
	flags = append(flags,
		&cli.Int64Flag{Name: "seq", Usage: "sequence length of the random input (0 = capacity)", Destination: &seqLen},
		&cli.Int64Flag{Name: "batch", Usage: "batch size", Value: 1, Destination: &batch},
		&cli.Int64Flag{Name: "heads", Usage: "attention heads", Value: 2, Destination: &heads},
		&cli.Int64Flag{Name: "head-dim", Usage: "per-head dimensionality", Value: 8, Destination: &headDim},
		&cli.Int64Flag{Name: "seed", Usage: "random seed for q, k and v", Value: 1, Destination: &seed},
		&cli.BoolFlag{Name: "probs", Usage: "print the attention weights of batch 0, head 0", Destination: &showProbs},
	)

	return &cli.Command{
		Name:  "forward",
		Usage: "Run windowed attention over random inputs",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, err := prepare(ctx, cmd, &g, &a)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			// Unset head shapes in the file resolve to zero; keep the flag
			// defaults then.
			resolved := cfg.AttentionConfig()
			if resolved.NumHeads > 0 && !cmd.IsSet("heads") {
				heads = int64(resolved.NumHeads)
			}
			if resolved.HeadDim > 0 && !cmd.IsSet("head-dim") {
				headDim = int64(resolved.HeadDim)
			}

			opts := []attention.Option{attention.WithLogger(log)}
			if g.cacheDir != "" {
				m, err := maskfile.LoadOrBuild(g.cacheDir, int(a.capacity), int(a.window), log)
				if err != nil {
					return err
				}
				cache := mask.NewCache()
				cache.Add(m)
				opts = append(opts, attention.WithCache(cache))
			}
			attn, err := attention.New(attention.Config{
				SequenceCapacity: int(a.capacity),
				Window:           int(a.window),
				NumHeads:         int(heads),
				HeadDim:          int(headDim),
				Workers:          int(a.workers),
			}, opts...)
			if err != nil {
				return err
			}
			defer func() { _ = attn.Close() }()

			n := int(seqLen)
			if n == 0 {
				n = attn.Capacity()
			}
			if batch < 0 || heads < 0 || headDim < 0 || n < 0 {
				return fmt.Errorf("batch, heads, head-dim and seq must not be negative")
			}
			q := tensor.New(int(batch), int(heads), n, int(headDim))
			k := tensor.New(int(batch), int(heads), n, int(headDim))
			v := tensor.New(int(batch), int(heads), n, int(headDim))
			q.FillRand(seed, 2)
			k.FillRand(seed+1, 2)
			v.FillRand(seed+2, 2)

			out, err := attn.Forward(q, k, v)
			if err != nil {
				return err
			}
			log.Info("forward complete", "shape", fmt.Sprint(out.Shape()), "window", attn.Window())

			w := cmd.Root().Writer
			if out.Batch == 0 || out.Heads == 0 {
				return nil
			}
			head := out.Head(0, 0)
			for i := range head.R {
				_, _ = fmt.Fprintf(w, "%4d  %s\n", i, formatRow(head.Row(i)))
			}
			if showProbs {
				probs, err := attn.Probabilities(q, k)
				if err != nil {
					return err
				}
				ph := probs.Head(0, 0)
				_, _ = fmt.Fprintln(w, "weights:")
				for i := range ph.R {
					_, _ = fmt.Fprintf(w, "%4d  %s\n", i, formatRow(ph.Row(i)))
				}
			}
			return nil
		},
	}
}

func formatRow(row []float32) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = fmt.Sprintf("%+.4f", v)
	}
	return strings.Join(parts, " ")
}
