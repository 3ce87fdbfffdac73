package cfg

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tigercfg/ir"
)

// BuildAll builds the graphs of fns on up to workers goroutines. Results are
// index-aligned with fns. The first construction fault stops the scheduling
// of further builds and is returned together with a nil slice.
//
// The instructions of fns must not be mutated while BuildAll runs.
func BuildAll(ctx context.Context, fns []*ir.Function, workers int) ([]*Graph, error) {
	graphs := make([]*Graph, len(fns))
	eg, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for i, fn := range fns {
		if gctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			g, err := New(fn)
			if err != nil {
				return err
			}
			graphs[i] = g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return graphs, nil
}
