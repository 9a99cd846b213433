package world

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm2tiles-go/internal/source"
)

// RunParallel shards the stream across worker clones of the generator and
// merges their tiles back into g when all shards finish. Tile state is
// never shared between goroutines; each worker owns a full clone. The
// result is a permutation of what a serial Run would produce: the same
// fragments, ordered per tile by whichever worker handled them.
func (g *Generator) RunParallel(ctx context.Context, sc source.Scanner, workers int) error {
	if workers <= 1 {
		return g.Run(sc)
	}

	prims := make(chan source.Primitive, 4*workers)
	eg, ctx := errgroup.WithContext(ctx)

	clones := make([]*Generator, workers)
	for i := range clones {
		clone := g.Clone()
		clones[i] = clone
		eg.Go(func() error {
			for p := range prims {
				clone.Handle(p)
			}
			return nil
		})
	}

	eg.Go(func() error {
		defer close(prims)
		for sc.Scan() {
			select {
			case prims <- sc.Primitive():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return sc.Err()
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	for _, clone := range clones {
		g.merge(clone)
	}
	return nil
}
