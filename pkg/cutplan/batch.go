package cutplan

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/papercut/pkg/vecmath"
)

// Request is one independent sampling job.
type Request struct {
	Extent     Extent          `json:"extent"`
	World      vecmath.Matrix4 `json:"world"`
	Iterations int             `json:"iterations"`
	Seed       int64           `json:"seed"`
}

// SampleAll runs Sample for every request with at most workers jobs in
// flight (workers <= 0 means no limit). Results are in request order and
// each request gets its own RandomSource, so the output matches running
// the requests one by one.
func (s *Sampler) SampleAll(ctx context.Context, reqs []Request, workers int) ([][]Descriptor, error) {
	out := make([][]Descriptor, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			descs, err := s.Sample(req.Extent, req.World, req.Iterations, req.Seed)
			if err != nil {
				return err
			}
			out[i] = descs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
