package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"healthsync/internal/health"
	"healthsync/internal/limiter"
)

type fetchFunc func(ctx context.Context, rt health.RecordType) ([]health.RawRecord, error)

// gated issues provider reads for rng through the shared limiter.
func gated(lim *limiter.Limiter, f health.RecordFetcher, rng health.TimeRange) fetchFunc {
	return func(ctx context.Context, rt health.RecordType) ([]health.RawRecord, error) {
		if lim == nil {
			return f.Fetch(ctx, rt, rng)
		}
		return limiter.Do(ctx, lim, func(ctx context.Context) ([]health.RawRecord, error) {
			return f.Fetch(ctx, rt, rng)
		})
	}
}

// fetchGroup reads types concurrently and joins them. The first failure
// cancels the rest of the group and is returned.
func fetchGroup(ctx context.Context, into health.Records, fetch fetchFunc, types ...health.RecordType) error {
	results := make([][]health.RawRecord, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, rt := range types {
		g.Go(func() error {
			recs, err := fetch(gctx, rt)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, rt := range types {
		into[rt] = results[i]
	}
	return nil
}
