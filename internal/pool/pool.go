// Package pool maps a worker over a slice with bounded parallelism.
package pool

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Map runs worker over items with at most limit calls in flight. A finished
// slot is refilled at once. The result slice has the length and order of
// items; an item whose worker fails or panics keeps the zero value of R and
// the failure is logged. limit below 1 is treated as 1.
func Map[T, R any](ctx context.Context, logger *slog.Logger, items []T, limit int, worker func(ctx context.Context, item T, i int) (R, error)) []R {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i, item := range items {
		g.Go(func() error {
			r, err := call(ctx, worker, item, i)
			if err != nil {
				logger.Warn("pool: item failed", slog.Int("index", i), slog.String("error", err.Error()))
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func call[T, R any](ctx context.Context, worker func(context.Context, T, int) (R, error), item T, i int) (r R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return worker(ctx, item, i)
}
