package utils

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParallelFunc is a function that can be executed in parallel.
type ParallelFunc func(ctx context.Context) error

// ParallelResult holds the errors from parallel operations, in input order
// with nils removed.
type ParallelResult struct {
	Errors []error
}

// RunParallel executes funcs concurrently with at most limit in flight
// (limit <= 0 means unbounded). One failure does not cancel the others.
func RunParallel(ctx context.Context, limit int, funcs []ParallelFunc) ParallelResult {
	if len(funcs) == 0 {
		return ParallelResult{}
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	errs := make([]error, len(funcs))

	for i, fn := range funcs {
		g.Go(func() error {
			errs[i] = fn(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	return ParallelResult{Errors: nonNil}
}

// RunParallelWithResults executes funcs concurrently and returns results and
// errors aligned with the input slice.
func RunParallelWithResults[T any](ctx context.Context, limit int, funcs []func(ctx context.Context) (T, error)) ([]T, []error) {
	if len(funcs) == 0 {
		return nil, nil
	}

	results := make([]T, len(funcs))
	errs := make([]error, len(funcs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, fn := range funcs {
		g.Go(func() error {
			results[i], errs[i] = fn(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}
