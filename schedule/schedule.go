// Package schedule implements the bounded-concurrency dispatcher: a
// weighted-permit pool that admits tasks in discovery order and aggregates
// their verdicts back into that same order.
package schedule

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Result pairs one submitted item's discovery-order index with whatever
// its runner produced.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Weight returns a submitted item's permit weight.
type Weight[T any] func(item T) int64

// Run admits each item under a weighted semaphore with total capacity
// permits: a task with weight w acquires min(w, permits) permits before
// running; if w > permits, it still runs, alone, holding every permit,
// rather than deadlocking. Tasks are submitted in item order; fn may
// complete in any order, but the returned slice is indexed by each item's
// original position so callers can restore discovery order without
// additional synchronization.
func Run[T, R any](
	ctx context.Context,
	items []T,
	permits int64,
	weight Weight[T],
	fn func(ctx context.Context, item T) (R, error),
) []Result[R] {
	if permits < 1 {
		permits = 1
	}

	sem := semaphore.NewWeighted(permits)

	results := make([]Result[R], len(items))

	eg, egCtx := errgroup.WithContext(ctx)

	for i, item := range items {
		i, item := i, item

		w := weight(item)
		if w < 1 {
			w = 1
		}

		acquire := w
		if acquire > permits {
			acquire = permits
		}

		eg.Go(func() error {
			if err := sem.Acquire(egCtx, acquire); err != nil {
				results[i] = Result[R]{Index: i, Err: err}

				return nil
			}
			defer sem.Release(acquire)

			value, err := fn(egCtx, item)
			results[i] = Result[R]{Index: i, Value: value, Err: err}

			return nil
		})
	}

	_ = eg.Wait()

	return results
}
