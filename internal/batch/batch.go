// Package batch provides a bounded-concurrency dispatcher for lists of
// independent tasks. One task's failure never cancels its siblings, and
// results come back in input order regardless of completion order. An
// optional fixed delay between successive waves of Limit tasks lets call
// sites respect external rate limits.
package batch

import (
	"context"
	"sync"
	"time"
)

// Options configures a dispatch.
type Options struct {
	// Limit is the concurrency ceiling. Values below 1 are treated as 1.
	Limit int
	// Delay, when positive, is inserted between successive waves of
	// Limit tasks.
	Delay time.Duration
}

// Result pairs one input with its outcome. Index is the input's position
// in the original slice.
type Result[T, R any] struct {
	Index     int
	Input     T
	Output    R
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Run processes items with fn under the configured concurrency ceiling.
// The returned slice has one entry per input, in input order. A canceled
// context marks the remaining items with ctx.Err() instead of running
// them.
func Run[T, R any](ctx context.Context, items []T, opts Options, fn func(context.Context, T) (R, error)) []Result[T, R] {
	results := make([]Result[T, R], len(items))
	if len(items) == 0 {
		return results
	}

	limit := opts.Limit
	if limit < 1 {
		limit = 1
	}

	if opts.Delay > 0 {
		runWaves(ctx, items, limit, opts.Delay, fn, results)
		return results
	}

	semaphore := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results[idx] = Result[T, R]{Index: idx, Input: items[idx], Err: ctx.Err()}
				return
			}
			results[idx] = runOne(ctx, idx, items[idx], fn)
		}(i)
	}
	wg.Wait()
	return results
}

// runWaves executes items in consecutive waves of limit, waiting for each
// wave to finish and sleeping delay before the next. Wave boundaries keep
// the inter-batch pacing exact, which a shared semaphore would not.
func runWaves[T, R any](ctx context.Context, items []T, limit int, delay time.Duration, fn func(context.Context, T) (R, error), results []Result[T, R]) {
	for start := 0; start < len(items); start += limit {
		end := start + limit
		if end > len(items) {
			end = len(items)
		}

		if err := ctx.Err(); err != nil {
			for idx := start; idx < len(items); idx++ {
				results[idx] = Result[T, R]{Index: idx, Input: items[idx], Err: err}
			}
			return
		}

		var wg sync.WaitGroup
		for idx := start; idx < end; idx++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = runOne(ctx, idx, items[idx], fn)
			}(idx)
		}
		wg.Wait()

		if end < len(items) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
		}
	}
}

func runOne[T, R any](ctx context.Context, idx int, item T, fn func(context.Context, T) (R, error)) Result[T, R] {
	started := time.Now()
	output, err := fn(ctx, item)
	return Result[T, R]{
		Index:     idx,
		Input:     item,
		Output:    output,
		Err:       err,
		StartedAt: started,
		Duration:  time.Since(started),
	}
}
