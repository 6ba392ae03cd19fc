package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// WorkFunc processes a single item and returns its updated copy.
type WorkFunc[T Item] func(ctx context.Context, item T) (T, error)

// FailFunc converts a per-item failure into the item's terminal shape for
// this run (typically marking it ineligible with a stage-specific reason).
type FailFunc[T Item] func(item T, err error) T

// ForEach dispatches fn across all eligible items concurrently and joins the
// results. Ineligible items pass through untouched. A failing or panicking
// item is handed to onErr and never affects its siblings; the returned slice
// always contains one entry per input item.
func ForEach[T Item](ctx context.Context, items []T, fn WorkFunc[T], onErr FailFunc[T]) []T {
	results := make([]T, len(items))

	var wg sync.WaitGroup
	for idx, item := range items {
		if !item.IsEligible() {
			results[idx] = item
			continue
		}

		wg.Add(1)
		go func(idx int, item T) {
			defer wg.Done()
			results[idx] = runOne(ctx, item, fn, onErr)
		}(idx, item)
	}
	wg.Wait()

	return results
}

// SequentialOptions tunes ForEachSequential for rate-limited resources.
type SequentialOptions struct {
	// MinDelay/MaxDelay bound the randomized pause between consecutive
	// items. Zero values disable the pause.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// ForEachSequential processes eligible items one at a time with a randomized
// inter-item delay. Used for stages talking to rate-limited or stateful
// providers (on-chain submission, paid image generation) where concurrent
// dispatch would trip throttling or nonce ordering.
func ForEachSequential[T Item](ctx context.Context, items []T, opts SequentialOptions, fn WorkFunc[T], onErr FailFunc[T]) []T {
	results := make([]T, len(items))

	started := false
	for idx, item := range items {
		if !item.IsEligible() {
			results[idx] = item
			continue
		}

		if started {
			sleep(ctx, jitter(opts))
		}
		started = true

		results[idx] = runOne(ctx, item, fn, onErr)
	}

	return results
}

func runOne[T Item](ctx context.Context, item T, fn WorkFunc[T], onErr FailFunc[T]) (out T) {
	defer func() {
		if r := recover(); r != nil {
			out = onErr(item, fmt.Errorf("panic: %v", r))
		}
	}()

	updated, err := fn(ctx, item)
	if err != nil {
		return onErr(item, err)
	}
	return updated
}

func jitter(opts SequentialOptions) time.Duration {
	if opts.MaxDelay <= opts.MinDelay {
		return opts.MinDelay
	}
	return opts.MinDelay + time.Duration(rand.Int63n(int64(opts.MaxDelay-opts.MinDelay)))
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
