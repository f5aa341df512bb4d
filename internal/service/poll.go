package service

import (
	"context"
	"time"
)

// pollFunc reports whether the awaited condition holds. Errors abort the
// poll; predicates that should treat an error as a negative observation
// swallow it themselves.
type pollFunc func(ctx context.Context) (bool, error)

// pollUntil runs fn at a fixed interval until it reports done, the budget
// elapses, or ctx is cancelled. Returns (false, nil) when the budget runs
// out: timeout under polling is an expected steady-state outcome, not an
// error. onPoll, when set, is invoked after each negative poll with the
// elapsed time, so progress logging stays a caller concern.
func pollUntil(ctx context.Context, interval, budget time.Duration, fn pollFunc, onPoll func(elapsed time.Duration)) (bool, error) {
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		done, err := fn(ctx)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		if onPoll != nil {
			onPoll(time.Since(start))
		}
		if time.Since(start)+interval > budget {
			return false, nil
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return false, err
		}
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
