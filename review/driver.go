package review

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// Driver runs jobs to completion by calling Advance in a loop.
//
// Retryable failures (version conflicts, persistence errors, transient
// provider errors) are retried under the driver's RetryPolicy. A
// non-retryable failure fails the active run through the manager, which
// either schedules a replacement run or moves the job to error,
// depending on the configured failure tolerance.
type Driver struct {
	manager *Manager
	policy  *RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a Driver over the manager. A nil policy gets
// DefaultRetryPolicy.
func NewDriver(manager *Manager, policy *RetryPolicy) (*Driver, error) {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		manager: manager,
		policy:  policy,
		sleep:   sleepCtx,
	}, nil
}

// Run drives one job until it has no pending work. Returns nil when the
// job reached a terminal state, or the context error on cancellation.
func (d *Driver) Run(ctx context.Context, jobID string) error {
	for {
		err := d.advanceWithRetry(ctx, jobID)
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrNoPendingWork):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			// Retries exhausted on a failure that cannot be dropped.
			// Fail the run so the job either schedules a replacement or
			// lands in error with the cause on record.
			if ferr := d.manager.FailRun(ctx, jobID, err.Error()); ferr != nil {
				if errors.Is(ferr, ErrNoPendingWork) {
					return nil
				}
				return ferr
			}
		}
	}
}

// RunAll drives several jobs concurrently, at most limit at a time.
// The first job that fails cancels the rest.
func (d *Driver) RunAll(ctx context.Context, jobIDs []string, limit int) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, jobID := range jobIDs {
		g.Go(func() error {
			return d.Run(ctx, jobID)
		})
	}
	return g.Wait()
}

func (d *Driver) advanceWithRetry(ctx context.Context, jobID string) error {
	var lastErr error
	for attempt := 0; attempt < d.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, d.policy.Backoff(attempt-1)); err != nil {
				return err
			}
		}
		err := d.manager.Advance(ctx, jobID)
		if err == nil || errors.Is(err, ErrNoPendingWork) {
			return err
		}
		if !d.policy.ShouldRetry(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
