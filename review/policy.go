package review

import (
	"errors"
	"math/rand"
	"time"

	"github.com/dshills/scijudge/review/model"
	"github.com/dshills/scijudge/review/store"
)

// RetryPolicy bounds how a driver retries a failed Advance call.
//
// Retry lives at the job lifecycle layer, not inside the gateway, so
// retries are budgeted per job rather than per backend call and cannot
// turn into unbounded retry storms. Exponential backoff with jitter
// avoids synchronized retries across concurrent jobs.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts including the
	// first. Must be >= 1; 1 means no retries.
	MaxAttempts int

	// BaseDelay is the base for exponential backoff:
	// delay = min(BaseDelay * 2^attempt, MaxDelay) + jitter(0, BaseDelay).
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth another attempt.
	// If nil, DefaultRetryable is used.
	Retryable func(error) bool
}

// DefaultRetryPolicy is the driver's standard policy: a handful of
// attempts with second-scale backoff.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Validate checks the policy's constraints.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return &ValidationError{Field: "MaxAttempts", Reason: "must be at least 1"}
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return &ValidationError{Field: "MaxDelay", Reason: "must be >= BaseDelay"}
	}
	return nil
}

// ShouldRetry reports whether err warrants another attempt under this
// policy.
func (rp *RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if rp.Retryable != nil {
		return rp.Retryable(err)
	}
	return DefaultRetryable(err)
}

// DefaultRetryable treats as retryable:
//   - optimistic-concurrency conflicts on the job record
//   - persistence failures (the write must be retried, never dropped)
//   - provider errors the backend marked retryable (rate limits,
//     timeouts, transient server errors)
func DefaultRetryable(err error) bool {
	if errors.Is(err, store.ErrVersionConflict) {
		return true
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return true
	}
	var provErr *model.ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// Backoff computes the delay before the given zero-based retry attempt:
// min(BaseDelay * 2^attempt, MaxDelay) plus jitter in [0, BaseDelay).
func (rp *RetryPolicy) Backoff(attempt int) time.Duration {
	if rp.BaseDelay <= 0 {
		return 0
	}

	delay := rp.BaseDelay * (1 << attempt)
	if rp.MaxDelay > 0 && delay > rp.MaxDelay {
		delay = rp.MaxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(rp.BaseDelay))) // #nosec G404 -- jitter timing, not security
	return delay + jitter
}
