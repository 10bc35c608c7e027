package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/scijudge/review/store"
)

func newTestDriver(t *testing.T, manager *Manager) *Driver {
	t.Helper()
	driver, err := NewDriver(manager, &RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	return driver
}

func TestDriverRunsJobToCompletion(t *testing.T) {
	manager, st := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	driver := newTestDriver(t, manager)
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 2})
	if err := driver.Run(ctx, jobID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	job, _ := st.GetJob(ctx, jobID)
	if job.Status != JobStatusCompleted || job.RunsCompleted != 2 {
		t.Fatalf("job = %s %d/2, want completed 2/2", job.Status, job.RunsCompleted)
	}
}

func TestDriverRunAllDrivesConcurrentJobs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFinalReviews = 3
	manager, st := newTestManager(t, cfg, &scriptedPanel{})
	driver := newTestDriver(t, manager)
	ctx := context.Background()

	var jobIDs []string
	for i := 0; i < 3; i++ {
		jobID, err := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
		if err != nil {
			t.Fatalf("Submit() %d error = %v", i, err)
		}
		jobIDs = append(jobIDs, jobID)
	}

	if err := driver.RunAll(ctx, jobIDs, 2); err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	for _, jobID := range jobIDs {
		job, _ := st.GetJob(ctx, jobID)
		if job.Status != JobStatusCompleted {
			t.Errorf("job %s status = %s, want completed", jobID, job.Status)
		}
	}

	// Three completed reviews meet the lowered threshold; the flip must
	// have happened exactly once despite concurrent finalizers.
	review, err := st.GetReview(ctx, "paper-1")
	if err != nil {
		t.Fatalf("paper not final after threshold: %v", err)
	}
	if review.Provisional {
		t.Error("final review marked provisional")
	}
}

func TestDriverRespectsCancellation(t *testing.T) {
	manager, _ := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	driver := newTestDriver(t, manager)

	ctx, cancel := context.WithCancel(context.Background())
	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
	cancel()

	if err := driver.Run(ctx, jobID); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() with cancelled context = %v, want context.Canceled", err)
	}
}

func TestDriverDoesNotRetryNonRetryableErrors(t *testing.T) {
	manager, _ := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	driver := newTestDriver(t, manager)
	ctx := context.Background()

	// A missing job is not retryable; the retry loop must surface it on
	// the first attempt instead of burning the backoff budget.
	start := time.Now()
	err := driver.advanceWithRetry(ctx, "no-such-job")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("advanceWithRetry() on missing job = %v, want ErrNotFound", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("non-retryable error took %v, suggesting it was retried", elapsed)
	}
}
