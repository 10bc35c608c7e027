package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/scijudge/review/store"
)

func TestSubmitValidation(t *testing.T) {
	manager, _ := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	tests := []struct {
		name  string
		paper Paper
		opts  SubmitOptions
		field string
	}{
		{"empty title", Paper{Abstract: "a"}, SubmitOptions{Runs: 1}, "paper.title"},
		{"empty abstract", Paper{Title: "t"}, SubmitOptions{Runs: 1}, "paper.abstract"},
		{"zero runs", testPaper(), SubmitOptions{Runs: 0}, "runs"},
		{"too many runs", testPaper(), SubmitOptions{Runs: 99}, "runs"},
		{"force without actor", testPaper(), SubmitOptions{Runs: 1, Force: true, ForceReason: "r"}, "force"},
		{"force without reason", testPaper(), SubmitOptions{Runs: 1, Force: true, ForcedBy: "ed"}, "force"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.Submit(ctx, tt.paper, tt.opts)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Submit() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestJobConvergesToTerminal(t *testing.T) {
	manager, st := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	jobID, err := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	driveJob(t, manager, jobID)

	status, err := manager.Status(ctx, jobID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Status != JobStatusCompleted {
		t.Fatalf("status = %s, want %s", status.Status, JobStatusCompleted)
	}
	if status.RunsCompleted != 1 || status.RunsRequested != 1 {
		t.Errorf("runs = %d/%d, want 1/1", status.RunsCompleted, status.RunsRequested)
	}

	verdicts, err := st.ListVerdicts(ctx, "paper-1")
	if err != nil {
		t.Fatalf("ListVerdicts() error = %v", err)
	}
	if len(verdicts) != 1 {
		t.Fatalf("got %d verdict versions, want 1", len(verdicts))
	}
	if verdicts[0].Version != 1 || !verdicts[0].Provisional {
		t.Errorf("verdict = version %d provisional %v, want 1 true", verdicts[0].Version, verdicts[0].Provisional)
	}
	if verdicts[0].Recommendation != RecommendPublishable {
		t.Errorf("recommendation = %s, want %s", verdicts[0].Recommendation, RecommendPublishable)
	}

	// Every committed transition leaves a phase_advanced event, so the
	// job-level audit trail shows the run moving through the protocol.
	events, err := st.ListJobEvents(ctx, jobID)
	if err != nil {
		t.Fatalf("ListJobEvents() error = %v", err)
	}
	var advanced int
	for _, ev := range events {
		if ev.Event == EventPhaseAdvanced {
			advanced++
		}
	}
	if advanced != len(phaseOrder)-1 {
		t.Errorf("got %d phase_advanced events, want %d", advanced, len(phaseOrder)-1)
	}
}

func TestAdvanceAfterTerminalIsIdempotent(t *testing.T) {
	manager, st := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
	driveJob(t, manager, jobID)

	verdictsBefore, _ := st.ListVerdicts(ctx, "paper-1")
	runsBefore, _ := st.ListRuns(ctx, jobID)

	for i := 0; i < 5; i++ {
		if err := manager.Advance(ctx, jobID); !errors.Is(err, ErrNoPendingWork) {
			t.Fatalf("Advance() after terminal = %v, want ErrNoPendingWork", err)
		}
	}

	verdictsAfter, _ := st.ListVerdicts(ctx, "paper-1")
	runsAfter, _ := st.ListRuns(ctx, jobID)
	if len(verdictsAfter) != len(verdictsBefore) || len(runsAfter) != len(runsBefore) {
		t.Errorf("post-terminal advances created records: runs %d->%d, verdicts %d->%d",
			len(runsBefore), len(runsAfter), len(verdictsBefore), len(verdictsAfter))
	}
}

func TestRunsCompletedNeverExceedsRequested(t *testing.T) {
	manager, st := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 3})
	for i := 0; i < 100; i++ {
		job, err := st.GetJob(ctx, jobID)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if job.RunsCompleted > job.RunsRequested {
			t.Fatalf("runs_completed %d exceeds runs_requested %d", job.RunsCompleted, job.RunsRequested)
		}
		if errors.Is(manager.Advance(ctx, jobID), ErrNoPendingWork) {
			break
		}
	}

	job, _ := st.GetJob(ctx, jobID)
	if job.RunsCompleted != 3 {
		t.Errorf("runs_completed = %d, want 3", job.RunsCompleted)
	}
}

// A backend outage confined to one phase of one run must not fail the
// job: the affected run completes degraded and later runs are clean.
func TestDegradedRunStillCountsTowardCompletion(t *testing.T) {
	// The first run's methodological_review has three participants; fail
	// exactly those three calls so the second run sees a healthy backend.
	panel := &scriptedPanel{failPhase: PhaseMethodologicalReview, failsLeft: 3}
	manager, st := newTestManager(t, DefaultConfig(), panel)
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 2})
	driveJob(t, manager, jobID)

	job, _ := st.GetJob(ctx, jobID)
	if job.Status != JobStatusCompleted || job.RunsCompleted != 2 {
		t.Fatalf("job = %s %d/%d, want completed 2/2", job.Status, job.RunsCompleted, job.RunsRequested)
	}

	runs, _ := st.ListRuns(ctx, jobID)
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if !runs[0].Degraded {
		t.Error("run 1 not marked degraded despite the outage")
	}
	if runs[1].Degraded {
		t.Error("run 2 marked degraded despite a healthy backend")
	}

	verdicts, _ := st.ListVerdicts(ctx, "paper-1")
	if len(verdicts) != 2 {
		t.Fatalf("got %d verdict versions, want 2", len(verdicts))
	}
	var mentionsOutage bool
	for _, lim := range verdicts[0].Limitations {
		if strings.Contains(lim, string(PhaseMethodologicalReview)) {
			mentionsOutage = true
		}
	}
	if !mentionsOutage {
		t.Errorf("run 1 limitations %v do not surface the outage", verdicts[0].Limitations)
	}
	if len(verdicts[1].Limitations) != 0 {
		t.Errorf("run 2 limitations = %v, want none", verdicts[1].Limitations)
	}
}

func TestSubmitRejectedAfterFinalUnlessForced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFinalReviews = 1
	manager, st := newTestManager(t, cfg, &scriptedPanel{})
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
	driveJob(t, manager, jobID)

	if _, err := st.GetReview(ctx, "paper-1"); err != nil {
		t.Fatalf("paper not finalized: %v", err)
	}

	_, err := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
	var finalErr *AlreadyFinalError
	if !errors.As(err, &finalErr) {
		t.Fatalf("Submit() after final = %v, want AlreadyFinalError", err)
	}
	if finalErr.PaperID != "paper-1" || finalErr.Reviews != 1 {
		t.Errorf("AlreadyFinalError = %+v", finalErr)
	}

	forcedID, err := manager.Submit(ctx, testPaper(), SubmitOptions{
		Runs: 1, Force: true, ForcedBy: "editor@journal", ForceReason: "plagiarism allegation",
	})
	if err != nil {
		t.Fatalf("forced Submit() error = %v", err)
	}

	events, err := st.ListJobEvents(ctx, forcedID)
	if err != nil {
		t.Fatalf("ListJobEvents() error = %v", err)
	}
	var override *store.JobEventRecord
	for i := range events {
		if events[i].Event == EventForceOverride {
			override = &events[i]
		}
	}
	if override == nil {
		t.Fatal("forced submission left no force_override event")
	}
	if override.Actor != "editor@journal" || override.Detail != "plagiarism allegation" {
		t.Errorf("override event = %+v, want actor and reason recorded", override)
	}
}

func TestFailRunToleranceSchedulesReplacement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RunFailureTolerance = 1
	manager, st := newTestManager(t, cfg, &scriptedPanel{})
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
	if err := manager.Advance(ctx, jobID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := manager.FailRun(ctx, jobID, "gateway misconfigured"); err != nil {
		t.Fatalf("FailRun() error = %v", err)
	}

	job, _ := st.GetJob(ctx, jobID)
	if job.Status != JobStatusRunning {
		t.Fatalf("tolerated failure moved job to %s, want %s", job.Status, JobStatusRunning)
	}
	if job.RunFailures != 1 {
		t.Errorf("run_failures = %d, want 1", job.RunFailures)
	}

	driveJob(t, manager, jobID)

	job, _ = st.GetJob(ctx, jobID)
	if job.Status != JobStatusCompleted || job.RunsCompleted != 1 {
		t.Fatalf("job = %s %d/1, want completed with the replacement run counted", job.Status, job.RunsCompleted)
	}
	runs, _ := st.ListRuns(ctx, jobID)
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want failed run plus replacement", len(runs))
	}
	if runs[0].Status != RunStatusError || runs[1].Status != RunStatusCompleted {
		t.Errorf("run statuses = %s, %s", runs[0].Status, runs[1].Status)
	}
}

func TestFailRunBeyondToleranceErrorsJob(t *testing.T) {
	manager, st := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
	if err := manager.Advance(ctx, jobID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := manager.FailRun(ctx, jobID, "gateway misconfigured"); err != nil {
		t.Fatalf("FailRun() error = %v", err)
	}

	job, _ := st.GetJob(ctx, jobID)
	if job.Status != JobStatusError {
		t.Fatalf("status = %s, want %s with zero tolerance", job.Status, JobStatusError)
	}
	if err := manager.Advance(ctx, jobID); !errors.Is(err, ErrNoPendingWork) {
		t.Errorf("Advance() on errored job = %v, want ErrNoPendingWork", err)
	}

	status, _ := manager.Status(ctx, jobID)
	if status.LastError != "gateway misconfigured" {
		t.Errorf("LastError = %q", status.LastError)
	}
}

func TestCancelStopsJobAndKeepsTrail(t *testing.T) {
	manager, st := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
	for i := 0; i < 4; i++ {
		if err := manager.Advance(ctx, jobID); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
	}

	runs, _ := st.ListRuns(ctx, jobID)
	msgsBefore, _ := st.ListMessages(ctx, runs[0].ID)
	if len(msgsBefore) == 0 {
		t.Fatal("no messages before cancel, test setup is wrong")
	}

	if err := manager.Cancel(ctx, jobID, "ops@journal", "duplicate submission"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	job, _ := st.GetJob(ctx, jobID)
	if job.Status != JobStatusError {
		t.Fatalf("status = %s, want %s", job.Status, JobStatusError)
	}
	if job.StatusDetail != "cancelled: duplicate submission" {
		t.Fatalf("status detail = %q, want the cancelled cause", job.StatusDetail)
	}
	if err := manager.Advance(ctx, jobID); !errors.Is(err, ErrNoPendingWork) {
		t.Errorf("Advance() after cancel = %v, want ErrNoPendingWork", err)
	}
	if err := manager.Cancel(ctx, jobID, "ops@journal", "again"); !errors.Is(err, ErrNoPendingWork) {
		t.Errorf("double Cancel() = %v, want ErrNoPendingWork", err)
	}

	msgsAfter, _ := st.ListMessages(ctx, runs[0].ID)
	if len(msgsAfter) != len(msgsBefore) {
		t.Errorf("cancel changed the trail: %d -> %d messages", len(msgsBefore), len(msgsAfter))
	}

	events, _ := st.ListJobEvents(ctx, jobID)
	var cancelled bool
	for _, ev := range events {
		if ev.Event == EventCancelled && ev.Actor == "ops@journal" {
			cancelled = true
		}
	}
	if !cancelled {
		t.Error("no cancelled event with the acting user on the trail")
	}
}

// Concurrent Advance calls for one job must never start a second run
// when one is requested: the per-job lock serializes them in-process.
func TestConcurrentAdvanceNeverDoubleStartsRuns(t *testing.T) {
	manager, st := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})

	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := manager.Advance(ctx, jobID)
				if errors.Is(err, ErrNoPendingWork) {
					return
				}
				if err != nil && !errors.Is(err, store.ErrVersionConflict) {
					t.Errorf("Advance() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	runs, _ := st.ListRuns(ctx, jobID)
	if len(runs) != 1 {
		t.Fatalf("got %d runs for runs_requested=1, want 1", len(runs))
	}
	job, _ := st.GetJob(ctx, jobID)
	if job.Status != JobStatusCompleted || job.RunsCompleted != 1 {
		t.Fatalf("job = %s %d/1, want completed 1/1", job.Status, job.RunsCompleted)
	}
	verdicts, _ := st.ListVerdicts(ctx, "paper-1")
	if len(verdicts) != 1 {
		t.Fatalf("got %d verdict versions, want 1", len(verdicts))
	}
}

func TestTrailMergesMessagesAndTransitionsInOrder(t *testing.T) {
	manager, st := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
	driveJob(t, manager, jobID)

	runs, _ := st.ListRuns(ctx, jobID)
	trail, err := manager.Trail(ctx, runs[0].ID)
	if err != nil {
		t.Fatalf("Trail() error = %v", err)
	}
	if len(trail) == 0 {
		t.Fatal("empty trail")
	}

	var msgCount, trCount int
	for i, entry := range trail {
		if i > 0 && entry.Timestamp.Before(trail[i-1].Timestamp) {
			t.Fatalf("trail entry %d out of order", i)
		}
		switch entry.Kind {
		case "message":
			msgCount++
			if entry.Message == nil {
				t.Fatalf("message entry %d has no record", i)
			}
		case "transition":
			trCount++
			if entry.Transition == nil {
				t.Fatalf("transition entry %d has no record", i)
			}
		default:
			t.Fatalf("unknown trail entry kind %q", entry.Kind)
		}
	}
	if trCount != len(phaseOrder)-1 {
		t.Errorf("got %d transitions in trail, want %d", trCount, len(phaseOrder)-1)
	}
	if msgCount == 0 {
		t.Error("no messages in trail")
	}

	// Every phase boundary must appear after that phase's messages.
	for i, entry := range trail {
		if entry.Kind != "transition" {
			continue
		}
		for _, later := range trail[i+1:] {
			if later.Kind == "message" && later.Message.Phase == entry.Transition.FromPhase {
				t.Fatalf("message for %s appears after its phase transition", entry.Transition.FromPhase)
			}
		}
	}
}

func TestStatusReportsActivePhase(t *testing.T) {
	manager, _ := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	jobID, _ := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})

	status, _ := manager.Status(ctx, jobID)
	if status.Status != JobStatusSubmitted {
		t.Errorf("fresh job status = %s, want %s", status.Status, JobStatusSubmitted)
	}

	// First advance starts the run, second executes initialization.
	for i := 0; i < 2; i++ {
		if err := manager.Advance(ctx, jobID); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
	}
	status, _ = manager.Status(ctx, jobID)
	if status.Status != JobStatusRunning {
		t.Errorf("status = %s, want %s", status.Status, JobStatusRunning)
	}
	if status.Phase != PhaseClaimEnumeration {
		t.Errorf("phase = %s, want %s", status.Phase, PhaseClaimEnumeration)
	}
}

func TestVerdictVersionsAccumulateAcrossJobs(t *testing.T) {
	manager, _ := newTestManager(t, DefaultConfig(), &scriptedPanel{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		jobID, err := manager.Submit(ctx, testPaper(), SubmitOptions{Runs: 1})
		if err != nil {
			t.Fatalf("Submit() %d error = %v", i, err)
		}
		driveJob(t, manager, jobID)
	}

	verdicts, err := manager.Verdicts(ctx, "paper-1")
	if err != nil {
		t.Fatalf("Verdicts() error = %v", err)
	}
	if len(verdicts) != 3 {
		t.Fatalf("got %d verdict versions, want 3", len(verdicts))
	}
	for i, v := range verdicts {
		if v.Version != i+1 {
			t.Errorf("verdict %d version = %d, want %d", i, v.Version, i+1)
		}
		if !v.Provisional {
			t.Errorf("verdict %d not provisional below the finalization threshold", i)
		}
	}
}
