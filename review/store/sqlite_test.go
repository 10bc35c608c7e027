package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/scijudge/review/store"
)

// TestSQLiteStore_SurvivesReopen verifies that committed review history
// is still there after closing and reopening the database, which is what
// crash resumption relies on.
func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reviews.db")

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	job := store.JobRecord{
		ID:            "job-reopen",
		PaperID:       "paper-reopen",
		RunsRequested: 2,
		Status:        "running",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	run := store.RunRecord{
		ID:        "run-reopen",
		JobID:     job.ID,
		Seq:       1,
		Phase:     "evidence_review",
		Status:    "active",
		State:     `{"phase":"evidence_review"}`,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	gotJob, err := reopened.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob after reopen failed: %v", err)
	}
	if gotJob.Status != "running" || gotJob.RunsRequested != 2 {
		t.Errorf("job after reopen = %+v", gotJob)
	}

	gotRun, err := reopened.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun after reopen failed: %v", err)
	}
	if gotRun.Phase != "evidence_review" {
		t.Errorf("run phase after reopen = %q, want %q", gotRun.Phase, "evidence_review")
	}
}

func TestSQLiteStore_ClosedOperationsFail(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Double-close is a no-op.
	if err := st.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	ctx := context.Background()
	if _, err := st.GetJob(ctx, "any"); err == nil {
		t.Error("GetJob on closed store should fail")
	}
	if err := st.AppendTransition(ctx, store.TransitionRecord{RunID: "r"}); err == nil {
		t.Error("AppendTransition on closed store should fail")
	}
}

func TestSQLiteStore_Path(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reviews.db")
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	if st.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", st.Path(), dbPath)
	}
}
