// Package store provides persistence for papers, review jobs, and their
// audit trails.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by UpdateJob when the job record was
// modified since it was read. Callers should reload and retry.
var ErrVersionConflict = errors.New("version conflict")

// ErrAlreadyFinalized is returned by SaveReview when a final review
// already exists for the paper and force was not set.
var ErrAlreadyFinalized = errors.New("review already finalized")

// ErrDuplicateID is returned by Create methods when a record with the
// same ID already exists.
var ErrDuplicateID = errors.New("duplicate id")

// PaperRecord is a paper submitted for review.
type PaperRecord struct {
	ID        string
	Title     string
	Abstract  string
	Body      string
	CreatedAt time.Time
}

// JobRecord tracks the lifecycle of one review job against a paper.
//
// Version implements optimistic concurrency: UpdateJob succeeds only when
// the caller's Version matches the stored one, and increments it. The job
// row is the commit point for run progress, so a lost race surfaces as
// ErrVersionConflict instead of silently dropping a run.
type JobRecord struct {
	ID            string
	PaperID       string
	RunsRequested int
	RunsCompleted int
	RunFailures   int
	Status        string
	StatusDetail  string
	Forced        bool
	ForcedBy      string
	ForceReason   string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RunRecord is one debate run within a job.
//
// State holds the JSON-serialized deliberation state so a run can be
// resumed from its last committed phase after a crash.
type RunRecord struct {
	ID        string
	JobID     string
	Seq       int
	Phase     string
	Status    string
	State     string
	Degraded  bool
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRecord is one participant utterance in the audit trail.
// Append-only; ID is assigned by the store in insertion order.
type MessageRecord struct {
	ID             int64
	RunID          string
	Phase          string
	Role           string
	Content        string
	Provider       string
	Model          string
	Temperature    float64
	MaxTokens      int
	TokensIn       int
	TokensOut      int
	FlagsViolation bool
	CreatedAt      time.Time
}

// TransitionRecord is one phase transition in the audit trail.
// Append-only; ID is assigned by the store in insertion order.
type TransitionRecord struct {
	ID        int64
	RunID     string
	FromPhase string
	ToPhase   string
	Detail    string
	CreatedAt time.Time
}

// JobEventRecord is one job-level lifecycle event (submitted, run
// started, cancelled, forced re-review, ...). Append-only.
type JobEventRecord struct {
	ID        int64
	JobID     string
	Event     string
	Actor     string
	Detail    string
	CreatedAt time.Time
}

// VerdictRecord is one versioned verdict for a paper. Verdicts are never
// updated in place; each completed run appends a new version.
type VerdictRecord struct {
	ID             int64
	PaperID        string
	JobID          string
	RunID          string
	Version        int
	Method         int
	Evidence       int
	Novelty        int
	Contribution   int
	Overreach      int
	Recommendation string
	Provisional    bool
	Rationale      string
	Limitations    []string
	Violations     []string
	CreatedAt      time.Time
}

// ReviewRecord is the final aggregated review of a paper. At most one
// exists per paper; replacing it requires force (see SaveReview).
type ReviewRecord struct {
	PaperID        string
	JobID          string
	Recommendation string
	Provisional    bool
	Report         string
	Forced         bool
	ForcedBy       string
	CreatedAt      time.Time
}

// Store provides persistence for papers, review jobs, runs, audit
// trails, verdict versions, and final reviews.
//
// Implementations:
//   - MemStore: in-memory, for tests and single-process use
//   - SQLiteStore: single-file database, zero-setup local persistence
//   - MySQLStore: shared database for multi-worker deployments
//
// Trail methods (AppendMessages, AppendTransition, AppendJobEvent,
// AppendVerdict) are append-only: records are never updated or deleted,
// and List methods return them in insertion order.
type Store interface {
	// CreatePaper stores a new paper. Returns ErrDuplicateID if the
	// paper ID already exists.
	CreatePaper(ctx context.Context, paper PaperRecord) error

	// GetPaper retrieves a paper by ID. Returns ErrNotFound if absent.
	GetPaper(ctx context.Context, paperID string) (PaperRecord, error)

	// CreateJob stores a new review job with Version 1.
	// Returns ErrDuplicateID if the job ID already exists.
	CreateJob(ctx context.Context, job JobRecord) error

	// GetJob retrieves a job by ID. Returns ErrNotFound if absent.
	GetJob(ctx context.Context, jobID string) (JobRecord, error)

	// UpdateJob replaces a job record using optimistic concurrency.
	// The write succeeds only when job.Version matches the stored
	// version; the stored version is then incremented. Returns
	// ErrVersionConflict on mismatch, ErrNotFound if the job is absent.
	UpdateJob(ctx context.Context, job JobRecord) error

	// ListJobs retrieves all jobs for a paper, oldest first.
	ListJobs(ctx context.Context, paperID string) ([]JobRecord, error)

	// CreateRun stores a new run. Returns ErrDuplicateID if the run ID
	// already exists.
	CreateRun(ctx context.Context, run RunRecord) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if absent.
	GetRun(ctx context.Context, runID string) (RunRecord, error)

	// UpdateRun replaces a run record. Runs are only written while the
	// owning job is held, so no version check is applied.
	UpdateRun(ctx context.Context, run RunRecord) error

	// ListRuns retrieves all runs for a job ordered by Seq.
	ListRuns(ctx context.Context, jobID string) ([]RunRecord, error)

	// AppendMessages appends participant messages to a run's trail.
	// All records in one call are persisted together.
	AppendMessages(ctx context.Context, msgs []MessageRecord) error

	// ListMessages retrieves a run's messages in insertion order.
	ListMessages(ctx context.Context, runID string) ([]MessageRecord, error)

	// AppendTransition appends a phase transition to a run's trail.
	AppendTransition(ctx context.Context, tr TransitionRecord) error

	// ListTransitions retrieves a run's transitions in insertion order.
	ListTransitions(ctx context.Context, runID string) ([]TransitionRecord, error)

	// AppendJobEvent appends a job lifecycle event.
	AppendJobEvent(ctx context.Context, ev JobEventRecord) error

	// ListJobEvents retrieves a job's events in insertion order.
	ListJobEvents(ctx context.Context, jobID string) ([]JobEventRecord, error)

	// AppendVerdict appends a verdict version for a paper.
	AppendVerdict(ctx context.Context, v VerdictRecord) error

	// ListVerdicts retrieves all verdict versions for a paper in
	// insertion order.
	ListVerdicts(ctx context.Context, paperID string) ([]VerdictRecord, error)

	// CountVerdicts returns the number of verdict versions for a paper.
	CountVerdicts(ctx context.Context, paperID string) (int, error)

	// SaveReview stores the final review for a paper. If a review
	// already exists it returns ErrAlreadyFinalized unless force is
	// set, in which case the existing review is replaced. The
	// exists-check and write are atomic.
	SaveReview(ctx context.Context, review ReviewRecord, force bool) error

	// GetReview retrieves the final review for a paper.
	// Returns ErrNotFound if the paper has not been finalized.
	GetReview(ctx context.Context, paperID string) (ReviewRecord, error)

	// Close releases underlying resources. After Close all operations
	// return an error. Double-close is a no-op.
	Close() error
}
