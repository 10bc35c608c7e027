package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/scijudge/review/emit"
	"github.com/dshills/scijudge/review/store"
)

// Job status values. The set is closed: cancellation lands a job in
// error with a cancelled cause in StatusDetail, and the cancelled job
// event keeps the distinction on the audit trail.
const (
	JobStatusSubmitted = "submitted"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusError     = "error"
)

// Run status values.
const (
	RunStatusActive    = "active"
	RunStatusCompleted = "completed"
	RunStatusError     = "error"
	RunStatusCancelled = "cancelled"
)

// Job event names recorded in the job-level audit trail.
const (
	EventSubmitted     = "submitted"
	EventForceOverride = "force_override"
	EventRunStarted    = "run_started"
	EventPhaseAdvanced = "phase_advanced"
	EventRunCompleted  = "run_completed"
	EventRunFailed     = "run_failed"
	EventJobCompleted  = "job_completed"
	EventJobError      = "job_error"
	EventCancelled     = "cancelled"
	EventFinalized     = "finalized"
)

// SubmitOptions carries the per-submission parameters.
type SubmitOptions struct {
	// Runs is the number of independent debate runs to request.
	Runs int

	// Force overrides the already-final gate. ForcedBy and ForceReason
	// are required with Force and are written to the job's audit trail.
	Force       bool
	ForcedBy    string
	ForceReason string
}

// JobStatus is the external view of a job's progress.
type JobStatus struct {
	JobID         string
	PaperID       string
	Status        string
	StatusDetail  string
	Phase         Phase
	RunsRequested int
	RunsCompleted int
	RunFailures   int
	LastError     string
}

// Manager owns the review job lifecycle: submission, stepwise
// advancement, cancellation, and inspection.
//
// Advance is the only method that mutates run progress. Concurrent
// Advance calls for the same job are serialized two ways: a per-job
// mutex within the process, and the job record's optimistic version for
// callers sharing a database. Everything a step produced is persisted
// before the job record commits it, so a crash mid-step loses at most
// trail records beyond the last committed transition, never committed
// progress.
type Manager struct {
	store   store.Store
	machine *Machine
	agg     *Aggregator
	cfg     Config
	emitter emit.Emitter
	metrics *Metrics
	now     func() time.Time

	locks sync.Map // jobID -> *sync.Mutex

	// paperLocks serialize verdict versioning across jobs sharing a
	// paper: the count-then-append that assigns the next version is not
	// atomic in the store.
	paperLocks sync.Map // paperID -> *sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerEmitter sets the observability emitter. Defaults to NullEmitter.
func WithManagerEmitter(e emit.Emitter) ManagerOption {
	return func(m *Manager) { m.emitter = e }
}

// WithManagerMetrics sets the Prometheus metrics collector. Defaults to none.
func WithManagerMetrics(mt *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// WithManagerClock overrides the manager's time source. Used by tests.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over the given store and machine.
func NewManager(st store.Store, machine *Machine, cfg Config, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		store:   st,
		machine: machine,
		cfg:     cfg,
		emitter: emit.NewNullEmitter(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.agg = NewAggregator(st, cfg, AggregatorEmitter(m.emitter), AggregatorMetrics(m.metrics))
	return m, nil
}

// Aggregator returns the manager's finalization aggregator.
func (m *Manager) Aggregator() *Aggregator {
	return m.agg
}

// Submit validates a paper and creates a review job for it.
//
// Submissions against a paper whose verdict is already final are
// rejected with *AlreadyFinalError while LockAfterFinal is set; the
// caller may resubmit with SubmitOptions.Force, which requires an actor
// and a reason and leaves a force_override event on the job's trail.
// Nothing is persisted when validation fails.
func (m *Manager) Submit(ctx context.Context, paper Paper, opts SubmitOptions) (string, error) {
	if strings.TrimSpace(paper.Title) == "" {
		return "", &ValidationError{Field: "paper.title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(paper.Abstract) == "" {
		return "", &ValidationError{Field: "paper.abstract", Reason: "must not be empty"}
	}
	if opts.Runs < 1 {
		return "", &ValidationError{Field: "runs", Reason: "must be at least 1"}
	}
	if opts.Runs > m.cfg.MaxAdditionalReviews {
		return "", &ValidationError{Field: "runs", Reason: fmt.Sprintf("must not exceed %d", m.cfg.MaxAdditionalReviews)}
	}
	if opts.Runs > m.cfg.MaxRunsPerJob {
		return "", &ValidationError{Field: "runs", Reason: fmt.Sprintf("exceeds the per-job cap of %d", m.cfg.MaxRunsPerJob)}
	}
	if opts.Force && (strings.TrimSpace(opts.ForcedBy) == "" || strings.TrimSpace(opts.ForceReason) == "") {
		return "", &ValidationError{Field: "force", Reason: "forced submissions require forced_by and force_reason"}
	}

	if paper.ID == "" {
		paper.ID = uuid.NewString()
	}

	if m.cfg.LockAfterFinal && !opts.Force {
		_, err := m.store.GetReview(ctx, paper.ID)
		switch {
		case err == nil:
			count, cerr := m.store.CountVerdicts(ctx, paper.ID)
			if cerr != nil {
				return "", persistErr("count verdicts", cerr)
			}
			return "", &AlreadyFinalError{PaperID: paper.ID, Reviews: count}
		case errors.Is(err, store.ErrNotFound):
			// not yet final, proceed
		default:
			return "", persistErr("check final review", err)
		}
	}

	now := m.now().UTC()
	err := m.store.CreatePaper(ctx, store.PaperRecord{
		ID:        paper.ID,
		Title:     paper.Title,
		Abstract:  paper.Abstract,
		Body:      paper.Body,
		CreatedAt: now,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateID) {
		return "", persistErr("create paper", err)
	}

	jobID := uuid.NewString()
	job := store.JobRecord{
		ID:            jobID,
		PaperID:       paper.ID,
		RunsRequested: opts.Runs,
		Status:        JobStatusSubmitted,
		Forced:        opts.Force,
		ForcedBy:      opts.ForcedBy,
		ForceReason:   opts.ForceReason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return "", persistErr("create job", err)
	}

	if err := m.appendEvent(ctx, jobID, EventSubmitted, "", fmt.Sprintf("paper %s, %d runs requested", paper.ID, opts.Runs)); err != nil {
		return "", err
	}
	if opts.Force {
		if err := m.appendEvent(ctx, jobID, EventForceOverride, opts.ForcedBy, opts.ForceReason); err != nil {
			return "", err
		}
	}

	m.emitter.Emit(emit.Event{JobID: jobID, Msg: "job_submitted",
		Meta: map[string]interface{}{"paper_id": paper.ID, "runs": opts.Runs}})
	return jobID, nil
}

// Advance performs one bounded unit of work on the job: it starts the
// next run, drives the active run one phase forward, or commits
// completion. Returns ErrNoPendingWork once the job is terminal, which
// makes repeated Advance calls after completion a harmless no-op.
//
// Persistence order within a step is messages, transition, run record,
// then the job record. The job write carries the optimistic version
// check and is the commit point; ErrVersionConflict means a concurrent
// worker advanced the job first and the caller should reload and retry.
func (m *Manager) Advance(ctx context.Context, jobID string) error {
	lock := m.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return persistErr("get job", err)
	}
	if jobTerminal(job.Status) {
		return ErrNoPendingWork
	}

	runs, err := m.store.ListRuns(ctx, jobID)
	if err != nil {
		return persistErr("list runs", err)
	}
	active := activeRun(runs)

	if active == nil {
		if job.RunsCompleted >= job.RunsRequested {
			return m.completeJob(ctx, job)
		}
		return m.startRun(ctx, job, len(runs))
	}
	return m.stepRun(ctx, job, *active)
}

// startRun creates the next run for the job.
func (m *Manager) startRun(ctx context.Context, job store.JobRecord, priorRuns int) error {
	state := NewRunState(job.PaperID)
	encoded, err := MarshalState(state)
	if err != nil {
		return err
	}

	now := m.now().UTC()
	run := store.RunRecord{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		Seq:       priorRuns + 1,
		Phase:     string(state.Phase),
		Status:    RunStatusActive,
		State:     encoded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateRun(ctx, run); err != nil {
		return persistErr("create run", err)
	}

	job.Status = JobStatusRunning
	job.StatusDetail = string(state.Phase)
	job.UpdatedAt = now
	if err := m.commitJob(ctx, job); err != nil {
		return err
	}

	if err := m.appendEvent(ctx, job.ID, EventRunStarted, "", fmt.Sprintf("run %d of %d", run.Seq, job.RunsRequested)); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.RunStarted()
	}
	m.emitter.Emit(emit.Event{JobID: job.ID, RunID: run.ID, Msg: "run_started",
		Meta: map[string]interface{}{"seq": run.Seq}})
	return nil
}

// stepRun drives the active run one phase forward and persists the result.
func (m *Manager) stepRun(ctx context.Context, job store.JobRecord, run store.RunRecord) error {
	state, err := UnmarshalState(run.State)
	if err != nil {
		return err
	}

	rec, err := m.store.GetPaper(ctx, job.PaperID)
	if err != nil {
		return persistErr("get paper", err)
	}
	paper := Paper{ID: rec.ID, Title: rec.Title, Abstract: rec.Abstract, Body: rec.Body}

	result, err := m.machine.Step(ctx, paper, run.ID, state)
	if err != nil {
		// The machine only errors on context cancellation, observed
		// before any participant ran. Nothing to persist.
		return err
	}

	if err := m.persistStep(ctx, run.ID, result); err != nil {
		return err
	}

	encoded, err := MarshalState(state)
	if err != nil {
		return err
	}
	now := m.now().UTC()
	run.State = encoded
	run.Phase = string(state.Phase)
	run.Degraded = state.Degraded()
	run.UpdatedAt = now
	if result.Completed {
		run.Status = RunStatusCompleted
	}
	if err := m.store.UpdateRun(ctx, run); err != nil {
		return persistErr("update run", err)
	}

	if tr := result.Transition; tr != nil {
		detail := fmt.Sprintf("run %d: %s -> %s", run.Seq, tr.From, tr.To)
		if err := m.appendEvent(ctx, job.ID, EventPhaseAdvanced, "", detail); err != nil {
			return err
		}
	}

	if result.Completed {
		return m.commitRunCompletion(ctx, job, run, state)
	}

	job.StatusDetail = string(state.Phase)
	job.UpdatedAt = now
	return m.commitJob(ctx, job)
}

// persistStep writes the step's trail records before anything commits.
func (m *Manager) persistStep(ctx context.Context, runID string, result StepResult) error {
	if len(result.Messages) > 0 {
		records := make([]store.MessageRecord, len(result.Messages))
		for i, msg := range result.Messages {
			records[i] = store.MessageRecord{
				RunID:          runID,
				Phase:          string(msg.Phase),
				Role:           string(msg.Role),
				Content:        msg.Content,
				Provider:       msg.Provider,
				Model:          msg.Model,
				Temperature:    msg.Temperature,
				MaxTokens:      msg.MaxTokens,
				TokensIn:       msg.TokensIn,
				TokensOut:      msg.TokensOut,
				FlagsViolation: msg.FlagsViolation,
				CreatedAt:      msg.Timestamp,
			}
		}
		if err := m.store.AppendMessages(ctx, records); err != nil {
			return persistErr("append messages", err)
		}
	}
	if result.Transition != nil {
		tr := store.TransitionRecord{
			RunID:     runID,
			FromPhase: string(result.Transition.From),
			ToPhase:   string(result.Transition.To),
			Detail:    result.Transition.Detail,
			CreatedAt: result.Transition.Timestamp,
		}
		if err := m.store.AppendTransition(ctx, tr); err != nil {
			return persistErr("append transition", err)
		}
	}
	return nil
}

// commitRunCompletion appends the run's verdict version, advances the
// job's completion counter, and finalizes the job when this was the
// last requested run.
func (m *Manager) commitRunCompletion(ctx context.Context, job store.JobRecord, run store.RunRecord, state *RunState) error {
	verdict := state.Verdict
	if verdict == nil {
		// Fallback discipline guarantees a verdict by synthesis; a nil
		// here means the run skipped verdict_assignment entirely.
		verdict = FallbackVerdict()
	}

	paperLock := m.paperLock(job.PaperID)
	paperLock.Lock()
	defer paperLock.Unlock()

	count, err := m.store.CountVerdicts(ctx, job.PaperID)
	if err != nil {
		return persistErr("count verdicts", err)
	}
	record := store.VerdictRecord{
		PaperID:        job.PaperID,
		JobID:          job.ID,
		RunID:          run.ID,
		Version:        count + 1,
		Method:         verdict.Method,
		Evidence:       verdict.Evidence,
		Novelty:        verdict.Novelty,
		Contribution:   verdict.Contribution,
		Overreach:      verdict.Overreach,
		Recommendation: verdict.Recommend(),
		Provisional:    count+1 < m.cfg.MinFinalReviews,
		Rationale:      verdict.Rationale,
		Limitations:    state.Limitations,
		Violations:     state.Violations,
		CreatedAt:      m.now().UTC(),
	}
	if err := m.store.AppendVerdict(ctx, record); err != nil {
		return persistErr("append verdict", err)
	}

	job.RunsCompleted++
	job.StatusDetail = fmt.Sprintf("run %d completed", run.Seq)
	job.UpdatedAt = m.now().UTC()
	if err := m.commitJob(ctx, job); err != nil {
		return err
	}

	if err := m.appendEvent(ctx, job.ID, EventRunCompleted, "", fmt.Sprintf("run %d, verdict version %d", run.Seq, record.Version)); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.RunFinished("completed")
	}
	m.emitter.Emit(emit.Event{JobID: job.ID, RunID: run.ID, Msg: "run_completed",
		Meta: map[string]interface{}{"verdict_version": record.Version, "degraded": state.Degraded()}})

	// Finalization depends on the paper's verdict count, not the job's
	// completion, so check after every appended version: a multi-run job
	// may cross the threshold on an interior run.
	if _, err := m.agg.MaybeFinalize(ctx, job.PaperID, job.ID); err != nil {
		return err
	}

	if job.RunsCompleted >= job.RunsRequested {
		job, err = m.store.GetJob(ctx, job.ID)
		if err != nil {
			return persistErr("get job", err)
		}
		return m.completeJob(ctx, job)
	}
	return nil
}

// completeJob flips the job to completed and runs the finalization
// check for its paper.
func (m *Manager) completeJob(ctx context.Context, job store.JobRecord) error {
	job.Status = JobStatusCompleted
	job.StatusDetail = fmt.Sprintf("%d runs completed", job.RunsCompleted)
	job.UpdatedAt = m.now().UTC()
	if err := m.commitJob(ctx, job); err != nil {
		return err
	}
	if err := m.appendEvent(ctx, job.ID, EventJobCompleted, "", job.StatusDetail); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.JobFinished("completed")
	}
	m.emitter.Emit(emit.Event{JobID: job.ID, Msg: "job_completed"})

	if _, err := m.agg.MaybeFinalize(ctx, job.PaperID, job.ID); err != nil {
		return err
	}
	return nil
}

// FailRun marks the job's active run as fatally failed. Tolerated
// failures (within RunFailureTolerance) leave the job running so a
// replacement run starts on the next Advance; beyond the tolerance the
// job transitions to error.
func (m *Manager) FailRun(ctx context.Context, jobID, cause string) error {
	lock := m.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return persistErr("get job", err)
	}
	if jobTerminal(job.Status) {
		return ErrNoPendingWork
	}

	runs, err := m.store.ListRuns(ctx, jobID)
	if err != nil {
		return persistErr("list runs", err)
	}
	run := activeRun(runs)
	if run == nil {
		return ErrNoPendingWork
	}

	state, err := UnmarshalState(run.State)
	if err != nil {
		return err
	}
	state.Fail(cause)
	encoded, err := MarshalState(state)
	if err != nil {
		return err
	}

	now := m.now().UTC()
	run.State = encoded
	run.Phase = string(PhaseError)
	run.Status = RunStatusError
	run.Error = cause
	run.UpdatedAt = now
	if err := m.store.UpdateRun(ctx, *run); err != nil {
		return persistErr("update run", err)
	}

	job.RunFailures++
	job.UpdatedAt = now
	if job.RunFailures > m.cfg.RunFailureTolerance {
		job.Status = JobStatusError
		job.StatusDetail = cause
	} else {
		job.StatusDetail = fmt.Sprintf("run %d failed, replacement pending", run.Seq)
	}
	if err := m.commitJob(ctx, job); err != nil {
		return err
	}

	if err := m.appendEvent(ctx, jobID, EventRunFailed, "", cause); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.RunFinished("error")
	}
	if job.Status == JobStatusError {
		if err := m.appendEvent(ctx, jobID, EventJobError, "", cause); err != nil {
			return err
		}
		if m.metrics != nil {
			m.metrics.JobFinished("error")
		}
	}
	m.emitter.Emit(emit.Event{JobID: jobID, RunID: run.ID, Msg: "run_failed",
		Meta: map[string]interface{}{"error": cause}})
	return nil
}

// Cancel stops a job: it lands in error with a cancelled cause in
// StatusDetail, and a cancelled event records the actor and reason.
// The active run, if any, is marked cancelled; its trail stays intact.
// Cancelling a terminal job returns ErrNoPendingWork.
func (m *Manager) Cancel(ctx context.Context, jobID, actor, reason string) error {
	lock := m.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return persistErr("get job", err)
	}
	if jobTerminal(job.Status) {
		return ErrNoPendingWork
	}

	runs, err := m.store.ListRuns(ctx, jobID)
	if err != nil {
		return persistErr("list runs", err)
	}
	now := m.now().UTC()
	if run := activeRun(runs); run != nil {
		run.Status = RunStatusCancelled
		run.UpdatedAt = now
		if err := m.store.UpdateRun(ctx, *run); err != nil {
			return persistErr("update run", err)
		}
	}

	cause := "cancelled"
	if reason != "" {
		cause = "cancelled: " + reason
	}
	job.Status = JobStatusError
	job.StatusDetail = cause
	job.UpdatedAt = now
	if err := m.commitJob(ctx, job); err != nil {
		return err
	}
	if err := m.appendEvent(ctx, jobID, EventCancelled, actor, reason); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.JobFinished("cancelled")
	}
	m.emitter.Emit(emit.Event{JobID: jobID, Msg: "job_cancelled",
		Meta: map[string]interface{}{"actor": actor, "reason": reason}})
	return nil
}

// Status reports the job's current progress.
func (m *Manager) Status(ctx context.Context, jobID string) (JobStatus, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return JobStatus{}, err
		}
		return JobStatus{}, persistErr("get job", err)
	}

	status := JobStatus{
		JobID:         job.ID,
		PaperID:       job.PaperID,
		Status:        job.Status,
		StatusDetail:  job.StatusDetail,
		RunsRequested: job.RunsRequested,
		RunsCompleted: job.RunsCompleted,
		RunFailures:   job.RunFailures,
	}

	runs, err := m.store.ListRuns(ctx, jobID)
	if err != nil {
		return JobStatus{}, persistErr("list runs", err)
	}
	if run := activeRun(runs); run != nil {
		status.Phase = Phase(run.Phase)
	}
	for _, run := range runs {
		if run.Error != "" {
			status.LastError = run.Error
		}
	}
	return status, nil
}

// TrailEntry is one record in a run's merged audit trail: either a
// participant message or a phase transition, ordered by timestamp.
type TrailEntry struct {
	Kind       string // "message" or "transition"
	Timestamp  time.Time
	Message    *store.MessageRecord
	Transition *store.TransitionRecord
}

// Trail returns the run's merged audit trail in timestamp order.
// Messages and transitions carry strictly increasing timestamps within
// a step, so the merge reproduces deliberation order exactly.
func (m *Manager) Trail(ctx context.Context, runID string) ([]TrailEntry, error) {
	msgs, err := m.store.ListMessages(ctx, runID)
	if err != nil {
		return nil, persistErr("list messages", err)
	}
	trs, err := m.store.ListTransitions(ctx, runID)
	if err != nil {
		return nil, persistErr("list transitions", err)
	}

	entries := make([]TrailEntry, 0, len(msgs)+len(trs))
	i, j := 0, 0
	for i < len(msgs) || j < len(trs) {
		takeMsg := j >= len(trs) || (i < len(msgs) && !msgs[i].CreatedAt.After(trs[j].CreatedAt))
		if takeMsg {
			msg := msgs[i]
			entries = append(entries, TrailEntry{Kind: "message", Timestamp: msg.CreatedAt, Message: &msg})
			i++
		} else {
			tr := trs[j]
			entries = append(entries, TrailEntry{Kind: "transition", Timestamp: tr.CreatedAt, Transition: &tr})
			j++
		}
	}
	return entries, nil
}

// Verdicts returns every verdict version recorded for a paper, oldest
// first. Versions are append-only and never rewritten.
func (m *Manager) Verdicts(ctx context.Context, paperID string) ([]store.VerdictRecord, error) {
	verdicts, err := m.store.ListVerdicts(ctx, paperID)
	if err != nil {
		return nil, persistErr("list verdicts", err)
	}
	return verdicts, nil
}

// Review returns the paper's final aggregated review, or
// store.ErrNotFound if the paper has not been finalized.
func (m *Manager) Review(ctx context.Context, paperID string) (store.ReviewRecord, error) {
	return m.store.GetReview(ctx, paperID)
}

// commitJob writes the job record, translating a version conflict into
// the retryable sentinel the driver understands.
func (m *Manager) commitJob(ctx context.Context, job store.JobRecord) error {
	err := m.store.UpdateJob(ctx, job)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrVersionConflict) {
		if m.metrics != nil {
			m.metrics.IncrementAdvanceConflicts()
		}
		return err
	}
	return persistErr("update job", err)
}

func (m *Manager) appendEvent(ctx context.Context, jobID, event, actor, detail string) error {
	return persistErr("append job event", m.store.AppendJobEvent(ctx, store.JobEventRecord{
		JobID:     jobID,
		Event:     event,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: m.now().UTC(),
	}))
}

func (m *Manager) jobLock(jobID string) *sync.Mutex {
	lock, _ := m.locks.LoadOrStore(jobID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (m *Manager) paperLock(paperID string) *sync.Mutex {
	lock, _ := m.paperLocks.LoadOrStore(paperID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func jobTerminal(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusError:
		return true
	}
	return false
}

func activeRun(runs []store.RunRecord) *store.RunRecord {
	for i := range runs {
		if runs[i].Status == RunStatusActive {
			return &runs[i]
		}
	}
	return nil
}
