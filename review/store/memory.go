package store

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory implementation of Store.
//
// Useful for:
//   - Unit tests (no external dependencies)
//   - Single-process deployments where durability is not required
//   - Prototyping before switching to SQLite or MySQL
//
// All data is lost when the process exits. Thread-safe.
type MemStore struct {
	mu sync.RWMutex

	papers  map[string]PaperRecord
	jobs    map[string]JobRecord
	runs    map[string]RunRecord
	reviews map[string]ReviewRecord // paperID -> final review

	messages    map[string][]MessageRecord    // runID -> trail
	transitions map[string][]TransitionRecord // runID -> trail
	jobEvents   map[string][]JobEventRecord   // jobID -> trail
	verdicts    map[string][]VerdictRecord    // paperID -> versions

	nextID int64
}

// NewMemStore creates a new empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		papers:      make(map[string]PaperRecord),
		jobs:        make(map[string]JobRecord),
		runs:        make(map[string]RunRecord),
		reviews:     make(map[string]ReviewRecord),
		messages:    make(map[string][]MessageRecord),
		transitions: make(map[string][]TransitionRecord),
		jobEvents:   make(map[string][]JobEventRecord),
		verdicts:    make(map[string][]VerdictRecord),
	}
}

// allocID assigns the next insertion-order ID. Caller must hold mu.
func (m *MemStore) allocID() int64 {
	m.nextID++
	return m.nextID
}

// CreatePaper stores a new paper (implements Store).
func (m *MemStore) CreatePaper(ctx context.Context, paper PaperRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.papers[paper.ID]; exists {
		return ErrDuplicateID
	}
	m.papers[paper.ID] = paper
	return nil
}

// GetPaper retrieves a paper by ID (implements Store).
func (m *MemStore) GetPaper(ctx context.Context, paperID string) (PaperRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paper, ok := m.papers[paperID]
	if !ok {
		return PaperRecord{}, ErrNotFound
	}
	return paper, nil
}

// CreateJob stores a new review job (implements Store).
func (m *MemStore) CreateJob(ctx context.Context, job JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return ErrDuplicateID
	}
	job.Version = 1
	m.jobs[job.ID] = job
	return nil
}

// GetJob retrieves a job by ID (implements Store).
func (m *MemStore) GetJob(ctx context.Context, jobID string) (JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return JobRecord{}, ErrNotFound
	}
	return job, nil
}

// UpdateJob replaces a job record with optimistic concurrency (implements Store).
func (m *MemStore) UpdateJob(ctx context.Context, job JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.jobs[job.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != job.Version {
		return ErrVersionConflict
	}
	job.Version++
	m.jobs[job.ID] = job
	return nil
}

// ListJobs retrieves all jobs for a paper, oldest first (implements Store).
func (m *MemStore) ListJobs(ctx context.Context, paperID string) ([]JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []JobRecord
	for _, job := range m.jobs {
		if job.PaperID == paperID {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}

// CreateRun stores a new run (implements Store).
func (m *MemStore) CreateRun(ctx context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; exists {
		return ErrDuplicateID
	}
	m.runs[run.ID] = run
	return nil
}

// GetRun retrieves a run by ID (implements Store).
func (m *MemStore) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return RunRecord{}, ErrNotFound
	}
	return run, nil
}

// UpdateRun replaces a run record (implements Store).
func (m *MemStore) UpdateRun(ctx context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; !ok {
		return ErrNotFound
	}
	m.runs[run.ID] = run
	return nil
}

// ListRuns retrieves all runs for a job ordered by Seq (implements Store).
func (m *MemStore) ListRuns(ctx context.Context, jobID string) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var runs []RunRecord
	for _, run := range m.runs {
		if run.JobID == jobID {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Seq < runs[j].Seq })
	return runs, nil
}

// AppendMessages appends participant messages to a run's trail (implements Store).
func (m *MemStore) AppendMessages(ctx context.Context, msgs []MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range msgs {
		msg.ID = m.allocID()
		m.messages[msg.RunID] = append(m.messages[msg.RunID], msg)
	}
	return nil
}

// ListMessages retrieves a run's messages in insertion order (implements Store).
func (m *MemStore) ListMessages(ctx context.Context, runID string) ([]MessageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[runID]
	out := make([]MessageRecord, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AppendTransition appends a phase transition to a run's trail (implements Store).
func (m *MemStore) AppendTransition(ctx context.Context, tr TransitionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr.ID = m.allocID()
	m.transitions[tr.RunID] = append(m.transitions[tr.RunID], tr)
	return nil
}

// ListTransitions retrieves a run's transitions in insertion order (implements Store).
func (m *MemStore) ListTransitions(ctx context.Context, runID string) ([]TransitionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trs := m.transitions[runID]
	out := make([]TransitionRecord, len(trs))
	copy(out, trs)
	return out, nil
}

// AppendJobEvent appends a job lifecycle event (implements Store).
func (m *MemStore) AppendJobEvent(ctx context.Context, ev JobEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = m.allocID()
	m.jobEvents[ev.JobID] = append(m.jobEvents[ev.JobID], ev)
	return nil
}

// ListJobEvents retrieves a job's events in insertion order (implements Store).
func (m *MemStore) ListJobEvents(ctx context.Context, jobID string) ([]JobEventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	evs := m.jobEvents[jobID]
	out := make([]JobEventRecord, len(evs))
	copy(out, evs)
	return out, nil
}

// AppendVerdict appends a verdict version for a paper (implements Store).
func (m *MemStore) AppendVerdict(ctx context.Context, v VerdictRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v.ID = m.allocID()
	v.Limitations = copyStrings(v.Limitations)
	v.Violations = copyStrings(v.Violations)
	m.verdicts[v.PaperID] = append(m.verdicts[v.PaperID], v)
	return nil
}

// ListVerdicts retrieves all verdict versions for a paper (implements Store).
func (m *MemStore) ListVerdicts(ctx context.Context, paperID string) ([]VerdictRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vs := m.verdicts[paperID]
	out := make([]VerdictRecord, len(vs))
	copy(out, vs)
	return out, nil
}

// CountVerdicts returns the number of verdict versions for a paper (implements Store).
func (m *MemStore) CountVerdicts(ctx context.Context, paperID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.verdicts[paperID]), nil
}

// SaveReview stores the final review for a paper (implements Store).
//
// The exists-check and write happen under one lock, so two concurrent
// finalizations cannot both succeed without force.
func (m *MemStore) SaveReview(ctx context.Context, review ReviewRecord, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reviews[review.PaperID]; exists && !force {
		return ErrAlreadyFinalized
	}
	m.reviews[review.PaperID] = review
	return nil
}

// GetReview retrieves the final review for a paper (implements Store).
func (m *MemStore) GetReview(ctx context.Context, paperID string) (ReviewRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	review, ok := m.reviews[paperID]
	if !ok {
		return ReviewRecord{}, ErrNotFound
	}
	return review, nil
}

// Close is a no-op for MemStore (implements Store).
func (m *MemStore) Close() error {
	return nil
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
