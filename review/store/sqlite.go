package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It persists review history in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments
//   - Local review archives that must survive restarts
//
// SQLiteStore uses WAL mode for concurrent reads and transactional
// writes for the append-only trails.
//
// Schema:
//   - papers: Submitted papers
//   - review_jobs: Job lifecycle and counters
//   - review_runs: Debate runs with serialized deliberation state
//   - agent_messages: Participant utterances (append-only)
//   - phase_transitions: Phase transitions (append-only)
//   - review_job_events: Job lifecycle events (append-only)
//   - verdict_versions: Versioned verdicts (append-only)
//   - paper_reviews: Final aggregated review per paper
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a new SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./reviews.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// The store automatically creates required tables, enables WAL mode,
// and sets a busy timeout so concurrent writers wait instead of failing.
//
// Example:
//
//	st, err := store.NewSQLiteStore("./reviews.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required database schema if it doesn't exist.
func (s *SQLiteStore) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT NOT NULL PRIMARY KEY,
			title TEXT NOT NULL,
			abstract TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS review_jobs (
			id TEXT NOT NULL PRIMARY KEY,
			paper_id TEXT NOT NULL,
			runs_requested INTEGER NOT NULL,
			runs_completed INTEGER NOT NULL,
			run_failures INTEGER NOT NULL,
			status TEXT NOT NULL,
			status_detail TEXT NOT NULL DEFAULT '',
			forced INTEGER NOT NULL DEFAULT 0,
			forced_by TEXT NOT NULL DEFAULT '',
			force_reason TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_paper ON review_jobs(paper_id)`,
		`CREATE TABLE IF NOT EXISTS review_runs (
			id TEXT NOT NULL PRIMARY KEY,
			job_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			phase TEXT NOT NULL,
			status TEXT NOT NULL,
			state TEXT NOT NULL,
			degraded INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(job_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_job ON review_runs(job_id)`,
		`CREATE TABLE IF NOT EXISTS agent_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			temperature REAL NOT NULL DEFAULT 0,
			max_tokens INTEGER NOT NULL DEFAULT 0,
			tokens_in INTEGER NOT NULL DEFAULT 0,
			tokens_out INTEGER NOT NULL DEFAULT 0,
			flags_violation INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_run ON agent_messages(run_id)`,
		`CREATE TABLE IF NOT EXISTS phase_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			from_phase TEXT NOT NULL,
			to_phase TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_run ON phase_transitions(run_id)`,
		`CREATE TABLE IF NOT EXISTS review_job_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			event TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_events_job ON review_job_events(job_id)`,
		`CREATE TABLE IF NOT EXISTS verdict_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			paper_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			method INTEGER NOT NULL,
			evidence INTEGER NOT NULL,
			novelty INTEGER NOT NULL,
			contribution INTEGER NOT NULL,
			overreach INTEGER NOT NULL,
			recommendation TEXT NOT NULL,
			provisional INTEGER NOT NULL DEFAULT 0,
			rationale TEXT NOT NULL,
			limitations TEXT NOT NULL,
			violations TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(paper_id, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_paper ON verdict_versions(paper_id)`,
		`CREATE TABLE IF NOT EXISTS paper_reviews (
			paper_id TEXT NOT NULL PRIMARY KEY,
			job_id TEXT NOT NULL,
			recommendation TEXT NOT NULL,
			provisional INTEGER NOT NULL DEFAULT 0,
			report TEXT NOT NULL,
			forced INTEGER NOT NULL DEFAULT 0,
			forced_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

// CreatePaper stores a new paper (implements Store).
func (s *SQLiteStore) CreatePaper(ctx context.Context, paper PaperRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM papers WHERE id = ?", paper.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check paper existence: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateID
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO papers (id, title, abstract, body, created_at) VALUES (?, ?, ?, ?, ?)",
		paper.ID, paper.Title, paper.Abstract, paper.Body, encodeTime(paper.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert paper: %w", err)
	}
	return nil
}

// GetPaper retrieves a paper by ID (implements Store).
func (s *SQLiteStore) GetPaper(ctx context.Context, paperID string) (PaperRecord, error) {
	if err := s.checkOpen(); err != nil {
		return PaperRecord{}, err
	}

	var p PaperRecord
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, abstract, body, created_at FROM papers WHERE id = ?", paperID).
		Scan(&p.ID, &p.Title, &p.Abstract, &p.Body, &createdAt)
	if err == sql.ErrNoRows {
		return PaperRecord{}, ErrNotFound
	}
	if err != nil {
		return PaperRecord{}, fmt.Errorf("failed to load paper: %w", err)
	}
	if p.CreatedAt, err = decodeTime(createdAt); err != nil {
		return PaperRecord{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return p, nil
}

// CreateJob stores a new review job (implements Store).
func (s *SQLiteStore) CreateJob(ctx context.Context, job JobRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_jobs WHERE id = ?", job.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_jobs
		(id, paper_id, runs_requested, runs_completed, run_failures, status, status_detail,
		 forced, forced_by, force_reason, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		job.ID, job.PaperID, job.RunsRequested, job.RunsCompleted, job.RunFailures,
		job.Status, job.StatusDetail, boolToInt(job.Forced), job.ForcedBy, job.ForceReason,
		encodeTime(job.CreatedAt), encodeTime(job.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID (implements Store).
func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (JobRecord, error) {
	if err := s.checkOpen(); err != nil {
		return JobRecord{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, paper_id, runs_requested, runs_completed, run_failures, status, status_detail,
		       forced, forced_by, force_reason, version, created_at, updated_at
		FROM review_jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (JobRecord, error) {
	var j JobRecord
	var forced int
	var createdAt, updatedAt string
	err := row.Scan(&j.ID, &j.PaperID, &j.RunsRequested, &j.RunsCompleted, &j.RunFailures,
		&j.Status, &j.StatusDetail, &forced, &j.ForcedBy, &j.ForceReason, &j.Version,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return JobRecord{}, ErrNotFound
	}
	if err != nil {
		return JobRecord{}, fmt.Errorf("failed to load job: %w", err)
	}
	j.Forced = forced != 0
	if j.CreatedAt, err = decodeTime(createdAt); err != nil {
		return JobRecord{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if j.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return JobRecord{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return j, nil
}

// UpdateJob replaces a job record with optimistic concurrency (implements Store).
//
// The UPDATE is guarded by the version column; zero rows affected means
// either the job is gone (ErrNotFound) or another writer won the race
// (ErrVersionConflict).
func (s *SQLiteStore) UpdateJob(ctx context.Context, job JobRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE review_jobs SET
			paper_id = ?, runs_requested = ?, runs_completed = ?, run_failures = ?,
			status = ?, status_detail = ?, forced = ?, forced_by = ?, force_reason = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		job.PaperID, job.RunsRequested, job.RunsCompleted, job.RunFailures,
		job.Status, job.StatusDetail, boolToInt(job.Forced), job.ForcedBy, job.ForceReason,
		encodeTime(job.UpdatedAt), job.ID, job.Version)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_jobs WHERE id = ?", job.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check job existence: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// ListJobs retrieves all jobs for a paper, oldest first (implements Store).
func (s *SQLiteStore) ListJobs(ctx context.Context, paperID string) ([]JobRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, paper_id, runs_requested, runs_completed, run_failures, status, status_detail,
		       forced, forced_by, force_reason, version, created_at, updated_at
		FROM review_jobs WHERE paper_id = ? ORDER BY created_at ASC, id ASC`, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CreateRun stores a new run (implements Store).
func (s *SQLiteStore) CreateRun(ctx context.Context, run RunRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_runs WHERE id = ?", run.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check run existence: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_runs (id, job_id, seq, phase, status, state, degraded, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.JobID, run.Seq, run.Phase, run.Status, run.State,
		boolToInt(run.Degraded), run.Error, encodeTime(run.CreatedAt), encodeTime(run.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID (implements Store).
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	if err := s.checkOpen(); err != nil {
		return RunRecord{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, seq, phase, status, state, degraded, error, created_at, updated_at
		FROM review_runs WHERE id = ?`, runID)
	return scanRun(row)
}

func scanRun(row rowScanner) (RunRecord, error) {
	var r RunRecord
	var degraded int
	var createdAt, updatedAt string
	err := row.Scan(&r.ID, &r.JobID, &r.Seq, &r.Phase, &r.Status, &r.State,
		&degraded, &r.Error, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to load run: %w", err)
	}
	r.Degraded = degraded != 0
	if r.CreatedAt, err = decodeTime(createdAt); err != nil {
		return RunRecord{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if r.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return RunRecord{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return r, nil
}

// UpdateRun replaces a run record (implements Store).
func (s *SQLiteStore) UpdateRun(ctx context.Context, run RunRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE review_runs SET
			job_id = ?, seq = ?, phase = ?, status = ?, state = ?, degraded = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		run.JobID, run.Seq, run.Phase, run.Status, run.State,
		boolToInt(run.Degraded), run.Error, encodeTime(run.UpdatedAt), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRuns retrieves all runs for a job ordered by Seq (implements Store).
func (s *SQLiteStore) ListRuns(ctx context.Context, jobID string) ([]RunRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, seq, phase, status, state, degraded, error, created_at, updated_at
		FROM review_runs WHERE job_id = ? ORDER BY seq ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// AppendMessages appends participant messages in one transaction (implements Store).
func (s *SQLiteStore) AppendMessages(ctx context.Context, msgs []MessageRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, msg := range msgs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agent_messages (run_id, phase, role, content, provider, model,
				temperature, max_tokens, tokens_in, tokens_out, flags_violation, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.RunID, msg.Phase, msg.Role, msg.Content, msg.Provider, msg.Model,
			msg.Temperature, msg.MaxTokens, msg.TokensIn, msg.TokensOut,
			boolToInt(msg.FlagsViolation), encodeTime(msg.CreatedAt))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// ListMessages retrieves a run's messages in insertion order (implements Store).
func (s *SQLiteStore) ListMessages(ctx context.Context, runID string) ([]MessageRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, phase, role, content, provider, model, temperature, max_tokens,
		       tokens_in, tokens_out, flags_violation, created_at
		FROM agent_messages WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []MessageRecord
	for rows.Next() {
		var m MessageRecord
		var flags int
		var createdAt string
		if err := rows.Scan(&m.ID, &m.RunID, &m.Phase, &m.Role, &m.Content,
			&m.Provider, &m.Model, &m.Temperature, &m.MaxTokens,
			&m.TokensIn, &m.TokensOut, &flags, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.FlagsViolation = flags != 0
		if m.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// AppendTransition appends a phase transition (implements Store).
func (s *SQLiteStore) AppendTransition(ctx context.Context, tr TransitionRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO phase_transitions (run_id, from_phase, to_phase, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		tr.RunID, tr.FromPhase, tr.ToPhase, tr.Detail, encodeTime(tr.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return nil
}

// ListTransitions retrieves a run's transitions in insertion order (implements Store).
func (s *SQLiteStore) ListTransitions(ctx context.Context, runID string) ([]TransitionRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, from_phase, to_phase, detail, created_at
		FROM phase_transitions WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var trs []TransitionRecord
	for rows.Next() {
		var tr TransitionRecord
		var createdAt string
		if err := rows.Scan(&tr.ID, &tr.RunID, &tr.FromPhase, &tr.ToPhase, &tr.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		if tr.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		trs = append(trs, tr)
	}
	return trs, rows.Err()
}

// AppendJobEvent appends a job lifecycle event (implements Store).
func (s *SQLiteStore) AppendJobEvent(ctx context.Context, ev JobEventRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_job_events (job_id, event, actor, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.JobID, ev.Event, ev.Actor, ev.Detail, encodeTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert job event: %w", err)
	}
	return nil
}

// ListJobEvents retrieves a job's events in insertion order (implements Store).
func (s *SQLiteStore) ListJobEvents(ctx context.Context, jobID string) ([]JobEventRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, event, actor, detail, created_at
		FROM review_job_events WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var evs []JobEventRecord
	for rows.Next() {
		var ev JobEventRecord
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.JobID, &ev.Event, &ev.Actor, &ev.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}
		if ev.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// AppendVerdict appends a verdict version for a paper (implements Store).
func (s *SQLiteStore) AppendVerdict(ctx context.Context, v VerdictRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	limitationsJSON, err := json.Marshal(v.Limitations)
	if err != nil {
		return fmt.Errorf("failed to marshal limitations: %w", err)
	}
	violationsJSON, err := json.Marshal(v.Violations)
	if err != nil {
		return fmt.Errorf("failed to marshal violations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verdict_versions
		(paper_id, job_id, run_id, version, method, evidence, novelty, contribution, overreach,
		 recommendation, provisional, rationale, limitations, violations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.PaperID, v.JobID, v.RunID, v.Version, v.Method, v.Evidence, v.Novelty, v.Contribution,
		v.Overreach, v.Recommendation, boolToInt(v.Provisional), v.Rationale,
		string(limitationsJSON), string(violationsJSON), encodeTime(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert verdict: %w", err)
	}
	return nil
}

// ListVerdicts retrieves all verdict versions for a paper (implements Store).
func (s *SQLiteStore) ListVerdicts(ctx context.Context, paperID string) ([]VerdictRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, paper_id, job_id, run_id, version, method, evidence, novelty, contribution,
		       overreach, recommendation, provisional, rationale, limitations, violations, created_at
		FROM verdict_versions WHERE paper_id = ? ORDER BY id ASC`, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var verdicts []VerdictRecord
	for rows.Next() {
		var v VerdictRecord
		var provisional int
		var limitationsJSON, violationsJSON, createdAt string
		if err := rows.Scan(&v.ID, &v.PaperID, &v.JobID, &v.RunID, &v.Version,
			&v.Method, &v.Evidence, &v.Novelty, &v.Contribution, &v.Overreach,
			&v.Recommendation, &provisional, &v.Rationale,
			&limitationsJSON, &violationsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		v.Provisional = provisional != 0
		if err := json.Unmarshal([]byte(limitationsJSON), &v.Limitations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal limitations: %w", err)
		}
		if err := json.Unmarshal([]byte(violationsJSON), &v.Violations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal violations: %w", err)
		}
		if v.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// CountVerdicts returns the number of verdict versions for a paper (implements Store).
func (s *SQLiteStore) CountVerdicts(ctx context.Context, paperID string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM verdict_versions WHERE paper_id = ?", paperID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count verdicts: %w", err)
	}
	return count, nil
}

// SaveReview stores the final review for a paper (implements Store).
//
// The exists-check and write run in one transaction so two concurrent
// finalizations cannot both succeed without force.
func (s *SQLiteStore) SaveReview(ctx context.Context, review ReviewRecord, force bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM paper_reviews WHERE paper_id = ?", review.PaperID).Scan(&exists); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to check review existence: %w", err)
	}
	if exists > 0 && !force {
		_ = tx.Rollback()
		return ErrAlreadyFinalized
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO paper_reviews (paper_id, job_id, recommendation, provisional, report, forced, forced_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(paper_id) DO UPDATE SET
			job_id = excluded.job_id,
			recommendation = excluded.recommendation,
			provisional = excluded.provisional,
			report = excluded.report,
			forced = excluded.forced,
			forced_by = excluded.forced_by,
			created_at = excluded.created_at`,
		review.PaperID, review.JobID, review.Recommendation, boolToInt(review.Provisional),
		review.Report, boolToInt(review.Forced), review.ForcedBy, encodeTime(review.CreatedAt))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to save review: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	return nil
}

// GetReview retrieves the final review for a paper (implements Store).
func (s *SQLiteStore) GetReview(ctx context.Context, paperID string) (ReviewRecord, error) {
	if err := s.checkOpen(); err != nil {
		return ReviewRecord{}, err
	}

	var r ReviewRecord
	var provisional, forced int
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT paper_id, job_id, recommendation, provisional, report, forced, forced_by, created_at
		FROM paper_reviews WHERE paper_id = ?`, paperID).
		Scan(&r.PaperID, &r.JobID, &r.Recommendation, &provisional, &r.Report, &forced, &r.ForcedBy, &createdAt)
	if err == sql.ErrNoRows {
		return ReviewRecord{}, ErrNotFound
	}
	if err != nil {
		return ReviewRecord{}, fmt.Errorf("failed to load review: %w", err)
	}
	r.Provisional = provisional != 0
	r.Forced = forced != 0
	if r.CreatedAt, err = decodeTime(createdAt); err != nil {
		return ReviewRecord{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return r, nil
}

// Close closes the database connection (implements Store).
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
