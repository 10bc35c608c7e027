package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// Designed for:
//   - Production deployments requiring durable review history
//   - Multiple orchestrator workers sharing one database
//   - Compliance archives of deliberation trails
//
// MySQLStore uses connection pooling and transactions. Timestamps are
// stored as RFC3339 text so values round-trip identically across all
// Store implementations.
//
// Schema mirrors SQLiteStore: papers, review_jobs, review_runs,
// agent_messages, phase_transitions, review_job_events,
// verdict_versions, paper_reviews.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a new MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example:
//
//	user:password@tcp(localhost:3306)/scijudge
//
// Never hardcode credentials; read the DSN from the environment:
//
//	dsn := os.Getenv("SCIJUDGE_MYSQL_DSN")
//
// The store automatically creates required tables and configures
// connection pooling.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required database schema if it doesn't exist.
func (m *MySQLStore) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			title TEXT NOT NULL,
			abstract MEDIUMTEXT NOT NULL,
			body MEDIUMTEXT NOT NULL,
			created_at VARCHAR(64) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS review_jobs (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			paper_id VARCHAR(255) NOT NULL,
			runs_requested INT NOT NULL,
			runs_completed INT NOT NULL,
			run_failures INT NOT NULL,
			status VARCHAR(32) NOT NULL,
			status_detail TEXT NOT NULL,
			forced TINYINT NOT NULL DEFAULT 0,
			forced_by VARCHAR(255) NOT NULL DEFAULT '',
			force_reason TEXT NOT NULL,
			version BIGINT NOT NULL,
			created_at VARCHAR(64) NOT NULL,
			updated_at VARCHAR(64) NOT NULL,
			INDEX idx_jobs_paper (paper_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS review_runs (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			job_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			phase VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL,
			state JSON NOT NULL,
			degraded TINYINT NOT NULL DEFAULT 0,
			error TEXT NOT NULL,
			created_at VARCHAR(64) NOT NULL,
			updated_at VARCHAR(64) NOT NULL,
			INDEX idx_runs_job (job_id),
			UNIQUE KEY unique_job_seq (job_id, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS agent_messages (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			phase VARCHAR(64) NOT NULL,
			role VARCHAR(64) NOT NULL,
			content MEDIUMTEXT NOT NULL,
			provider VARCHAR(64) NOT NULL DEFAULT '',
			model VARCHAR(255) NOT NULL DEFAULT '',
			temperature DOUBLE NOT NULL DEFAULT 0,
			max_tokens INT NOT NULL DEFAULT 0,
			tokens_in INT NOT NULL DEFAULT 0,
			tokens_out INT NOT NULL DEFAULT 0,
			flags_violation TINYINT(1) NOT NULL DEFAULT 0,
			created_at VARCHAR(64) NOT NULL,
			INDEX idx_messages_run (run_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS phase_transitions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			from_phase VARCHAR(64) NOT NULL,
			to_phase VARCHAR(64) NOT NULL,
			detail TEXT NOT NULL,
			created_at VARCHAR(64) NOT NULL,
			INDEX idx_transitions_run (run_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS review_job_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			job_id VARCHAR(255) NOT NULL,
			event VARCHAR(64) NOT NULL,
			actor VARCHAR(255) NOT NULL DEFAULT '',
			detail TEXT NOT NULL,
			created_at VARCHAR(64) NOT NULL,
			INDEX idx_job_events_job (job_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS verdict_versions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			paper_id VARCHAR(255) NOT NULL,
			job_id VARCHAR(255) NOT NULL,
			run_id VARCHAR(255) NOT NULL,
			version INT NOT NULL,
			method INT NOT NULL,
			evidence INT NOT NULL,
			novelty INT NOT NULL,
			contribution INT NOT NULL,
			overreach INT NOT NULL,
			recommendation VARCHAR(64) NOT NULL,
			provisional TINYINT NOT NULL DEFAULT 0,
			rationale MEDIUMTEXT NOT NULL,
			limitations JSON NOT NULL,
			violations JSON NOT NULL,
			created_at VARCHAR(64) NOT NULL,
			INDEX idx_verdicts_paper (paper_id),
			UNIQUE KEY unique_paper_version (paper_id, version)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS paper_reviews (
			paper_id VARCHAR(255) NOT NULL PRIMARY KEY,
			job_id VARCHAR(255) NOT NULL,
			recommendation VARCHAR(64) NOT NULL,
			provisional TINYINT NOT NULL DEFAULT 0,
			report MEDIUMTEXT NOT NULL,
			forced TINYINT NOT NULL DEFAULT 0,
			forced_by VARCHAR(255) NOT NULL DEFAULT '',
			created_at VARCHAR(64) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}

	for _, stmt := range statements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

func (m *MySQLStore) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// CreatePaper stores a new paper (implements Store).
func (m *MySQLStore) CreatePaper(ctx context.Context, paper PaperRecord) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	var exists int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM papers WHERE id = ?", paper.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check paper existence: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateID
	}

	_, err := m.db.ExecContext(ctx,
		"INSERT INTO papers (id, title, abstract, body, created_at) VALUES (?, ?, ?, ?, ?)",
		paper.ID, paper.Title, paper.Abstract, paper.Body, encodeTime(paper.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert paper: %w", err)
	}
	return nil
}

// GetPaper retrieves a paper by ID (implements Store).
func (m *MySQLStore) GetPaper(ctx context.Context, paperID string) (PaperRecord, error) {
	if err := m.checkOpen(); err != nil {
		return PaperRecord{}, err
	}

	var p PaperRecord
	var createdAt string
	err := m.db.QueryRowContext(ctx,
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
func (m *MySQLStore) CreateJob(ctx context.Context, job JobRecord) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	var exists int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_jobs WHERE id = ?", job.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateID
	}

	_, err := m.db.ExecContext(ctx, `
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
func (m *MySQLStore) GetJob(ctx context.Context, jobID string) (JobRecord, error) {
	if err := m.checkOpen(); err != nil {
		return JobRecord{}, err
	}

	row := m.db.QueryRowContext(ctx, `
		SELECT id, paper_id, runs_requested, runs_completed, run_failures, status, status_detail,
		       forced, forced_by, force_reason, version, created_at, updated_at
		FROM review_jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

// UpdateJob replaces a job record with optimistic concurrency (implements Store).
func (m *MySQLStore) UpdateJob(ctx context.Context, job JobRecord) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx, `
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
		if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_jobs WHERE id = ?", job.ID).Scan(&exists); err != nil {
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
func (m *MySQLStore) ListJobs(ctx context.Context, paperID string) ([]JobRecord, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
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
func (m *MySQLStore) CreateRun(ctx context.Context, run RunRecord) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	var exists int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_runs WHERE id = ?", run.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check run existence: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateID
	}

	_, err := m.db.ExecContext(ctx, `
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
func (m *MySQLStore) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	if err := m.checkOpen(); err != nil {
		return RunRecord{}, err
	}

	row := m.db.QueryRowContext(ctx, `
		SELECT id, job_id, seq, phase, status, state, degraded, error, created_at, updated_at
		FROM review_runs WHERE id = ?`, runID)
	return scanRun(row)
}

// UpdateRun replaces a run record (implements Store).
func (m *MySQLStore) UpdateRun(ctx context.Context, run RunRecord) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx, `
		UPDATE review_runs SET
			job_id = ?, seq = ?, phase = ?, status = ?, state = ?, degraded = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		run.JobID, run.Seq, run.Phase, run.Status, run.State,
		boolToInt(run.Degraded), run.Error, encodeTime(run.UpdatedAt), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	// MySQL reports 0 affected rows for no-op updates, so verify existence
	// instead of trusting the count.
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_runs WHERE id = ?", run.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check run existence: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// ListRuns retrieves all runs for a job ordered by Seq (implements Store).
func (m *MySQLStore) ListRuns(ctx context.Context, jobID string) ([]RunRecord, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
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
func (m *MySQLStore) AppendMessages(ctx context.Context, msgs []MessageRecord) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
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
func (m *MySQLStore) ListMessages(ctx context.Context, runID string) ([]MessageRecord, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, run_id, phase, role, content, provider, model, temperature, max_tokens,
		       tokens_in, tokens_out, flags_violation, created_at
		FROM agent_messages WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []MessageRecord
	for rows.Next() {
		var msg MessageRecord
		var flags int
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.RunID, &msg.Phase, &msg.Role, &msg.Content,
			&msg.Provider, &msg.Model, &msg.Temperature, &msg.MaxTokens,
			&msg.TokensIn, &msg.TokensOut, &flags, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.FlagsViolation = flags != 0
		if msg.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// AppendTransition appends a phase transition (implements Store).
func (m *MySQLStore) AppendTransition(ctx context.Context, tr TransitionRecord) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO phase_transitions (run_id, from_phase, to_phase, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		tr.RunID, tr.FromPhase, tr.ToPhase, tr.Detail, encodeTime(tr.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return nil
}

// ListTransitions retrieves a run's transitions in insertion order (implements Store).
func (m *MySQLStore) ListTransitions(ctx context.Context, runID string) ([]TransitionRecord, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
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
func (m *MySQLStore) AppendJobEvent(ctx context.Context, ev JobEventRecord) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO review_job_events (job_id, event, actor, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.JobID, ev.Event, ev.Actor, ev.Detail, encodeTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert job event: %w", err)
	}
	return nil
}

// ListJobEvents retrieves a job's events in insertion order (implements Store).
func (m *MySQLStore) ListJobEvents(ctx context.Context, jobID string) ([]JobEventRecord, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
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
func (m *MySQLStore) AppendVerdict(ctx context.Context, v VerdictRecord) error {
	if err := m.checkOpen(); err != nil {
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

	_, err = m.db.ExecContext(ctx, `
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
func (m *MySQLStore) ListVerdicts(ctx context.Context, paperID string) ([]VerdictRecord, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
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
func (m *MySQLStore) CountVerdicts(ctx context.Context, paperID string) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}

	var count int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM verdict_versions WHERE paper_id = ?", paperID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count verdicts: %w", err)
	}
	return count, nil
}

// SaveReview stores the final review for a paper (implements Store).
//
// The exists-check runs inside a transaction with SELECT ... FOR UPDATE
// so two concurrent finalizations cannot both succeed without force.
func (m *MySQLStore) SaveReview(ctx context.Context, review ReviewRecord, force bool) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM paper_reviews WHERE paper_id = ? FOR UPDATE", review.PaperID).Scan(&exists); err != nil {
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
		ON DUPLICATE KEY UPDATE
			job_id = VALUES(job_id),
			recommendation = VALUES(recommendation),
			provisional = VALUES(provisional),
			report = VALUES(report),
			forced = VALUES(forced),
			forced_by = VALUES(forced_by),
			created_at = VALUES(created_at)`,
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
func (m *MySQLStore) GetReview(ctx context.Context, paperID string) (ReviewRecord, error) {
	if err := m.checkOpen(); err != nil {
		return ReviewRecord{}, err
	}

	var r ReviewRecord
	var provisional, forced int
	var createdAt string
	err := m.db.QueryRowContext(ctx, `
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
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore) Ping(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}
