package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nugget/pulse/internal/database"
)

// Store persists run records on the shared database.
type Store struct {
	db *sql.DB
}

// NewStore creates the job_runs schema on db if needed.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate scheduler schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS job_runs (
		id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		error TEXT,
		counts TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_job_runs_job ON job_runs(job, started_at);
	CREATE INDEX IF NOT EXISTS idx_job_runs_status ON job_runs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateRun records a new run.
func (s *Store) CreateRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = database.NewID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_runs (id, job, triggered_by, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Job, r.Trigger, r.Status, database.FormatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, r *Run) error {
	var finished *string
	if r.FinishedAt != nil {
		f := database.FormatTime(*r.FinishedAt)
		finished = &f
	}
	var counts *string
	if len(r.Counts) > 0 {
		b, err := json.Marshal(r.Counts)
		if err != nil {
			return fmt.Errorf("marshal counts: %w", err)
		}
		c := string(b)
		counts = &c
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE job_runs SET status = ?, finished_at = ?, error = ?, counts = ?
		WHERE id = ?
	`, r.Status, finished, nullString(r.Error), counts, r.ID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the newest runs of job, or of every job when job is
// empty.
func (s *Store) ListRuns(ctx context.Context, job string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, job, triggered_by, status, started_at, finished_at, error, counts FROM job_runs`
	args := []any{}
	if job != "" {
		query += ` WHERE job = ?`
		args = append(args, job)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var started string
		var finished, errText, counts sql.NullString
		if err := rows.Scan(&r.ID, &r.Job, &r.Trigger, &r.Status, &started, &finished, &errText, &counts); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = database.ParseTime(started)
		r.FinishedAt = database.NullTime(finished)
		r.Error = errText.String
		if counts.Valid && counts.String != "" {
			if err := json.Unmarshal([]byte(counts.String), &r.Counts); err != nil {
				return nil, fmt.Errorf("unmarshal counts for run %s: %w", r.ID, err)
			}
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// MarkInterrupted closes out runs left running by a previous process.
func (s *Store) MarkInterrupted(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_runs SET status = ?, finished_at = ?, error = 'interrupted by restart'
		WHERE status = ?
	`, StatusSkipped, database.FormatTime(at), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes runs that started before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_runs WHERE started_at < ?`, database.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
