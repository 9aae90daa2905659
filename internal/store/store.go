// Package store persists run history in a local SQLite database so past
// benchmark runs can be listed and compared without keeping result files
// around.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentbench/agenteval/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	benchmark    TEXT NOT NULL,
	adapter      TEXT NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	duration_ms  INTEGER NOT NULL,
	total_tasks  INTEGER NOT NULL,
	succeeded    INTEGER NOT NULL,
	failed       INTEGER NOT NULL,
	timed_out    INTEGER NOT NULL,
	errors       INTEGER NOT NULL,
	success_rate REAL NOT NULL,
	total_tokens INTEGER NOT NULL,
	total_cost   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_benchmark ON runs(benchmark, started_at);
`

// RunRecord is one row of run history.
type RunRecord struct {
	RunID       string
	Benchmark   string
	Adapter     string
	StartedAt   time.Time
	DurationMs  int64
	TotalTasks  int
	Succeeded   int
	Failed      int
	TimedOut    int
	Errors      int
	SuccessRate float64
	TotalTokens int
	TotalCost   float64
}

// Store is a handle to the history database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records one finished evaluation.
func (s *Store) SaveRun(eval *models.EvaluationResult) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (
			id, benchmark, adapter, started_at, duration_ms,
			total_tasks, succeeded, failed, timed_out, errors,
			success_rate, total_tokens, total_cost
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		eval.RunID,
		eval.BenchmarkName,
		eval.AdapterName,
		eval.StartedAt,
		eval.DurationMs,
		eval.Summary.TotalTasks,
		eval.Summary.Succeeded,
		eval.Summary.Failed,
		eval.Summary.TimedOut,
		eval.Summary.Errors,
		eval.Summary.SuccessRate,
		eval.TotalUsage.Total(),
		eval.TotalCost,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", eval.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A benchmark name
// narrows the listing; limit <= 0 means no limit.
func (s *Store) ListRuns(benchmark string, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, benchmark, adapter, started_at, duration_ms,
		       total_tasks, succeeded, failed, timed_out, errors,
		       success_rate, total_tokens, total_cost
		FROM runs`
	var args []any
	if benchmark != "" {
		query += " WHERE benchmark = ?"
		args = append(args, benchmark)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.RunID, &r.Benchmark, &r.Adapter, &r.StartedAt, &r.DurationMs,
			&r.TotalTasks, &r.Succeeded, &r.Failed, &r.TimedOut, &r.Errors,
			&r.SuccessRate, &r.TotalTokens, &r.TotalCost,
		); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetRun returns a single run by id.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, benchmark, adapter, started_at, duration_ms,
		       total_tasks, succeeded, failed, timed_out, errors,
		       success_rate, total_tokens, total_cost
		FROM runs WHERE id = ?`, runID)

	var r RunRecord
	err := row.Scan(
		&r.RunID, &r.Benchmark, &r.Adapter, &r.StartedAt, &r.DurationMs,
		&r.TotalTasks, &r.Succeeded, &r.Failed, &r.TimedOut, &r.Errors,
		&r.SuccessRate, &r.TotalTokens, &r.TotalCost,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("loading run %s: %w", runID, err)
	}
	return r, nil
}
