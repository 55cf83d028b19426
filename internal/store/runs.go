package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/hostbench/internal/ir"
)

// ErrRunNotFound is returned when a run id has no history row.
var ErrRunNotFound = errors.New("run not found")

// StepHistory is one recorded result of a named step across runs.
type StepHistory struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Result    ir.StepResult `json:"result"`
}

// WriteRun records a verdict and its step results in one transaction.
// Uses ON CONFLICT(run_id) DO NOTHING for idempotency - writing the same run
// twice keeps the first row.
func (s *Store) WriteRun(ctx context.Context, v *ir.HarnessVerdict) error {
	if v == nil || v.RunID == "" {
		return fmt.Errorf("write run: missing run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	var hostExit sql.NullInt64
	if v.HostExit != nil {
		hostExit = sql.NullInt64{Int64: int64(*v.HostExit), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, seq, started_at, duration_ms, host_version, passed, failure_kind, reason, total_steps, exit_code, host_exit)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		v.RunID,
		v.StartedAt.UTC().Format(time.RFC3339Nano),
		v.Duration.Milliseconds(),
		v.HostVersion,
		v.Passed,
		string(v.FailureKind),
		v.Reason,
		v.TotalSteps,
		v.ExitCode(),
		hostExit,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, r := range v.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO step_results (run_id, seq, step_name, outcome, message)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, v.RunID, r.Seq, r.StepName, r.Outcome.Tag(), r.Message)
		if err != nil {
			return fmt.Errorf("write run: step %d: %w", r.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// ReadRuns returns the most recent runs, newest first, without step results.
// A non-positive limit returns every run.
func (s *Store) ReadRuns(ctx context.Context, limit int) ([]ir.HarnessVerdict, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, duration_ms, host_version, passed, failure_kind, reason, total_steps, host_exit
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	defer rows.Close()

	var runs []ir.HarnessVerdict
	for rows.Next() {
		v, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("read runs: %w", err)
		}
		runs = append(runs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run with its step results ordered by seq.
func (s *Store) ReadRun(ctx context.Context, runID string) (ir.HarnessVerdict, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, duration_ms, host_version, passed, failure_kind, reason, total_steps, host_exit
		FROM runs
		WHERE run_id = ?
	`, runID)
	v, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.HarnessVerdict{}, fmt.Errorf("read run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return ir.HarnessVerdict{}, fmt.Errorf("read run %s: %w", runID, err)
	}

	results, err := s.readStepResults(ctx, runID)
	if err != nil {
		return ir.HarnessVerdict{}, fmt.Errorf("read run %s: %w", runID, err)
	}
	v.Results = results
	return v, nil
}

// ReadStepHistory returns the recorded results of every step with the given
// name, newest run first.
func (s *Store) ReadStepHistory(ctx context.Context, stepName string, limit int) ([]StepHistory, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.started_at, sr.seq, sr.step_name, sr.outcome, sr.message
		FROM step_results sr
		JOIN runs r ON r.run_id = sr.run_id
		WHERE sr.step_name = ?
		ORDER BY r.seq DESC, sr.seq ASC
		LIMIT ?
	`, stepName, limit)
	if err != nil {
		return nil, fmt.Errorf("read step history: %w", err)
	}
	defer rows.Close()

	var out []StepHistory
	for rows.Next() {
		var (
			h       StepHistory
			started string
			tag     string
		)
		if err := rows.Scan(&h.RunID, &started, &h.Result.Seq, &h.Result.StepName, &tag, &h.Result.Message); err != nil {
			return nil, fmt.Errorf("read step history: %w", err)
		}
		if h.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("read step history: started_at: %w", err)
		}
		if h.Result.Outcome, err = ir.ParseOutcome(tag); err != nil {
			return nil, fmt.Errorf("read step history: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read step history: %w", err)
	}
	return out, nil
}

func (s *Store) readStepResults(ctx context.Context, runID string) ([]ir.StepResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, step_name, outcome, message
		FROM step_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ir.StepResult
	for rows.Next() {
		var (
			r   ir.StepResult
			tag string
		)
		if err := rows.Scan(&r.Seq, &r.StepName, &tag, &r.Message); err != nil {
			return nil, err
		}
		if r.Outcome, err = ir.ParseOutcome(tag); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (ir.HarnessVerdict, error) {
	var (
		v          ir.HarnessVerdict
		started    string
		durationMS int64
		kind       string
		hostExit   sql.NullInt64
	)
	if err := row.Scan(&v.RunID, &started, &durationMS, &v.HostVersion, &v.Passed, &kind, &v.Reason, &v.TotalSteps, &hostExit); err != nil {
		return ir.HarnessVerdict{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return ir.HarnessVerdict{}, fmt.Errorf("started_at: %w", err)
	}
	v.StartedAt = t
	v.Duration = time.Duration(durationMS) * time.Millisecond
	v.FailureKind = ir.FailureKind(kind)
	if hostExit.Valid {
		code := int(hostExit.Int64)
		v.HostExit = &code
	}
	return v, nil
}
