package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// AnalysisRun records one batch invocation of the pipeline.
type AnalysisRun struct {
	RunID         string          `json:"run_id"`
	Status        string          `json:"status"`
	ParamsJSON    json.RawMessage `json:"params_json,omitempty"`
	Frames        int             `json:"frames"`
	Built         int             `json:"built"`
	Cached        int             `json:"cached"`
	Skipped       int             `json:"skipped"`
	ReconWarnings int             `json:"recon_warnings"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	StartedAt     int64           `json:"started_at"`
	FinishedAt    int64           `json:"finished_at,omitempty"`
}

// RunStore provides persistence for analysis runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db.DB}
}

// Start persists a new running analysis. If RunID is empty, a UUID is generated.
func (s *RunStore) Start(ctx context.Context, run *AnalysisRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	run.Status = RunRunning

	var params interface{}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO analysis_runs (run_id, status, params_json, frames, started_at)
			VALUES (?, ?, ?, ?, ?)`,
			run.RunID, run.Status, params, run.Frames, run.StartedAt,
		)
		return err
	})
}

// Finish records the final counts and status of a run. A non-nil runErr
// marks the run failed.
func (s *RunStore) Finish(ctx context.Context, run *AnalysisRun, runErr error) error {
	run.Status = RunCompleted
	run.ErrorMessage = ""
	if runErr != nil {
		run.Status = RunFailed
		run.ErrorMessage = runErr.Error()
	}
	run.FinishedAt = time.Now().UnixNano()

	var msg interface{}
	if run.ErrorMessage != "" {
		msg = run.ErrorMessage
	}

	return retryOnBusy(func() error {
		result, err := s.db.ExecContext(ctx, `
			UPDATE analysis_runs SET
				status = ?, built = ?, cached = ?, skipped = ?, recon_warnings = ?,
				error_message = ?, finished_at = ?
			WHERE run_id = ?`,
			run.Status, run.Built, run.Cached, run.Skipped, run.ReconWarnings,
			msg, run.FinishedAt, run.RunID,
		)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("run %s: %w", run.RunID, ErrNotFound)
		}
		return nil
	})
}

const runColumns = `run_id, status, params_json, frames, built, cached, skipped,
	recon_warnings, error_message, started_at, finished_at`

// Get returns a single run by ID.
func (s *RunStore) Get(ctx context.Context, runID string) (*AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(ctx context.Context, limit int) ([]*AnalysisRun, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM analysis_runs
		ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*AnalysisRun, error) {
	var run AnalysisRun
	var params, msg sql.NullString
	var finished sql.NullInt64
	err := row.Scan(
		&run.RunID, &run.Status, &params, &run.Frames, &run.Built, &run.Cached, &run.Skipped,
		&run.ReconWarnings, &msg, &run.StartedAt, &finished,
	)
	if err != nil {
		return nil, err
	}
	if params.Valid {
		run.ParamsJSON = json.RawMessage(params.String)
	}
	run.ErrorMessage = msg.String
	run.FinishedAt = finished.Int64
	return &run, nil
}
