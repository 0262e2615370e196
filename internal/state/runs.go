package state

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a comparison run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded comparison invocation.
type Run struct {
	ID            string
	Model         string
	OldRef        string
	NewRef        string
	Status        RunStatus
	SchemaChanges int
	StatDeltas    int
	Impacts       int
	Diagnostics   int
	Error         string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// RunCounts summarizes what a completed run produced.
type RunCounts struct {
	SchemaChanges int
	StatDeltas    int
	Impacts       int
	Diagnostics   int
}

// CreateRun records the start of a comparison run and returns it.
func (s *Store) CreateRun(model, oldRef, newRef string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        uuid.New().String(),
		Model:     model,
		OldRef:    oldRef,
		NewRef:    newRef,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("model", model))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, model, old_ref, new_ref, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model, run.OldRef, run.NewRef, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as completed (or failed) and stores its result
// counts.
func (s *Store) CompleteRun(id string, status RunStatus, counts RunCounts, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorVal any
	if errMsg != "" {
		errorVal = errMsg
	}

	_, err := s.db.Exec(
		`UPDATE runs
		 SET status = ?, schema_changes = ?, stat_deltas = ?, impacts = ?, diagnostics = ?, error = ?, completed_at = ?
		 WHERE id = ?`,
		string(status), counts.SchemaChanges, counts.StatDeltas, counts.Impacts, counts.Diagnostics, errorVal, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A model filter of ""
// returns runs for all models.
func (s *Store) ListRuns(model string, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, model, old_ref, new_ref, status, schema_changes, stat_deltas, impacts, diagnostics,
	                 COALESCE(error, ''), started_at, completed_at
	          FROM runs`
	args := []any{}
	if model != "" {
		query += ` WHERE model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// GetRun retrieves one run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, model, old_ref, new_ref, status, schema_changes, stat_deltas, impacts, diagnostics,
		        COALESCE(error, ''), started_at, completed_at
		 FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return scanRun(rows)
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var run Run
	var status string
	var completed sql.NullTime
	if err := rows.Scan(
		&run.ID, &run.Model, &run.OldRef, &run.NewRef, &status,
		&run.SchemaChanges, &run.StatDeltas, &run.Impacts, &run.Diagnostics,
		&run.Error, &run.StartedAt, &completed,
	); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = RunStatus(status)
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return &run, nil
}
