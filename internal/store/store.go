// Package store persists calibration runs to SQLite. It replaces the
// flash-parameter block a standalone controller would use: every
// terminal run is recorded with its parameters, confidences and the raw
// phase results, keyed by a run UUID.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/torqlab/motorcal/internal/calib"
)

// ErrNotFound is returned when a run ID has no row.
var ErrNotFound = errors.New("run not found")

// Run is one persisted calibration run.
type Run struct {
	RunID      string                `json:"run_id"`
	StartedAt  int64                 `json:"started_at"`  // unix nanos
	FinishedAt int64                 `json:"finished_at"` // unix nanos
	Success    bool                  `json:"success"`
	ErrorCode  calib.ErrorCode       `json:"error_code"`
	TotalTime  float64               `json:"total_time"` // seconds
	Parameters calib.MotorParameters `json:"parameters"`
	Confidence calib.Confidence      `json:"confidence"`
	Config     calib.Config          `json:"config"`
	Results    calib.TestResults     `json:"results"`
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at path. Call Migrate
// before first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for the debug SQL console.
func (s *Store) DB() *sql.DB { return s.db }

// RecordRun inserts a completed run. A missing RunID gets a fresh UUID;
// a missing FinishedAt gets the current time.
func (s *Store) RecordRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.FinishedAt == 0 {
		run.FinishedAt = time.Now().UnixNano()
	}

	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO calibration_runs (
			run_id, started_at, finished_at, success, error_code, total_time,
			inertia_j, torque_constant_kt, damping_b,
			friction_coulomb, friction_stribeck, friction_v_stribeck, friction_viscous,
			confidence_overall, confidence_inertia, confidence_friction,
			config_json, results_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.FinishedAt, run.Success, int(run.ErrorCode), run.TotalTime,
		run.Parameters.InertiaJ, run.Parameters.TorqueConstantKt, run.Parameters.DampingB,
		run.Parameters.FrictionCoulomb, run.Parameters.FrictionStribeck,
		run.Parameters.FrictionVStribeck, run.Parameters.FrictionViscous,
		run.Confidence.Overall, run.Confidence.Inertia, run.Confidence.Friction,
		string(configJSON), string(resultsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	return nil
}

const runColumns = `
	run_id, started_at, finished_at, success, error_code, total_time,
	inertia_j, torque_constant_kt, damping_b,
	friction_coulomb, friction_stribeck, friction_v_stribeck, friction_viscous,
	confidence_overall, confidence_inertia, confidence_friction,
	config_json, results_json`

// GetRun loads one run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM calibration_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM calibration_runs
		ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var errorCode int
	var configJSON, resultsJSON string
	err := row.Scan(
		&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Success, &errorCode, &run.TotalTime,
		&run.Parameters.InertiaJ, &run.Parameters.TorqueConstantKt, &run.Parameters.DampingB,
		&run.Parameters.FrictionCoulomb, &run.Parameters.FrictionStribeck,
		&run.Parameters.FrictionVStribeck, &run.Parameters.FrictionViscous,
		&run.Confidence.Overall, &run.Confidence.Inertia, &run.Confidence.Friction,
		&configJSON, &resultsJSON,
	)
	if err != nil {
		return nil, err
	}
	run.ErrorCode = calib.ErrorCode(errorCode)
	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config for %s: %w", run.RunID, err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &run.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results for %s: %w", run.RunID, err)
	}
	return &run, nil
}
