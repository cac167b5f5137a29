package main

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/torqlab/motorcal/internal/calib"
	"github.com/torqlab/motorcal/internal/monitoring"
	"github.com/torqlab/motorcal/internal/store"
	"github.com/torqlab/motorcal/internal/timeutil"
)

var (
	errRunInFlight = errors.New("a calibration run is already in flight")
	errNoTelemetry = errors.New("no telemetry received yet")
)

// session serializes access to the calibration manager between the tick
// loop and the HTTP handlers, and records each run to the store once it
// reaches a terminal state. Managers are single-use, so every Start gets
// a fresh one; the previous run's outcome stays queryable until the next
// Start.
type session struct {
	mu    sync.Mutex
	clock timeutil.Clock
	store *store.Store

	mgr        *calib.Manager
	runID      string
	startedAt  int64
	recorded   bool
	lastSample calib.Sample
	haveSample bool
}

func newSession(clock timeutil.Clock, st *store.Store) *session {
	return &session{clock: clock, store: st}
}

// Start begins a new run, homing at the most recent sample. Fails with
// CodeInvalidState while a run is in flight or before any telemetry has
// arrived.
func (s *session) Start(cfg calib.Config) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mgr != nil && !s.mgr.IsComplete() {
		return "", &calib.CodedError{Code: calib.CodeInvalidState, Err: errRunInFlight}
	}
	if !s.haveSample {
		return "", &calib.CodedError{Code: calib.CodeInvalidState, Err: errNoTelemetry}
	}

	mgr := calib.NewManager()
	if err := mgr.Start(cfg, s.lastSample.Position, s.lastSample.Timestamp); err != nil {
		return "", err
	}

	s.mgr = mgr
	s.runID = uuid.New().String()
	s.startedAt = s.clock.Now().UnixNano()
	s.recorded = false
	return s.runID, nil
}

// Stop aborts the run in flight, if any.
func (s *session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr != nil {
		s.mgr.Stop()
	}
}

// Update feeds one telemetry sample through the manager and returns the
// actuator command for this tick. Terminal transitions are persisted
// exactly once.
func (s *session) Update(sample calib.Sample) calib.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSample = sample
	s.haveSample = true

	if s.mgr == nil {
		return calib.Command{}
	}

	cmd, done := s.mgr.Update(sample)
	if done && !s.recorded {
		s.recorded = true
		s.persistLocked(sample.Timestamp)
	}
	return cmd
}

func (s *session) persistLocked(now float64) {
	if s.store == nil {
		return
	}
	res := s.mgr.Result(now)
	run := &store.Run{
		RunID:      s.runID,
		StartedAt:  s.startedAt,
		FinishedAt: s.clock.Now().UnixNano(),
		Success:    res.Success,
		ErrorCode:  res.ErrorCode,
		TotalTime:  res.TotalTime,
		Parameters: res.Parameters,
		Confidence: res.Confidence,
		Config:     s.mgr.Config(),
		Results:    s.mgr.Results(),
	}
	if err := s.store.RecordRun(run); err != nil {
		monitoring.Logf("failed to record run %s: %v", s.runID, err)
		return
	}
	monitoring.Logf("recorded run %s (success=%v code=%s)", run.RunID, run.Success, run.ErrorCode)
}

// Status returns the live telemetry snapshot plus the current run ID.
func (s *session) Status() (calib.Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mgr == nil {
		st := calib.Status{Stage: calib.StageIdle}
		if s.haveSample {
			st.Position = s.lastSample.Position
			st.Velocity = s.lastSample.Velocity
			st.CurrentIQ = s.lastSample.CurrentIQ
		}
		return st, ""
	}
	return s.mgr.Status(s.lastSample.Timestamp), s.runID
}

// Result returns the terminal result of the current run. ok is false
// while no run has finished.
func (s *session) Result() (calib.Result, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mgr == nil || !s.mgr.IsComplete() {
		return calib.Result{}, "", false
	}
	return s.mgr.Result(s.lastSample.Timestamp), s.runID, true
}
