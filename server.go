package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/torqlab/motorcal/internal/calib"
	"github.com/torqlab/motorcal/internal/report"
	"github.com/torqlab/motorcal/internal/store"
	"github.com/torqlab/motorcal/internal/units"
	"github.com/torqlab/motorcal/internal/version"
)

// Server exposes the calibration API: run control, live status, the run
// history and rendered reports.
type Server struct {
	session *session
	store   *store.Store
	units   string
}

func NewServer(sess *session, st *store.Store, defaultUnits string) *Server {
	if !units.IsValid(defaultUnits) {
		defaultUnits = units.RadPerSec
	}
	return &Server{session: sess, store: st, units: defaultUnits}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/calibration/start", s.handleStart)
	mux.HandleFunc("/calibration/stop", s.handleStop)
	mux.HandleFunc("/calibration/status", s.handleStatus)
	mux.HandleFunc("/calibration/result", s.handleResult)
	mux.HandleFunc("/runs", s.handleListRuns)
	mux.HandleFunc("/runs/", s.handleGetRun)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/report/", s.handleReport)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing useful left to do.
		return
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var cfg calib.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid config: %v", err))
		return
	}

	runID, err := s.session.Start(cfg)
	if err != nil {
		status := http.StatusInternalServerError
		if calib.ErrorCodeOf(err) == calib.CodeInvalidState {
			status = http.StatusConflict
		}
		s.writeJSONError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	s.session.Stop()
	w.WriteHeader(http.StatusNoContent)
}

// statusResponse is the status snapshot with velocity converted to the
// requested display units.
type statusResponse struct {
	RunID string `json:"run_id,omitempty"`
	calib.Status
	Units string `json:"units"`
}

func (s *Server) statusSnapshot(r *http.Request) (statusResponse, error) {
	u := s.units
	if q := r.URL.Query().Get("units"); q != "" {
		if !units.IsValid(q) {
			return statusResponse{}, fmt.Errorf("invalid units %q, must be one of: %s", q, units.GetValidUnitsString())
		}
		u = q
	}

	st, runID := s.session.Status()
	st.Velocity = units.ConvertAngularVelocity(st.Velocity, u)
	st.Position = units.ConvertAngle(st.Position, u)
	return statusResponse{RunID: runID, Status: st, Units: u}, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.statusSnapshot(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, runID, ok := s.session.Result()
	if !ok {
		s.writeJSONError(w, http.StatusConflict, "no finished run")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"result": res,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}
	runID := r.URL.Path[len("/runs/"):]
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "run ID required")
		return
	}
	run, err := s.store.GetRun(runID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load run: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleEvents streams status snapshots as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			resp, err := s.statusSnapshot(r)
			if err != nil {
				return
			}
			payload, err := json.Marshal(resp)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}
	runID := r.URL.Path[len("/report/"):]
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "run ID required")
		return
	}
	run, err := s.store.GetRun(runID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load run: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.Render(w, &report.Run{
		RunID:      run.RunID,
		Success:    run.Success,
		ErrorCode:  run.ErrorCode,
		TotalTime:  run.TotalTime,
		Parameters: run.Parameters,
		Confidence: run.Confidence,
		Results:    run.Results,
	}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render report: %v", err))
	}
}
