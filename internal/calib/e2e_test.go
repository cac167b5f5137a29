package calib_test

import (
	"math"
	"testing"

	"github.com/torqlab/motorcal/internal/calib"
	"github.com/torqlab/motorcal/internal/sim"
)

// Full closed-loop calibration against the synthetic dyno bench: the
// manager's commands drive the bench, the bench's samples drive the
// manager, and the recovered parameters must land near the bench's
// ground truth without tripping any safety limit.
func TestCalibrationAgainstBench(t *testing.T) {
	params := sim.DefaultParameters()
	benchCfg := sim.DefaultBenchConfig()
	benchCfg.VelocityCeiling = 3.4 // under the 4 × 1.1 rad/s safety margin
	benchCfg.MaxCurrent = 5
	bench := sim.NewBench(params, benchCfg)

	cfg := calib.Config{
		Phases:           calib.PhaseInertia | calib.PhaseFriction,
		MaxCurrent:       5,
		MaxVelocity:      4,
		MaxPositionRange: 1.0,
		PhaseTimeout:     45,
	}

	mgr := calib.NewManager()
	if err := mgr.Start(cfg, bench.Position(), bench.Now()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var cmd calib.Command
	done := false
	for tick := 0; tick < 6000 && !done; tick++ {
		s := bench.Step(cmd)
		cmd, done = mgr.Update(s)
	}
	if !done {
		t.Fatal("calibration did not finish within 60 s of simulated time")
	}

	st := mgr.State()
	if st.Stage != calib.StageComplete {
		t.Fatalf("run ended in stage %q with code %s", st.Stage, st.Code)
	}

	res := mgr.Result(bench.Now())
	if !res.Success {
		t.Fatalf("Result reports failure: %s", res.ErrorCode)
	}

	if rel := math.Abs(res.Parameters.InertiaJ-params.J) / params.J; rel > 0.10 {
		t.Errorf("InertiaJ = %.6f, want within 10%% of %.6f (off by %.1f%%)",
			res.Parameters.InertiaJ, params.J, rel*100)
	}
	if rel := math.Abs(res.Parameters.FrictionCoulomb-params.TauCoulomb) / params.TauCoulomb; rel > 0.20 {
		t.Errorf("FrictionCoulomb = %.4f, want within 20%% of %.4f (off by %.1f%%)",
			res.Parameters.FrictionCoulomb, params.TauCoulomb, rel*100)
	}
	if res.Parameters.FrictionViscous <= 0 {
		t.Errorf("FrictionViscous = %v, want positive", res.Parameters.FrictionViscous)
	}
	if res.Confidence.Overall < 0.8 {
		t.Errorf("overall confidence %.2f, want at least 0.8", res.Confidence.Overall)
	}
	if res.TotalTime <= 0 || res.TotalTime > 60 {
		t.Errorf("TotalTime = %.1f s, want within (0, 60]", res.TotalTime)
	}

	results := mgr.Results()
	if results.Inertia == nil || results.Friction == nil {
		t.Fatal("both phase results should be recorded")
	}
	if len(results.FrictionCurve) == 0 {
		t.Error("friction curve should be recorded for reporting")
	}
}

// The bench enforces nothing itself: a run configured with a position
// window tighter than the bench's travel must be killed by the safety
// gate, not wander on.
func TestCalibrationPositionLimitAborts(t *testing.T) {
	benchCfg := sim.DefaultBenchConfig()
	benchCfg.TravelWindow = 0 // unbounded travel
	bench := sim.NewBench(sim.DefaultParameters(), benchCfg)

	cfg := calib.Config{
		Phases:           calib.PhaseInertia,
		MaxCurrent:       5,
		MaxVelocity:      10,
		MaxPositionRange: 0.05,
		PhaseTimeout:     45,
	}

	mgr := calib.NewManager()
	if err := mgr.Start(cfg, bench.Position(), bench.Now()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var cmd calib.Command
	done := false
	for tick := 0; tick < 6000 && !done; tick++ {
		s := bench.Step(cmd)
		cmd, done = mgr.Update(s)
	}

	st := mgr.State()
	if !done || st.Stage != calib.StageFailed {
		t.Fatalf("expected a failed run, got stage %q", st.Stage)
	}
	if st.Code != calib.CodePositionLimit {
		t.Errorf("failure code = %s, want %s", st.Code, calib.CodePositionLimit)
	}
	if res := mgr.Result(bench.Now()); res.Success {
		t.Error("Result must report failure after a safety abort")
	}
}
