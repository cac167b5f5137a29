// Command simcal runs a full calibration against the synthetic bench and
// prints the result as JSON. Useful for validating estimator changes
// offline and for seeding a run database with known-good data.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/torqlab/motorcal/internal/calib"
	"github.com/torqlab/motorcal/internal/sim"
	"github.com/torqlab/motorcal/internal/store"
)

func main() {
	dbPath := flag.String("db", "", "optionally record the run to this sqlite DB")
	maxCurrent := flag.Float64("max-current", 5, "test current limit (A)")
	maxVelocity := flag.Float64("max-velocity", 4, "test velocity limit (rad/s)")
	posRange := flag.Float64("position-range", 1.0, "position excursion limit (rad)")
	timeout := flag.Float64("phase-timeout", 45, "per-phase timeout (s)")
	frictionOnly := flag.Bool("friction-only", false, "run only the friction phase")
	inertiaOnly := flag.Bool("inertia-only", false, "run only the inertia phase")
	seed := flag.Int64("seed", 0, "bench noise seed")
	flag.Parse()

	phases := calib.PhaseInertia | calib.PhaseFriction
	if *frictionOnly {
		phases = calib.PhaseFriction
	}
	if *inertiaOnly {
		phases = calib.PhaseInertia
	}

	benchCfg := sim.DefaultBenchConfig()
	benchCfg.VelocityCeiling = *maxVelocity * 0.85
	benchCfg.MaxCurrent = *maxCurrent
	benchCfg.Seed = *seed
	bench := sim.NewBench(sim.DefaultParameters(), benchCfg)

	cfg := calib.Config{
		Phases:           phases,
		MaxCurrent:       *maxCurrent,
		MaxVelocity:      *maxVelocity,
		MaxPositionRange: *posRange,
		PhaseTimeout:     *timeout,
	}

	mgr := calib.NewManager()
	if err := mgr.Start(cfg, bench.Position(), bench.Now()); err != nil {
		log.Fatalf("start failed: %v", err)
	}

	started := time.Now()
	var cmd calib.Command
	done := false
	ticks := 0
	for ; ticks < 20000 && !done; ticks++ {
		cmd, done = mgr.Update(bench.Step(cmd))
	}
	if !done {
		log.Fatalf("run did not finish within %d ticks", ticks)
	}

	res := mgr.Result(bench.Now())
	log.Printf("finished in %d ticks (%.1f s simulated, %s wall)",
		ticks, bench.Now(), time.Since(started).Round(time.Millisecond))

	out := struct {
		Result  calib.Result      `json:"result"`
		Results calib.TestResults `json:"results"`
	}{res, mgr.Results()}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode result: %v", err)
	}

	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer st.Close()
		if err := st.MigrateUp(); err != nil {
			log.Fatalf("migrate db: %v", err)
		}
		run := &store.Run{
			StartedAt:  started.UnixNano(),
			Success:    res.Success,
			ErrorCode:  res.ErrorCode,
			TotalTime:  res.TotalTime,
			Parameters: res.Parameters,
			Confidence: res.Confidence,
			Config:     cfg,
			Results:    mgr.Results(),
		}
		if err := st.RecordRun(run); err != nil {
			log.Fatalf("record run: %v", err)
		}
		log.Printf("recorded run %s to %s", run.RunID, *dbPath)
	}

	if !res.Success {
		os.Exit(1)
	}
}
