package sim

import (
	"math"
	"testing"

	"github.com/torqlab/motorcal/internal/calib"
)

func noiselessBench() *Bench {
	cfg := DefaultBenchConfig()
	return NewBench(DefaultParameters(), cfg)
}

func TestBenchStiction(t *testing.T) {
	b := noiselessBench()

	// τ = kt·iq = 0.15 × 0.1 = 0.015 Nm, below the 0.02 Nm breakaway.
	s := b.Step(calib.Command{CurrentIQ: 0.1})
	if s.Velocity != 0 {
		t.Errorf("velocity = %v, want 0 under stiction", s.Velocity)
	}
	if s.Acceleration != 0 {
		t.Errorf("acceleration = %v, want 0 under stiction", s.Acceleration)
	}

	// Above breakaway the rotor moves.
	s = b.Step(calib.Command{CurrentIQ: 0.5})
	if s.Velocity <= 0 {
		t.Errorf("velocity = %v, want positive after breakaway", s.Velocity)
	}
	if s.Acceleration <= 0 {
		t.Errorf("acceleration = %v, want positive after breakaway", s.Acceleration)
	}
}

func TestBenchOpenLoopAcceleration(t *testing.T) {
	b := noiselessBench()

	// From rest there is no friction torque yet, so the first tick's
	// acceleration is exactly kt·iq/J.
	s := b.Step(calib.Command{CurrentIQ: 2})
	want := b.Params.Kt * 2 / b.Params.J
	if math.Abs(s.Acceleration-want) > 1e-9 {
		t.Errorf("first-tick acceleration = %v, want %v", s.Acceleration, want)
	}

	// Once moving, friction eats part of the drive torque.
	s2 := b.Step(calib.Command{CurrentIQ: 2})
	if s2.Acceleration >= s.Acceleration {
		t.Errorf("acceleration %v should drop below %v once friction acts", s2.Acceleration, s.Acceleration)
	}
}

func TestBenchVelocityCeiling(t *testing.T) {
	cfg := DefaultBenchConfig()
	cfg.VelocityCeiling = 2.0
	b := NewBench(DefaultParameters(), cfg)

	// 5 A accelerates at ~750 rad/s², crossing the ceiling on tick one.
	s := b.Step(calib.Command{CurrentIQ: 5})
	if s.Velocity != 2.0 {
		t.Fatalf("velocity = %v, want clamped to 2.0", s.Velocity)
	}
	// The engage tick still reports the free acceleration it measured.
	if s.Acceleration < 700 {
		t.Errorf("engage-tick acceleration = %v, want the free value (~750)", s.Acceleration)
	}

	// While the drive keeps pushing into the clutch the rotor neither
	// speeds up nor reports acceleration.
	s = b.Step(calib.Command{CurrentIQ: 5})
	if s.Velocity != 2.0 {
		t.Errorf("held velocity = %v, want 2.0", s.Velocity)
	}
	if s.Acceleration != 0 {
		t.Errorf("held acceleration = %v, want 0", s.Acceleration)
	}

	// Dropping the drive lets friction wind the rotor down off the clutch.
	s = b.Step(calib.Command{})
	if s.Velocity >= 2.0 {
		t.Errorf("velocity = %v, want below the ceiling after drive release", s.Velocity)
	}
	if s.Acceleration >= 0 {
		t.Errorf("acceleration = %v, want negative during coast-down", s.Acceleration)
	}
}

func TestBenchCoastDownStopsAtZero(t *testing.T) {
	b := noiselessBench()

	b.Step(calib.Command{CurrentIQ: 1})
	var s calib.Sample
	for i := 0; i < 200; i++ {
		s = b.Step(calib.Command{})
		if s.Velocity == 0 {
			break
		}
	}
	if s.Velocity != 0 {
		t.Errorf("velocity = %v, want friction to stop the rotor without reversing", s.Velocity)
	}
}

func TestBenchVelocityServoConverges(t *testing.T) {
	b := noiselessBench()

	const target = 1.6
	var s calib.Sample
	for i := 0; i < 100; i++ { // 1 s
		s = b.Step(calib.Command{Velocity: target})
	}
	if math.Abs(s.Velocity-target) > 0.02 {
		t.Errorf("velocity = %v, want within 0.02 of %v after 1 s", s.Velocity, target)
	}

	// At steady state the servo current balances friction exactly.
	wantIQ := (b.Params.TauCoulomb + b.Params.BViscous*target) / b.Params.Kt
	if math.Abs(s.CurrentIQ-wantIQ) > 0.02 {
		t.Errorf("steady current = %v A, want ~%v A", s.CurrentIQ, wantIQ)
	}
}

func TestBenchServoTracksNegativeVelocity(t *testing.T) {
	b := noiselessBench()

	var s calib.Sample
	for i := 0; i < 100; i++ {
		s = b.Step(calib.Command{Velocity: -0.4})
	}
	if math.Abs(s.Velocity-(-0.4)) > 0.02 {
		t.Errorf("velocity = %v, want within 0.02 of -0.4", s.Velocity)
	}
}

func TestBenchPositionStaysInTravelWindow(t *testing.T) {
	cfg := DefaultBenchConfig()
	cfg.TravelWindow = 0.8
	b := NewBench(DefaultParameters(), cfg)

	home := b.Position()
	for i := 0; i < 500; i++ { // 5 s at full drive winds up many radians
		s := b.Step(calib.Command{CurrentIQ: 5})
		if d := math.Abs(s.Position - home); d > 0.4+1e-9 {
			t.Fatalf("tick %d: position excursion %v rad exceeds the ±0.4 window", i, d)
		}
	}
}

func TestBenchTimeAdvances(t *testing.T) {
	b := noiselessBench()

	if b.Now() != 0 {
		t.Fatalf("Now() = %v at construction, want 0", b.Now())
	}
	s := b.Step(calib.Command{})
	if math.Abs(s.Timestamp-b.Config.DT) > 1e-12 {
		t.Errorf("first timestamp = %v, want %v", s.Timestamp, b.Config.DT)
	}
	if math.Abs(b.Now()-s.Timestamp) > 1e-12 {
		t.Errorf("Now() = %v, want %v", b.Now(), s.Timestamp)
	}
}
