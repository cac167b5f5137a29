package calib

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/torqlab/motorcal/internal/monitoring"
)

// Inertia identification: apply a step current, measure angular
// acceleration, J = τ/α with τ = kt·iq. Five trials at distinct currents
// give a mean and spread for the confidence figure.
const (
	inertiaTrials       = 5
	inertiaTrialSamples = 100
	inertiaAccelSecs    = 1.0
	inertiaSettleSecs   = 0.5
	// inertiaAccelFloor filters near-zero accelerations out of the trial
	// average; they carry no torque information.
	inertiaAccelFloor = 1.0 // rad/s²
)

type inertiaPhase uint8

const (
	inertiaIdle inertiaPhase = iota
	inertiaAccelerating
	inertiaSettling
)

// InertiaTest runs the inertia identification phase. Construct one per
// calibration run; it is not reusable.
type InertiaTest struct {
	trial     int
	phase     inertiaPhase
	startTime float64
	buf       *SampleBuffer
	estimates [inertiaTrials]float64
	scratch   [inertiaTrialSamples]float64
	ktNominal float64
}

// NewInertiaTest seeds the estimator with a nominal torque constant.
func NewInertiaTest(ktNominal float64) *InertiaTest {
	return &InertiaTest{
		buf:       NewSampleBuffer(inertiaTrialSamples),
		ktNominal: ktNominal,
	}
}

// CommandCurrent returns the commanded iq for the current trial. Trials
// use distinct currents (1, 2, 3, 4, 5 A) for robustness.
func (t *InertiaTest) CommandCurrent() float64 {
	return float64(t.trial + 1)
}

// Update advances the per-trial state machine by one sample.
func (t *InertiaTest) Update(s Sample) (Command, bool) {
	switch t.phase {
	case inertiaIdle:
		t.startTime = s.Timestamp
		t.buf.Reset()
		t.phase = inertiaAccelerating
		return Command{CurrentIQ: t.CommandCurrent()}, false

	case inertiaAccelerating:
		// Buffer fills at the control rate; once full, later samples in
		// the window are dropped rather than overwriting earlier ones.
		t.buf.Push(s)
		if s.Timestamp-t.startTime > inertiaAccelSecs {
			t.phase = inertiaSettling
			t.startTime = s.Timestamp
		}
		return Command{CurrentIQ: t.CommandCurrent()}, false

	default: // inertiaSettling
		if s.Timestamp-t.startTime > inertiaSettleSecs {
			j := t.estimateTrial()
			t.estimates[t.trial] = j
			monitoring.Logf("inertia trial %d/%d: J = %.6f kg·m²", t.trial+1, inertiaTrials, j)
			t.trial++
			if t.trial >= inertiaTrials {
				return Command{}, true
			}
			t.phase = inertiaIdle
		}
		// Zero current while the rotor settles.
		return Command{}, false
	}
}

// estimateTrial computes J from the trial's filtered acceleration average.
// A trial with no sample above the acceleration floor degenerates to a
// zero estimate and drags the aggregate down; that is deliberate, so poor
// data surfaces in the variance rather than being hidden.
func (t *InertiaTest) estimateTrial() float64 {
	n := 0
	for _, s := range t.buf.Samples() {
		if math.Abs(s.Acceleration) > inertiaAccelFloor {
			t.scratch[n] = s.Acceleration
			n++
		}
	}
	if n == 0 {
		return 0
	}
	avgAccel := stat.Mean(t.scratch[:n], nil)
	torque := t.ktNominal * t.CommandCurrent()
	return torque / avgAccel
}

// Result aggregates the per-trial estimates. Confidence is a step function
// of the coefficient of variation across trials.
func (t *InertiaTest) Result() InertiaResult {
	estimates := t.estimates[:]
	mean := stat.Mean(estimates, nil)
	variance := stat.PopVariance(estimates, nil)
	cv := math.Sqrt(variance) / mean

	monitoring.Logf("inertia: J = %.6f ± %.6f kg·m² (CV %.1f%%)", mean, math.Sqrt(variance), cv*100)

	return InertiaResult{
		J:          mean,
		Variance:   variance,
		Confidence: confidenceFromCV(cv),
	}
}

// confidenceFromCV maps trial scatter to a confidence tier. NaN (zero or
// negative mean) falls through to the lowest tier.
func confidenceFromCV(cv float64) float64 {
	switch {
	case cv < 0.05:
		return 1.0
	case cv < 0.10:
		return 0.9
	case cv < 0.20:
		return 0.7
	default:
		return 0.5
	}
}

// Progress returns the fraction of trials completed.
func (t *InertiaTest) Progress() float64 {
	return float64(t.trial) / inertiaTrials
}

func (t *InertiaTest) record(results *TestResults) {
	r := t.Result()
	results.Inertia = &r
}
