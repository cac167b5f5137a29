package calib

import (
	"errors"
	"fmt"

	"github.com/torqlab/motorcal/internal/monitoring"
)

// Default parameters substituted for phases that never ran, and the
// nominal torque constant used to seed phase estimators.
const (
	defaultKt               = 0.15   // Nm/A
	defaultInertiaJ         = 0.001  // kg·m²
	defaultDampingB         = 0.0005 // Nm·s/rad
	defaultFrictionCoulomb  = 0.02   // Nm
	defaultFrictionStribeck = 0.01   // Nm
	defaultFrictionVStrib   = 0.1    // rad/s
	defaultFrictionViscous  = 0.001  // Nm·s/rad
)

// CodedError ties an ErrorCode to a descriptive error for synchronous
// failures (Start misuse and config rejection).
type CodedError struct {
	Code ErrorCode
	Err  error
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CodedError) Unwrap() error { return e.Err }

// ErrorCodeOf extracts the domain code from an error chain, or
// CodeHardwareError when the chain carries none.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeSuccess
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeHardwareError
}

// Manager orchestrates the calibration run: it owns the configuration,
// the safety monitor, at most one active phase estimator and the
// accumulated results, and advances the state machine one sample at a
// time. A Manager is single-use: once terminal it stays terminal, and a
// new run requires a new Manager.
//
// Manager is not safe for concurrent use; the tick loop owns it.
type Manager struct {
	stage   Stage
	failure ErrorCode
	config  Config
	safety  *SafetyMonitor

	active      phaseRunner
	phaseCursor int

	results   TestResults
	startTime float64

	lastSample Sample
	haveSample bool
}

// NewManager returns an idle manager.
func NewManager() *Manager {
	return &Manager{stage: StageIdle}
}

// Start validates the config and arms the run. It fails with
// CodeInvalidState unless the manager is idle or the config is rejected;
// on failure the manager is left untouched.
func (m *Manager) Start(config Config, currentPosition, currentTime float64) error {
	if m.stage != StageIdle {
		return &CodedError{Code: CodeInvalidState, Err: fmt.Errorf("start in stage %q", m.stage)}
	}
	if err := config.Validate(); err != nil {
		return &CodedError{Code: CodeInvalidState, Err: fmt.Errorf("config: %w", err)}
	}

	config.HomePosition = currentPosition
	m.config = config
	m.safety = NewSafetyMonitor(config, currentPosition, currentTime)
	m.startTime = currentTime
	m.stage = StageInitializing

	monitoring.Logf("calibration started at position %.4f rad (phases 0x%02x)", currentPosition, config.Phases)
	return nil
}

// Stop aborts a running calibration. Idle and already-terminal managers
// are left unchanged, so Stop is idempotent and never clobbers the
// failure code of an earlier violation.
func (m *Manager) Stop() {
	if m.stage == StageIdle || m.stage.Terminal() {
		return
	}
	monitoring.Logf("calibration aborted by user in stage %q", m.stage)
	m.fail(CodeUserAbort)
}

// Update consumes one sample and returns the actuator command for this
// tick plus a completion flag. The safety gate runs before anything else;
// any violation forces the Failed sink and a zero command. Terminal
// stages permanently return a zero command with done=true.
func (m *Manager) Update(s Sample) (Command, bool) {
	if m.stage.Terminal() {
		return Command{}, true
	}

	m.lastSample = s
	m.haveSample = true

	if m.safety != nil {
		if code := m.safety.Check(s); code != CodeSuccess {
			monitoring.Logf("safety violation: %s (pos %.4f vel %.4f iq %.4f temp %.1f)",
				code, s.Position, s.Velocity, s.CurrentIQ, s.Temperature)
			m.fail(code)
			return Command{}, true
		}
	}

	switch m.stage {
	case StageInitializing:
		if m.enterNextPhase(s.Timestamp) {
			return Command{}, true
		}
		return Command{}, false

	case StageInertia, StageFriction:
		cmd, done := m.active.Update(s)
		if done {
			m.active.record(&m.results)
			if m.enterNextPhase(s.Timestamp) {
				return Command{}, true
			}
		}
		return cmd, false

	default:
		return Command{}, false
	}
}

// enterNextPhase advances the cursor to the next enabled phase that has
// an estimator and activates it. It returns true when no phase remains
// and the run is complete. Torque-constant, damping and validation bits
// have no estimator yet and are skipped; their parameters fall back to
// the documented defaults in Result.
func (m *Manager) enterNextPhase(now float64) bool {
	m.active = nil
	for ; m.phaseCursor < len(phaseOrder); m.phaseCursor++ {
		bit := phaseOrder[m.phaseCursor]
		if !m.config.PhaseEnabled(bit) {
			continue
		}
		switch bit {
		case PhaseInertia:
			m.active = NewInertiaTest(defaultKt)
			m.stage = StageInertia
		case PhaseFriction:
			m.active = NewFrictionTest(defaultKt, m.config.MaxVelocity)
			m.stage = StageFriction
		default:
			monitoring.Logf("phase bit 0x%02x has no estimator; skipping", bit)
			continue
		}
		m.phaseCursor++
		m.safety.ResetPhaseTimer(now)
		monitoring.Logf("entering stage %q", m.stage)
		return false
	}

	m.stage = StageComplete
	monitoring.Logf("calibration complete")
	return true
}

func (m *Manager) fail(code ErrorCode) {
	m.stage = StageFailed
	m.failure = code
	m.active = nil
}

// State returns the current state snapshot.
func (m *Manager) State() State {
	return State{Stage: m.stage, Code: m.failure}
}

// IsComplete reports whether the run reached a terminal sink.
func (m *Manager) IsComplete() bool {
	return m.stage.Terminal()
}

// Status synthesizes the telemetry snapshot: stage tag, the active
// phase's own progress, and a heuristic remaining-time estimate derived
// from the phase's nominal duration.
func (m *Manager) Status(currentTime float64) Status {
	st := Status{Stage: m.stage, Error: m.failure}

	switch m.stage {
	case StageInertia, StageFriction:
		p := m.active.Progress()
		st.Progress = p
		st.TimeRemaining = nominalPhaseSeconds[m.stage] * (1 - p)
	case StageComplete, StageFailed:
		st.Progress = 1
	}

	if m.haveSample {
		st.Position = m.lastSample.Position
		st.Velocity = m.lastSample.Velocity
		st.CurrentIQ = m.lastSample.CurrentIQ
	}
	return st
}

// Result assembles the terminal-state snapshot. Parameters from phases
// that never ran are filled with documented defaults. Overall confidence
// is the equal-weight mean of the confidences of phases that actually
// ran, and zero when none did.
func (m *Manager) Result(currentTime float64) Result {
	params := MotorParameters{
		InertiaJ:          defaultInertiaJ,
		TorqueConstantKt:  defaultKt,
		DampingB:          defaultDampingB,
		FrictionCoulomb:   defaultFrictionCoulomb,
		FrictionStribeck:  defaultFrictionStribeck,
		FrictionVStribeck: defaultFrictionVStrib,
		FrictionViscous:   defaultFrictionViscous,
	}
	conf := Confidence{}

	confSum, confN := 0.0, 0
	if r := m.results.Inertia; r != nil {
		params.InertiaJ = r.J
		conf.Inertia = r.Confidence
		confSum += r.Confidence
		confN++
	}
	if r := m.results.Friction; r != nil {
		params.FrictionCoulomb = r.TauCoulomb
		params.FrictionStribeck = r.TauStribeck
		params.FrictionVStribeck = r.VStribeck
		params.FrictionViscous = r.BViscous
		conf.Friction = r.Confidence
		confSum += r.Confidence
		confN++
	}
	if v := m.results.TorqueConstant; v != nil {
		params.TorqueConstantKt = *v
	}
	if v := m.results.Damping; v != nil {
		params.DampingB = *v
	}
	if confN > 0 {
		conf.Overall = confSum / float64(confN)
	}

	totalTime := 0.0
	if m.safety != nil {
		totalTime = m.safety.Elapsed(currentTime)
	}

	errCode := CodeSuccess
	if m.stage == StageFailed {
		errCode = m.failure
	}

	return Result{
		Success:    m.stage == StageComplete,
		Parameters: params,
		Confidence: conf,
		TotalTime:  totalTime,
		ErrorCode:  errCode,
	}
}

// Results exposes the per-phase results accumulated so far.
func (m *Manager) Results() TestResults {
	return m.results
}

// Config returns the active configuration (zero value before Start).
func (m *Manager) Config() Config {
	return m.config
}
