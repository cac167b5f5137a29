package calib

import "math"

const (
	// overloadMargin is the tolerated overshoot on velocity and current
	// before a violation is declared.
	overloadMargin = 1.1
	// maxMotorTempC is the fixed winding temperature ceiling. Not
	// configurable: it protects the motor, not the test.
	maxMotorTempC = 80.0
)

// SafetyMonitor evaluates each sample against five hard limits. It is
// purely evaluative: the caller owns the Failed transition. Timeouts are
// measured against sample timestamps, so they only advance while samples
// keep arriving.
type SafetyMonitor struct {
	config         Config
	startTime      float64
	phaseStartTime float64
	homePosition   float64
}

// NewSafetyMonitor captures the home position and start time for a run.
func NewSafetyMonitor(config Config, currentPosition, currentTime float64) *SafetyMonitor {
	return &SafetyMonitor{
		config:         config,
		startTime:      currentTime,
		phaseStartTime: currentTime,
		homePosition:   currentPosition,
	}
}

// ResetPhaseTimer restarts the per-phase timeout window. The manager calls
// this on every phase entry so timeouts are never cumulative.
func (m *SafetyMonitor) ResetPhaseTimer(currentTime float64) {
	m.phaseStartTime = currentTime
}

// Check evaluates the sample against all limits in fixed order, returning
// the first violated limit or CodeSuccess. The order is part of the
// contract: position, velocity, current, temperature, timeout.
func (m *SafetyMonitor) Check(s Sample) ErrorCode {
	if math.Abs(s.Position-m.homePosition) > m.config.MaxPositionRange {
		return CodePositionLimit
	}
	if math.Abs(s.Velocity) > m.config.MaxVelocity*overloadMargin {
		return CodeVelocityLimit
	}
	if math.Abs(s.CurrentIQ) > m.config.MaxCurrent*overloadMargin {
		return CodeCurrentLimit
	}
	if s.Temperature > maxMotorTempC {
		return CodeTemperatureLimit
	}
	if s.Timestamp-m.phaseStartTime > m.config.PhaseTimeout {
		return CodeTimeout
	}
	return CodeSuccess
}

// Elapsed returns seconds since the run started.
func (m *SafetyMonitor) Elapsed(currentTime float64) float64 {
	return currentTime - m.startTime
}

// PhaseElapsed returns seconds since the current phase started.
func (m *SafetyMonitor) PhaseElapsed(currentTime float64) float64 {
	return currentTime - m.phaseStartTime
}
