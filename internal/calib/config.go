package calib

import "fmt"

// Phase bits for Config.Phases. Selection priority follows bit order:
// inertia first, validation last.
const (
	PhaseInertia uint8 = 1 << iota
	PhaseFriction
	PhaseTorqueConstant
	PhaseDamping
	PhaseValidation
)

// phaseOrder is the fixed priority order in which enabled phases run.
var phaseOrder = []uint8{PhaseInertia, PhaseFriction, PhaseTorqueConstant, PhaseDamping, PhaseValidation}

// Config is the calibration configuration delivered once at Start. All
// numeric limits must be strictly positive and inside their documented
// domains; Validate rejects the whole config on the first invalid field.
type Config struct {
	// Phases is the bitmask of phases to run (Phase* constants).
	Phases uint8 `json:"phases"`
	// MaxCurrent is the maximum test current in A, (0, 15].
	MaxCurrent float64 `json:"max_current"`
	// MaxVelocity is the maximum test velocity in rad/s, (0, 10].
	MaxVelocity float64 `json:"max_velocity"`
	// MaxPositionRange is the maximum excursion from home in rad, > 0.
	MaxPositionRange float64 `json:"max_position_range"`
	// PhaseTimeout is the per-phase timeout in seconds, > 0.
	PhaseTimeout float64 `json:"phase_timeout"`
	// ReturnHome requests a return to the home position after the run.
	ReturnHome bool `json:"return_home"`
	// HomePosition is captured by the manager at Start; any caller-supplied
	// value is overwritten.
	HomePosition float64 `json:"home_position"`
}

// Validate checks all limits atomically before the config is used.
func (c Config) Validate() error {
	if c.MaxCurrent <= 0 || c.MaxCurrent > 15 {
		return fmt.Errorf("max_current %.3f A outside (0, 15]", c.MaxCurrent)
	}
	if c.MaxVelocity <= 0 || c.MaxVelocity > 10 {
		return fmt.Errorf("max_velocity %.3f rad/s outside (0, 10]", c.MaxVelocity)
	}
	if c.MaxPositionRange <= 0 {
		return fmt.Errorf("max_position_range %.3f rad must be positive", c.MaxPositionRange)
	}
	if c.PhaseTimeout <= 0 {
		return fmt.Errorf("phase_timeout %.3f s must be positive", c.PhaseTimeout)
	}
	return nil
}

// PhaseEnabled reports whether the given phase bit is set.
func (c Config) PhaseEnabled(phase uint8) bool {
	return c.Phases&phase != 0
}
