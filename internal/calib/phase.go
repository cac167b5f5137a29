package calib

// Command is the actuator setpoint pair returned from every update tick.
// Exactly one of the two fields is meaningful per phase: inertia trials
// drive CurrentIQ open-loop, friction points drive the velocity loop.
// The zero value is the safe "motor off" command.
type Command struct {
	CurrentIQ float64 `json:"current_iq"` // A
	Velocity  float64 `json:"velocity"`   // rad/s
}

// phaseRunner is the capability set shared by all phase estimators. The
// manager holds exactly one active runner, so "one active phase" is a
// structural invariant rather than a convention across nullable slots.
type phaseRunner interface {
	// Update consumes one sample and returns the actuator command for
	// this tick plus a completion flag. Must not allocate.
	Update(s Sample) (Command, bool)
	// Progress returns completion in [0, 1] for status reporting.
	Progress() float64
	// record stores the phase's final result into the aggregate.
	record(results *TestResults)
}

// nominalPhaseSeconds are heuristic full-phase durations used for the
// remaining-time estimate in Status.
var nominalPhaseSeconds = map[Stage]float64{
	StageInertia:  15.0,
	StageFriction: 30.0,
}
