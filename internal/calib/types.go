// Package calib implements the motor calibration subsystem: a safety-gated,
// multi-phase system-identification state machine. It consumes one sensor
// sample per control tick and emits an actuator command, with no allocation
// on the tick path and bounded work per call.
package calib

// ErrorCode identifies why a calibration run terminated. The numeric values
// are part of the external reporting contract and must not be reordered.
type ErrorCode uint16

const (
	CodeSuccess ErrorCode = iota
	CodePositionLimit
	CodeVelocityLimit
	CodeCurrentLimit
	CodeTemperatureLimit
	CodeTimeout
	CodeInvalidState
	CodeConvergenceFailed
	CodeLowConfidence
	CodeUserAbort
	CodeHardwareError
)

// String returns a stable lowercase name for the code.
func (c ErrorCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodePositionLimit:
		return "position_limit"
	case CodeVelocityLimit:
		return "velocity_limit"
	case CodeCurrentLimit:
		return "current_limit"
	case CodeTemperatureLimit:
		return "temperature_limit"
	case CodeTimeout:
		return "timeout"
	case CodeInvalidState:
		return "invalid_state"
	case CodeConvergenceFailed:
		return "convergence_failed"
	case CodeLowConfidence:
		return "low_confidence"
	case CodeUserAbort:
		return "user_abort"
	case CodeHardwareError:
		return "hardware_error"
	default:
		return "unknown"
	}
}

// Stage is the lifecycle stage of the calibration state machine. Stages move
// forward monotonically; StageComplete and StageFailed are terminal sinks
// reachable from any non-terminal stage.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageInitializing   Stage = "initializing"
	StageInertia        Stage = "inertia_test"
	StageFriction       Stage = "friction_test"
	StageTorqueConstant Stage = "torque_constant_test"
	StageDamping        Stage = "damping_test"
	StageValidation     Stage = "validation"
	StageFinalizing     Stage = "finalizing"
	StageComplete       Stage = "complete"
	StageFailed         Stage = "failed"
)

// Terminal reports whether the stage is a terminal sink.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// State is a snapshot of the state machine. Code is CodeSuccess unless
// Stage is StageFailed.
type State struct {
	Stage Stage     `json:"stage"`
	Code  ErrorCode `json:"code"`
}

// Sample is one time-stamped sensor reading, produced externally every
// control tick. Timestamps come from the sample source, not a wall clock:
// if the source stalls, phase timeouts will not fire. The subsystem depends
// on a periodic, reliable producer.
type Sample struct {
	Timestamp    float64 `json:"timestamp"`    // seconds
	Position     float64 `json:"position"`     // rad
	Velocity     float64 `json:"velocity"`     // rad/s
	Acceleration float64 `json:"acceleration"` // rad/s²
	CurrentIQ    float64 `json:"current_iq"`   // A
	Temperature  float64 `json:"temperature"`  // °C
}

// SampleBuffer is a fixed-capacity append-only capture buffer. The backing
// array is allocated once at construction; Push fails when full and never
// overwrites or resizes.
type SampleBuffer struct {
	samples []Sample
	count   int
}

// NewSampleBuffer preallocates a buffer with the given capacity.
func NewSampleBuffer(capacity int) *SampleBuffer {
	return &SampleBuffer{samples: make([]Sample, capacity)}
}

// Push appends a sample. Returns false when the buffer is full.
func (b *SampleBuffer) Push(s Sample) bool {
	if b.count >= len(b.samples) {
		return false
	}
	b.samples[b.count] = s
	b.count++
	return true
}

// Samples returns a view of the buffered samples. The view is invalidated
// by Reset.
func (b *SampleBuffer) Samples() []Sample {
	return b.samples[:b.count]
}

// Len returns the number of buffered samples.
func (b *SampleBuffer) Len() int { return b.count }

// Cap returns the fixed capacity.
func (b *SampleBuffer) Cap() int { return len(b.samples) }

// Reset drops all buffered samples without releasing storage.
func (b *SampleBuffer) Reset() { b.count = 0 }

// InertiaResult is the outcome of the inertia identification phase.
type InertiaResult struct {
	J          float64 `json:"j"`          // kg·m²
	Variance   float64 `json:"variance"`   // across trials
	Confidence float64 `json:"confidence"` // 0.0 - 1.0
}

// FrictionResult is the outcome of the friction identification phase.
type FrictionResult struct {
	TauCoulomb  float64 `json:"tau_coulomb"`  // Nm
	TauStribeck float64 `json:"tau_stribeck"` // Nm
	VStribeck   float64 `json:"v_stribeck"`   // rad/s
	BViscous    float64 `json:"b_viscous"`    // Nm·s/rad
	RSquared    float64 `json:"r_squared"`    // model fit quality
	Confidence  float64 `json:"confidence"`   // 0.0 - 1.0
}

// FrictionPoint is one per-velocity steady-state torque estimate, kept
// for reporting alongside the fitted friction model.
type FrictionPoint struct {
	Velocity float64 `json:"velocity"` // rad/s
	Tau      float64 `json:"tau"`      // Nm
}

// TestResults accumulates completed phase results. Entries stay nil for
// phases that never ran.
type TestResults struct {
	Inertia        *InertiaResult  `json:"inertia,omitempty"`
	Friction       *FrictionResult `json:"friction,omitempty"`
	TorqueConstant *float64        `json:"torque_constant,omitempty"`
	Damping        *float64        `json:"damping,omitempty"`

	// FrictionCurve holds the raw per-velocity torque estimates behind
	// the friction fit. Filled once at friction-phase completion.
	FrictionCurve []FrictionPoint `json:"friction_curve,omitempty"`
}

// MotorParameters is the full parameter set consumed by the steady-state
// control loop. Parameters whose phase never ran carry documented defaults.
type MotorParameters struct {
	InertiaJ          float64 `json:"inertia_j"`           // kg·m²
	TorqueConstantKt  float64 `json:"torque_constant_kt"`  // Nm/A
	DampingB          float64 `json:"damping_b"`           // Nm·s/rad
	FrictionCoulomb   float64 `json:"friction_coulomb"`    // Nm
	FrictionStribeck  float64 `json:"friction_stribeck"`   // Nm
	FrictionVStribeck float64 `json:"friction_v_stribeck"` // rad/s
	FrictionViscous   float64 `json:"friction_viscous"`    // Nm·s/rad
}

// Confidence carries per-phase and aggregate confidence figures.
type Confidence struct {
	Overall        float64 `json:"overall"`
	Inertia        float64 `json:"inertia"`
	Friction       float64 `json:"friction"`
	TorqueConstant float64 `json:"torque_constant"`
	ValidationRMS  float64 `json:"validation_rms"`
}

// Status is a poll-style snapshot for telemetry, synthesized on demand.
type Status struct {
	Stage         Stage     `json:"stage"`
	Error         ErrorCode `json:"error_code"`
	Progress      float64   `json:"progress"`       // 0.0 - 1.0 within the active phase
	TimeRemaining float64   `json:"time_remaining"` // heuristic, seconds
	Position      float64   `json:"position"`       // from the last sample seen
	Velocity      float64   `json:"velocity"`
	CurrentIQ     float64   `json:"current_iq"`
}

// Result is the terminal-state snapshot intended for persistence and
// one-shot reporting.
type Result struct {
	Success    bool            `json:"success"`
	Parameters MotorParameters `json:"parameters"`
	Confidence Confidence      `json:"confidence"`
	TotalTime  float64         `json:"total_time"` // seconds
	ErrorCode  ErrorCode       `json:"error_code"`
}
