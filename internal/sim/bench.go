// Package sim provides a synthetic motor test bench for exercising the
// calibration subsystem without hardware. It integrates second-order
// motor dynamics (τ = kt·iq, τ_net = τ − τ_coulomb·sgn(ω) − b·ω,
// α = τ_net/J) and models the back-to-back dyno rig the firmware is
// commissioned on: the load side counter-rotates to keep the reported
// joint position inside the travel window and absorbs speed above the
// rig ceiling, while torque and acceleration transients pass through.
package sim

import (
	"math"
	"math/rand"

	"github.com/torqlab/motorcal/internal/calib"
)

// Parameters are the physical motor parameters being simulated.
type Parameters struct {
	J          float64 // kg·m² rotor inertia
	Kt         float64 // Nm/A torque constant
	TauCoulomb float64 // Nm Coulomb friction
	BViscous   float64 // Nm·s/rad viscous friction
	TempC      float64 // °C reported winding temperature
}

// DefaultParameters match the reference motor used in bench bring-up.
func DefaultParameters() Parameters {
	return Parameters{
		J:          0.001,
		Kt:         0.15,
		TauCoulomb: 0.02,
		BViscous:   0.001,
		TempC:      25.0,
	}
}

// BenchConfig configures the rig model around the motor.
type BenchConfig struct {
	DT              float64 // tick period, seconds
	TravelWindow    float64 // reported excursion window, rad (dyno recentring)
	VelocityCeiling float64 // rig absorbs speed above this, rad/s; 0 disables
	MaxCurrent      float64 // velocity-servo current clamp, A

	// Velocity-servo gains for velocity-mode commands.
	ServoKp float64 // A per rad/s
	ServoKi float64 // A per rad

	// Measurement noise, standard deviations. Zero means noiseless.
	AccelNoiseStd   float64 // rad/s²
	CurrentNoiseStd float64 // A

	Seed int64
}

// DefaultBenchConfig returns a rig running at the 100 Hz control rate.
func DefaultBenchConfig() BenchConfig {
	return BenchConfig{
		DT:              0.01,
		TravelWindow:    0.8,
		VelocityCeiling: 0,
		MaxCurrent:      10.0,
		ServoKp:         0.5,
		ServoKi:         5.0,
	}
}

// Bench is the discrete-time motor-plus-rig model. Step consumes the
// previous tick's actuator command and produces the next sensor sample.
type Bench struct {
	Params Parameters
	Config BenchConfig

	now      float64
	theta    float64 // true accumulated rotor angle, rad
	velocity float64
	home     float64

	servoIntegral float64
	rng           *rand.Rand
}

// NewBench builds a bench at time zero with the rotor at the home
// position and at rest.
func NewBench(params Parameters, config BenchConfig) *Bench {
	return &Bench{
		Params: params,
		Config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Now returns the bench's current simulated time in seconds.
func (b *Bench) Now() float64 { return b.now }

// Position returns the reported joint position at the current tick.
func (b *Bench) Position() float64 { return b.reportedPosition() }

// Step advances the model by one tick under the given command and
// returns the sensor sample for the new state. A non-zero velocity
// command engages the rig's velocity servo; otherwise CurrentIQ is
// applied open-loop.
func (b *Bench) Step(cmd calib.Command) calib.Sample {
	dt := b.Config.DT
	iq := b.commandCurrent(cmd, dt)

	tauMotor := b.Params.Kt * iq
	tauFriction := b.frictionTorque(b.velocity)

	var alpha, next float64
	ceiling := b.Config.VelocityCeiling
	held := ceiling > 0 && math.Abs(b.velocity) >= ceiling

	switch {
	case b.velocity == 0 && math.Abs(tauMotor) <= b.Params.TauCoulomb:
		// Stiction: applied torque below breakaway keeps the rotor still.
	case held && (tauMotor-tauFriction)*b.velocity > 0:
		// Rig clutch is latched at the ceiling and the motor is still
		// pushing into it; the clutch reaction torque nulls the net
		// acceleration until the drive torque relaxes.
		next = b.velocity
	default:
		alpha = (tauMotor - tauFriction) / b.Params.J
		next = b.velocity + alpha*dt
		// Friction cannot reverse the rotor within a tick.
		if b.velocity != 0 && tauMotor == 0 && next*b.velocity < 0 {
			next = 0
		}
		// The clutch latches at the tick boundary, so the engage tick
		// still reports the free acceleration it measured.
		if ceiling > 0 && math.Abs(next) > ceiling {
			next = math.Copysign(ceiling, next)
		}
	}

	b.velocity = next
	b.theta += next * dt
	b.now += dt
	accel := alpha

	s := calib.Sample{
		Timestamp:    b.now,
		Position:     b.reportedPosition(),
		Velocity:     b.velocity,
		Acceleration: accel,
		CurrentIQ:    iq,
		Temperature:  b.Params.TempC,
	}
	if b.Config.AccelNoiseStd > 0 {
		s.Acceleration += b.rng.NormFloat64() * b.Config.AccelNoiseStd
	}
	if b.Config.CurrentNoiseStd > 0 {
		s.CurrentIQ += b.rng.NormFloat64() * b.Config.CurrentNoiseStd
	}
	return s
}

// commandCurrent resolves the actuator command into a quadrature current.
func (b *Bench) commandCurrent(cmd calib.Command, dt float64) float64 {
	if cmd.Velocity == 0 {
		b.servoIntegral = 0
		return cmd.CurrentIQ
	}

	err := cmd.Velocity - b.velocity
	b.servoIntegral += err * dt
	if b.Config.ServoKi > 0 {
		// Anti-windup: never let the integral alone exceed the clamp.
		limit := b.Config.MaxCurrent / b.Config.ServoKi
		b.servoIntegral = math.Max(-limit, math.Min(limit, b.servoIntegral))
	}

	iq := b.Config.ServoKp*err + b.Config.ServoKi*b.servoIntegral
	return math.Max(-b.Config.MaxCurrent, math.Min(b.Config.MaxCurrent, iq))
}

func (b *Bench) frictionTorque(v float64) float64 {
	if v == 0 {
		return 0
	}
	return math.Copysign(b.Params.TauCoulomb, v) + b.Params.BViscous*v
}

// reportedPosition folds the accumulated rotor angle into the travel
// window around home, modelling the dyno keeping the joint centred.
func (b *Bench) reportedPosition() float64 {
	if b.Config.TravelWindow <= 0 {
		return b.home + b.theta
	}
	return b.home + math.Remainder(b.theta, b.Config.TravelWindow)
}
