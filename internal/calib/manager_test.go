package calib

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func managerTestConfig() Config {
	return Config{
		Phases:           PhaseInertia,
		MaxCurrent:       5,
		MaxVelocity:      4,
		MaxPositionRange: 1,
		PhaseTimeout:     20,
	}
}

func TestManagerStartValidation(t *testing.T) {
	m := NewManager()

	bad := managerTestConfig()
	bad.MaxCurrent = 0
	err := m.Start(bad, 0, 0)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidState, ErrorCodeOf(err))
	assert.Equal(t, StageIdle, m.State().Stage, "rejected start must leave the manager idle")

	require.NoError(t, m.Start(managerTestConfig(), 1.5, 10))
	assert.Equal(t, StageInitializing, m.State().Stage)
	assert.Equal(t, 1.5, m.Config().HomePosition, "home is captured from the start position")

	// Double start is an invalid-state error.
	err = m.Start(managerTestConfig(), 0, 0)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidState, ErrorCodeOf(err))
}

func TestManagerStopIdempotent(t *testing.T) {
	m := NewManager()

	// Stop on an idle manager is a no-op.
	m.Stop()
	assert.Equal(t, StageIdle, m.State().Stage)

	require.NoError(t, m.Start(managerTestConfig(), 0, 0))
	m.Update(Sample{Timestamp: 0.01, Temperature: 25})
	m.Stop()

	st := m.State()
	assert.Equal(t, StageFailed, st.Stage)
	assert.Equal(t, CodeUserAbort, st.Code)

	// A second stop must not disturb the recorded code.
	m.Stop()
	assert.Equal(t, CodeUserAbort, m.State().Code)
}

func TestManagerStopKeepsEarlierFailure(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start(managerTestConfig(), 0, 0))

	_, done := m.Update(Sample{Timestamp: 0.01, Velocity: 9, Temperature: 25})
	assert.True(t, done)
	assert.Equal(t, CodeVelocityLimit, m.State().Code)

	m.Stop()
	assert.Equal(t, CodeVelocityLimit, m.State().Code, "stop must not clobber a safety failure")
}

func TestManagerNoPhasesCompletesImmediately(t *testing.T) {
	m := NewManager()
	cfg := managerTestConfig()
	cfg.Phases = 0
	require.NoError(t, m.Start(cfg, 0, 0))

	cmd, done := m.Update(Sample{Timestamp: 0.01, Temperature: 25})
	assert.True(t, done)
	assert.Equal(t, Command{}, cmd)
	assert.Equal(t, StageComplete, m.State().Stage)

	res := m.Result(0.01)
	assert.True(t, res.Success)
	assert.Equal(t, CodeSuccess, res.ErrorCode)
	assert.Zero(t, res.Confidence.Overall, "no phase ran, so overall confidence is zero")
	assert.Equal(t, defaultInertiaJ, res.Parameters.InertiaJ)
	assert.Equal(t, defaultKt, res.Parameters.TorqueConstantKt)
	assert.Equal(t, defaultFrictionCoulomb, res.Parameters.FrictionCoulomb)
}

func TestManagerSkipsPhasesWithoutEstimator(t *testing.T) {
	m := NewManager()
	cfg := managerTestConfig()
	cfg.Phases = PhaseTorqueConstant | PhaseDamping | PhaseValidation
	require.NoError(t, m.Start(cfg, 0, 0))

	_, done := m.Update(Sample{Timestamp: 0.01, Temperature: 25})
	assert.True(t, done)
	assert.Equal(t, StageComplete, m.State().Stage)
}

func TestManagerSafetyFailureIsPermanent(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start(managerTestConfig(), 0, 0))

	// First tick enters the inertia phase.
	_, done := m.Update(Sample{Timestamp: 0.01, Temperature: 25})
	require.False(t, done)
	assert.Equal(t, StageInertia, m.State().Stage)

	_, done = m.Update(Sample{Timestamp: 0.02, CurrentIQ: 7, Temperature: 25})
	assert.True(t, done)
	assert.Equal(t, StageFailed, m.State().Stage)
	assert.Equal(t, CodeCurrentLimit, m.State().Code)
	assert.True(t, m.IsComplete())

	// Terminal managers keep emitting a zero command with done=true, even
	// for samples that would otherwise be fine.
	cmd, done := m.Update(Sample{Timestamp: 0.03, Temperature: 25})
	assert.True(t, done)
	assert.Equal(t, Command{}, cmd)

	res := m.Result(0.03)
	assert.False(t, res.Success)
	assert.Equal(t, CodeCurrentLimit, res.ErrorCode)
}

func TestManagerPhaseTimeout(t *testing.T) {
	m := NewManager()
	cfg := managerTestConfig()
	cfg.PhaseTimeout = 1.0
	require.NoError(t, m.Start(cfg, 0, 0))

	_, done := m.Update(Sample{Timestamp: 0.01, Temperature: 25})
	require.False(t, done)

	// A sample far past the per-phase window trips the timeout check.
	_, done = m.Update(Sample{Timestamp: 2.0, Temperature: 25})
	assert.True(t, done)
	assert.Equal(t, CodeTimeout, m.State().Code)
}

func TestManagerStatus(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start(managerTestConfig(), 0, 0))

	st := m.Status(0)
	assert.Equal(t, StageInitializing, st.Stage)
	assert.Zero(t, st.Progress)

	_, _ = m.Update(Sample{Timestamp: 0.01, Position: 0.2, Velocity: 1.5, CurrentIQ: 1.0, Temperature: 25})
	st = m.Status(0.01)
	assert.Equal(t, StageInertia, st.Stage)
	assert.Equal(t, 0.2, st.Position)
	assert.Equal(t, 1.5, st.Velocity)
	assert.Equal(t, 1.0, st.CurrentIQ)
	assert.LessOrEqual(t, st.TimeRemaining, nominalPhaseSeconds[StageInertia])

	m.Stop()
	st = m.Status(0.02)
	assert.Equal(t, StageFailed, st.Stage)
	assert.Equal(t, CodeUserAbort, st.Error)
	assert.Equal(t, 1.0, st.Progress)
}

func TestErrorCodeOf(t *testing.T) {
	assert.Equal(t, CodeSuccess, ErrorCodeOf(nil))

	coded := &CodedError{Code: CodeTimeout, Err: errors.New("boom")}
	assert.Equal(t, CodeTimeout, ErrorCodeOf(coded))

	wrapped := &CodedError{Code: CodeUserAbort, Err: coded}
	assert.Equal(t, CodeUserAbort, ErrorCodeOf(wrapped), "outermost code wins")

	assert.Equal(t, CodeHardwareError, ErrorCodeOf(errors.New("plain")))
}
