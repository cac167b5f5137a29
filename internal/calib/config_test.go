package calib

import "testing"

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Phases:           PhaseInertia | PhaseFriction,
		MaxCurrent:       5,
		MaxVelocity:      4,
		MaxPositionRange: 1,
		PhaseTimeout:     30,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"max current boundary", func(c *Config) { c.MaxCurrent = 15 }, false},
		{"max velocity boundary", func(c *Config) { c.MaxVelocity = 10 }, false},
		{"zero current", func(c *Config) { c.MaxCurrent = 0 }, true},
		{"negative current", func(c *Config) { c.MaxCurrent = -1 }, true},
		{"current above ceiling", func(c *Config) { c.MaxCurrent = 15.1 }, true},
		{"zero velocity", func(c *Config) { c.MaxVelocity = 0 }, true},
		{"velocity above ceiling", func(c *Config) { c.MaxVelocity = 10.5 }, true},
		{"zero position range", func(c *Config) { c.MaxPositionRange = 0 }, true},
		{"negative position range", func(c *Config) { c.MaxPositionRange = -0.5 }, true},
		{"zero timeout", func(c *Config) { c.PhaseTimeout = 0 }, true},
		{"negative timeout", func(c *Config) { c.PhaseTimeout = -10 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigPhaseEnabled(t *testing.T) {
	c := Config{Phases: PhaseInertia | PhaseDamping}

	if !c.PhaseEnabled(PhaseInertia) {
		t.Error("expected inertia phase enabled")
	}
	if !c.PhaseEnabled(PhaseDamping) {
		t.Error("expected damping phase enabled")
	}
	if c.PhaseEnabled(PhaseFriction) {
		t.Error("expected friction phase disabled")
	}
	if c.PhaseEnabled(PhaseValidation) {
		t.Error("expected validation phase disabled")
	}
}

func TestPhaseOrderCoversAllBits(t *testing.T) {
	var mask uint8
	for _, bit := range phaseOrder {
		if mask&bit != 0 {
			t.Fatalf("phase bit 0x%02x listed twice", bit)
		}
		mask |= bit
	}
	want := PhaseInertia | PhaseFriction | PhaseTorqueConstant | PhaseDamping | PhaseValidation
	if mask != want {
		t.Errorf("phase order mask = 0x%02x, want 0x%02x", mask, want)
	}
}
