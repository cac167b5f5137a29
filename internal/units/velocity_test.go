package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		unit string
		want bool
	}{
		{RadPerSec, true},
		{DegPerSec, true},
		{RPM, true},
		{"", false},
		{"mps", false},
		{"RPM", false}, // case sensitive
	}

	for _, tt := range tests {
		if got := IsValid(tt.unit); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.want)
		}
	}
}

func TestConvertAngularVelocity(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		unit  string
		want  float64
	}{
		{"rads passthrough", 2.5, RadPerSec, 2.5},
		{"one rad/s in deg/s", 1.0, DegPerSec, 57.29577951308232},
		{"one rad/s in rpm", 1.0, RPM, 9.549296585513721},
		{"2pi rad/s is 60 rpm", 2 * math.Pi, RPM, 60.0},
		{"unknown unit passthrough", 3.0, "furlongs", 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertAngularVelocity(tt.value, tt.unit)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvertAngularVelocity(%v, %q) = %v, want %v", tt.value, tt.unit, got, tt.want)
			}
		})
	}
}

func TestConvertAngle(t *testing.T) {
	if got := ConvertAngle(math.Pi, DegPerSec); math.Abs(got-180.0) > 1e-9 {
		t.Errorf("ConvertAngle(pi, degs) = %v, want 180", got)
	}
	if got := ConvertAngle(2*math.Pi, RPM); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("ConvertAngle(2pi, rpm) = %v, want 1 rev", got)
	}
	if got := ConvertAngle(1.25, RadPerSec); got != 1.25 {
		t.Errorf("ConvertAngle(1.25, rads) = %v, want passthrough", got)
	}
}
