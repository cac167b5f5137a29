// Package units provides shared constants and validation for angular
// velocity units used by the telemetry API. Calibration math and the
// database store angular velocity in rad/s.
package units

// Unit constants
const (
	RadPerSec = "rads"
	DegPerSec = "degs"
	RPM       = "rpm"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{RadPerSec, DegPerSec, RPM}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "rads, degs, rpm"
}

// ConvertAngularVelocity converts an angular velocity from rad/s to the
// target units. Unknown units pass the value through unchanged.
func ConvertAngularVelocity(radPerSec float64, targetUnits string) float64 {
	switch targetUnits {
	case RadPerSec:
		return radPerSec
	case DegPerSec:
		return radPerSec * 57.29577951308232
	case RPM:
		return radPerSec * 9.549296585513721
	default:
		return radPerSec
	}
}

// ConvertAngle converts an angle from radians to the angular unit family
// of targetUnits (degrees for degs, revolutions for rpm).
func ConvertAngle(rad float64, targetUnits string) float64 {
	switch targetUnits {
	case DegPerSec:
		return rad * 57.29577951308232
	case RPM:
		return rad * 0.15915494309189535
	default:
		return rad
	}
}
