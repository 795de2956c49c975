// Package units provides shared constants and validation for distance units
package units

import "math"

// Unit constants
const (
	M  = "m"
	KM = "km"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{M, KM}

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
	return "m, km"
}

// ConvertDistance converts a distance from meters to the target units.
// The database stores coordinates and distances in meters.
func ConvertDistance(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case KM:
		return meters / 1000
	case M:
		return meters
	default:
		return meters // default to meters if unknown unit
	}
}

// Degrees converts an angle in radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts an angle in degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
