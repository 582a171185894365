package geo

import (
	"math"
	"time"
)

const earthRadiusMeters = 6371000.0

// Fix is a single GPS reading. Accuracy and CapturedAt are optional;
// evaluators treat their absence as reduced information, not as an error.
type Fix struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	AccuracyM  *float64   `json:"accuracy_meters,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// CoordinateCheck is the result of validating a fix's coordinates.
type CoordinateCheck struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// DistanceMeters calculates the great-circle distance between two fixes in
// meters using the haversine formula. Symmetric, and zero for identical
// coordinates.
func DistanceMeters(a, b Fix) float64 {
	if a.Latitude == b.Latitude && a.Longitude == b.Longitude {
		return 0
	}

	dLat := (b.Latitude - a.Latitude) * math.Pi / 180.0
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*math.Pi/180.0)*math.Cos(b.Latitude*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// SpeedMetersPerSecond derives the travel speed implied by two timestamped
// fixes. Returns nil when either fix lacks a timestamp or the time delta is
// not positive.
func SpeedMetersPerSecond(a, b Fix) *float64 {
	if a.CapturedAt == nil || b.CapturedAt == nil {
		return nil
	}

	delta := b.CapturedAt.Sub(*a.CapturedAt).Seconds()
	if delta < 0 {
		delta = -delta
	}
	if delta == 0 {
		return nil
	}

	speed := DistanceMeters(a, b) / delta
	return &speed
}

// ValidateCoordinate checks a fix for well-formed coordinates.
func ValidateCoordinate(fix Fix) CoordinateCheck {
	check := CoordinateCheck{IsValid: true}

	if math.IsNaN(fix.Latitude) || math.IsInf(fix.Latitude, 0) {
		check.Errors = append(check.Errors, "latitude is not a number")
	} else if fix.Latitude < -90 || fix.Latitude > 90 {
		check.Errors = append(check.Errors, "latitude out of range [-90, 90]")
	}

	if math.IsNaN(fix.Longitude) || math.IsInf(fix.Longitude, 0) {
		check.Errors = append(check.Errors, "longitude is not a number")
	} else if fix.Longitude < -180 || fix.Longitude > 180 {
		check.Errors = append(check.Errors, "longitude out of range [-180, 180]")
	}

	if fix.AccuracyM != nil && *fix.AccuracyM < 0 {
		check.Errors = append(check.Errors, "accuracy must not be negative")
	}

	check.IsValid = len(check.Errors) == 0
	return check
}
