// Package geofence checks that an attendance submission was made close enough
// to the class's registered location.
package geofence

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Coordinate is a point in degrees.
type Coordinate struct {
	Lat  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Long float64 `json:"long" validate:"gte=-180,lte=180"`
}

// Fence is a circular allowed area around a class location.
type Fence struct {
	Center       Coordinate
	RadiusMeters float64
}

// Violation is returned when the submitter is outside the fence.
type Violation struct {
	DistanceMeters int64 // rounded to the nearest meter
	RadiusMeters   float64
}

func (v *Violation) Error() string {
	return fmt.Sprintf("You are %dm away. Must be within %sm.", v.DistanceMeters, formatRadius(v.RadiusMeters))
}

// formatRadius prints whole radii without a decimal part ("100", not "100.0").
func formatRadius(r float64) string {
	if r == math.Trunc(r) {
		return fmt.Sprintf("%d", int64(r))
	}
	return fmt.Sprintf("%g", r)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the great-circle distance in meters between two coordinates.
func Distance(a, b Coordinate) float64 {
	phi1 := toRadians(a.Lat)
	phi2 := toRadians(b.Lat)
	dPhi := toRadians(b.Lat - a.Lat)
	dLambda := toRadians(b.Long - a.Long)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return constants.EarthRadiusMeters * c
}

// Validate returns nil when the submitter is inside the fence, or a *Violation.
// A nil fence, a fence without coordinates or a nil submitter always passes.
func Validate(submitter *Coordinate, fence *Fence) error {
	if fence == nil || submitter == nil {
		return nil
	}
	if fence.Center.Lat == 0 && fence.Center.Long == 0 {
		return nil
	}

	d := Distance(*submitter, fence.Center)
	if d > fence.RadiusMeters {
		return &Violation{
			DistanceMeters: int64(math.Round(d)),
			RadiusMeters:   fence.RadiusMeters,
		}
	}
	return nil
}
