// Package geo provides spherical-Earth primitives: angle conversions,
// destination points by bearing and distance, and great-circle distance.
// Every function is pure and safe for concurrent use.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/1F47E/geo-filter/pkg/models"
)

const (
	// EarthRadius is the mean radius of the spherical model, in meters
	EarthRadius = 6371000.0

	// Precision is the number of decimal places kept after trigonometry
	Precision = 10
)

// ToRadians converts degrees to radians
func ToRadians(degrees float64) float64 {
	return (s1.Angle(degrees) * s1.Degree).Radians()
}

// ToDegrees converts radians to degrees
func ToDegrees(radians float64) float64 {
	return s1.Angle(radians).Degrees()
}

// RoundTo rounds value to the given number of decimal places, half away from zero
func RoundTo(value float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(value*scale) / scale
}

// NormalizeLongitude folds a longitude that overflowed by less than one
// turn back into [-180, 180)
func NormalizeLongitude(lon float64) float64 {
	if lon >= 180 {
		return lon - 360
	}
	if lon < -180 {
		return lon + 360
	}
	return lon
}

// Offset returns the point reached by travelling distance meters from
// start along the initial bearing (degrees clockwise from north).
func Offset(start models.Location, distance, bearing float64) models.Location {
	angular := distance / EarthRadius
	theta := ToRadians(bearing)
	lat1 := ToRadians(start.Lat)
	lon1 := ToRadians(start.Lon)

	sinLat2 := math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(theta)
	sinLat2 = math.Max(-1, math.Min(1, sinLat2))
	lat2 := math.Asin(sinLat2)

	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*sinLat2,
	)

	return models.Location{
		Lat: RoundTo(ToDegrees(lat2), Precision),
		Lon: NormalizeLongitude(RoundTo(ToDegrees(lon2), Precision)),
	}
}

// Distance calculates the haversine distance between two points in meters.
// The arguments are put in a canonical order first so the result does not
// depend on which point is passed first.
func Distance(a, b models.Location) float64 {
	if b.Lat < a.Lat || (b.Lat == a.Lat && b.Lon < a.Lon) {
		a, b = b, a
	}
	from := s2.LatLngFromDegrees(a.Lat, a.Lon)
	to := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return from.Distance(to).Radians() * EarthRadius
}

// ValidateLocation checks that loc is a finite coordinate inside
// [-90, 90] x [-180, 180]. Longitude 180 is accepted so that a box can end
// on the anti-meridian.
func ValidateLocation(loc models.Location) error {
	if math.IsNaN(loc.Lat) || math.IsNaN(loc.Lon) ||
		math.IsInf(loc.Lat, 0) || math.IsInf(loc.Lon, 0) ||
		loc.Lat < -90 || loc.Lat > 90 ||
		loc.Lon < -180 || loc.Lon > 180 {
		return &CoordinateError{Lat: loc.Lat, Lon: loc.Lon}
	}
	return nil
}

// ValidateRadius checks that a radius in meters is finite and non-negative
func ValidateRadius(radius float64) error {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidRadius, radius)
	}
	return nil
}
