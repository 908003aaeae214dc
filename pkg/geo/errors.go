package geo

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a record lacks a requested coordinate field
	ErrMissingField = errors.New("missing field")

	// ErrInvalidCoordinate is returned for a latitude or longitude outside the valid range
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidRadius is returned for a negative or non-finite radius
	ErrInvalidRadius = errors.New("invalid radius")
)

// FieldError reports which record lacked which field
type FieldError struct {
	Key   string
	Index int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("record %d: field %q: %v", e.Index, e.Key, ErrMissingField)
}

func (e *FieldError) Unwrap() error {
	return ErrMissingField
}

// CoordinateError reports an out-of-range location
type CoordinateError struct {
	Lat float64
	Lon float64
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("(%g, %g): %v", e.Lat, e.Lon, ErrInvalidCoordinate)
}

func (e *CoordinateError) Unwrap() error {
	return ErrInvalidCoordinate
}
