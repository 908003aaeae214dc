package models

import (
	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
)

// Field names exposed by Point
const (
	FieldLat      = "lat"
	FieldLng      = "lng"
	FieldLon      = "lon"
	FieldDistance = "distance"
)

// Location represents a geographic location with latitude and longitude in degrees
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Geohash encodes the location with the given number of characters
func (l Location) Geohash(precision uint) string {
	return geohash.EncodeWithPrecision(l.Lat, l.Lon, precision)
}

// OrbPoint returns the location as an orb point (lon, lat order)
func (l Location) OrbPoint() orb.Point {
	return orb.Point{l.Lon, l.Lat}
}

// BoundingBox represents an axis-aligned area defined by two corners.
// TopLeft holds the max latitude and min longitude, BottomRight the min
// latitude and max longitude.
type BoundingBox struct {
	TopLeft     Location `json:"top_left" yaml:"top_left"`
	BottomRight Location `json:"bottom_right" yaml:"bottom_right"`
}

// Contains reports whether loc lies inside the box, edges included
func (b BoundingBox) Contains(loc Location) bool {
	return loc.Lat >= b.BottomRight.Lat && loc.Lat <= b.TopLeft.Lat &&
		loc.Lon >= b.TopLeft.Lon && loc.Lon <= b.BottomRight.Lon
}

// Bound converts the box to an orb.Bound
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.TopLeft.Lon, b.BottomRight.Lat},
		Max: orb.Point{b.BottomRight.Lon, b.TopLeft.Lat},
	}
}

// Polygon returns the box outline, used for GeoJSON output
func (b BoundingBox) Polygon() orb.Polygon {
	return b.Bound().ToPolygon()
}

// Region is a map viewport: a center plus full angular spans in degrees
type Region struct {
	Center  Location `json:"center" yaml:"center"`
	LatSpan float64  `json:"lat_span" yaml:"lat_span"`
	LonSpan float64  `json:"lon_span" yaml:"lon_span"`
}

// Point represents a geo point with an ID and location
type Point struct {
	ID       string    `json:"id" yaml:"id"`
	Location *Location `json:"location" yaml:"location"`
	Distance float64   `json:"distance,omitempty" yaml:"distance,omitempty"`
}

// NumericField exposes the point's coordinates and distance by field name.
// A point without a location has no coordinate fields.
func (p *Point) NumericField(key string) (float64, bool) {
	switch key {
	case FieldDistance:
		return p.Distance, true
	}
	if p.Location == nil {
		return 0, false
	}
	switch key {
	case FieldLat:
		return p.Location.Lat, true
	case FieldLng, FieldLon:
		return p.Location.Lon, true
	}
	return 0, false
}

// SetNumericField writes the distance field. Coordinates are read-only.
func (p *Point) SetNumericField(key string, value float64) bool {
	if key != FieldDistance {
		return false
	}
	p.Distance = value
	return true
}
