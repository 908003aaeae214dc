// Package bbox builds latitude/longitude bounding boxes from map regions
// and from a center plus a radius.
package bbox

import (
	"fmt"
	"math"

	"github.com/1F47E/geo-filter/pkg/geo"
	"github.com/1F47E/geo-filter/pkg/models"
)

// Cardinal bearings in degrees
const (
	north = 0.0
	east  = 90.0
	south = 180.0
	west  = 270.0
)

// margin is one unit in the last decimal place kept by geo.Offset. Corners
// are pushed out by it so rounding never pulls an edge inside the circle.
var margin = math.Pow10(-geo.Precision)

// FromRegion returns the box spanned by a map viewport. This is flat
// coordinate arithmetic, not geodesic.
func FromRegion(center models.Location, latSpan, lonSpan float64) models.BoundingBox {
	return models.BoundingBox{
		TopLeft:     models.Location{Lat: center.Lat + latSpan/2, Lon: center.Lon - lonSpan/2},
		BottomRight: models.Location{Lat: center.Lat - latSpan/2, Lon: center.Lon + lonSpan/2},
	}
}

// FromRadius returns a box that circumscribes the circle of radius meters
// around center. Latitude limits come from the north and south offsets.
// Longitude limits come from the east and west offsets, widened to the
// circle's tangent meridians, which lie slightly further out everywhere
// off the equator. Circles reaching a pole or crossing the anti-meridian
// are not handled. Every edge is moved out by one rounding unit, so a point
// on the circle is never lost to rounding.
func FromRadius(center models.Location, radius float64) models.BoundingBox {
	n := geo.Offset(center, radius, north)
	e := geo.Offset(center, radius, east)
	s := geo.Offset(center, radius, south)
	w := geo.Offset(center, radius, west)

	box := models.BoundingBox{
		TopLeft:     models.Location{Lat: n.Lat, Lon: w.Lon},
		BottomRight: models.Location{Lat: s.Lat, Lon: e.Lon},
	}

	tangent, ok := tangentHalfWidth(center.Lat, radius)
	if !ok {
		return widen(box)
	}

	eastSpan := unwrap(e.Lon - center.Lon)
	westSpan := unwrap(center.Lon - w.Lon)
	half := math.Max(tangent, math.Max(eastSpan, westSpan))

	box.TopLeft.Lon = geo.NormalizeLongitude(geo.RoundTo(center.Lon-half, geo.Precision))
	box.BottomRight.Lon = geo.NormalizeLongitude(geo.RoundTo(center.Lon+half, geo.Precision))
	return widen(box)
}

// widen moves each edge of box out by margin, stopping at the poles and
// at ±180 so the box never wraps
func widen(box models.BoundingBox) models.BoundingBox {
	box.TopLeft.Lat = math.Min(90, box.TopLeft.Lat+margin)
	box.BottomRight.Lat = math.Max(-90, box.BottomRight.Lat-margin)
	if box.TopLeft.Lon-margin >= -180 {
		box.TopLeft.Lon -= margin
	}
	if box.BottomRight.Lon+margin < 180 {
		box.BottomRight.Lon += margin
	}
	return box
}

// ComputeBox validates its input and returns FromRadius(center, radius)
func ComputeBox(center models.Location, radius float64) (models.BoundingBox, error) {
	if err := geo.ValidateLocation(center); err != nil {
		return models.BoundingBox{}, fmt.Errorf("center: %w", err)
	}
	if err := geo.ValidateRadius(radius); err != nil {
		return models.BoundingBox{}, err
	}
	return FromRadius(center, radius), nil
}

// ComputeRegionBox validates a map region and returns its box
func ComputeRegionBox(region models.Region) (models.BoundingBox, error) {
	if err := geo.ValidateLocation(region.Center); err != nil {
		return models.BoundingBox{}, fmt.Errorf("region center: %w", err)
	}
	if math.IsNaN(region.LatSpan) || math.IsNaN(region.LonSpan) ||
		region.LatSpan < 0 || region.LonSpan < 0 {
		return models.BoundingBox{}, fmt.Errorf("region span (%g, %g): %w",
			region.LatSpan, region.LonSpan, geo.ErrInvalidCoordinate)
	}
	return FromRegion(region.Center, region.LatSpan, region.LonSpan), nil
}

// Validate checks both corners of a caller-supplied box
func Validate(box models.BoundingBox) error {
	if err := geo.ValidateLocation(box.TopLeft); err != nil {
		return fmt.Errorf("top left: %w", err)
	}
	if err := geo.ValidateLocation(box.BottomRight); err != nil {
		return fmt.Errorf("bottom right: %w", err)
	}
	return nil
}

// tangentHalfWidth returns the longitude half-width, in degrees, of the
// circle of the given radius centered at lat. It is undefined once the
// circle contains a pole.
func tangentHalfWidth(lat, radius float64) (float64, bool) {
	x := math.Sin(radius/geo.EarthRadius) / math.Cos(geo.ToRadians(lat))
	if math.IsNaN(x) || math.IsInf(x, 0) || x >= 1 || radius/geo.EarthRadius >= math.Pi/2 {
		return 0, false
	}
	return geo.ToDegrees(math.Asin(x)), true
}

// unwrap maps a longitude difference produced by a wrapped offset back to
// the span it came from
func unwrap(span float64) float64 {
	if span < -180 {
		return span + 360
	}
	return span
}
