// Package geofilter selects records that fall inside a bounding box or
// within a great-circle radius of a point. Records are scanned linearly;
// a radius query first discards everything outside the circle's bounding
// box so the exact distance is only computed for the survivors.
package geofilter

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/1F47E/geo-filter/pkg/bbox"
	"github.com/1F47E/geo-filter/pkg/geo"
	"github.com/1F47E/geo-filter/pkg/models"
)

// Match pairs a record kept by a radius filter with its distance to the
// center in meters
type Match[R Record] struct {
	Record   R
	Distance float64
}

// located is a record that passed the box test, with the coordinates read from it
type located[R Record] struct {
	record R
	loc    models.Location
}

// FilterByBox returns the records whose coordinates lie inside box, edges
// included, in input order.
func FilterByBox[R Record](records []R, box models.BoundingBox, opts ...Option) ([]R, error) {
	o := newOptions(opts)
	if err := bbox.Validate(box); err != nil {
		return nil, fmt.Errorf("box: %w", err)
	}

	hits, err := scanBox(records, box, o, 0)
	if err != nil {
		return nil, err
	}
	return unwrapLocated(hits), nil
}

// FilterByRadius returns the records within radius meters of center,
// paired with their distance. order decides whether the matches are sorted
// by distance; Unsorted keeps the input order.
func FilterByRadius[R Record](records []R, center models.Location, radius float64, order Order, opts ...Option) ([]Match[R], error) {
	o := newOptions(opts)
	if err := validateRadiusQuery(center, radius); err != nil {
		return nil, err
	}

	matches, err := scanRadius(records, center, radius, o, 0)
	if err != nil {
		return nil, err
	}
	annotate(matches, o)
	sortMatches(matches, order)
	return matches, nil
}

// Records strips the distances from a list of matches
func Records[R Record](matches []Match[R]) []R {
	out := make([]R, len(matches))
	for i, m := range matches {
		out[i] = m.Record
	}
	return out
}

func validateRadiusQuery(center models.Location, radius float64) error {
	if err := geo.ValidateLocation(center); err != nil {
		return fmt.Errorf("center: %w", err)
	}
	return geo.ValidateRadius(radius)
}

// scanBox runs the box predicate over records. base is the index of
// records[0] in the caller's slice and is only used in error reports.
func scanBox[R Record](records []R, box models.BoundingBox, o Options, base int) ([]located[R], error) {
	hits := make([]located[R], 0)
	for i, rec := range records {
		loc, err := locate(rec, o)
		if err != nil {
			if o.Mode == Lenient {
				continue
			}
			err.Index = base + i
			return nil, err
		}
		if box.Contains(loc) {
			hits = append(hits, located[R]{record: rec, loc: loc})
		}
	}
	return hits, nil
}

// scanRadius is the two-phase radius filter. It leaves the records
// untouched; annotation and sorting are up to the caller.
func scanRadius[R Record](records []R, center models.Location, radius float64, o Options, base int) ([]Match[R], error) {
	candidates, err := scanBox(records, bbox.FromRadius(center, radius), o, base)
	if err != nil {
		return nil, err
	}

	matches := make([]Match[R], 0, len(candidates))
	for _, c := range candidates {
		d := geo.Distance(c.loc, center)
		if d > radius {
			continue
		}
		matches = append(matches, Match[R]{Record: c.record, Distance: d})
	}
	return matches, nil
}

// annotate writes each distance into the configured field of records that have it
func annotate[R Record](matches []Match[R], o Options) {
	if o.DistanceKey == "" {
		return
	}
	for _, m := range matches {
		if _, ok := m.Record.NumericField(o.DistanceKey); ok {
			m.Record.SetNumericField(o.DistanceKey, m.Distance)
		}
	}
}

func locate[R Record](rec R, o Options) (models.Location, *geo.FieldError) {
	lat, ok := rec.NumericField(o.LatKey)
	if !ok {
		return models.Location{}, &geo.FieldError{Key: o.LatKey}
	}
	lon, ok := rec.NumericField(o.LngKey)
	if !ok {
		return models.Location{}, &geo.FieldError{Key: o.LngKey}
	}
	return models.Location{Lat: lat, Lon: lon}, nil
}

// compareMatches orders by distance in the given direction
func compareMatches[R Record](order Order) func(a, b Match[R]) int {
	if order == Descending {
		return func(a, b Match[R]) int { return cmp.Compare(b.Distance, a.Distance) }
	}
	return func(a, b Match[R]) int { return cmp.Compare(a.Distance, b.Distance) }
}

func sortMatches[R Record](matches []Match[R], order Order) {
	if order == Unsorted {
		return
	}
	slices.SortStableFunc(matches, compareMatches[R](order))
}

func unwrapLocated[R Record](hits []located[R]) []R {
	out := make([]R, len(hits))
	for i, h := range hits {
		out[i] = h.record
	}
	return out
}
