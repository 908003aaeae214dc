package dataset

import (
	"fmt"

	"github.com/1F47E/geo-filter/pkg/models"
)

// IDKey names the identifier field of a row
const IDKey = "id"

// Row is one record of a record file: a flat object whose numeric values
// are visible to the filters and whose other values ride along untouched.
type Row map[string]any

func (r Row) NumericField(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func (r Row) SetNumericField(key string, value float64) bool {
	if _, ok := r[key]; !ok {
		return false
	}
	r[key] = value
	return true
}

// ID returns the row identifier, or "" when it has none
func (r Row) ID() string {
	v, ok := r[IDKey]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Location reads the row coordinates from the given keys
func (r Row) Location(latKey, lngKey string) (models.Location, bool) {
	lat, ok := r.NumericField(latKey)
	if !ok {
		return models.Location{}, false
	}
	lng, ok := r.NumericField(lngKey)
	if !ok {
		return models.Location{}, false
	}
	return models.Location{Lat: lat, Lon: lng}, true
}

// FromPoints converts points to rows with id, lat and lng fields. A point
// without a location keeps only its id.
func FromPoints(points []*models.Point) []Row {
	rows := make([]Row, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		row := Row{IDKey: p.ID}
		if p.Location != nil {
			row[models.FieldLat] = p.Location.Lat
			row[models.FieldLng] = p.Location.Lon
		}
		rows = append(rows, row)
	}
	return rows
}

// ToPoints converts rows to points using the given coordinate keys. Rows
// missing either key become points without a location.
func ToPoints(rows []Row, latKey, lngKey string) []*models.Point {
	points := make([]*models.Point, len(rows))
	for i, row := range rows {
		points[i] = &models.Point{ID: row.ID()}
		if loc, ok := row.Location(latKey, lngKey); ok {
			points[i].Location = &loc
		}
	}
	return points
}
