package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/1F47E/geo-filter/pkg/geofilter"
	"github.com/1F47E/geo-filter/pkg/models"
)

// GeohashPrecision is the geohash length attached to exported features
const GeohashPrecision = 9

// Export turns query results into a GeoJSON feature collection
type Export struct {
	LatKey string
	LngKey string
	// Box is drawn as a polygon feature when set
	Box *models.BoundingBox
}

// Rows exports box query results
func (e Export) Rows(rows []Row) *geojson.FeatureCollection {
	fc := e.collection()
	for _, row := range rows {
		if f := e.feature(row); f != nil {
			fc.Append(f)
		}
	}
	return fc
}

// Matches exports radius query results with their distances
func (e Export) Matches(matches []geofilter.Match[Row]) *geojson.FeatureCollection {
	fc := e.collection()
	for _, m := range matches {
		if f := e.feature(m.Record); f != nil {
			f.Properties["distance_m"] = m.Distance
			fc.Append(f)
		}
	}
	return fc
}

func (e Export) collection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if e.Box != nil {
		boundary := geojson.NewFeature(e.Box.Polygon())
		boundary.Properties["type"] = "query_box"
		fc.Append(boundary)
	}
	return fc
}

// feature returns nil for a row without coordinates
func (e Export) feature(row Row) *geojson.Feature {
	loc, ok := row.Location(e.LatKey, e.LngKey)
	if !ok {
		return nil
	}

	f := geojson.NewFeature(loc.OrbPoint())
	for k, v := range row {
		if k == e.LatKey || k == e.LngKey {
			continue
		}
		f.Properties[k] = v
	}
	f.Properties["geohash"] = loc.Geohash(GeohashPrecision)
	return f
}

// WriteGeoJSON writes an indented feature collection
func WriteGeoJSON(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write GeoJSON: %w", err)
	}
	return nil
}
