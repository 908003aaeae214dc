package main

import (
	"fmt"
	"log"

	"github.com/1F47E/geo-filter/pkg/bbox"
	"github.com/1F47E/geo-filter/pkg/geofilter"
	"github.com/1F47E/geo-filter/pkg/models"
	"github.com/1F47E/geo-filter/pkg/rtree"
)

// city is a caller-owned record; the filters read it through field names
type city struct {
	name     string
	fields   geofilter.Fields
	distance float64
}

func (c *city) NumericField(key string) (float64, bool) {
	if key == "distance" {
		return c.distance, true
	}
	return c.fields.NumericField(key)
}

func (c *city) SetNumericField(key string, value float64) bool {
	if key == "distance" {
		c.distance = value
		return true
	}
	return c.fields.SetNumericField(key, value)
}

func newCity(name string, lat, lng float64) *city {
	return &city{name: name, fields: geofilter.Fields{"lat": lat, "lng": lng}}
}

func main() {
	cities := []*city{
		newCity("NYC", 40.7128, -74.0060),
		newCity("LAX", 34.0522, -118.2437),
		newCity("CHI", 41.8781, -87.6298),
		newCity("HOU", 29.7604, -95.3698),
		newCity("PHX", 33.4484, -112.0740),
		newCity("PHL", 39.9526, -75.1652),
		newCity("SAT", 29.4241, -98.4936),
		newCity("SDG", 32.7157, -117.1611),
		newCity("DAL", 32.7767, -96.7970),
		newCity("SJC", 37.3382, -121.8863),
		newCity("AUS", 30.2672, -97.7431),
		newCity("JAX", 30.3322, -81.6557),
		newCity("SFO", 37.7749, -122.4194),
		newCity("CLB", 39.9612, -82.9988),
		newCity("CLT", 35.2271, -80.8431),
	}

	// Example 1: Find cities in California (bounding box)
	fmt.Println("=== Cities in California (Bounding Box) ===")
	californiaBounds := models.BoundingBox{
		TopLeft:     models.Location{Lat: 42.0, Lon: -124.5},
		BottomRight: models.Location{Lat: 32.5, Lon: -114.0},
	}

	inBox, err := geofilter.FilterByBox(cities, californiaBounds)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found %d cities in California:\n", len(inBox))
	for _, c := range inBox {
		fmt.Printf("  - %s: (%.4f, %.4f)\n", c.name, c.fields["lat"], c.fields["lng"])
	}

	// Example 2: Map viewport around Texas
	fmt.Println("\n=== Cities in a 6x8 degree region around Austin ===")
	texas, err := bbox.ComputeRegionBox(models.Region{
		Center:  models.Location{Lat: 30.2672, Lon: -97.7431},
		LatSpan: 6,
		LonSpan: 8,
	})
	if err != nil {
		log.Fatal(err)
	}

	inRegion, err := geofilter.FilterByBox(cities, texas)
	if err != nil {
		log.Fatal(err)
	}
	for _, c := range inRegion {
		fmt.Printf("  - %s\n", c.name)
	}

	// Example 3: Find cities within 500km of Dallas, nearest first
	fmt.Println("\n=== Cities within 500km of Dallas ===")
	dallasLocation := models.Location{Lat: 32.7767, Lon: -96.7970}

	matches, err := geofilter.FilterByRadius(cities, dallasLocation, 500000, geofilter.Ascending,
		geofilter.WithDistanceKey("distance"))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found %d cities within 500km of Dallas:\n", len(matches))
	for _, m := range matches {
		fmt.Printf("  - %s: %.1f km away\n", m.Record.name, m.Record.distance/1000)
	}

	// Example 4: Find 5 nearest cities to Denver with the R-Tree store
	fmt.Println("\n=== 5 Nearest Cities to Denver ===")
	index := rtree.NewGeoIndex()

	points := make([]*models.Point, len(cities))
	for i, c := range cities {
		points[i] = &models.Point{
			ID:       c.name,
			Location: &models.Location{Lat: c.fields["lat"], Lon: c.fields["lng"]},
		}
	}
	if err := index.IndexPoints(points); err != nil {
		log.Fatal(err)
	}

	denverLocation := models.Location{Lat: 39.7392, Lon: -104.9903}
	nearest := index.NearestNeighbors(denverLocation, 5)

	fmt.Printf("Found %d nearest cities to Denver:\n", len(nearest))
	for i, m := range nearest {
		fmt.Printf("  %d. %s: %.1f km away\n", i+1, m.Record.ID, m.Distance/1000)
	}
}
