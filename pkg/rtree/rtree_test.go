package rtree

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/1F47E/geo-filter/pkg/geo"
	"github.com/1F47E/geo-filter/pkg/geofilter"
	"github.com/1F47E/geo-filter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeoIndex(t *testing.T) {
	index := NewGeoIndex()
	assert.NotNil(t, index)
	assert.NotEmpty(t, index.partitions)
	assert.Equal(t, int64(0), index.Count())

	index = NewGeoIndexWithWorkers(0)
	assert.NotEmpty(t, index.partitions)
}

func TestIndexPoints(t *testing.T) {
	index := NewGeoIndexWithWorkers(4)

	points := []*models.Point{
		{ID: "1", Location: &models.Location{Lat: 37.7749, Lon: -122.4194}}, // San Francisco
		{ID: "2", Location: &models.Location{Lat: 34.0522, Lon: -118.2437}}, // Los Angeles
		{ID: "3", Location: &models.Location{Lat: 40.7128, Lon: -74.0060}},  // New York
		{ID: "4", Location: nil},                                            // Point without location
	}

	err := index.IndexPoints(points)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), index.Count()) // Only 3 points have locations

	err = index.IndexPoints([]*models.Point{{ID: "bad", Location: &models.Location{Lat: 95, Lon: 0}}})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestQueryBox(t *testing.T) {
	index := NewGeoIndexWithWorkers(8)

	points := []*models.Point{
		{ID: "SF", Location: &models.Location{Lat: 37.7749, Lon: -122.4194}},
		{ID: "LA", Location: &models.Location{Lat: 34.0522, Lon: -118.2437}},
		{ID: "SD", Location: &models.Location{Lat: 32.7157, Lon: -117.1611}},
		{ID: "NYC", Location: &models.Location{Lat: 40.7128, Lon: -74.0060}}, // outside
		{ID: "CHI", Location: &models.Location{Lat: 41.8781, Lon: -87.6298}}, // outside
	}
	require.NoError(t, index.IndexPoints(points))

	// Box covering California
	box := models.BoundingBox{
		TopLeft:     models.Location{Lat: 42.0, Lon: -125.0},
		BottomRight: models.Location{Lat: 32.0, Lon: -114.0},
	}

	results, err := index.QueryBox(box)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"SF", "LA", "SD"}, pointIDs(results))

	_, err = index.QueryBox(models.BoundingBox{TopLeft: models.Location{Lat: 100}})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	// inverted boxes match nothing
	results, err = index.QueryBox(models.BoundingBox{TopLeft: box.BottomRight, BottomRight: box.TopLeft})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryBoxMatchesLinearScan(t *testing.T) {
	points := generateRandomPoints(20000)
	index := NewGeoIndexWithWorkers(6)
	require.NoError(t, index.IndexPoints(points))

	box := models.BoundingBox{
		TopLeft:     models.Location{Lat: 45, Lon: -110},
		BottomRight: models.Location{Lat: 35, Lon: -95},
	}

	indexed, err := index.QueryBox(box)
	require.NoError(t, err)

	linear, err := geofilter.FilterByBox(points, box, geofilter.WithKeys(models.FieldLat, models.FieldLon))
	require.NoError(t, err)

	assert.ElementsMatch(t, pointIDs(linear), pointIDs(indexed))
}

func TestQueryRadius(t *testing.T) {
	index := NewGeoIndex()

	sfLat, sfLon := 37.7749, -122.4194
	points := []*models.Point{
		{ID: "SF", Location: &models.Location{Lat: sfLat, Lon: sfLon}},
		{ID: "Oakland", Location: &models.Location{Lat: 37.8044, Lon: -122.2712}},    // ~13km
		{ID: "San Jose", Location: &models.Location{Lat: 37.3382, Lon: -121.8863}},   // ~68km
		{ID: "Sacramento", Location: &models.Location{Lat: 38.5816, Lon: -121.4944}}, // ~120km
		{ID: "LA", Location: &models.Location{Lat: 34.0522, Lon: -118.2437}},         // ~560km
	}
	require.NoError(t, index.IndexPoints(points))

	testCases := []struct {
		name     string
		radius   float64
		expected []string
	}{
		{"10km radius", 10000, []string{"SF"}},
		{"20km radius", 20000, []string{"SF", "Oakland"}},
		{"80km radius", 80000, []string{"SF", "Oakland", "San Jose"}},
		{"150km radius", 150000, []string{"SF", "Oakland", "San Jose", "Sacramento"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			center := models.Location{Lat: sfLat, Lon: sfLon}
			results, err := index.QueryRadius(center, tc.radius, geofilter.Ascending)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, pointIDs(geofilter.Records(results)))
		})
	}

	_, err := index.QueryRadius(models.Location{Lat: sfLat, Lon: sfLon}, -1, geofilter.Unsorted)
	assert.ErrorIs(t, err, geo.ErrInvalidRadius)
}

func TestQueryRadiusMatchesLinearScan(t *testing.T) {
	points := generateRandomPoints(20000)
	index := NewGeoIndexWithWorkers(3)
	require.NoError(t, index.IndexPoints(points))

	center := models.Location{Lat: 40, Lon: -100}
	indexed, err := index.QueryRadius(center, 150000, geofilter.Ascending)
	require.NoError(t, err)

	linear, err := geofilter.FilterByRadius(points, center, 150000, geofilter.Ascending,
		geofilter.WithKeys(models.FieldLat, models.FieldLon))
	require.NoError(t, err)

	require.Equal(t, len(linear), len(indexed))
	for i := range linear {
		assert.InDelta(t, linear[i].Distance, indexed[i].Distance, 1e-9)
	}
}

func TestNearestNeighbors(t *testing.T) {
	index := NewGeoIndex()

	points := []*models.Point{
		{ID: "1", Location: &models.Location{Lat: 37.7749, Lon: -122.4194}},
		{ID: "2", Location: &models.Location{Lat: 37.7849, Lon: -122.4094}},
		{ID: "3", Location: &models.Location{Lat: 37.7649, Lon: -122.4294}},
		{ID: "4", Location: &models.Location{Lat: 37.8049, Lon: -122.3994}},
		{ID: "5", Location: &models.Location{Lat: 37.7549, Lon: -122.4394}},
	}
	require.NoError(t, index.IndexPoints(points))

	center := models.Location{Lat: 37.7749, Lon: -122.4194}
	results := index.NearestNeighbors(center, 3)

	require.Len(t, results, 3)
	assert.Equal(t, "1", results[0].Record.ID)
	assert.Equal(t, 0.0, results[0].Distance)
	assert.True(t, sort.SliceIsSorted(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	}))

	assert.Nil(t, index.NearestNeighbors(center, 0))
}

func TestPersistence(t *testing.T) {
	index1 := NewGeoIndex()
	points := generateRandomPoints(100)
	require.NoError(t, index1.IndexPoints(points))

	file := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, index1.SaveToFile(file))

	index2 := NewGeoIndex()
	require.NoError(t, index2.LoadFromFile(file))
	assert.Equal(t, index1.Count(), index2.Count())

	box := models.BoundingBox{
		TopLeft:     models.Location{Lat: 40, Lon: -120},
		BottomRight: models.Location{Lat: 30, Lon: -110},
	}

	results1, err := index1.QueryBox(box)
	require.NoError(t, err)
	results2, err := index2.QueryBox(box)
	require.NoError(t, err)
	assert.ElementsMatch(t, pointIDs(results1), pointIDs(results2))

	loaded, err := ReadFile(file)
	require.NoError(t, err)
	assert.Len(t, loaded, 100)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	index := NewGeoIndex()
	require.NoError(t, index.IndexPoints(generateRandomPoints(50)))
	index.Clear()
	assert.Equal(t, int64(0), index.Count())

	points, err := index.Points()
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestConcurrentQueries(t *testing.T) {
	index := NewGeoIndex()
	require.NoError(t, index.IndexPoints(generateRandomPoints(10000)))

	done := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func(seed int64) {
			defer func() { done <- true }()
			r := rand.New(rand.NewSource(seed))

			switch r.Intn(3) {
			case 0:
				box := models.BoundingBox{
					TopLeft:     models.Location{Lat: r.Float64()*10 + 40, Lon: r.Float64()*10 - 120},
					BottomRight: models.Location{Lat: r.Float64()*10 + 30, Lon: r.Float64()*10 - 110},
				}
				_, err := index.QueryBox(box)
				assert.NoError(t, err)

			case 1:
				center := models.Location{Lat: r.Float64()*20 + 30, Lon: r.Float64()*40 - 120}
				_, err := index.QueryRadius(center, r.Float64()*100000+10000, geofilter.Ascending)
				assert.NoError(t, err)

			case 2:
				center := models.Location{Lat: r.Float64()*20 + 30, Lon: r.Float64()*40 - 120}
				results := index.NearestNeighbors(center, r.Intn(50)+1)
				assert.NotNil(t, results)
			}
		}(int64(i))
	}

	for i := 0; i < 100; i++ {
		<-done
	}
}

func pointIDs(points []*models.Point) []string {
	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	return ids
}

// Helper function to generate random points
func generateRandomPoints(n int) []*models.Point {
	r := rand.New(rand.NewSource(int64(n)))
	points := make([]*models.Point, n)
	for i := 0; i < n; i++ {
		points[i] = &models.Point{
			ID: fmt.Sprintf("point_%d", i),
			Location: &models.Location{
				Lat: r.Float64()*20 + 30,  // 30-50
				Lon: r.Float64()*40 - 120, // -120 to -80
			},
		}
	}
	return points
}

func BenchmarkIndexPoints(b *testing.B) {
	sizes := []int{1000, 10000, 100000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("%d_points", size), func(b *testing.B) {
			points := generateRandomPoints(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				index := NewGeoIndex()
				_ = index.IndexPoints(points)
			}
		})
	}
}

func BenchmarkQueryBox(b *testing.B) {
	index := NewGeoIndex()
	_ = index.IndexPoints(generateRandomPoints(100000))

	box := models.BoundingBox{
		TopLeft:     models.Location{Lat: 40, Lon: -115},
		BottomRight: models.Location{Lat: 35, Lon: -110},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = index.QueryBox(box)
	}
}

func BenchmarkQueryRadius(b *testing.B) {
	index := NewGeoIndex()
	_ = index.IndexPoints(generateRandomPoints(100000))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		center := models.Location{Lat: 37.5, Lon: -112.5}
		_, _ = index.QueryRadius(center, 50000, geofilter.Unsorted)
	}
}

func BenchmarkNearestNeighbors(b *testing.B) {
	index := NewGeoIndex()
	_ = index.IndexPoints(generateRandomPoints(100000))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		center := models.Location{Lat: 37.5, Lon: -112.5}
		_ = index.NearestNeighbors(center, 10)
	}
}
