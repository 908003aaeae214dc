package geofilter

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/1F47E/geo-filter/pkg/bbox"
	"github.com/1F47E/geo-filter/pkg/geo"
	"github.com/1F47E/geo-filter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var madrid = models.Location{Lat: 40.0, Lon: -3.0}

// place is a test record with an ID, coordinates and an optional distance field
type place struct {
	id     string
	fields Fields
}

func (p *place) NumericField(key string) (float64, bool) { return p.fields.NumericField(key) }
func (p *place) SetNumericField(key string, v float64) bool {
	return p.fields.SetNumericField(key, v)
}

func newPlace(id string, lat, lng float64) *place {
	return &place{id: id, fields: Fields{"lat": lat, "lng": lng}}
}

func withDistanceField(p *place) *place {
	p.fields["dist"] = -1
	return p
}

func ids(records []*place) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.id
	}
	return out
}

func matchIDs(matches []Match[*place]) []string {
	return ids(Records(matches))
}

func madridScenario() (a, b, c *place) {
	a = withDistanceField(newPlace("A", 40.0, -3.0))
	b = withDistanceField(newPlace("B", 40.01, -3.0))
	c = withDistanceField(newPlace("C", 40.005, -3.0))
	return a, b, c
}

func TestFilterByBox(t *testing.T) {
	records := []*place{
		newPlace("SF", 37.7749, -122.4194),
		newPlace("LA", 34.0522, -118.2437),
		newPlace("NYC", 40.7128, -74.0060),
		newPlace("SD", 32.7157, -117.1611),
		newPlace("CHI", 41.8781, -87.6298),
	}
	box := models.BoundingBox{
		TopLeft:     models.Location{Lat: 42.0, Lon: -125.0},
		BottomRight: models.Location{Lat: 32.0, Lon: -114.0},
	}

	results, err := FilterByBox(records, box)
	require.NoError(t, err)
	assert.Equal(t, []string{"SF", "LA", "SD"}, ids(results))
}

func TestFilterByBoxEdgesInclusive(t *testing.T) {
	box := models.BoundingBox{
		TopLeft:     models.Location{Lat: 10, Lon: 20},
		BottomRight: models.Location{Lat: 0, Lon: 30},
	}
	records := []*place{
		newPlace("top-left", 10, 20),
		newPlace("bottom-right", 0, 30),
		newPlace("above", 10.0000001, 25),
		newPlace("east", 5, 30.0000001),
	}

	results, err := FilterByBox(records, box)
	require.NoError(t, err)
	assert.Equal(t, []string{"top-left", "bottom-right"}, ids(results))
}

func TestFilterByBoxCustomKeys(t *testing.T) {
	records := []Fields{
		{"latitude": 1, "longitude": 1},
		{"latitude": 50, "longitude": 1},
	}
	box := bbox.FromRegion(models.Location{Lat: 0, Lon: 0}, 10, 10)

	results, err := FilterByBox(records, box, WithKeys("latitude", "longitude"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0]["latitude"])
}

func TestFilterByBoxMissingField(t *testing.T) {
	records := []Fields{
		{"lat": 1, "lng": 1},
		{"lat": 2},
		{"lat": 3, "lng": 3},
	}
	box := bbox.FromRegion(models.Location{Lat: 0, Lon: 0}, 10, 10)

	t.Run("strict", func(t *testing.T) {
		_, err := FilterByBox(records, box, WithMode(Strict))
		require.Error(t, err)
		assert.True(t, errors.Is(err, geo.ErrMissingField))

		var fieldErr *geo.FieldError
		require.True(t, errors.As(err, &fieldErr))
		assert.Equal(t, "lng", fieldErr.Key)
		assert.Equal(t, 1, fieldErr.Index)
	})

	t.Run("lenient", func(t *testing.T) {
		results, err := FilterByBox(records, box, WithMode(Lenient))
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})
}

func TestFilterByBoxInvalidBox(t *testing.T) {
	box := models.BoundingBox{
		TopLeft:     models.Location{Lat: 100, Lon: 0},
		BottomRight: models.Location{Lat: 0, Lon: 10},
	}
	_, err := FilterByBox([]Fields{}, box)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestFilterByBoxIdempotent(t *testing.T) {
	records := randomPlaces(rand.New(rand.NewSource(1)), 2000)
	box := bbox.FromRegion(models.Location{Lat: 40, Lon: -3}, 1, 1)

	first, err := FilterByBox(records, box)
	require.NoError(t, err)
	second, err := FilterByBox(records, box)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))
}

func TestFilterByBoxEmpty(t *testing.T) {
	results, err := FilterByBox([]Fields{}, bbox.FromRegion(madrid, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFilterByRadiusMadrid(t *testing.T) {
	testCases := []struct {
		name     string
		order    Order
		expected []string
	}{
		{"ascending", Ascending, []string{"A", "C"}},
		{"descending", Descending, []string{"C", "A"}},
		{"unsorted keeps input order", Unsorted, []string{"A", "C"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, b, c := madridScenario()
			matches, err := FilterByRadius([]*place{a, b, c}, madrid, 1000, tc.order)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, matchIDs(matches))
		})
	}

	t.Run("unsorted with C first", func(t *testing.T) {
		a, b, c := madridScenario()
		matches, err := FilterByRadius([]*place{c, b, a}, madrid, 1000, Unsorted)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "A"}, matchIDs(matches))
	})

	t.Run("distances", func(t *testing.T) {
		a, b, c := madridScenario()
		matches, err := FilterByRadius([]*place{a, b, c}, madrid, 1000, Ascending)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.InDelta(t, 0, matches[0].Distance, 1e-6)
		assert.InDelta(t, 556, matches[1].Distance, 1)
		assert.InDelta(t, 1112, geo.Distance(madrid, models.Location{Lat: 40.01, Lon: -3.0}), 1)
	})
}

func TestFilterByRadiusAnnotation(t *testing.T) {
	a, b, c := madridScenario()
	records := []*place{a, b, c}

	_, err := FilterByRadius(records, madrid, 1000, Ascending, WithDistanceKey("dist"))
	require.NoError(t, err)

	assert.InDelta(t, 0, a.fields["dist"], 1e-6)
	assert.InDelta(t, 556, c.fields["dist"], 1)
	assert.Equal(t, -1.0, b.fields["dist"], "excluded record is not written")

	first := c.fields["dist"]
	_, err = FilterByRadius(records, madrid, 1000, Ascending, WithDistanceKey("dist"))
	require.NoError(t, err)
	assert.Equal(t, first, c.fields["dist"])
}

func TestFilterByRadiusAnnotationWriteIfExists(t *testing.T) {
	p := newPlace("no-dist", 40.0, -3.0)

	matches, err := FilterByRadius([]*place{p}, madrid, 1000, Unsorted, WithDistanceKey("dist"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	_, ok := p.fields["dist"]
	assert.False(t, ok, "missing distance field must not be created")
}

func TestFilterByRadiusNoAnnotationWithoutKey(t *testing.T) {
	a, _, _ := madridScenario()

	_, err := FilterByRadius([]*place{a}, madrid, 1000, Unsorted)
	require.NoError(t, err)
	assert.Equal(t, -1.0, a.fields["dist"])
}

func TestFilterByRadiusValidation(t *testing.T) {
	records := []*place{newPlace("A", 40, -3)}

	_, err := FilterByRadius(records, madrid, -5, Unsorted)
	assert.ErrorIs(t, err, geo.ErrInvalidRadius)

	_, err = FilterByRadius(records, models.Location{Lat: -91, Lon: 0}, 10, Unsorted)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestFilterByRadiusZeroRadius(t *testing.T) {
	a, b, _ := madridScenario()

	matches, err := FilterByRadius([]*place{a, b}, madrid, 0, Unsorted)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, matchIDs(matches))
}

func TestFilterByRadiusZeroRadiusFinePrecision(t *testing.T) {
	center := models.Location{Lat: 40.123456789012345, Lon: -3.987654321098765}
	records := []Fields{{"lat": center.Lat, "lng": center.Lon, "dist": -1}}

	matches, err := FilterByRadius(records, center, 0, Unsorted, WithDistanceKey("dist"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Zero(t, matches[0].Distance)
	assert.Zero(t, records[0]["dist"])

	matches, err = ParallelFilterByRadius(records, center, 0, Unsorted)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFilterByRadiusMissingField(t *testing.T) {
	records := []Fields{
		{"lat": 40.0, "lng": -3.0},
		{"lng": -3.0},
	}

	_, err := FilterByRadius(records, madrid, 1000, Unsorted)
	assert.ErrorIs(t, err, geo.ErrMissingField)

	matches, err := FilterByRadius(records, madrid, 1000, Unsorted, WithMode(Lenient))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFilterByRadiusProperties(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	records := randomPlaces(r, 5000)

	for i := 0; i < 20; i++ {
		center := models.Location{Lat: 39.5 + r.Float64(), Lon: -3.5 + r.Float64()}
		radius := 1000 + r.Float64()*30000

		box := bbox.FromRadius(center, radius)
		boxed, err := FilterByBox(records, box)
		require.NoError(t, err)

		for _, order := range []Order{Unsorted, Ascending, Descending} {
			matches, err := FilterByRadius(records, center, radius, order)
			require.NoError(t, err)

			kept := make(map[*place]bool, len(matches))
			for _, m := range matches {
				kept[m.Record] = true
				assert.LessOrEqual(t, m.Distance, radius)
				assert.True(t, box.Contains(location(m.Record)), "match outside the pre-filter box")
			}

			for _, p := range boxed {
				if !kept[p] {
					assert.Greater(t, geo.Distance(location(p), center), radius)
				}
			}

			switch order {
			case Ascending:
				for j := 1; j < len(matches); j++ {
					assert.LessOrEqual(t, matches[j-1].Distance, matches[j].Distance)
				}
			case Descending:
				for j := 1; j < len(matches); j++ {
					assert.GreaterOrEqual(t, matches[j-1].Distance, matches[j].Distance)
				}
			case Unsorted:
				var expected []*place
				for _, p := range boxed {
					if kept[p] {
						expected = append(expected, p)
					}
				}
				assert.Equal(t, ids(expected), matchIDs(matches))
			}
		}
	}
}

func TestFilterByRadiusKeepsPointsNearTangentMeridian(t *testing.T) {
	center := models.Location{Lat: 60.0, Lon: 10.0}
	radius := 500000.0

	// the easternmost point of the circle is reached at a bearing north of 90
	var edge models.Location
	for bearing := 60.0; bearing <= 90; bearing += 0.1 {
		p := geo.Offset(center, radius*0.999, bearing)
		if p.Lon > edge.Lon {
			edge = p
		}
	}
	require.Greater(t, edge.Lon, geo.Offset(center, radius, 90).Lon)

	matches, err := FilterByRadius([]*place{newPlace("edge", edge.Lat, edge.Lon)}, center, radius, Unsorted)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestStableSortTies(t *testing.T) {
	records := []*place{
		newPlace("first", 40.001, -3.0),
		newPlace("far", 40.003, -3.0),
		newPlace("second", 40.001, -3.0),
	}

	asc, err := FilterByRadius(records, madrid, 1000, Ascending)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "far"}, matchIDs(asc))

	desc, err := FilterByRadius(records, madrid, 1000, Descending)
	require.NoError(t, err)
	assert.Equal(t, []string{"far", "first", "second"}, matchIDs(desc))
}

func TestAccessorRecord(t *testing.T) {
	type row struct {
		Latitude, Longitude, Meters float64
	}
	rows := []*row{{Latitude: 40.0, Longitude: -3.0}, {Latitude: 41.0, Longitude: -3.0}}

	records := make([]Accessor, len(rows))
	for i, r := range rows {
		records[i] = Accessor{
			Get: func(key string) (float64, bool) {
				switch key {
				case "lat":
					return r.Latitude, true
				case "lng":
					return r.Longitude, true
				case "meters":
					return r.Meters, true
				}
				return 0, false
			},
			Set: func(key string, v float64) bool {
				if key != "meters" {
					return false
				}
				r.Meters = v
				return true
			},
		}
	}

	matches, err := FilterByRadius(records, models.Location{Lat: 40.005, Lon: -3.0}, 1000, Ascending, WithDistanceKey("meters"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 556, rows[0].Meters, 1)
	assert.Equal(t, 0.0, rows[1].Meters)
}

func TestPointRecord(t *testing.T) {
	points := []*models.Point{
		{ID: "center", Location: &models.Location{Lat: 40.0, Lon: -3.0}},
		{ID: "near", Location: &models.Location{Lat: 40.005, Lon: -3.0}},
		{ID: "nowhere"},
	}

	_, err := FilterByRadius(points, madrid, 1000, Ascending)
	assert.ErrorIs(t, err, geo.ErrMissingField)

	matches, err := FilterByRadius(points, madrid, 1000, Descending,
		WithMode(Lenient), WithDistanceKey(models.FieldDistance))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].Record.ID)
	assert.InDelta(t, 556, points[1].Distance, 1)
}

func TestOrderAndModeStrings(t *testing.T) {
	assert.Equal(t, Ascending, SortAscending(true))
	assert.Equal(t, Descending, SortAscending(false))
	assert.Equal(t, "asc", Ascending.String())
	assert.Equal(t, "lenient", Lenient.String())

	for _, o := range []Order{Unsorted, Ascending, Descending} {
		parsed, err := ParseOrder(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, parsed)
	}
	parsed, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, Unsorted, parsed)
	_, err = ParseOrder("sideways")
	assert.Error(t, err)
}

func location(p *place) models.Location {
	return models.Location{Lat: p.fields["lat"], Lon: p.fields["lng"]}
}

func randomPlaces(r *rand.Rand, n int) []*place {
	out := make([]*place, n)
	for i := range out {
		out[i] = newPlace(fmt.Sprintf("p%d", i), 39+r.Float64()*2, -4+r.Float64()*2)
	}
	return out
}

func BenchmarkFilterByBox(b *testing.B) {
	records := randomPlaces(rand.New(rand.NewSource(1)), 100000)
	box := bbox.FromRegion(madrid, 0.5, 0.5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = FilterByBox(records, box)
	}
}

func BenchmarkFilterByRadius(b *testing.B) {
	records := randomPlaces(rand.New(rand.NewSource(1)), 100000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = FilterByRadius(records, madrid, 20000, Ascending)
	}
}
