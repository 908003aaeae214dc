// Package dataset produces and persists the records the geofilter tools
// work on: generated points, record files and GeoJSON exports.
package dataset

import (
	"math/rand"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/1F47E/geo-filter/pkg/models"
)

// Generate returns n points spread over populated areas. The same seed and
// worker count always give the same points, ids included.
func Generate(n int, seed int64, workers int) ([]*models.Point, error) {
	if n <= 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)

	points := make([]*models.Point, n)
	batchSize := n / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * batchSize
		end := start + batchSize
		if w == workers-1 {
			end = n
		}

		g.Go(func() error {
			r := rand.New(rand.NewSource(seed + int64(start)))
			for i := start; i < end; i++ {
				id, err := uuid.NewRandomFromReader(r)
				if err != nil {
					return err
				}
				loc := randomLocation(r)
				points[i] = &models.Point{ID: id.String(), Location: &loc}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

// randomLocation concentrates points around major population centers
func randomLocation(r *rand.Rand) models.Location {
	switch r.Intn(5) {
	case 0: // North America
		return models.Location{Lat: r.Float64()*30 + 30, Lon: r.Float64()*60 - 120}
	case 1: // Europe
		return models.Location{Lat: r.Float64()*20 + 40, Lon: r.Float64()*40 - 10}
	case 2: // Asia
		return models.Location{Lat: r.Float64()*40 + 20, Lon: r.Float64()*80 + 60}
	case 3: // South America
		return models.Location{Lat: r.Float64()*40 - 50, Lon: r.Float64()*30 - 80}
	default:
		return models.Location{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
	}
}
