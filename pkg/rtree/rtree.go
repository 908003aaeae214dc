// Package rtree is a record store backed by a partitioned R-Tree. It uses
// the tree only to narrow a query down to candidate points; the exact box
// and radius semantics come from geofilter.
package rtree

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"

	"github.com/1F47E/geo-filter/pkg/bbox"
	"github.com/1F47E/geo-filter/pkg/geo"
	"github.com/1F47E/geo-filter/pkg/geofilter"
	"github.com/1F47E/geo-filter/pkg/models"
)

const (
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialPoint wraps a point to implement rtreego.Spatial interface
type spatialPoint struct {
	*models.Point
	rect *rtreego.Rect
}

func (sp *spatialPoint) Bounds() *rtreego.Rect {
	return sp.rect
}

// GeoIndex is a thread-safe store of points split into longitude bands,
// one R-Tree per band
type GeoIndex struct {
	partitions      []*rtreego.Rtree
	partitionBounds []models.BoundingBox
	mu              sync.RWMutex
	itemCount       atomic.Int64
}

// NewGeoIndex creates an index with one partition per CPU
func NewGeoIndex() *GeoIndex {
	return NewGeoIndexWithWorkers(runtime.NumCPU())
}

// NewGeoIndexWithWorkers creates an index with the given number of partitions
func NewGeoIndexWithWorkers(numPartitions int) *GeoIndex {
	if numPartitions <= 0 {
		numPartitions = runtime.NumCPU()
	}

	partitions := make([]*rtreego.Rtree, numPartitions)
	partitionBounds := make([]models.BoundingBox, numPartitions)

	lonRange := 360.0 / float64(numPartitions)
	for i := 0; i < numPartitions; i++ {
		partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)

		minLon := -180.0 + float64(i)*lonRange
		maxLon := minLon + lonRange
		if i == numPartitions-1 {
			maxLon = 180.0 // last band takes the rounding remainder
		}

		partitionBounds[i] = models.BoundingBox{
			TopLeft:     models.Location{Lat: 90, Lon: minLon},
			BottomRight: models.Location{Lat: -90, Lon: maxLon},
		}
	}

	return &GeoIndex{
		partitions:      partitions,
		partitionBounds: partitionBounds,
	}
}

// IndexPoints adds points to the index. Points without a location are skipped.
func (g *GeoIndex) IndexPoints(points []*models.Point) error {
	if len(points) == 0 {
		return nil
	}

	numPartitions := len(g.partitions)
	partitioned := make([][]*spatialPoint, numPartitions)
	for i := range partitioned {
		partitioned[i] = make([]*spatialPoint, 0, len(points)/numPartitions)
	}

	for _, point := range points {
		if point == nil || point.Location == nil {
			continue
		}
		if err := geo.ValidateLocation(*point.Location); err != nil {
			return fmt.Errorf("point %s: %w", point.ID, err)
		}

		p := rtreego.Point{point.Location.Lat, point.Location.Lon}
		idx := g.partitionFor(point.Location.Lon)
		partitioned[idx] = append(partitioned[idx], &spatialPoint{point, p.ToRect(tolerance)})
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var wg sync.WaitGroup
	var inserted atomic.Int64

	for i, items := range partitioned {
		if len(items) == 0 {
			continue
		}

		wg.Add(1)
		go func(tree *rtreego.Rtree, items []*spatialPoint) {
			defer wg.Done()
			for _, item := range items {
				tree.Insert(item)
			}
			inserted.Add(int64(len(items)))
		}(g.partitions[i], items)
	}

	wg.Wait()
	g.itemCount.Add(inserted.Load())
	return nil
}

// QueryBox returns the indexed points inside box
func (g *GeoIndex) QueryBox(box models.BoundingBox) ([]*models.Point, error) {
	if err := bbox.Validate(box); err != nil {
		return nil, fmt.Errorf("box: %w", err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	candidates, err := g.candidates(box)
	if err != nil {
		return nil, err
	}
	return geofilter.FilterByBox(candidates, box, geofilter.WithKeys(models.FieldLat, models.FieldLon))
}

// QueryRadius returns the indexed points within radius meters of center,
// with their distances
func (g *GeoIndex) QueryRadius(center models.Location, radius float64, order geofilter.Order) ([]geofilter.Match[*models.Point], error) {
	box, err := bbox.ComputeBox(center, radius)
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	candidates, err := g.candidates(box)
	if err != nil {
		return nil, err
	}
	return geofilter.FilterByRadius(candidates, center, radius, order,
		geofilter.WithKeys(models.FieldLat, models.FieldLon))
}

// NearestNeighbors returns the n points closest to center by great-circle
// distance, nearest first
func (g *GeoIndex) NearestNeighbors(center models.Location, n int) []geofilter.Match[*models.Point] {
	if n <= 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	resultsChan := make(chan []geofilter.Match[*models.Point], len(g.partitions))
	queryPoint := rtreego.Point{center.Lat, center.Lon}

	for _, tree := range g.partitions {
		go func(tree *rtreego.Rtree) {
			// planar neighbours are only candidates, so over-fetch
			results := tree.NearestNeighbors(n*2, queryPoint)

			ranked := make([]geofilter.Match[*models.Point], 0, len(results))
			for _, result := range results {
				sp, ok := result.(*spatialPoint)
				if !ok {
					continue
				}
				ranked = append(ranked, geofilter.Match[*models.Point]{
					Record:   sp.Point,
					Distance: geo.Distance(center, *sp.Point.Location),
				})
			}
			resultsChan <- ranked
		}(tree)
	}

	var all []geofilter.Match[*models.Point]
	for range g.partitions {
		all = append(all, <-resultsChan...)
	}

	slices.SortStableFunc(all, func(a, b geofilter.Match[*models.Point]) int {
		return cmp.Or(
			cmp.Compare(a.Distance, b.Distance),
			strings.Compare(a.Record.ID, b.Record.ID),
		)
	})

	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Count returns the number of indexed points
func (g *GeoIndex) Count() int64 {
	return g.itemCount.Load()
}

// Clear removes all points from the index
func (g *GeoIndex) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.partitions {
		g.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	g.itemCount.Store(0)
}

// candidates collects the points whose tree rectangles intersect box, in
// partition order. An inverted box matches nothing, as in geofilter.
// Callers hold the read lock.
func (g *GeoIndex) candidates(box models.BoundingBox) ([]*models.Point, error) {
	if box.TopLeft.Lat < box.BottomRight.Lat || box.TopLeft.Lon > box.BottomRight.Lon {
		return nil, nil
	}

	rect, err := rtreego.NewRect(
		rtreego.Point{box.BottomRight.Lat - tolerance, box.TopLeft.Lon - tolerance},
		[]float64{
			box.TopLeft.Lat - box.BottomRight.Lat + 2*tolerance,
			box.BottomRight.Lon - box.TopLeft.Lon + 2*tolerance,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid search rectangle: %w", err)
	}

	relevant := g.relevantPartitions(box)
	parts := make([][]*models.Point, len(relevant))

	var wg sync.WaitGroup
	for i, idx := range relevant {
		wg.Add(1)
		go func(i int, tree *rtreego.Rtree) {
			defer wg.Done()
			for _, result := range tree.SearchIntersect(rect) {
				if item, ok := result.(*spatialPoint); ok {
					parts[i] = append(parts[i], item.Point)
				}
			}
		}(i, g.partitions[idx])
	}
	wg.Wait()

	var points []*models.Point
	for _, p := range parts {
		points = append(points, p...)
	}
	return points, nil
}

// partitionFor returns the band holding lon
func (g *GeoIndex) partitionFor(lon float64) int {
	numPartitions := len(g.partitions)
	idx := int((lon + 180.0) / (360.0 / float64(numPartitions)))
	if idx >= numPartitions {
		idx = numPartitions - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// relevantPartitions returns the indices of bands that overlap box. The
// margin matches the tolerance used when a point is inserted.
func (g *GeoIndex) relevantPartitions(box models.BoundingBox) []int {
	var relevant []int
	for i, bounds := range g.partitionBounds {
		if box.TopLeft.Lon-tolerance <= bounds.BottomRight.Lon &&
			box.BottomRight.Lon+tolerance >= bounds.TopLeft.Lon {
			relevant = append(relevant, i)
		}
	}
	return relevant
}
