package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1F47E/geo-filter/pkg/config"
	"github.com/1F47E/geo-filter/pkg/dataset"
	"github.com/1F47E/geo-filter/pkg/geofilter"
	"github.com/1F47E/geo-filter/pkg/models"
	"github.com/1F47E/geo-filter/pkg/rtree"
)

type stage int

const (
	stageLoading stage = iota
	stageBox
	stageScanRadius
	stageParallelRadius
	stageIndexRadius
	stageNearest
	stageDone
)

func (s stage) title() string {
	switch s {
	case stageLoading:
		return "Generating and Indexing Points"
	case stageBox:
		return "Bounding Box Queries"
	case stageScanRadius:
		return "Radius Filter (linear scan)"
	case stageParallelRadius:
		return "Radius Filter (parallel scan)"
	case stageIndexRadius:
		return "Radius Filter (R-Tree candidates)"
	case stageNearest:
		return "Nearest Neighbor Searches"
	}
	return "Done"
}

type benchmarkResult struct {
	totalQueries  int64
	totalTime     time.Duration
	totalResults  int64
	avgQueryTime  time.Duration
	queriesPerSec float64
}

type loadStats struct {
	points   int
	duration time.Duration
}

// reporter receives the demo progress; the TUI and the plain printer
// both implement it
type reporter interface {
	start(s stage, detail string)
	progress(p float64)
	message(msg string)
	loaded(stats loadStats)
	finished(s stage, stats benchmarkResult)
}

type demo struct {
	cfg     *config.Config
	out     reporter
	workers int

	points []*models.Point
	index  *rtree.GeoIndex
}

func newDemo(cfg *config.Config, out reporter) *demo {
	return &demo{
		cfg:     cfg,
		out:     out,
		workers: runtime.NumCPU(),
	}
}

// scanQueries caps the linear scan stages, which touch every point per query
func (d *demo) scanQueries() int {
	return max(d.cfg.Demo.Queries/10, 1)
}

func (d *demo) filterOptions() []geofilter.Option {
	return append(d.cfg.Filter.Options(), geofilter.WithKeys(models.FieldLat, models.FieldLon))
}

func (d *demo) run() {
	radius := d.cfg.Demo.RadiusMeters
	queries := d.cfg.Demo.Queries

	if err := d.load(); err != nil {
		d.out.message(fmt.Sprintf("Error loading points: %v", err))
		return
	}

	d.out.start(stageBox, fmt.Sprintf("Executing %d bounding box queries...", queries))
	d.out.finished(stageBox, d.timeQueries(queries, func(r *rand.Rand) int {
		res, err := d.index.QueryBox(randomBox(r))
		if err != nil {
			return 0
		}
		return len(res)
	}))

	opts := d.filterOptions()

	d.out.start(stageScanRadius, fmt.Sprintf("Executing %d radius filters (%.0fm) over every point...", d.scanQueries(), radius))
	d.out.finished(stageScanRadius, d.timeQueries(d.scanQueries(), func(r *rand.Rand) int {
		res, err := geofilter.FilterByRadius(d.points, randomCenter(r), radius, geofilter.Ascending, opts...)
		if err != nil {
			return 0
		}
		return len(res)
	}))

	d.out.start(stageParallelRadius, fmt.Sprintf("Executing %d radius filters split across %d workers...", d.scanQueries(), d.workers))
	d.out.finished(stageParallelRadius, d.timeSequential(d.scanQueries(), func(r *rand.Rand) int {
		res, err := geofilter.ParallelFilterByRadius(d.points, randomCenter(r), radius, geofilter.Ascending, opts...)
		if err != nil {
			return 0
		}
		return len(res)
	}))

	d.out.start(stageIndexRadius, fmt.Sprintf("Executing %d radius searches (%.0fm)...", queries, radius))
	d.out.finished(stageIndexRadius, d.timeQueries(queries, func(r *rand.Rand) int {
		res, err := d.index.QueryRadius(randomCenter(r), radius, geofilter.Ascending)
		if err != nil {
			return 0
		}
		return len(res)
	}))
	d.checkConsistency(radius)

	d.out.start(stageNearest, fmt.Sprintf("Finding 10 nearest neighbors for %d queries...", queries))
	d.out.finished(stageNearest, d.timeQueries(queries, func(r *rand.Rand) int {
		return len(d.index.NearestNeighbors(randomCenter(r), 10))
	}))
}

func (d *demo) load() error {
	n := d.cfg.Demo.Points
	d.out.start(stageLoading, fmt.Sprintf("Generating %d random points...", n))

	start := time.Now()
	points, err := dataset.Generate(n, start.UnixNano(), d.workers)
	if err != nil {
		return err
	}
	d.out.progress(0.5)

	index := rtree.NewGeoIndexWithWorkers(d.cfg.Index.Partitions)
	if err := index.IndexPoints(points); err != nil {
		return err
	}
	d.out.progress(1)

	if file := d.cfg.Index.File; file != "" {
		if err := index.SaveToFile(file); err != nil {
			d.out.message(fmt.Sprintf("Error saving index: %v", err))
		} else {
			d.out.message("Index saved to " + file)
		}
	}

	d.points = points
	d.index = index
	d.out.loaded(loadStats{points: len(points), duration: time.Since(start)})
	return nil
}

// checkConsistency runs one query through the R-Tree and the linear scan
// and reports whether both found the same records
func (d *demo) checkConsistency(radius float64) {
	center := randomCenter(rand.New(rand.NewSource(time.Now().UnixNano())))

	indexed, err := d.index.QueryRadius(center, radius, geofilter.Ascending)
	if err != nil {
		d.out.message(fmt.Sprintf("Consistency check failed: %v", err))
		return
	}
	scanned, err := geofilter.ParallelFilterByRadius(d.points, center, radius, geofilter.Ascending, d.filterOptions()...)
	if err != nil {
		d.out.message(fmt.Sprintf("Consistency check failed: %v", err))
		return
	}

	if len(indexed) == len(scanned) {
		d.out.message(fmt.Sprintf("R-Tree and linear scan agree: %d matches", len(indexed)))
	} else {
		d.out.message(fmt.Sprintf("R-Tree found %d matches, linear scan %d", len(indexed), len(scanned)))
	}
}

// timeQueries runs numQueries queries spread over the demo workers
func (d *demo) timeQueries(numQueries int, query func(r *rand.Rand) int) benchmarkResult {
	return d.timeWith(numQueries, d.workers, query)
}

// timeSequential runs queries one at a time, for queries that are
// parallel themselves
func (d *demo) timeSequential(numQueries int, query func(r *rand.Rand) int) benchmarkResult {
	return d.timeWith(numQueries, 1, query)
}

func (d *demo) timeWith(numQueries, numWorkers int, query func(r *rand.Rand) int) benchmarkResult {
	var totalResults atomic.Int64
	var queryCount atomic.Int32

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				d.out.progress(float64(queryCount.Load()) / float64(numQueries))
			}
		}
	}()

	start := time.Now()

	var wg sync.WaitGroup
	numWorkers = min(numWorkers, numQueries)
	queriesPerWorker := numQueries / numWorkers

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		startIdx := w * queriesPerWorker
		endIdx := startIdx + queriesPerWorker
		if w == numWorkers-1 {
			endIdx = numQueries
		}

		go func(start, end int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(start)))

			localResults := 0
			for i := start; i < end; i++ {
				localResults += query(r)
				queryCount.Add(1)
			}
			totalResults.Add(int64(localResults))
		}(startIdx, endIdx)
	}

	wg.Wait()
	close(stop)
	elapsed := time.Since(start)
	d.out.progress(1)

	completed := int64(queryCount.Load())
	result := benchmarkResult{
		totalQueries: completed,
		totalTime:    elapsed,
		totalResults: totalResults.Load(),
	}
	if completed > 0 {
		result.avgQueryTime = elapsed / time.Duration(completed)
		result.queriesPerSec = float64(completed) / elapsed.Seconds()
	}
	return result
}

func randomCenter(r *rand.Rand) models.Location {
	return models.Location{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
}

func randomBox(r *rand.Rand) models.BoundingBox {
	center := randomCenter(r)
	half := (r.Float64()*1.9 + 0.1) / 2
	return models.BoundingBox{
		TopLeft:     models.Location{Lat: min(center.Lat+half, 90), Lon: max(center.Lon-half, -180)},
		BottomRight: models.Location{Lat: max(center.Lat-half, -90), Lon: min(center.Lon+half, 180)},
	}
}
