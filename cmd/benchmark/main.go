package main

import (
	"flag"
	"fmt"
	"log"
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

type BenchmarkResult struct {
	QueryType     string
	Target        string
	TotalQueries  int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
	Errors        int64
}

// bounds limits where random queries are placed
type bounds struct {
	minLat, maxLat, minLon, maxLon float64
}

func (b bounds) randomCenter(r *rand.Rand) models.Location {
	return models.Location{
		Lat: b.minLat + r.Float64()*(b.maxLat-b.minLat),
		Lon: b.minLon + r.Float64()*(b.maxLon-b.minLon),
	}
}

func (b bounds) randomBox(r *rand.Rand, size float64) models.BoundingBox {
	lat := b.minLat + r.Float64()*(b.maxLat-b.minLat-size)
	lon := b.minLon + r.Float64()*(b.maxLon-b.minLon-size)
	return models.BoundingBox{
		TopLeft:     models.Location{Lat: lat + size, Lon: lon},
		BottomRight: models.Location{Lat: lat, Lon: lon + size},
	}
}

// queryFunc runs one random query and returns the number of results
type queryFunc func(r *rand.Rand) (int, error)

func main() {
	var (
		configFile  = flag.String("c", "", "Config file")
		recordsFile = flag.String("i", "", "Records file; points are generated when empty")
		numPoints   = flag.Int("p", 1000000, "Number of points to generate when no records file is given")
		queryType   = flag.String("t", "radius", "Query type: box, radius, nearest, mixed")
		target      = flag.String("target", "all", "Target: scan, parallel, rtree, all")
		numQueries  = flag.Int("n", 1000, "Number of queries to run")
		workers     = flag.Int("w", runtime.NumCPU(), "Number of concurrent query workers")
		// Geographic bounds for random queries (default: roughly USA)
		minLat = flag.Float64("min-lat", 25.0, "Minimum latitude for random queries")
		maxLat = flag.Float64("max-lat", 49.0, "Maximum latitude for random queries")
		minLon = flag.Float64("min-lon", -125.0, "Minimum longitude for random queries")
		maxLon = flag.Float64("max-lon", -66.0, "Maximum longitude for random queries")
		// Query-specific parameters
		boxSize = flag.Float64("box-size", 1.0, "Box size in degrees (for box queries)")
		radius  = flag.Float64("radius", 50000, "Radius in meters (for radius queries)")
		k       = flag.Int("k", 100, "Number of nearest neighbors")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	points, err := loadPoints(*recordsFile, *numPoints, cfg.Filter)
	if err != nil {
		log.Fatalf("Failed to load points: %v", err)
	}

	log.Printf("Building R-Tree index over %d points...\n", len(points))
	start := time.Now()
	index := rtree.NewGeoIndexWithWorkers(cfg.Index.Partitions)
	if err := index.IndexPoints(points); err != nil {
		log.Fatalf("Failed to index points: %v", err)
	}
	log.Printf("Index built in %v with %d points\n", time.Since(start), index.Count())

	area := bounds{*minLat, *maxLat, *minLon, *maxLon}
	opts := []geofilter.Option{
		geofilter.WithKeys(models.FieldLat, models.FieldLon),
		geofilter.WithMode(geofilter.Lenient),
	}
	parallelOpts := []geofilter.Option{
		geofilter.WithKeys(models.FieldLat, models.FieldLon),
		geofilter.WithMode(geofilter.Lenient),
		geofilter.WithWorkers(cfg.Filter.Workers),
	}

	targets := map[string]map[string]queryFunc{
		"scan": {
			"box": func(r *rand.Rand) (int, error) {
				res, err := geofilter.FilterByBox(points, area.randomBox(r, *boxSize), opts...)
				return len(res), err
			},
			"radius": func(r *rand.Rand) (int, error) {
				res, err := geofilter.FilterByRadius(points, area.randomCenter(r), *radius, geofilter.Ascending, opts...)
				return len(res), err
			},
		},
		"parallel": {
			"box": func(r *rand.Rand) (int, error) {
				res, err := geofilter.ParallelFilterByBox(points, area.randomBox(r, *boxSize), parallelOpts...)
				return len(res), err
			},
			"radius": func(r *rand.Rand) (int, error) {
				res, err := geofilter.ParallelFilterByRadius(points, area.randomCenter(r), *radius, geofilter.Ascending, parallelOpts...)
				return len(res), err
			},
		},
		"rtree": {
			"box": func(r *rand.Rand) (int, error) {
				res, err := index.QueryBox(area.randomBox(r, *boxSize))
				return len(res), err
			},
			"radius": func(r *rand.Rand) (int, error) {
				res, err := index.QueryRadius(area.randomCenter(r), *radius, geofilter.Ascending)
				return len(res), err
			},
			"nearest": func(r *rand.Rand) (int, error) {
				return len(index.NearestNeighbors(area.randomCenter(r), *k)), nil
			},
		},
	}

	names := []string{*target}
	if *target == "all" {
		names = []string{"scan", "parallel", "rtree"}
	}

	types := []string{*queryType}
	if *queryType == "mixed" {
		types = []string{"box", "radius", "nearest"}
	}

	for _, name := range names {
		queries, ok := targets[name]
		if !ok {
			log.Fatalf("Unknown target: %s", name)
		}

		var results []BenchmarkResult
		for _, qt := range types {
			query, ok := queries[qt]
			if !ok {
				log.Printf("Skipping %s queries on %s: not supported\n", qt, name)
				continue
			}

			perType := *numQueries
			if *queryType == "mixed" {
				perType = *numQueries / len(types)
			}

			log.Printf("Running %d %s queries on %s with %d workers...\n", perType, qt, name, *workers)
			results = append(results, runBenchmark(qt, name, perType, *workers, query))
		}

		if len(results) == 0 {
			log.Fatalf("Unknown query type: %s", *queryType)
		}
		result := results[0]
		if len(results) > 1 {
			result = combine("mixed", name, results)
		}
		printResult(result, *workers)
	}
}

func loadPoints(path string, n int, f config.FilterConfig) ([]*models.Point, error) {
	if path == "" {
		log.Printf("Generating %d random points...\n", n)
		return dataset.Generate(n, time.Now().UnixNano(), f.Workers)
	}

	log.Printf("Loading records from %s...\n", path)
	rows, err := dataset.Load(path)
	if err != nil {
		return nil, err
	}
	return dataset.ToPoints(rows, f.LatKey, f.LngKey), nil
}

// runBenchmark feeds numQueries queries to a pool of workers and collects timings
func runBenchmark(queryType, target string, numQueries, workers int, query queryFunc) BenchmarkResult {
	var (
		totalResults atomic.Int64
		errCount     atomic.Int64
		minDuration  = time.Hour
		maxDuration  time.Duration
		totalDur     time.Duration
		completed    int
		mu           sync.Mutex
	)

	startTime := time.Now()

	queryCh := make(chan int, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))

			for range queryCh {
				queryStart := time.Now()
				n, err := query(r)
				queryDuration := time.Since(queryStart)

				if err != nil {
					errCount.Add(1)
					continue
				}
				totalResults.Add(int64(n))

				mu.Lock()
				completed++
				totalDur += queryDuration
				minDuration = min(minDuration, queryDuration)
				maxDuration = max(maxDuration, queryDuration)
				mu.Unlock()
			}
		}(int64(w) + startTime.UnixNano())
	}

	for i := 0; i < numQueries; i++ {
		queryCh <- i
	}
	close(queryCh)

	wg.Wait()
	totalDuration := time.Since(startTime)

	result := BenchmarkResult{
		QueryType:     queryType,
		Target:        target,
		TotalQueries:  numQueries,
		TotalDuration: totalDuration,
		QueriesPerSec: float64(numQueries) / totalDuration.Seconds(),
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		TotalResults:  totalResults.Load(),
		Errors:        errCount.Load(),
	}
	if completed > 0 {
		result.AvgDuration = totalDur / time.Duration(completed)
		result.AvgResults = float64(result.TotalResults) / float64(completed)
	}
	return result
}

func combine(queryType, target string, results []BenchmarkResult) BenchmarkResult {
	combined := BenchmarkResult{
		QueryType:   queryType,
		Target:      target,
		MinDuration: results[0].MinDuration,
		MaxDuration: results[0].MaxDuration,
	}

	for _, r := range results {
		combined.TotalQueries += r.TotalQueries
		combined.TotalDuration += r.TotalDuration
		combined.TotalResults += r.TotalResults
		combined.Errors += r.Errors
		combined.MinDuration = min(combined.MinDuration, r.MinDuration)
		combined.MaxDuration = max(combined.MaxDuration, r.MaxDuration)
	}

	if combined.TotalQueries > 0 {
		combined.AvgDuration = combined.TotalDuration / time.Duration(combined.TotalQueries)
		combined.QueriesPerSec = float64(combined.TotalQueries) / combined.TotalDuration.Seconds()
		combined.AvgResults = float64(combined.TotalResults) / float64(combined.TotalQueries)
	}
	return combined
}

func printResult(result BenchmarkResult, workers int) {
	fmt.Println("\n=== Benchmark Results ===")
	fmt.Printf("Target: %s\n", result.Target)
	fmt.Printf("Query Type: %s\n", result.QueryType)
	fmt.Printf("Total Queries: %d\n", result.TotalQueries)
	fmt.Printf("Total Duration: %v\n", result.TotalDuration)
	fmt.Printf("Average Duration: %v\n", result.AvgDuration)
	fmt.Printf("Queries/Second: %.2f\n", result.QueriesPerSec)
	fmt.Printf("Min Duration: %v\n", result.MinDuration)
	fmt.Printf("Max Duration: %v\n", result.MaxDuration)
	fmt.Printf("Total Results: %d\n", result.TotalResults)
	fmt.Printf("Avg Results/Query: %.2f\n", result.AvgResults)
	fmt.Printf("Errors: %d\n", result.Errors)
	fmt.Printf("Workers Used: %d\n", workers)
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
}
