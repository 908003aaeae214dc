package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/1F47E/geo-filter/pkg/bbox"
	"github.com/1F47E/geo-filter/pkg/dataset"
	"github.com/1F47E/geo-filter/pkg/geofilter"
	"github.com/1F47E/geo-filter/pkg/models"
	"github.com/1F47E/geo-filter/pkg/postgis"
	"github.com/1F47E/geo-filter/pkg/rtree"
)

const (
	backendScan    = "scan"
	backendRTree   = "rtree"
	backendPostGIS = "postgis"
)

var (
	top, left, bottom, right float64
	centerLat, centerLng     float64
	latSpan, lngSpan         float64
	radiusMeters             float64
	sortOrder                string
	distanceKey              string
	numNeighbors             int
)

var boxCmd = &cobra.Command{
	Use:   "box",
	Short: "Select records inside a bounding box",
	RunE:  runBox,
}

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Select records inside a map region given as center and spans",
	RunE:  runRegion,
}

var radiusCmd = &cobra.Command{
	Use:   "radius",
	Short: "Select records within a radius of a point",
	RunE:  runRadius,
}

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the records nearest to a point",
	RunE:  runNearest,
}

func init() {
	boxCmd.Flags().Float64Var(&top, "top", 0, "Max latitude")
	boxCmd.Flags().Float64Var(&left, "left", 0, "Min longitude")
	boxCmd.Flags().Float64Var(&bottom, "bottom", 0, "Min latitude")
	boxCmd.Flags().Float64Var(&right, "right", 0, "Max longitude")
	for _, name := range []string{"top", "left", "bottom", "right"} {
		_ = boxCmd.MarkFlagRequired(name)
	}

	for _, cmd := range []*cobra.Command{regionCmd, radiusCmd, nearestCmd} {
		cmd.Flags().Float64Var(&centerLat, "lat", 0, "Center latitude")
		cmd.Flags().Float64Var(&centerLng, "lng", 0, "Center longitude")
		_ = cmd.MarkFlagRequired("lat")
		_ = cmd.MarkFlagRequired("lng")
	}

	regionCmd.Flags().Float64Var(&latSpan, "lat-span", 1, "Full latitude span in degrees")
	regionCmd.Flags().Float64Var(&lngSpan, "lng-span", 1, "Full longitude span in degrees")

	radiusCmd.Flags().Float64VarP(&radiusMeters, "radius", "r", 50000, "Search radius in meters")
	radiusCmd.Flags().StringVarP(&sortOrder, "sort", "s", "", "Sort by distance: asc or desc (default input order)")
	radiusCmd.Flags().StringVar(&distanceKey, "distance-key", "", "Write the distance into this field when the record has it")

	nearestCmd.Flags().IntVarP(&numNeighbors, "neighbors", "n", 10, "Number of nearest neighbors to find")
}

func center() models.Location {
	return models.Location{Lat: centerLat, Lon: centerLng}
}

func runBox(cmd *cobra.Command, args []string) error {
	box := models.BoundingBox{
		TopLeft:     models.Location{Lat: top, Lon: left},
		BottomRight: models.Location{Lat: bottom, Lon: right},
	}
	return queryBox(cmd.Context(), box)
}

func runRegion(cmd *cobra.Command, args []string) error {
	box, err := bbox.ComputeRegionBox(models.Region{Center: center(), LatSpan: latSpan, LonSpan: lngSpan})
	if err != nil {
		return err
	}
	return queryBox(cmd.Context(), box)
}

func queryBox(ctx context.Context, box models.BoundingBox) error {
	start := time.Now()

	var rows []dataset.Row
	switch backend {
	case backendScan:
		records, err := dataset.Load(recordsFile)
		if err != nil {
			return err
		}
		rows, err = geofilter.ParallelFilterByBox(records, box, cfg.Filter.Options()...)
		if err != nil {
			return err
		}

	case backendRTree:
		index, err := openIndex()
		if err != nil {
			return err
		}
		points, err := index.QueryBox(box)
		if err != nil {
			return err
		}
		rows = dataset.FromPoints(points)

	case backendPostGIS:
		store, err := postgis.NewPostGISIndex(ctx, cfg.PostGIS)
		if err != nil {
			return err
		}
		defer store.Close()

		points, err := store.QueryBox(ctx, box)
		if err != nil {
			return err
		}
		rows = dataset.FromPoints(points)

	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	log.Printf("Box query on %s backend took %v", backend, time.Since(start))

	latKey, lngKey := resultKeys()
	printRows(rows, nil, latKey, lngKey)

	export := dataset.Export{LatKey: latKey, LngKey: lngKey, Box: &box}
	return writeGeoJSON(func() error {
		return writeExport(export.Rows(rows))
	})
}

func runRadius(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	order, err := geofilter.ParseOrder(sortOrder)
	if err != nil {
		return err
	}

	start := time.Now()

	var matches []geofilter.Match[dataset.Row]
	switch backend {
	case backendScan:
		records, err := dataset.Load(recordsFile)
		if err != nil {
			return err
		}
		matches, err = geofilter.ParallelFilterByRadius(records, center(), radiusMeters, order, cfg.Filter.Options()...)
		if err != nil {
			return err
		}

	case backendRTree:
		index, err := openIndex()
		if err != nil {
			return err
		}
		found, err := index.QueryRadius(center(), radiusMeters, order)
		if err != nil {
			return err
		}
		matches = rowMatches(found)

	case backendPostGIS:
		store, err := postgis.NewPostGISIndex(ctx, cfg.PostGIS)
		if err != nil {
			return err
		}
		defer store.Close()

		found, err := store.QueryRadius(ctx, center(), radiusMeters, order)
		if err != nil {
			return err
		}
		matches = rowMatches(found)

	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	log.Printf("Radius query on %s backend took %v", backend, time.Since(start))

	latKey, lngKey := resultKeys()
	printMatches(matches, latKey, lngKey)

	return writeGeoJSON(func() error {
		box, err := bbox.ComputeBox(center(), radiusMeters)
		if err != nil {
			return err
		}
		export := dataset.Export{LatKey: latKey, LngKey: lngKey, Box: &box}
		return writeExport(export.Matches(matches))
	})
}

func runNearest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var found []geofilter.Match[*models.Point]
	switch backend {
	case backendScan, backendRTree:
		index, err := openIndex()
		if err != nil {
			return err
		}
		found = index.NearestNeighbors(center(), numNeighbors)

	case backendPostGIS:
		store, err := postgis.NewPostGISIndex(ctx, cfg.PostGIS)
		if err != nil {
			return err
		}
		defer store.Close()

		found, err = store.NearestNeighbors(ctx, center(), numNeighbors)
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	matches := rowMatches(found)
	printMatches(matches, models.FieldLat, models.FieldLng)

	return writeGeoJSON(func() error {
		export := dataset.Export{LatKey: models.FieldLat, LngKey: models.FieldLng}
		return writeExport(export.Matches(matches))
	})
}

// openIndex builds an R-tree from the records file. Saved indexes load
// directly; other files are read through the configured coordinate keys.
func openIndex() (*rtree.GeoIndex, error) {
	start := time.Now()
	index := rtree.NewGeoIndexWithWorkers(cfg.Index.Partitions)

	if strings.EqualFold(filepath.Ext(recordsFile), ".gob") {
		if err := index.LoadFromFile(recordsFile); err != nil {
			return nil, err
		}
	} else {
		rows, err := dataset.Load(recordsFile)
		if err != nil {
			return nil, err
		}
		if err := index.IndexPoints(dataset.ToPoints(rows, cfg.Filter.LatKey, cfg.Filter.LngKey)); err != nil {
			return nil, err
		}
	}

	log.Printf("Indexed %d points from %s in %v", index.Count(), recordsFile, time.Since(start))
	return index, nil
}

// resultKeys returns the coordinate keys of the result rows. Index backends
// return points, which come back with the default keys.
func resultKeys() (string, string) {
	if backend == backendScan {
		return cfg.Filter.LatKey, cfg.Filter.LngKey
	}
	return models.FieldLat, models.FieldLng
}

func rowMatches(found []geofilter.Match[*models.Point]) []geofilter.Match[dataset.Row] {
	matches := make([]geofilter.Match[dataset.Row], len(found))
	for i, m := range found {
		matches[i] = geofilter.Match[dataset.Row]{
			Record:   dataset.FromPoints([]*models.Point{m.Record})[0],
			Distance: m.Distance,
		}
	}
	return matches
}

func printRows(rows []dataset.Row, distances []float64, latKey, lngKey string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	header := "ID\tLAT\tLNG\tGEOHASH"
	if distances != nil {
		header += "\tDISTANCE_M"
	}
	fmt.Fprintln(w, header)

	for i, row := range rows {
		loc, _ := row.Location(latKey, lngKey)
		line := fmt.Sprintf("%s\t%.6f\t%.6f\t%s", row.ID(), loc.Lat, loc.Lon, loc.Geohash(dataset.GeohashPrecision))
		if distances != nil {
			line += fmt.Sprintf("\t%.1f", distances[i])
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\n%d records\n", len(rows))
}

func printMatches(matches []geofilter.Match[dataset.Row], latKey, lngKey string) {
	distances := make([]float64, len(matches))
	for i, m := range matches {
		distances[i] = m.Distance
	}
	printRows(geofilter.Records(matches), distances, latKey, lngKey)
}

// writeGeoJSON runs write only when --geojson was given
func writeGeoJSON(write func() error) error {
	if geojsonFile == "" {
		return nil
	}
	if err := write(); err != nil {
		return err
	}
	log.Printf("GeoJSON written to %s", geojsonFile)
	return nil
}
