package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/1F47E/geo-filter/pkg/dataset"
	"github.com/1F47E/geo-filter/pkg/postgis"
)

var (
	numPoints int
	seed      int64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate random points into the records file",
	Long:  `Generate random geographical points concentrated around populated areas and save them as JSON, YAML or a gob index.`,
	RunE:  runGenerate,
}

var postgisLoadCmd = &cobra.Command{
	Use:   "postgis-load",
	Short: "Load the records file into PostGIS",
	Long:  `Recreate the PostGIS points table, insert every record with coordinates and build the spatial index.`,
	RunE:  runPostGISLoad,
}

func init() {
	generateCmd.Flags().IntVarP(&numPoints, "points", "p", 0, "Number of points to generate (default demo.points)")
	generateCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	n := numPoints
	if n <= 0 {
		n = cfg.Demo.Points
	}

	start := time.Now()
	points, err := dataset.Generate(n, seed, cfg.Filter.Workers)
	if err != nil {
		return fmt.Errorf("failed to generate points: %w", err)
	}
	log.Printf("Generated %d points in %v", len(points), time.Since(start))

	if err := dataset.SavePoints(recordsFile, points); err != nil {
		return err
	}

	fmt.Printf("Saved %d points to %s\n", len(points), recordsFile)
	return nil
}

func runPostGISLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rows, err := dataset.Load(recordsFile)
	if err != nil {
		return err
	}
	points := dataset.ToPoints(rows, cfg.Filter.LatKey, cfg.Filter.LngKey)

	store, err := postgis.NewPostGISIndex(ctx, cfg.PostGIS)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	start := time.Now()
	if err := store.BulkInsertPoints(ctx, points); err != nil {
		return err
	}
	log.Printf("Inserted %d records in %v", len(points), time.Since(start))

	elapsed, err := store.CreateSpatialIndex(ctx)
	if err != nil {
		return err
	}
	log.Printf("Created spatial index in %v", elapsed)

	stats, err := store.GetDatabaseStats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Rows:          %d\n", stats.RowCount)
	fmt.Printf("Table size:    %s\n", stats.TableSize)
	fmt.Printf("Index size:    %s\n", stats.IndexSize)
	fmt.Printf("Database size: %s\n", stats.DatabaseSize)
	return nil
}

func writeExport(fc *geojson.FeatureCollection) error {
	file, err := os.Create(geojsonFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", geojsonFile, err)
	}
	defer file.Close()

	if err := dataset.WriteGeoJSON(file, fc); err != nil {
		return err
	}
	return file.Close()
}
