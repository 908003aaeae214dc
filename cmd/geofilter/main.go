package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/1F47E/geo-filter/pkg/config"
)

var (
	configFile  string
	recordsFile string
	flagLatKey  string
	flagLngKey  string
	lenient     bool
	workers     int
	geojsonFile string
	backend     string
	verbose     bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "geofilter",
	Short: "Filter geo-tagged records by bounding box or radius",
	Long: `Select records from a JSON, YAML or gob file that fall inside a bounding box,
a map region or a radius around a point. Coordinates are read from configurable
field names; results can be exported as GeoJSON.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Write(os.Stdout)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (default geofilter.yaml if present)")
	flags.StringVarP(&recordsFile, "file", "f", "", "Records file: .json, .yaml, .yml or .gob (default index.file)")
	flags.StringVar(&flagLatKey, "lat-key", "", "Latitude field name")
	flags.StringVar(&flagLngKey, "lng-key", "", "Longitude field name")
	flags.BoolVar(&lenient, "lenient", false, "Skip records missing a coordinate instead of failing")
	flags.IntVarP(&workers, "workers", "w", 0, "Number of worker goroutines (default one per CPU)")
	flags.StringVar(&geojsonFile, "geojson", "", "Also write the results to this GeoJSON file")
	flags.StringVarP(&backend, "backend", "b", backendScan, "Query backend: scan, rtree or postgis")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(generateCmd, boxCmd, regionCmd, radiusCmd, nearestCmd, postgisLoadCmd, configCmd)
}

// setup loads the config file and applies the flags given on the command line
func setup(cmd *cobra.Command, args []string) error {
	if !verbose {
		log.SetOutput(io.Discard)
	}

	c, err := config.Load(configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("lat-key") {
		c.Filter.LatKey = flagLatKey
	}
	if flags.Changed("lng-key") {
		c.Filter.LngKey = flagLngKey
	}
	if flags.Changed("lenient") {
		c.Filter.Strict = !lenient
	}
	if flags.Changed("workers") {
		c.Filter.Workers = workers
	}
	if flags.Changed("distance-key") {
		c.Filter.DistanceKey = distanceKey
	}
	if recordsFile == "" {
		recordsFile = c.Index.File
	}

	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
