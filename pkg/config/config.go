// Package config loads runtime settings for the geofilter tools from an
// optional YAML file, with GEOFILTER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/1F47E/geo-filter/pkg/geofilter"
)

// DefaultFile is read when no path is given; it may be absent
const DefaultFile = "geofilter.yaml"

// EnvPrefix prefixes every environment override, e.g. GEOFILTER_FILTER_LAT_KEY
const EnvPrefix = "GEOFILTER"

// Error represents a configuration error
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// Config holds all runtime configuration
type Config struct {
	Filter  FilterConfig  `mapstructure:"filter" yaml:"filter"`
	Index   IndexConfig   `mapstructure:"index" yaml:"index"`
	PostGIS PostGISConfig `mapstructure:"postgis" yaml:"postgis"`
	Demo    DemoConfig    `mapstructure:"demo" yaml:"demo"`
}

// FilterConfig maps records onto the filter options
type FilterConfig struct {
	LatKey      string `mapstructure:"lat_key" yaml:"lat_key"`
	LngKey      string `mapstructure:"lng_key" yaml:"lng_key"`
	DistanceKey string `mapstructure:"distance_key" yaml:"distance_key"`
	Strict      bool   `mapstructure:"strict" yaml:"strict"`
	Workers     int    `mapstructure:"workers" yaml:"workers"`
}

type IndexConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	Partitions int    `mapstructure:"partitions" yaml:"partitions"`
}

type PostGISConfig struct {
	Host              string `mapstructure:"host" yaml:"host"`
	Port              int    `mapstructure:"port" yaml:"port"`
	User              string `mapstructure:"user" yaml:"user"`
	Password          string `mapstructure:"password" yaml:"password"`
	Database          string `mapstructure:"database" yaml:"database"`
	MaxConnections    int    `mapstructure:"max_connections" yaml:"max_connections"`
	ConnectionTimeout int    `mapstructure:"connection_timeout" yaml:"connection_timeout"` // seconds
}

type DemoConfig struct {
	Points       int     `mapstructure:"points" yaml:"points"`
	Queries      int     `mapstructure:"queries" yaml:"queries"`
	RadiusMeters float64 `mapstructure:"radius_meters" yaml:"radius_meters"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("filter.lat_key", geofilter.DefaultLatKey)
	v.SetDefault("filter.lng_key", geofilter.DefaultLngKey)
	v.SetDefault("filter.distance_key", "")
	v.SetDefault("filter.strict", true)
	v.SetDefault("filter.workers", 0)

	v.SetDefault("index.file", "geo_index.gob")
	v.SetDefault("index.partitions", 0)

	v.SetDefault("postgis.host", "localhost")
	v.SetDefault("postgis.port", 5432)
	v.SetDefault("postgis.user", "postgres")
	v.SetDefault("postgis.password", "")
	v.SetDefault("postgis.database", "geodb")
	v.SetDefault("postgis.max_connections", 25)
	v.SetDefault("postgis.connection_timeout", 5)

	v.SetDefault("demo.points", 1000000)
	v.SetDefault("demo.queries", 1000)
	v.SetDefault("demo.radius_meters", 50000)
}

// Load reads the configuration. An empty path falls back to DefaultFile
// and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		file = DefaultFile
	}

	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if path != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that have no usable fallback
func (c *Config) Validate() error {
	var errs []error

	if c.Filter.LatKey == "" {
		errs = append(errs, &Error{Field: "filter.lat_key", Message: "must not be empty"})
	}
	if c.Filter.LngKey == "" {
		errs = append(errs, &Error{Field: "filter.lng_key", Message: "must not be empty"})
	}
	if c.Filter.Workers < 0 {
		errs = append(errs, &Error{Field: "filter.workers", Message: "must not be negative"})
	}
	if c.Index.Partitions < 0 {
		errs = append(errs, &Error{Field: "index.partitions", Message: "must not be negative"})
	}
	if c.PostGIS.Port < 1 || c.PostGIS.Port > 65535 {
		errs = append(errs, &Error{Field: "postgis.port", Message: "must be between 1 and 65535"})
	}
	if c.Demo.RadiusMeters < 0 {
		errs = append(errs, &Error{Field: "demo.radius_meters", Message: "must not be negative"})
	}

	return errors.Join(errs...)
}

// Options converts the filter section into geofilter options
func (f FilterConfig) Options() []geofilter.Option {
	mode := geofilter.Lenient
	if f.Strict {
		mode = geofilter.Strict
	}

	opts := []geofilter.Option{
		geofilter.WithKeys(f.LatKey, f.LngKey),
		geofilter.WithMode(mode),
	}
	if f.DistanceKey != "" {
		opts = append(opts, geofilter.WithDistanceKey(f.DistanceKey))
	}
	if f.Workers > 0 {
		opts = append(opts, geofilter.WithWorkers(f.Workers))
	}
	return opts
}

// Write dumps the configuration as YAML
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
