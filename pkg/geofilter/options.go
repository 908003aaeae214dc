package geofilter

import (
	"fmt"
	"runtime"
)

// Default field names
const (
	DefaultLatKey = "lat"
	DefaultLngKey = "lng"
)

// Mode selects what happens when a record lacks a coordinate field
type Mode int

const (
	// Strict fails the whole call with geo.ErrMissingField
	Strict Mode = iota
	// Lenient leaves the record out of the result
	Lenient
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Lenient:
		return "lenient"
	}
	return "unknown"
}

// Order controls how radius matches are sorted
type Order int

const (
	// Unsorted keeps the input order
	Unsorted Order = iota
	Ascending
	Descending
)

// SortAscending maps an explicit sort direction to an Order
func SortAscending(ascending bool) Order {
	if ascending {
		return Ascending
	}
	return Descending
}

func (o Order) String() string {
	switch o {
	case Unsorted:
		return "unsorted"
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	}
	return "unknown"
}

// ParseOrder accepts the names produced by Order.String. An empty string
// means Unsorted.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "unsorted", "none":
		return Unsorted, nil
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return Unsorted, fmt.Errorf("unknown sort order %q", s)
}

// Options holds the settings shared by all filters
type Options struct {
	LatKey      string
	LngKey      string
	DistanceKey string // empty disables the distance write-back
	Mode        Mode
	Workers     int // used by the parallel filters
}

// Option configures a filter call
type Option func(*Options)

// WithKeys sets the latitude and longitude field names
func WithKeys(lat, lng string) Option {
	return func(o *Options) {
		o.LatKey = lat
		o.LngKey = lng
	}
}

// WithDistanceKey enables writing the computed distance into key on
// records that already have it
func WithDistanceKey(key string) Option {
	return func(o *Options) { o.DistanceKey = key }
}

// WithMode sets the missing field policy
func WithMode(m Mode) Option {
	return func(o *Options) { o.Mode = m }
}

// WithWorkers sets the number of partitions scanned concurrently
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

func newOptions(opts []Option) Options {
	o := Options{
		LatKey:  DefaultLatKey,
		LngKey:  DefaultLngKey,
		Mode:    Strict,
		Workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}
