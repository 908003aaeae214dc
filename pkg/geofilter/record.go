package geofilter

// Record is the read/write capability the filters need from a stored
// entity. Fields are addressed by name so callers can map any schema.
type Record interface {
	// NumericField returns the value of key, or false when the record has no such field
	NumericField(key string) (float64, bool)

	// SetNumericField overwrites an existing field and reports whether it existed.
	// It must not create new fields.
	SetNumericField(key string, value float64) bool
}

// Fields is a map-backed Record
type Fields map[string]float64

func (f Fields) NumericField(key string) (float64, bool) {
	v, ok := f[key]
	return v, ok
}

func (f Fields) SetNumericField(key string, value float64) bool {
	if _, ok := f[key]; !ok {
		return false
	}
	f[key] = value
	return true
}

// Accessor adapts a pair of functions to Record. A nil Set makes the
// record read-only.
type Accessor struct {
	Get func(key string) (float64, bool)
	Set func(key string, value float64) bool
}

func (a Accessor) NumericField(key string) (float64, bool) {
	if a.Get == nil {
		return 0, false
	}
	return a.Get(key)
}

func (a Accessor) SetNumericField(key string, value float64) bool {
	if a.Set == nil {
		return false
	}
	return a.Set(key, value)
}
