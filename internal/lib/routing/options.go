package routing

// DefaultInterval is the default distance between interpolated points in meters
const DefaultInterval = 10.0

// Options configures a single routing call
type Options struct {
	// Interval is the distance between two interpolated points in meters
	Interval float64 `json:"interval" yaml:"interval" koanf:"interval"`

	// NormalizeLongitude wraps interpolated longitudes into [-180, 180]. Off by
	// default so routes crossing the antimeridian keep continuous longitudes.
	NormalizeLongitude bool `json:"normalizeLongitude" yaml:"normalize_longitude" koanf:"normalize_longitude"`

	// MaxPoints caps the size of the coordinate sequence, 0 means unlimited
	MaxPoints int `json:"maxPoints" yaml:"max_points" koanf:"max_points"`
}

// DefaultOptions returns the options used when nothing is overridden
func DefaultOptions() Options {
	return Options{Interval: DefaultInterval}
}

// Option overrides one setting for a single call
type Option func(*Options)

// WithInterval sets the sampling interval in meters
func WithInterval(meters float64) Option {
	return func(o *Options) {
		o.Interval = meters
	}
}

// WithNormalizedLongitude enables or disables longitude wrapping
func WithNormalizedLongitude(normalize bool) Option {
	return func(o *Options) {
		o.NormalizeLongitude = normalize
	}
}

// WithMaxPoints sets the coordinate cap
func WithMaxPoints(n int) Option {
	return func(o *Options) {
		o.MaxPoints = n
	}
}

// resolve overlays opts onto a copy of base
func resolve(base Options, opts []Option) Options {
	resolved := base
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}
