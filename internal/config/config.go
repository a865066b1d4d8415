package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ersn/straightline/internal/lib/geo"
	"github.com/ersn/straightline/internal/lib/routing"
	"github.com/ersn/straightline/internal/observability"
)

// Config represents the complete server configuration
type Config struct {
	Routing RoutingConfig               `yaml:"routing" koanf:"routing"`
	Cache   CacheConfig                 `yaml:"cache" koanf:"cache"`
	Metrics MetricsConfig               `yaml:"metrics" koanf:"metrics"`
	Tracing observability.TracingConfig `yaml:"tracing" koanf:"tracing"`
}

// RoutingConfig holds the router defaults. Requests may override the interval
// and longitude normalization but never the point cap.
type RoutingConfig struct {
	Interval           float64 `yaml:"interval" koanf:"interval"`
	NormalizeLongitude bool    `yaml:"normalize_longitude" koanf:"normalize_longitude"`
	MaxPoints          int     `yaml:"max_points" koanf:"max_points"`
	MaxWaypoints       int     `yaml:"max_waypoints" koanf:"max_waypoints"`

	Presets []PresetRoute `yaml:"presets" koanf:"presets"`
}

// PresetRoute is a named route served at /api/v1/routes/{id} and kept warm in
// the cache
type PresetRoute struct {
	ID        string            `yaml:"id" koanf:"id"`
	Name      string            `yaml:"name" koanf:"name"`
	Waypoints []CoordinatesYAML `yaml:"waypoints" koanf:"waypoints"`
}

// CoordinatesYAML represents a named lat/lon pair in YAML config
type CoordinatesYAML struct {
	Name      string  `yaml:"name" koanf:"name"`
	Latitude  float64 `yaml:"latitude" koanf:"latitude"`
	Longitude float64 `yaml:"longitude" koanf:"longitude"`
}

// ToWaypoint converts CoordinatesYAML to a routing waypoint
func (c CoordinatesYAML) ToWaypoint() geo.Waypoint {
	return geo.NewWaypoint(c.Latitude, c.Longitude, c.Name)
}

// ToWaypoints converts the preset's stops to routing waypoints
func (p PresetRoute) ToWaypoints() []geo.Waypoint {
	waypoints := make([]geo.Waypoint, len(p.Waypoints))
	for i, c := range p.Waypoints {
		waypoints[i] = c.ToWaypoint()
	}
	return waypoints
}

// Preset looks up a preset route by ID
func (r RoutingConfig) Preset(id string) (PresetRoute, bool) {
	for _, p := range r.Presets {
		if p.ID == id {
			return p, true
		}
	}
	return PresetRoute{}, false
}

// CacheConfig holds route cache settings
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" koanf:"enabled"`
	MaxEntries      int           `yaml:"max_entries" koanf:"max_entries"`
	TTL             time.Duration `yaml:"ttl" koanf:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" koanf:"cleanup_interval"`
}

// MetricsConfig holds Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Path    string `yaml:"path" koanf:"path"`
}

// Options converts the routing section to router defaults
func (r RoutingConfig) Options() routing.Options {
	return routing.Options{
		Interval:           r.Interval,
		NormalizeLongitude: r.NormalizeLongitude,
		MaxPoints:          r.MaxPoints,
	}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Routing: RoutingConfig{
			Interval:     routing.DefaultInterval,
			MaxPoints:    1_000_000,
			MaxWaypoints: 1000,
			Presets: []PresetRoute{
				{
					ID:   "hwy4-angels-murphys",
					Name: "Hwy 4 - Angels Camp to Murphys",
					Waypoints: []CoordinatesYAML{
						{Name: "Angels Camp", Latitude: 38.0674, Longitude: -120.5402},
						{Name: "Murphys", Latitude: 38.1327, Longitude: -120.4606},
					},
				},
				{
					ID:   "hwy4-murphys-arnold",
					Name: "Hwy 4 - Murphys to Arnold",
					Waypoints: []CoordinatesYAML{
						{Name: "Murphys", Latitude: 38.1327, Longitude: -120.4606},
						{Name: "Arnold", Latitude: 38.2458, Longitude: -120.3486},
					},
				},
				{
					ID:   "hwy4-arnold-ebbetts",
					Name: "Hwy 4 - Arnold to Ebbetts Pass",
					Waypoints: []CoordinatesYAML{
						{Name: "Arnold", Latitude: 38.2458, Longitude: -120.3486},
						{Name: "Dorrington", Latitude: 38.3461, Longitude: -120.2036},
						{Name: "Ebbetts Pass", Latitude: 38.5347, Longitude: -119.8075},
					},
				},
			},
		},
		Cache: CacheConfig{
			Enabled:         true,
			MaxEntries:      10_000,
			TTL:             10 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: observability.TracingConfig{
			ServiceName: "straightline",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if !(c.Routing.Interval > 0) {
		errs = append(errs, fmt.Errorf("routing.interval must be positive, got %v", c.Routing.Interval))
	}
	if c.Routing.MaxPoints < 0 {
		errs = append(errs, fmt.Errorf("routing.max_points must not be negative, got %d", c.Routing.MaxPoints))
	}
	if c.Routing.MaxWaypoints != 0 && c.Routing.MaxWaypoints < 2 {
		errs = append(errs, fmt.Errorf("routing.max_waypoints must be 0 or at least 2, got %d", c.Routing.MaxWaypoints))
	}
	seen := make(map[string]bool)
	for i, p := range c.Routing.Presets {
		switch {
		case p.ID == "":
			errs = append(errs, fmt.Errorf("routing.presets[%d]: id is required", i))
		case seen[p.ID]:
			errs = append(errs, fmt.Errorf("routing.presets[%d]: duplicate id %q", i, p.ID))
		}
		seen[p.ID] = true
		if len(p.Waypoints) < 2 {
			errs = append(errs, fmt.Errorf("routing.presets[%d]: at least 2 waypoints are required", i))
		}
	}
	if c.Cache.Enabled {
		if c.Cache.MaxEntries < 0 {
			errs = append(errs, fmt.Errorf("cache.max_entries must not be negative, got %d", c.Cache.MaxEntries))
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL))
		}
		if c.Cache.CleanupInterval <= 0 {
			errs = append(errs, fmt.Errorf("cache.cleanup_interval must be positive, got %v", c.Cache.CleanupInterval))
		}
	}
	if c.Metrics.Enabled && c.Metrics.Path == "" {
		errs = append(errs, errors.New("metrics.path is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}
