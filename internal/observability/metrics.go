package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ersn/straightline/internal/lib/routing"
)

// RouteCollector bundles Prometheus metrics for route computation and serving.
// It implements routing.Recorder.
type RouteCollector struct {
	gatherer prometheus.Gatherer

	Routes       *prometheus.CounterVec
	RoutePoints  prometheus.Histogram
	Durations    prometheus.Histogram
	CacheLookups *prometheus.CounterVec
}

var _ routing.Recorder = (*RouteCollector)(nil)

// NewRouteCollector registers route metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewRouteCollector(reg prometheus.Registerer) (*RouteCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	routes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "straightline_routes_total",
		Help: "Total number of route computations, labeled by outcome.",
	}, []string{"outcome"}), "straightline_routes_total")
	if err != nil {
		return nil, err
	}

	points, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "straightline_route_points",
		Help:    "Number of coordinates in computed routes.",
		Buckets: prometheus.ExponentialBuckets(2, 4, 10),
	}), "straightline_route_points")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "straightline_route_duration_seconds",
		Help:    "Route computation latency in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}), "straightline_route_duration_seconds")
	if err != nil {
		return nil, err
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "straightline_cache_lookups_total",
		Help: "Route cache lookups, labeled by hit or miss.",
	}, []string{"result"}), "straightline_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	return &RouteCollector{
		gatherer:     gatherer,
		Routes:       routes,
		RoutePoints:  points,
		Durations:    durations,
		CacheLookups: lookups,
	}, nil
}

// RecordRoute records one route computation
func (c *RouteCollector) RecordRoute(outcome string, waypoints, points int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Routes.WithLabelValues(outcome).Inc()
	c.Durations.Observe(elapsed.Seconds())
	if points > 0 {
		c.RoutePoints.Observe(float64(points))
	}
}

// RecordCacheLookup records a route cache hit or miss
func (c *RouteCollector) RecordCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RouteCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
