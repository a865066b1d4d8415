package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ersn/straightline/internal/lib/geo"
)

const tracerName = "github.com/ersn/straightline/internal/lib/routing"

// ErrNilCallback is returned by Route when no callback is supplied
var ErrNilCallback = errors.New("route callback is required")

// Recorder receives measurements for every Compute call
type Recorder interface {
	RecordRoute(outcome string, waypoints, points int, elapsed time.Duration)
}

// StraightLine routes along great circles between consecutive waypoints.
// Its defaults are fixed at construction; per-call options are applied to a copy,
// so a single instance is safe for concurrent use.
type StraightLine struct {
	defaults Options
	recorder Recorder
	tracer   trace.Tracer
}

var _ Router = (*StraightLine)(nil)

// RouterOption configures a StraightLine
type RouterOption func(*StraightLine)

// WithRecorder reports every computation to r
func WithRecorder(r Recorder) RouterOption {
	return func(s *StraightLine) {
		s.recorder = r
	}
}

// WithTracer overrides the global OpenTelemetry tracer
func WithTracer(t trace.Tracer) RouterOption {
	return func(s *StraightLine) {
		s.tracer = t
	}
}

// NewStraightLine creates a router with the given default options
func NewStraightLine(defaults Options, opts ...RouterOption) *StraightLine {
	s := &StraightLine{
		defaults: defaults,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the options every call starts from
func (s *StraightLine) Defaults() Options {
	return s.defaults
}

// Resolve returns the effective options for a call with the given overrides
func (s *StraightLine) Resolve(opts ...Option) Options {
	return resolve(s.defaults, opts)
}

// Route validates the request and computes the route synchronously, then hands
// the single alternative to callback from another goroutine. Validation errors
// are returned directly and callback is not invoked.
func (s *StraightLine) Route(ctx context.Context, waypoints []geo.Waypoint, callback Callback, opts ...Option) error {
	if callback == nil {
		return ErrNilCallback
	}

	result, err := s.Compute(ctx, waypoints, opts...)
	if err != nil {
		return err
	}

	go deliver(ctx, callback, *result)
	return nil
}

// RouteAsync is Route with the callback replaced by a Future
func (s *StraightLine) RouteAsync(ctx context.Context, waypoints []geo.Waypoint, opts ...Option) (*Future, error) {
	f := &Future{done: make(chan struct{})}
	err := s.Route(ctx, waypoints, func(err error, routes []RouteResult) {
		f.routes = routes
		f.err = err
		close(f.done)
	}, opts...)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Compute builds the route synchronously
func (s *StraightLine) Compute(ctx context.Context, waypoints []geo.Waypoint, opts ...Option) (*RouteResult, error) {
	start := time.Now()
	cfg := resolve(s.defaults, opts)

	_, span := s.tracer.Start(ctx, "straightline.Compute", trace.WithAttributes(
		attribute.Int("route.waypoints", len(waypoints)),
		attribute.Float64("route.interval", cfg.Interval),
	))
	defer span.End()

	var result *RouteResult
	err := Validate(waypoints, cfg)
	if err == nil {
		result, err = assemble(waypoints, cfg)
	}

	points := 0
	if err != nil {
		span.RecordError(err)
	} else {
		points = len(result.Coordinates)
		span.SetAttributes(attribute.Int("route.points", points))
	}

	if s.recorder != nil {
		s.recorder.RecordRoute(ErrorKind(err), len(waypoints), points, time.Since(start))
	}

	return result, err
}

// Validate checks a routing request without computing it
func Validate(waypoints []geo.Waypoint, cfg Options) error {
	if len(waypoints) < 2 {
		return fmt.Errorf("%w: got %d", ErrInsufficientWaypoints, len(waypoints))
	}

	if err := validateInterval(cfg.Interval); err != nil {
		return err
	}

	for i, wp := range waypoints {
		if err := geo.ValidateCoordinate(wp.Point); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
	}

	for i := 0; i < len(waypoints)-1; i++ {
		if d := geo.Distance(waypoints[i].Point, waypoints[i+1].Point); math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: distance between waypoints %d and %d is not finite", ErrInvalidCoordinate, i, i+1)
		}
	}

	if cfg.MaxPoints > 0 {
		total := 0
		for i := 0; i < len(waypoints)-1; i++ {
			total += estimateLegPoints(geo.Distance(waypoints[i].Point, waypoints[i+1].Point), cfg.Interval)
			if total > cfg.MaxPoints {
				return fmt.Errorf("%w: more than %d points at %v m interval", ErrTooManyPoints, cfg.MaxPoints, cfg.Interval)
			}
		}
	}

	return nil
}

// assemble interpolates every leg and concatenates the results. Leg boundaries
// are not deduplicated: each waypoint between two legs appears twice.
func assemble(waypoints []geo.Waypoint, cfg Options) (*RouteResult, error) {
	legs := len(waypoints) - 1

	var (
		coordinates     []geo.Point
		instructions    = make([]Instruction, 0, legs)
		waypointIndices = make([]int, 0, len(waypoints))
		totalDistance   float64
		totalTime       float64
	)

	for i := 0; i < legs; i++ {
		leg, err := Interpolate(waypoints[i].Point, waypoints[i+1].Point, cfg.Interval)
		if err != nil {
			return nil, err
		}

		instructions = append(instructions, Instruction{
			Type:     Straight,
			Text:     azimuthText(leg.Azimuth),
			Distance: leg.Distance,
			Time:     leg.Time,
			Index:    len(coordinates),
		})
		totalDistance += leg.Distance
		totalTime += leg.Time
		waypointIndices = append(waypointIndices, len(coordinates))

		coordinates = append(coordinates, leg.Points...)
	}

	waypointIndices = append(waypointIndices, len(coordinates)-1)

	if cfg.NormalizeLongitude {
		for i := range coordinates {
			coordinates[i].Longitude = geo.NormalizeLongitude(coordinates[i].Longitude)
		}
	}

	first, last := waypoints[0], waypoints[len(waypoints)-1]

	return &RouteResult{
		Name:         "",
		Coordinates:  coordinates,
		Instructions: instructions,
		Summary: Summary{
			TotalDistance: totalDistance,
			TotalTime:     totalTime,
			TotalAscend:   0,
		},
		InputWaypoints: slices.Clone(waypoints),
		ActualWaypoints: []ActualWaypoint{
			{LatLng: coordinates[0], Name: first.Name},
			{LatLng: coordinates[len(coordinates)-1], Name: last.Name},
		},
		WaypointIndices: waypointIndices,
	}, nil
}

// azimuthText renders the instruction text, rounding half up
func azimuthText(azimuth float64) string {
	return "Azimuth " + strconv.Itoa(int(math.Floor(azimuth+0.5)))
}
