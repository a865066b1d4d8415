package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ersn/straightline/internal/cache"
	"github.com/ersn/straightline/internal/config"
	"github.com/ersn/straightline/internal/lib/export"
	"github.com/ersn/straightline/internal/lib/geo"
	"github.com/ersn/straightline/internal/lib/routing"
	"github.com/ersn/straightline/internal/observability"
)

// maxRequestBytes bounds the size of a POST body
const maxRequestBytes = 4 << 20

// RouteService serves straight-line routes over HTTP
type RouteService struct {
	router    *routing.StraightLine
	store     *cache.RouteStore
	collector *observability.RouteCollector
	config    *config.RoutingConfig
}

// NewRouteService creates a new RouteService. store and collector may be nil.
func NewRouteService(router *routing.StraightLine, store *cache.RouteStore, collector *observability.RouteCollector, config *config.RoutingConfig) *RouteService {
	return &RouteService{
		router:    router,
		store:     store,
		collector: collector,
		config:    config,
	}
}

// WaypointRequest accepts either flat lat/lng fields or a nested latLng object
type WaypointRequest struct {
	Lat    *float64   `json:"lat,omitempty"`
	Lng    *float64   `json:"lng,omitempty"`
	LatLng *geo.Point `json:"latLng,omitempty"`
	Name   string     `json:"name,omitempty"`
}

// OptionsRequest holds per-request overrides of the router defaults
type OptionsRequest struct {
	Interval           *float64 `json:"interval,omitempty"`
	NormalizeLongitude *bool    `json:"normalizeLongitude,omitempty"`
}

// RouteRequest is the body of POST /api/v1/route
type RouteRequest struct {
	Waypoints []WaypointRequest `json:"waypoints"`
	Options   OptionsRequest    `json:"options"`
	Format    string            `json:"format,omitempty"`
}

// ErrorResponse is written for failed requests
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// ComputeRoute resolves a request into route alternatives. Returned errors carry
// a gRPC status code.
func (s *RouteService) ComputeRoute(ctx context.Context, req *RouteRequest) ([]routing.RouteResult, error) {
	ctx = logging.EnsureLogger(ctx)
	waypoints, err := req.toWaypoints()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if s.config != nil && s.config.MaxWaypoints > 0 && len(waypoints) > s.config.MaxWaypoints {
		return nil, status.Errorf(codes.InvalidArgument, "too many waypoints: %d (max %d)", len(waypoints), s.config.MaxWaypoints)
	}

	return s.route(ctx, waypoints, req.Options.toOptions())
}

// route answers from the cache when possible and otherwise goes through the
// router's asynchronous delivery
func (s *RouteService) route(ctx context.Context, waypoints []geo.Waypoint, opts []routing.Option) ([]routing.RouteResult, error) {
	key := cache.RouteKey(waypoints, s.router.Resolve(opts...))

	if s.store != nil {
		cached, found, err := s.store.GetRoute(key)
		if err != nil {
			logging.Warnw(ctx, "Route cache read failed", "error", err)
		}
		s.collector.RecordCacheLookup(found)
		if found {
			return []routing.RouteResult{*cached}, nil
		}
	}

	return s.compute(ctx, key, waypoints, opts)
}

// compute runs the router and stores the result under key, bypassing any
// cached entry
func (s *RouteService) compute(ctx context.Context, key string, waypoints []geo.Waypoint, opts []routing.Option) ([]routing.RouteResult, error) {
	type delivery struct {
		err    error
		routes []routing.RouteResult
	}
	ch := make(chan delivery, 1)

	err := s.router.Route(ctx, waypoints, func(err error, routes []routing.RouteResult) {
		ch <- delivery{err: err, routes: routes}
	}, opts...)
	if err != nil {
		return nil, toStatus(err)
	}

	var d delivery
	select {
	case d = <-ch:
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	}
	if d.err != nil {
		return nil, toStatus(d.err)
	}

	if s.store != nil && len(d.routes) > 0 {
		if err := s.store.SetRoute(key, &d.routes[0]); err != nil {
			logging.Warnw(ctx, "Failed to cache route", "error", err)
		}
	}

	return d.routes, nil
}

// ServeHTTP handles GET and POST /api/v1/route
func (s *RouteService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	ctx := logging.EnsureLogger(r.Context())

	var (
		req *RouteRequest
		err error
	)
	switch r.Method {
	case http.MethodGet:
		req, err = parseQuery(r)
	case http.MethodPost:
		req, err = parseBody(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeErrorBody(w, http.StatusMethodNotAllowed, ErrorResponse{
			Error:     "method not allowed",
			Code:      codes.Unimplemented.String(),
			RequestID: requestID,
		})
		return
	}
	if err != nil {
		s.writeError(ctx, w, requestID, status.Error(codes.InvalidArgument, err.Error()))
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		s.writeError(ctx, w, requestID, status.Error(codes.InvalidArgument, err.Error()))
		return
	}

	routes, err := s.ComputeRoute(ctx, req)
	if err != nil {
		s.writeError(ctx, w, requestID, err)
		return
	}

	logging.Infow(ctx, "Route computed",
		"request_id", requestID,
		"waypoints", len(req.Waypoints),
		"points", len(routes[0].Coordinates),
		"distance_m", routes[0].Summary.TotalDistance,
		"format", string(format))

	w.Header().Set("Content-Type", format.ContentType())
	if err := export.Write(w, format, routes); err != nil {
		logging.Errorw(ctx, "Failed to write route response", "request_id", requestID, "error", err)
	}
}

func (s *RouteService) writeError(ctx context.Context, w http.ResponseWriter, requestID string, err error) {
	st := status.Convert(err)
	httpStatus := runtime.HTTPStatusFromCode(st.Code())

	if httpStatus >= http.StatusInternalServerError {
		logging.Errorw(ctx, "Route request failed", "request_id", requestID, "code", st.Code().String(), "error", st.Message())
	} else {
		logging.Infow(ctx, "Route request rejected", "request_id", requestID, "code", st.Code().String(), "error", st.Message())
	}

	writeErrorBody(w, httpStatus, ErrorResponse{
		Error:     st.Message(),
		Code:      st.Code().String(),
		RequestID: requestID,
	})
}

func writeErrorBody(w http.ResponseWriter, httpStatus int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(body)
}

// toStatus classifies routing errors
func toStatus(err error) error {
	if routing.IsValidationError(err) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}

func parseBody(w http.ResponseWriter, r *http.Request) (*RouteRequest, error) {
	var req RouteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if f := r.URL.Query().Get("format"); f != "" {
		req.Format = f
	}
	return &req, nil
}

// parseQuery reads ?points=<encoded polyline>&names=a,b&interval=..&normalize=..&format=..
func parseQuery(r *http.Request) (*RouteRequest, error) {
	q := r.URL.Query()

	encoded := q.Get("points")
	if encoded == "" {
		return nil, errors.New("points query parameter is required")
	}
	points, err := geo.DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}

	var names []string
	if raw := q.Get("names"); raw != "" {
		names = strings.Split(raw, ",")
	}

	req := &RouteRequest{Format: q.Get("format")}
	for i, p := range points {
		wp := WaypointRequest{LatLng: &geo.Point{Latitude: p.Latitude, Longitude: p.Longitude}}
		if i < len(names) {
			wp.Name = names[i]
		}
		req.Waypoints = append(req.Waypoints, wp)
	}

	if raw := q.Get("interval"); raw != "" {
		interval, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q", raw)
		}
		req.Options.Interval = &interval
	}
	if raw := q.Get("normalize"); raw != "" {
		normalize, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid normalize %q", raw)
		}
		req.Options.NormalizeLongitude = &normalize
	}

	return req, nil
}

func (req *RouteRequest) toWaypoints() ([]geo.Waypoint, error) {
	waypoints := make([]geo.Waypoint, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		switch {
		case wp.LatLng != nil:
			waypoints[i] = geo.Waypoint{Point: *wp.LatLng, Name: wp.Name}
		case wp.Lat != nil && wp.Lng != nil:
			waypoints[i] = geo.NewWaypoint(*wp.Lat, *wp.Lng, wp.Name)
		default:
			return nil, fmt.Errorf("waypoint %d: lat and lng are required", i)
		}
	}
	return waypoints, nil
}

func (o OptionsRequest) toOptions() []routing.Option {
	var opts []routing.Option
	if o.Interval != nil {
		opts = append(opts, routing.WithInterval(*o.Interval))
	}
	if o.NormalizeLongitude != nil {
		opts = append(opts, routing.WithNormalizedLongitude(*o.NormalizeLongitude))
	}
	return opts
}
