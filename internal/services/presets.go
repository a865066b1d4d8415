package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ersn/straightline/internal/cache"
	"github.com/ersn/straightline/internal/config"
	"github.com/ersn/straightline/internal/lib/export"
	"github.com/ersn/straightline/internal/lib/routing"
)

// PresetsPath is where preset routes are served. GET PresetsPath lists them and
// GET PresetsPath/{id} computes one.
const PresetsPath = "/api/v1/routes"

// PresetSummary describes a preset route in the listing
type PresetSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Waypoints []string `json:"waypoints"`
	Distance  float64  `json:"distance"`
}

// ListPresetsResponse is the body of GET /api/v1/routes
type ListPresetsResponse struct {
	Routes []PresetSummary `json:"routes"`
}

// GetPreset computes (or fetches from cache) the route for a configured preset
func (s *RouteService) GetPreset(ctx context.Context, id string) (config.PresetRoute, []routing.RouteResult, error) {
	ctx = logging.EnsureLogger(ctx)
	preset, ok := s.presets().Preset(id)
	if !ok {
		return config.PresetRoute{}, nil, status.Errorf(codes.NotFound, "route not found: %s", id)
	}
	routes, err := s.route(ctx, preset.ToWaypoints(), nil)
	if err != nil {
		return preset, nil, err
	}
	return preset, namePreset(routes, preset), nil
}

// RefreshPreset recomputes a preset and overwrites its cache entry. Cached
// results are neither read nor counted as lookups.
func (s *RouteService) RefreshPreset(ctx context.Context, id string) error {
	ctx = logging.EnsureLogger(ctx)
	preset, ok := s.presets().Preset(id)
	if !ok {
		return status.Errorf(codes.NotFound, "route not found: %s", id)
	}
	_, err := s.compute(ctx, s.PresetKey(preset), preset.ToWaypoints(), nil)
	return err
}

// PresetKey returns the cache key a preset is stored under
func (s *RouteService) PresetKey(preset config.PresetRoute) string {
	return cache.RouteKey(preset.ToWaypoints(), s.router.Resolve())
}

func namePreset(routes []routing.RouteResult, preset config.PresetRoute) []routing.RouteResult {
	for i := range routes {
		routes[i].Name = preset.Name
	}
	return routes
}

func (s *RouteService) presets() config.RoutingConfig {
	if s.config == nil {
		return config.RoutingConfig{}
	}
	return *s.config
}

// PresetsHandler serves the preset listing and individual preset routes
func (s *RouteService) PresetsHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	ctx := logging.EnsureLogger(r.Context())

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeErrorBody(w, http.StatusMethodNotAllowed, ErrorResponse{
			Error:     "method not allowed",
			Code:      codes.Unimplemented.String(),
			RequestID: requestID,
		})
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, PresetsPath), "/")
	if id == "" {
		s.listPresets(ctx, w, requestID)
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(ctx, w, requestID, status.Error(codes.InvalidArgument, err.Error()))
		return
	}

	preset, routes, err := s.GetPreset(ctx, id)
	if err != nil {
		s.writeError(ctx, w, requestID, err)
		return
	}

	logging.Infow(ctx, "Preset route served",
		"request_id", requestID,
		"route_id", preset.ID,
		"points", len(routes[0].Coordinates),
		"format", string(format))

	w.Header().Set("Content-Type", format.ContentType())
	if err := export.Write(w, format, routes); err != nil {
		logging.Errorw(ctx, "Failed to write preset response", "request_id", requestID, "error", err)
	}
}

func (s *RouteService) listPresets(ctx context.Context, w http.ResponseWriter, requestID string) {
	resp := ListPresetsResponse{Routes: []PresetSummary{}}

	for _, preset := range s.presets().Presets {
		summary := PresetSummary{ID: preset.ID, Name: preset.Name}
		for _, c := range preset.Waypoints {
			summary.Waypoints = append(summary.Waypoints, c.Name)
		}
		_, routes, err := s.GetPreset(ctx, preset.ID)
		if err != nil {
			logging.Warnw(ctx, "Failed to compute preset route", "route_id", preset.ID, "error", err)
		} else {
			summary.Distance = routes[0].Summary.TotalDistance
		}
		resp.Routes = append(resp.Routes, summary)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Errorw(ctx, "Failed to write preset listing", "request_id", requestID, "error", err)
	}
}
