package routing

import (
	"context"

	"github.com/ersn/straightline/internal/lib/geo"
)

// InstructionType is the maneuver tag of an Instruction
type InstructionType string

// Straight is the only maneuver a straight-line route has
const Straight InstructionType = "Straight"

// Leg is the interpolated path between two consecutive waypoints
type Leg struct {
	Points   []geo.Point `json:"points"`   // from ... to, both inclusive
	Azimuth  float64     `json:"azimuth"`  // degrees [0, 360)
	Distance float64     `json:"distance"` // meters
	Time     float64     `json:"time"`     // always 0
}

// Instruction describes one leg of a route
type Instruction struct {
	Type     InstructionType `json:"type"`
	Text     string          `json:"text"`
	Distance float64         `json:"distance"`
	Time     float64         `json:"time"`
	Index    int             `json:"index"` // first coordinate of the leg
}

// Summary holds route totals
type Summary struct {
	TotalDistance float64 `json:"totalDistance"`
	TotalTime     float64 `json:"totalTime"`
	TotalAscend   float64 `json:"totalAscend"` // unsupported, always 0
}

// ActualWaypoint is a waypoint as it lies on the computed route
type ActualWaypoint struct {
	LatLng geo.Point `json:"latLng"`
	Name   string    `json:"name"`
}

// RouteResult is one route alternative in the shape itinerary panels and line
// renderers consume
type RouteResult struct {
	Name            string           `json:"name"`
	Coordinates     []geo.Point      `json:"coordinates"`
	Instructions    []Instruction    `json:"instructions"`
	Summary         Summary          `json:"summary"`
	InputWaypoints  []geo.Waypoint   `json:"inputWaypoints"`
	ActualWaypoints []ActualWaypoint `json:"actualWaypoints"`
	WaypointIndices []int            `json:"waypointIndices"`
}

// Callback receives the outcome of an asynchronous Route call. err is always nil
// for routes delivered by StraightLine; validation failures are returned by Route
// itself.
type Callback func(err error, routes []RouteResult)

// Router is the capability a host routing framework expects from a router
type Router interface {
	// Route computes routes through waypoints and hands them to callback.
	// The callback never runs on the caller's stack.
	Route(ctx context.Context, waypoints []geo.Waypoint, callback Callback, opts ...Option) error
}
