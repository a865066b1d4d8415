package geo

// Point represents a geographic coordinate in degrees
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Waypoint is a caller-supplied stop with an optional display name
type Waypoint struct {
	Point `json:"latLng"`
	Name  string `json:"name,omitempty"`
}

// NewWaypoint creates a named Waypoint at the given coordinates
func NewWaypoint(latitude, longitude float64, name string) Waypoint {
	return Waypoint{Point: Point{Latitude: latitude, Longitude: longitude}, Name: name}
}

// EarthRadius is the sphere radius used by every calculation in this package.
// It is the WGS-84 equatorial radius, not a mean radius.
const EarthRadius = 6378137.0
