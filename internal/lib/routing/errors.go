package routing

import (
	"errors"

	"github.com/ersn/straightline/internal/lib/geo"
)

var (
	// ErrInvalidInterval is returned when the sampling interval is not a positive
	// finite number of meters
	ErrInvalidInterval = errors.New("interval must be a positive number of meters")

	// ErrInsufficientWaypoints is returned for fewer than two waypoints
	ErrInsufficientWaypoints = errors.New("at least 2 waypoints are required")

	// ErrInvalidCoordinate is returned for waypoints with unusable coordinates
	ErrInvalidCoordinate = geo.ErrInvalidCoordinate

	// ErrTooManyPoints is returned when a route would exceed Options.MaxPoints
	ErrTooManyPoints = errors.New("route exceeds the maximum number of points")
)

// ErrorKind returns a short label for a routing error, used for metrics and logs
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, ErrInsufficientWaypoints):
		return "insufficient_waypoints"
	case errors.Is(err, ErrInvalidCoordinate):
		return "invalid_coordinate"
	case errors.Is(err, ErrTooManyPoints):
		return "too_many_points"
	default:
		return "error"
	}
}

// IsValidationError reports whether err was caused by caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInsufficientWaypoints) ||
		errors.Is(err, ErrInvalidCoordinate) ||
		errors.Is(err, ErrTooManyPoints)
}
