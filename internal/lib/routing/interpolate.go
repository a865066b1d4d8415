package routing

import (
	"fmt"
	"math"

	"github.com/ersn/straightline/internal/lib/geo"
)

const maxPreallocPoints = 4096

// Interpolate samples the great circle from `from` to `to` every intervalMeters.
// The returned leg always starts with from and ends with to, so it holds at
// least two points even when both are the same.
func Interpolate(from, to geo.Point, intervalMeters float64) (Leg, error) {
	if err := validateInterval(intervalMeters); err != nil {
		return Leg{}, err
	}

	d := geo.Distance(from, to)
	azimuth := geo.Bearing(from, to)

	points := make([]geo.Point, 0, min(estimateLegPoints(d, intervalMeters), maxPreallocPoints))
	points = append(points, from)
	for counter := intervalMeters; counter < d; counter += intervalMeters {
		points = append(points, geo.Project(from, azimuth, counter))
	}
	points = append(points, to)

	return Leg{
		Points:   points,
		Azimuth:  azimuth,
		Distance: d,
		Time:     0,
	}, nil
}

// estimateLegPoints returns the number of points Interpolate produces for a leg
// of distance d, give or take one for floating point accumulation
func estimateLegPoints(d, interval float64) int {
	if !(d > interval) {
		return 2
	}
	n := math.Ceil(d/interval) + 1
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

func validateInterval(interval float64) error {
	if math.IsNaN(interval) || math.IsInf(interval, 0) || interval <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidInterval, interval)
	}
	return nil
}
