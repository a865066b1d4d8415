package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

// ErrInvalidCoordinate is returned for coordinates that are not finite or whose
// latitude falls outside [-90, 90]
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const (
	toRadians = math.Pi / 180
	toDegrees = 180 / math.Pi
)

// Project returns the point reached by travelling distanceMeters from `from` along
// the initial azimuth azimuthDegrees on a sphere of radius EarthRadius.
// The resulting longitude is not wrapped into [-180, 180].
func Project(from Point, azimuthDegrees, distanceMeters float64) Point {
	brng := azimuthDegrees * toRadians
	lat1 := from.Latitude * toRadians
	lon1 := from.Longitude * toRadians
	delta := distanceMeters / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) +
		math.Cos(lat1)*math.Sin(delta)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return Point{Latitude: lat2 * toDegrees, Longitude: lon2 * toDegrees}
}

// Bearing calculates the azimuth in degrees [0, 360) from start towards end.
// The latitude difference is taken on the Mercator projection, so this is the
// rhumb-line bearing. Coincident points give 0.
func Bearing(start, end Point) float64 {
	startLat := start.Latitude * toRadians
	startLong := start.Longitude * toRadians
	endLat := end.Latitude * toRadians
	endLong := end.Longitude * toRadians

	dPhi := math.Log(math.Tan(endLat/2+math.Pi/4) / math.Tan(startLat/2+math.Pi/4))

	dLong := endLong - startLong
	if math.Abs(dLong) > math.Pi {
		if dLong > 0 {
			dLong = -(2*math.Pi - dLong)
		} else {
			dLong = 2*math.Pi + dLong
		}
	}

	return math.Mod(math.Atan2(dLong, dPhi)*toDegrees+360, 360)
}

// Distance calculates great-circle distance in meters between two points using
// the Haversine formula
func Distance(p1, p2 Point) float64 {
	// If points are the same, distance is 0
	if p1 == p2 {
		return 0
	}

	lat1 := p1.Latitude * toRadians
	lat2 := p2.Latitude * toRadians
	dlat := lat2 - lat1
	dlon := (p2.Longitude - p1.Longitude) * toRadians

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// NormalizeLongitude wraps a longitude into [-180, 180]
func NormalizeLongitude(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	return math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
}

// ValidateCoordinate checks that a point is finite and has a valid latitude.
// Longitudes outside [-180, 180] are accepted since Project can produce them.
func ValidateCoordinate(p Point) error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) ||
		math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("%w: (%v, %v) is not finite", ErrInvalidCoordinate, p.Latitude, p.Longitude)
	}
	if !isValidCoordinate(p) {
		return fmt.Errorf("%w: latitude must be [-90, 90], got %v", ErrInvalidCoordinate, p.Latitude)
	}
	return nil
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if err := ValidateCoordinate(point); err != nil {
		return Point{}, err
	}
	return point, nil
}

// EncodePolyline encodes a point sequence with the Google polyline algorithm
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline decodes Google polyline string to point sequence
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if err := ValidateCoordinate(points[i]); err != nil {
			return nil, fmt.Errorf("decoded polyline: %w", err)
		}
	}

	return points, nil
}

// isValidCoordinate validates the latitude range
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90
}
