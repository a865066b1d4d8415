// Package export renders computed routes for map clients.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-kml/v2"

	"github.com/ersn/straightline/internal/lib/geo"
	"github.com/ersn/straightline/internal/lib/routing"
)

// Format identifies an output encoding for routes
type Format string

const (
	FormatJSON     Format = "json"
	FormatPolyline Format = "polyline"
	FormatGeoJSON  Format = "geojson"
	FormatKML      Format = "kml"
)

// ParseFormat parses a format name, defaulting to JSON for an empty string
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatPolyline, FormatGeoJSON, FormatKML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected json, polyline, geojson or kml)", s)
	}
}

// ContentType returns the HTTP content type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatPolyline:
		return "text/plain; charset=utf-8"
	case FormatGeoJSON:
		return "application/geo+json"
	case FormatKML:
		return "application/vnd.google-earth.kml+xml"
	default:
		return "application/json"
	}
}

// Write encodes routes to w in the given format. Polyline, GeoJSON and KML only
// carry the first route.
func Write(w io.Writer, format Format, routes []routing.RouteResult) error {
	if format == FormatJSON {
		return json.NewEncoder(w).Encode(struct {
			Routes []routing.RouteResult `json:"routes"`
		}{Routes: routes})
	}

	if len(routes) == 0 {
		return fmt.Errorf("no route to export")
	}
	route := &routes[0]

	switch format {
	case FormatPolyline:
		_, err := io.WriteString(w, Polyline(route)+"\n")
		return err
	case FormatGeoJSON:
		data, err := GeoJSON(route)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatKML:
		return KML(w, route)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// Polyline encodes the route geometry as a Google encoded polyline
func Polyline(route *routing.RouteResult) string {
	return geo.EncodePolyline(route.Coordinates)
}

// GeoJSON renders the route as a FeatureCollection holding the route line followed
// by one point per actual waypoint
func GeoJSON(route *routing.RouteResult) ([]byte, error) {
	line := make(orb.LineString, len(route.Coordinates))
	for i, p := range route.Coordinates {
		line[i] = toOrb(p)
	}

	fc := geojson.NewFeatureCollection()

	feature := geojson.NewFeature(line)
	feature.Properties["name"] = route.Name
	feature.Properties["totalDistance"] = route.Summary.TotalDistance
	feature.Properties["totalTime"] = route.Summary.TotalTime
	feature.Properties["totalAscend"] = route.Summary.TotalAscend
	feature.Properties["waypointIndices"] = route.WaypointIndices
	fc.Append(feature)

	for i, wp := range route.ActualWaypoints {
		point := geojson.NewFeature(toOrb(wp.LatLng))
		point.Properties["name"] = wp.Name
		point.Properties["role"] = waypointRole(i)
		fc.Append(point)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geojson: %w", err)
	}
	return data, nil
}

// KML writes the route as a KML document with a line placemark and one placemark
// per actual waypoint
func KML(w io.Writer, route *routing.RouteResult) error {
	coords := make([]kml.Coordinate, len(route.Coordinates))
	for i, p := range route.Coordinates {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}

	children := []kml.Element{
		kml.Name(documentName(route)),
		kml.Placemark(
			kml.Name("Route"),
			kml.Description(fmt.Sprintf("Distance %.0f m", route.Summary.TotalDistance)),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coords...),
			),
		),
	}

	for i, wp := range route.ActualWaypoints {
		name := wp.Name
		if name == "" {
			name = waypointRole(i)
		}
		children = append(children, kml.Placemark(
			kml.Name(name),
			kml.Point(
				kml.Coordinates(kml.Coordinate{Lon: wp.LatLng.Longitude, Lat: wp.LatLng.Latitude}),
			),
		))
	}

	if err := kml.KML(kml.Document(children...)).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write kml: %w", err)
	}
	return nil
}

func documentName(route *routing.RouteResult) string {
	if route.Name != "" {
		return route.Name
	}
	if len(route.ActualWaypoints) == 2 && route.ActualWaypoints[0].Name != "" && route.ActualWaypoints[1].Name != "" {
		return route.ActualWaypoints[0].Name + " to " + route.ActualWaypoints[1].Name
	}
	return "Straight line route"
}

func waypointRole(i int) string {
	if i == 0 {
		return "start"
	}
	return "end"
}

// toOrb converts to orb's [lng, lat] ordering
func toOrb(p geo.Point) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}
