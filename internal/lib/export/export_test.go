package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersn/straightline/internal/lib/geo"
	"github.com/ersn/straightline/internal/lib/routing"
)

func testRoute(t *testing.T) *routing.RouteResult {
	t.Helper()

	router := routing.NewStraightLine(routing.DefaultOptions())
	result, err := router.Compute(context.Background(), []geo.Waypoint{
		geo.NewWaypoint(38.0675, -120.5436, "Angels Camp"),
		geo.NewWaypoint(38.1391, -120.4561, "Murphys"),
	}, routing.WithInterval(2000))
	require.NoError(t, err)
	return result
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":         FormatJSON,
		"json":     FormatJSON,
		"GeoJSON":  FormatGeoJSON,
		" kml ":    FormatKML,
		"polyline": FormatPolyline,
	}
	for input, expected := range tests {
		f, err := ParseFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, f)
	}

	_, err := ParseFormat("gpx")
	assert.Error(t, err)
}

func TestPolyline(t *testing.T) {
	route := testRoute(t)

	decoded, err := geo.DecodePolyline(Polyline(route))
	require.NoError(t, err)
	require.Len(t, decoded, len(route.Coordinates))
	for i, p := range decoded {
		assert.InDelta(t, route.Coordinates[i].Latitude, p.Latitude, 1e-5)
		assert.InDelta(t, route.Coordinates[i].Longitude, p.Longitude, 1e-5)
	}
}

func TestGeoJSON(t *testing.T) {
	route := testRoute(t)

	data, err := GeoJSON(route)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	line, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok, "first feature should be the route line")
	require.Len(t, line, len(route.Coordinates))
	assert.Equal(t, orb.Point{-120.5436, 38.0675}, line[0], "GeoJSON uses [lng, lat]")
	assert.InDelta(t, route.Summary.TotalDistance, fc.Features[0].Properties.MustFloat64("totalDistance"), 1e-6)

	assert.Equal(t, "Angels Camp", fc.Features[1].Properties.MustString("name"))
	assert.Equal(t, "end", fc.Features[2].Properties.MustString("role"))
}

func TestKML(t *testing.T) {
	route := testRoute(t)

	var buf bytes.Buffer
	require.NoError(t, KML(&buf, route))

	out := buf.String()
	assert.Contains(t, out, "<kml")
	assert.Contains(t, out, "<name>Angels Camp to Murphys</name>")
	assert.Contains(t, out, "<LineString>")
	assert.Contains(t, out, "-120.5436,38.0675")
	assert.Equal(t, 2, strings.Count(out, "<Point>"))
}

func TestWrite(t *testing.T) {
	route := testRoute(t)
	routes := []routing.RouteResult{*route}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, routes))

	var decoded struct {
		Routes []map[string]json.RawMessage `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Routes, 1)
	for _, key := range []string{"name", "coordinates", "instructions", "summary", "inputWaypoints", "actualWaypoints", "waypointIndices"} {
		assert.Contains(t, decoded.Routes[0], key)
	}

	buf.Reset()
	require.NoError(t, Write(&buf, FormatPolyline, routes))
	assert.Equal(t, Polyline(route)+"\n", buf.String())

	assert.Error(t, Write(&buf, FormatKML, nil))
	assert.Equal(t, "application/geo+json", FormatGeoJSON.ContentType())
}
