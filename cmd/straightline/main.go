package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ersn/straightline/internal/lib/export"
	"github.com/ersn/straightline/internal/lib/geo"
	"github.com/ersn/straightline/internal/lib/routing"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "route":
		handleRoute(os.Args[2:])
	case "bearing":
		handleBearing(os.Args[2:])
	case "project":
		handleProject(os.Args[2:])
	case "distance":
		handleDistance(os.Args[2:])
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleRoute(args []string) {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	polylineStr := fs.String("polyline", "", "Encoded polyline of waypoints (instead of positional lat,lng[,name] args)")
	interval := fs.Float64("interval", routing.DefaultInterval, "Sampling interval in meters")
	format := fs.String("format", "json", "Output format: json, polyline, geojson, kml")
	normalize := fs.Bool("normalize", false, "Wrap output longitudes into [-180, 180]")
	maxPoints := fs.Int("max-points", 1_000_000, "Refuse routes with more coordinates than this (0 for no limit)")

	fs.Parse(args)

	waypoints, err := parseWaypoints(*polylineStr, fs.Args())
	if err != nil {
		log.Fatalf("Error reading waypoints: %v", err)
	}
	if len(waypoints) == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  straightline route --interval 1000 38.0675,-120.5436,\"Angels Camp\" 38.1391,-120.4561,Murphys")
		fmt.Println("  straightline route --format geojson --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		os.Exit(1)
	}

	opts := routing.Options{
		Interval:           *interval,
		NormalizeLongitude: *normalize,
		MaxPoints:          *maxPoints,
	}
	if err := writeRoute(os.Stdout, waypoints, opts, *format); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// writeRoute computes the route through waypoints and renders it to out
func writeRoute(out io.Writer, waypoints []geo.Waypoint, opts routing.Options, format string) error {
	outFormat, err := export.ParseFormat(format)
	if err != nil {
		return err
	}

	router := routing.NewStraightLine(opts)

	future, err := router.RouteAsync(context.Background(), waypoints)
	if err != nil {
		return fmt.Errorf("computing route: %w", err)
	}
	routes, err := future.Wait(context.Background())
	if err != nil {
		return fmt.Errorf("computing route: %w", err)
	}

	return export.Write(out, outFormat, routes)
}

func handleBearing(args []string) {
	fs := flag.NewFlagSet("bearing", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of start point")
	lng1 := fs.Float64("lng1", 0, "Longitude of start point")
	lat2 := fs.Float64("lat2", 0, "Latitude of end point")
	lng2 := fs.Float64("lng2", 0, "Longitude of end point")

	fs.Parse(args)

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  straightline bearing --lat1 38.0675 --lng1 -120.5436 --lat2 38.1391 --lng2 -120.4561")
		fmt.Println("  (Azimuth from Angels Camp to Murphys)")
		os.Exit(1)
	}

	p1, p2 := mustPoint(*lat1, *lng1), mustPoint(*lat2, *lng2)

	fmt.Printf("Bearing between points:\n")
	fmt.Printf("  Start: (%.6f, %.6f)\n", p1.Latitude, p1.Longitude)
	fmt.Printf("  End:   (%.6f, %.6f)\n", p2.Latitude, p2.Longitude)
	fmt.Printf("  Azimuth: %.4f degrees\n", geo.Bearing(p1, p2))
}

func handleProject(args []string) {
	fs := flag.NewFlagSet("project", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of start point")
	lng := fs.Float64("lng", 0, "Longitude of start point")
	azimuth := fs.Float64("azimuth", 0, "Azimuth in degrees clockwise from north")
	distance := fs.Float64("distance", 0, "Distance in meters")

	fs.Parse(args)

	if *distance == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  straightline project --lat 38.0675 --lng -120.5436 --azimuth 45 --distance 10000")
		os.Exit(1)
	}

	from := mustPoint(*lat, *lng)
	to := geo.Project(from, *azimuth, *distance)

	fmt.Printf("Projected point:\n")
	fmt.Printf("  From: (%.6f, %.6f)\n", from.Latitude, from.Longitude)
	fmt.Printf("  Azimuth: %.4f degrees, distance: %.2f meters\n", *azimuth, *distance)
	fmt.Printf("  To:   (%.6f, %.6f)\n", to.Latitude, to.Longitude)
}

func handleDistance(args []string) {
	fs := flag.NewFlagSet("distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")

	fs.Parse(args)

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  straightline distance --lat1 38.0675 --lng1 -120.5436 --lat2 38.1391 --lng2 -120.4561")
		fmt.Println("  (Distance between Angels Camp and Murphys)")
		os.Exit(1)
	}

	p1, p2 := mustPoint(*lat1, *lng1), mustPoint(*lat2, *lng2)
	distance := geo.Distance(p1, p2)

	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: (%.6f, %.6f)\n", p1.Latitude, p1.Longitude)
	fmt.Printf("  Point 2: (%.6f, %.6f)\n", p2.Latitude, p2.Longitude)
	fmt.Printf("  Distance: %.2f meters (%.2f km, %.2f miles)\n",
		distance, distance/1000, distance*0.000621371)
}

func mustPoint(lat, lng float64) geo.Point {
	p, err := geo.NewPoint(lat, lng)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	return p
}

// parseWaypoints reads waypoints from an encoded polyline or from lat,lng[,name] args
func parseWaypoints(encoded string, args []string) ([]geo.Waypoint, error) {
	if encoded != "" {
		points, err := geo.DecodePolyline(encoded)
		if err != nil {
			return nil, err
		}
		waypoints := make([]geo.Waypoint, len(points))
		for i, p := range points {
			waypoints[i] = geo.Waypoint{Point: p}
		}
		return waypoints, nil
	}

	waypoints := make([]geo.Waypoint, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ",", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("waypoint %q: expected lat,lng[,name]", arg)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint %q: invalid latitude: %w", arg, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint %q: invalid longitude: %w", arg, err)
		}
		name := ""
		if len(parts) == 3 {
			name = strings.TrimSpace(parts[2])
		}
		waypoints = append(waypoints, geo.NewWaypoint(lat, lng, name))
	}
	return waypoints, nil
}

func printUsage() {
	fmt.Println("straightline - great-circle routes between waypoints")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  straightline <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  route       Route through waypoints given as lat,lng[,name] args or --polyline")
	fmt.Println("  bearing     Azimuth from one point to another")
	fmt.Println("  project     Point reached from a start point along an azimuth")
	fmt.Println("  distance    Great-circle distance between two points")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  straightline route --interval 500 --format kml 38.0675,-120.5436,\"Angels Camp\" 38.1391,-120.4561,Murphys")
	fmt.Println("  straightline bearing --lat1 0 --lng1 0 --lat2 0 --lng2 1")
	fmt.Println("  straightline project --lat 0 --lng 0 --azimuth 90 --distance 111319")
	fmt.Println("  straightline distance --lat1 0 --lng1 0 --lat2 0 --lng2 1")
}
