package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"

	"github.com/ersn/straightline/internal/cache"
	"github.com/ersn/straightline/internal/config"
	"github.com/ersn/straightline/internal/lib/routing"
	"github.com/ersn/straightline/internal/observability"
	"github.com/ersn/straightline/internal/services"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	ctx, cancel := context.WithCancel(logging.EnsureLogger(context.Background()))
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, appConfig.Tracing, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("Tracing shutdown failed: %v", err)
		}
	}()

	var collector *observability.RouteCollector
	routerOpts := []routing.RouterOption{}
	if appConfig.Metrics.Enabled {
		collector, err = observability.NewRouteCollector(nil)
		if err != nil {
			log.Fatalf("Failed to register metrics: %v", err)
		}
		routerOpts = append(routerOpts, routing.WithRecorder(collector))
	}

	router := routing.NewStraightLine(appConfig.Routing.Options(), routerOpts...)

	var store *cache.RouteStore
	if appConfig.Cache.Enabled {
		cacheInstance := cache.NewCache(appConfig.Cache.MaxEntries)
		cacheInstance.StartPeriodicCleanup(ctx, appConfig.Cache.CleanupInterval)
		store = cache.NewRouteStore(cacheInstance, appConfig.Cache.TTL)
	}

	routeService := services.NewRouteService(router, store, collector, &appConfig.Routing)

	log.Printf("Straight-line route server starting")
	log.Printf("Default interval: %gm, presets: %d", appConfig.Routing.Interval, len(appConfig.Routing.Presets))

	// Keep presets warm for half the cache TTL
	if store != nil && len(appConfig.Routing.Presets) > 0 {
		periodicRefresh := services.NewPeriodicRefreshService(routeService, appConfig.Cache.TTL/2)
		if err := periodicRefresh.StartPeriodicRefresh(ctx); err != nil {
			log.Printf("Failed to start periodic refresh: %v", err)
		}
		defer periodicRefresh.Stop()
	}

	metricsPath := appConfig.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithGRPCReflection(),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandlerFunc("/api/v1/route", routeService.ServeHTTP),
		prefab.WithHTTPHandlerFunc(services.PresetsPath, routeService.PresetsHandler),
		prefab.WithHTTPHandlerFunc(services.PresetsPath+"/", routeService.PresetsHandler),
		prefab.WithHTTPHandlerFunc(metricsPath, metricsHandler(collector)),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration using Prefab's config system
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	sections := []struct {
		key    string
		target any
	}{
		{"routing", &appConfig.Routing},
		{"cache", &appConfig.Cache},
		{"metrics", &appConfig.Metrics},
		{"tracing", &appConfig.Tracing},
	}
	for _, s := range sections {
		if err := prefab.Config.Unmarshal(s.key, s.target); err != nil {
			log.Fatalf("Failed to unmarshal %s section: %v", s.key, err)
		}
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return appConfig
}

// metricsHandler exposes Prometheus metrics, or 404 when metrics are disabled
func metricsHandler(collector *observability.RouteCollector) http.HandlerFunc {
	if collector == nil {
		return http.NotFound
	}
	return collector.Handler().ServeHTTP
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>straightline</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">straightline</span>

Great-circle routes between waypoints, sampled at a fixed interval.
No road network: every leg is a straight line on a spherical Earth.

<span class="header">API Endpoints:</span>

  POST /api/v1/route                       - Route through {"waypoints":[{"lat":..,"lng":..,"name":..}]}
  GET  /api/v1/route?points={polyline}     - Route through an encoded polyline of waypoints
  <a href="/api/v1/routes">GET  /api/v1/routes</a>                      - List preset routes
  <a href="/api/v1/routes/hwy4-angels-murphys">GET  /api/v1/routes/{route_id}</a>            - Get a preset route
  <a href="/metrics">GET  /metrics</a>                            - Prometheus metrics

<span class="header">Options:</span>
  interval=10          - Sampling interval in meters
  normalize=true       - Wrap longitudes into [-180, 180]
  format=json          - json | polyline | geojson | kml

<span class="header">Example Usage:</span>
  curl '<a href="/api/v1/routes/hwy4-arnold-ebbetts?format=geojson">/api/v1/routes/hwy4-arnold-ebbetts?format=geojson</a>'
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
