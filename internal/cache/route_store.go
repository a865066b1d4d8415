package cache

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ersn/straightline/internal/lib/geo"
	"github.com/ersn/straightline/internal/lib/routing"
)

const routeSource = "straightline"

// RouteStore caches computed routes keyed by the content of the request
type RouteStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewRouteStore creates a route store on top of cache with the given entry TTL
func NewRouteStore(cache *Cache, ttl time.Duration) *RouteStore {
	return &RouteStore{cache: cache, ttl: ttl}
}

// RouteKey builds a content hash for a routing request. Two requests with the
// same waypoints (names included) and effective options share a key.
func RouteKey(waypoints []geo.Waypoint, opts routing.Options) string {
	var b strings.Builder
	for _, wp := range waypoints {
		b.WriteString(strconv.FormatFloat(wp.Latitude, 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(wp.Longitude, 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.Quote(wp.Name))
		b.WriteByte('|')
	}
	fmt.Fprintf(&b, "interval=%s|normalize=%t|max=%d",
		strconv.FormatFloat(opts.Interval, 'g', -1, 64), opts.NormalizeLongitude, opts.MaxPoints)

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("route:%x", hash)
}

// GetRoute returns a fresh cached route for key
func (s *RouteStore) GetRoute(key string) (*routing.RouteResult, bool, error) {
	var result routing.RouteResult
	found, err := s.cache.Get(key, &result)
	if err != nil || !found {
		return nil, false, err
	}
	return &result, true, nil
}

// SetRoute stores a computed route under key
func (s *RouteStore) SetRoute(key string, result *routing.RouteResult) error {
	return s.cache.Set(key, result, s.ttl, routeSource)
}

// Expiry returns when the entry for key expires
func (s *RouteStore) Expiry(key string) (time.Time, bool) {
	entry, ok := s.cache.Lookup(key)
	if !ok {
		return time.Time{}, false
	}
	return entry.ExpiresAt, true
}
