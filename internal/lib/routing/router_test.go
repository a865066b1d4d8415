package routing

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ersn/straightline/internal/lib/geo"
)

// Highway 4 corridor
var (
	angelsCamp = geo.NewWaypoint(38.0675, -120.5436, "Angels Camp")
	murphys    = geo.NewWaypoint(38.1391, -120.4561, "Murphys")
	arnold     = geo.NewWaypoint(38.2458, -120.3486, "Arnold")
)

func TestCompute_TwoWaypointsOnEquator(t *testing.T) {
	router := NewStraightLine(DefaultOptions())

	result, err := router.Compute(context.Background(), []geo.Waypoint{
		geo.NewWaypoint(0, 0, "origin"),
		geo.NewWaypoint(0, 1, "east"),
	}, WithInterval(100000))
	require.NoError(t, err)

	require.Len(t, result.Instructions, 1)
	instr := result.Instructions[0]
	assert.Equal(t, Straight, instr.Type)
	assert.Equal(t, "Azimuth 90", instr.Text)
	assert.InDelta(t, 111319, instr.Distance, 1)
	assert.Equal(t, 0, instr.Index)

	assert.GreaterOrEqual(t, len(result.Coordinates), 2)
	assert.InDelta(t, 111319, result.Summary.TotalDistance, 1)
	assert.Equal(t, 0.0, result.Summary.TotalTime)
	assert.Equal(t, 0.0, result.Summary.TotalAscend)
	assert.Equal(t, "", result.Name)
}

func TestCompute_ThreeWaypoints(t *testing.T) {
	router := NewStraightLine(DefaultOptions())
	waypoints := []geo.Waypoint{angelsCamp, murphys, arnold}

	result, err := router.Compute(context.Background(), waypoints, WithInterval(1000))
	require.NoError(t, err)

	require.Len(t, result.Instructions, 2)
	require.Len(t, result.WaypointIndices, 3)
	require.Len(t, result.ActualWaypoints, 2)

	assert.Equal(t, "Angels Camp", result.ActualWaypoints[0].Name)
	assert.Equal(t, "Arnold", result.ActualWaypoints[1].Name)
	assert.Equal(t, angelsCamp.Point, result.ActualWaypoints[0].LatLng)
	assert.Equal(t, arnold.Point, result.ActualWaypoints[1].LatLng)

	firstLeg, err := Interpolate(angelsCamp.Point, murphys.Point, 1000)
	require.NoError(t, err)
	secondLeg, err := Interpolate(murphys.Point, arnold.Point, 1000)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Instructions[0].Index)
	assert.Equal(t, len(firstLeg.Points), result.Instructions[1].Index)
	assert.Len(t, result.Coordinates, len(firstLeg.Points)+len(secondLeg.Points))
	assert.Equal(t, []int{0, len(firstLeg.Points), len(result.Coordinates) - 1}, result.WaypointIndices)

	// Murphys closes the first leg and opens the second
	assert.Equal(t, murphys.Point, result.Coordinates[len(firstLeg.Points)-1])
	assert.Equal(t, murphys.Point, result.Coordinates[len(firstLeg.Points)])

	assert.Equal(t, waypoints, result.InputWaypoints)
}

func TestCompute_ValidationErrors(t *testing.T) {
	router := NewStraightLine(DefaultOptions())
	ctx := context.Background()

	tests := []struct {
		name      string
		waypoints []geo.Waypoint
		opts      []Option
		expected  error
	}{
		{"no waypoints", nil, nil, ErrInsufficientWaypoints},
		{"single waypoint", []geo.Waypoint{geo.NewWaypoint(51.5, -0.1, "London")}, nil, ErrInsufficientWaypoints},
		{"zero interval", []geo.Waypoint{angelsCamp, murphys}, []Option{WithInterval(0)}, ErrInvalidInterval},
		{"negative interval", []geo.Waypoint{angelsCamp, murphys}, []Option{WithInterval(-5)}, ErrInvalidInterval},
		{"NaN interval", []geo.Waypoint{angelsCamp, murphys}, []Option{WithInterval(math.NaN())}, ErrInvalidInterval},
		{"NaN latitude", []geo.Waypoint{angelsCamp, geo.NewWaypoint(math.NaN(), 0, "")}, nil, ErrInvalidCoordinate},
		{"infinite longitude", []geo.Waypoint{geo.NewWaypoint(0, math.Inf(1), ""), murphys}, nil, ErrInvalidCoordinate},
		{"too many points", []geo.Waypoint{angelsCamp, murphys}, []Option{WithMaxPoints(100)}, ErrTooManyPoints},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := router.Compute(ctx, tt.waypoints, tt.opts...)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, result)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestCompute_ZeroIntervalReturnsImmediately(t *testing.T) {
	router := NewStraightLine(DefaultOptions())
	done := make(chan error, 1)

	go func() {
		_, err := router.Compute(context.Background(), []geo.Waypoint{angelsCamp, murphys}, WithInterval(0))
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInvalidInterval)
	case <-time.After(5 * time.Second):
		t.Fatal("Compute did not return for a zero interval")
	}
}

func TestCompute_Invariants(t *testing.T) {
	router := NewStraightLine(DefaultOptions())
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		count := 2 + rng.Intn(5)
		waypoints := make([]geo.Waypoint, count)
		base := geo.Point{Latitude: rng.Float64()*120 - 60, Longitude: rng.Float64()*340 - 170}
		for i := range waypoints {
			waypoints[i] = geo.NewWaypoint(
				base.Latitude+rng.Float64()*0.2-0.1,
				base.Longitude+rng.Float64()*0.2-0.1,
				"",
			)
		}
		if run%10 == 0 {
			// Repeated waypoint produces a zero-length leg
			waypoints[1] = waypoints[0]
		}
		interval := 50 + rng.Float64()*2000

		result, err := router.Compute(context.Background(), waypoints, WithInterval(interval))
		require.NoError(t, err)

		coords := result.Coordinates
		require.GreaterOrEqual(t, len(coords), 2)

		indices := result.WaypointIndices
		require.Len(t, indices, len(waypoints))
		assert.Equal(t, 0, indices[0])
		assert.Equal(t, len(coords)-1, indices[len(indices)-1])
		for i := 1; i < len(indices); i++ {
			assert.LessOrEqual(t, indices[i-1], indices[i])
		}

		require.Len(t, result.Instructions, len(waypoints)-1)
		sum := 0.0
		for i, instr := range result.Instructions {
			assert.Equal(t, indices[i], instr.Index)
			assert.Equal(t, waypoints[i].Point, coords[instr.Index], "leg %d starts at its waypoint", i)
			sum += instr.Distance
		}
		assert.InEpsilon(t, sum+1, result.Summary.TotalDistance+1, 1e-6)
		assert.Equal(t, 0.0, result.Summary.TotalTime)
		assert.Equal(t, waypoints[len(waypoints)-1].Point, coords[len(coords)-1])
	}
}

func TestCompute_OptionsAreNotShared(t *testing.T) {
	router := NewStraightLine(DefaultOptions())
	waypoints := []geo.Waypoint{angelsCamp, murphys}

	coarse, err := router.Compute(context.Background(), waypoints, WithInterval(5000))
	require.NoError(t, err)
	assert.Len(t, coarse.Coordinates, 4)

	assert.Equal(t, DefaultOptions(), router.Defaults(), "per-call options must not leak into defaults")

	fine, err := router.Compute(context.Background(), waypoints)
	require.NoError(t, err)
	assert.Greater(t, len(fine.Coordinates), 1000)
}

func TestCompute_InputWaypointsAreCopied(t *testing.T) {
	router := NewStraightLine(DefaultOptions())
	waypoints := []geo.Waypoint{angelsCamp, murphys}

	result, err := router.Compute(context.Background(), waypoints, WithInterval(5000))
	require.NoError(t, err)

	waypoints[0].Name = "changed"
	assert.Equal(t, "Angels Camp", result.InputWaypoints[0].Name)
	assert.Equal(t, "Angels Camp", angelsCamp.Name)
}

func TestCompute_NormalizeLongitude(t *testing.T) {
	waypoints := []geo.Waypoint{
		geo.NewWaypoint(0, 179.9, "west"),
		geo.NewWaypoint(0, -179.9, "east"),
	}

	router := NewStraightLine(DefaultOptions())

	raw, err := router.Compute(context.Background(), waypoints, WithInterval(1000))
	require.NoError(t, err)
	assert.Equal(t, "Azimuth 90", raw.Instructions[0].Text)
	crossed := false
	for _, p := range raw.Coordinates[:len(raw.Coordinates)-1] {
		if p.Longitude > 180 {
			crossed = true
		}
	}
	assert.True(t, crossed, "longitudes past the antimeridian are kept by default")

	normalized, err := router.Compute(context.Background(), waypoints, WithInterval(1000), WithNormalizedLongitude(true))
	require.NoError(t, err)
	require.Len(t, normalized.Coordinates, len(raw.Coordinates))
	for _, p := range normalized.Coordinates {
		assert.GreaterOrEqual(t, p.Longitude, -180.0)
		assert.LessOrEqual(t, p.Longitude, 180.0)
	}
}

func TestAzimuthText(t *testing.T) {
	assert.Equal(t, "Azimuth 0", azimuthText(0))
	assert.Equal(t, "Azimuth 0", azimuthText(0.49))
	assert.Equal(t, "Azimuth 45", azimuthText(44.5))
	assert.Equal(t, "Azimuth 90", azimuthText(90))
	assert.Equal(t, "Azimuth 360", azimuthText(359.6))
}

func TestRoute_DeliversAfterReturning(t *testing.T) {
	router := NewStraightLine(DefaultOptions())

	gate := make(chan struct{})
	delivered := make(chan []RouteResult, 1)
	returned := make(chan error, 1)

	go func() {
		returned <- router.Route(context.Background(), []geo.Waypoint{angelsCamp, murphys}, func(err error, routes []RouteResult) {
			assert.NoError(t, err)
			<-gate
			delivered <- routes
		}, WithInterval(1000))
	}()

	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Route blocked on its callback")
	}

	close(gate)

	select {
	case routes := <-delivered:
		require.Len(t, routes, 1)
		assert.Equal(t, "Murphys", routes[0].ActualWaypoints[1].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("callback was never invoked")
	}
}

func TestRoute_ValidationErrorSkipsCallback(t *testing.T) {
	router := NewStraightLine(DefaultOptions())
	called := make(chan struct{}, 1)

	err := router.Route(context.Background(), []geo.Waypoint{angelsCamp}, func(error, []RouteResult) {
		called <- struct{}{}
	})
	assert.ErrorIs(t, err, ErrInsufficientWaypoints)

	select {
	case <-called:
		t.Fatal("callback must not run for invalid input")
	case <-time.After(50 * time.Millisecond):
	}

	assert.ErrorIs(t, router.Route(context.Background(), []geo.Waypoint{angelsCamp, murphys}, nil), ErrNilCallback)
}

func TestRoute_RecoversCallbackPanic(t *testing.T) {
	router := NewStraightLine(DefaultOptions())

	// The context carries no logger, as with context.Background in a caller
	for i := 0; i < 2; i++ {
		done := make(chan struct{})
		err := router.Route(context.Background(), []geo.Waypoint{angelsCamp, murphys}, func(error, []RouteResult) {
			defer close(done)
			panic("callback failure")
		}, WithInterval(5000))
		require.NoError(t, err)

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("callback was never invoked")
		}
	}

	// The router keeps delivering after a callback panicked
	future, err := router.RouteAsync(context.Background(), []geo.Waypoint{angelsCamp, murphys}, WithInterval(5000))
	require.NoError(t, err)
	_, err = future.Wait(context.Background())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
}

func TestCompute_RejectsNonFiniteLegDistance(t *testing.T) {
	router := NewStraightLine(Options{Interval: 10, MaxPoints: 1000})
	waypoints := []geo.Waypoint{
		geo.NewWaypoint(0, -1.7e308, "west"),
		geo.NewWaypoint(0, 1.7e308, "east"),
	}

	err := Validate(waypoints, router.Defaults())
	require.ErrorIs(t, err, ErrInvalidCoordinate)
	assert.Contains(t, err.Error(), "waypoints 0 and 1")

	assert.NotPanics(t, func() {
		result, err := router.Compute(context.Background(), waypoints)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
		assert.Nil(t, result)
	})

	called := false
	err = router.Route(context.Background(), waypoints, func(error, []RouteResult) { called = true })
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
	assert.False(t, called)
}

func TestRouteAsync(t *testing.T) {
	router := NewStraightLine(Options{Interval: 2000})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	future, err := router.RouteAsync(ctx, []geo.Waypoint{angelsCamp, murphys, arnold})
	require.NoError(t, err)

	routes, err := future.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Len(t, routes[0].Instructions, 2)

	select {
	case <-future.Done():
	default:
		t.Fatal("Done should be closed after Wait returns")
	}

	_, err = router.RouteAsync(ctx, nil)
	assert.ErrorIs(t, err, ErrInsufficientWaypoints)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordRoute(outcome string, waypoints, points int, elapsed time.Duration) {
	m.Called(outcome, waypoints, points, elapsed)
}

func TestCompute_ReportsToRecorder(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordRoute", "ok", 2, 4, mock.AnythingOfType("time.Duration")).Once()
	rec.On("RecordRoute", "insufficient_waypoints", 1, 0, mock.AnythingOfType("time.Duration")).Once()

	router := NewStraightLine(DefaultOptions(), WithRecorder(rec))

	_, err := router.Compute(context.Background(), []geo.Waypoint{angelsCamp, murphys}, WithInterval(5000))
	require.NoError(t, err)
	_, err = router.Compute(context.Background(), []geo.Waypoint{angelsCamp})
	require.Error(t, err)

	rec.AssertExpectations(t)
}

func TestCompute_ConcurrentCalls(t *testing.T) {
	router := NewStraightLine(DefaultOptions())
	waypoints := []geo.Waypoint{angelsCamp, murphys, arnold}

	var wg sync.WaitGroup
	for i := 1; i <= 16; i++ {
		interval := float64(i) * 250
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := router.Compute(context.Background(), waypoints, WithInterval(interval))
			if assert.NoError(t, err) {
				expected := router.Resolve(WithInterval(interval))
				assert.Equal(t, interval, expected.Interval)
				first, _ := Interpolate(angelsCamp.Point, murphys.Point, interval)
				assert.Equal(t, len(first.Points), result.Instructions[1].Index)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultOptions(), router.Defaults())
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "invalid_interval", ErrorKind(ErrInvalidInterval))
	assert.Equal(t, "insufficient_waypoints", ErrorKind(ErrInsufficientWaypoints))
	assert.Equal(t, "invalid_coordinate", ErrorKind(ErrInvalidCoordinate))
	assert.Equal(t, "too_many_points", ErrorKind(ErrTooManyPoints))
	assert.Equal(t, "error", ErrorKind(context.Canceled))
	assert.False(t, IsValidationError(context.Canceled))
}
