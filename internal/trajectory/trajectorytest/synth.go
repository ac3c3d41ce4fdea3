// Package trajectorytest builds synthetic flights for tests.
package trajectorytest

import (
	"testing"
	"time"

	"github.com/skypies/geo"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightdev/internal/physics"
	"github.com/yegors/flightdev/internal/trajectory"
)

// T0 is an arbitrary, second-aligned reference time
var T0 = time.Date(2022, 7, 14, 10, 0, 0, 0, time.UTC)

// Leg describes straight, constant-speed flight for a duration
type Leg struct {
	Bearing  float64       // true track, degrees
	Speed    float64       // knots
	Altitude float64       // feet at the end of the leg; linear change over the leg
	Duration time.Duration // whole seconds
}

// Legs flies the given legs from origin at start, producing one point per second
func Legs(start time.Time, origin geo.Latlong, alt float64, legs ...Leg) []trajectory.Point {
	pos, t := origin, start
	pts := []trajectory.Point{{Timestamp: t, Latlong: pos, Altitude: alt}}
	for _, leg := range legs {
		n := int(leg.Duration / time.Second)
		startAlt := alt
		for i := 1; i <= n; i++ {
			pos = physics.MoveNM(pos, leg.Bearing, leg.Speed/3600.0)
			t = t.Add(time.Second)
			alt = startAlt + (leg.Altitude-startAlt)*float64(i)/float64(n)
			pts = append(pts, trajectory.Point{
				Timestamp:   t,
				Latlong:     pos,
				Altitude:    alt,
				GroundSpeed: leg.Speed,
				Track:       leg.Bearing,
				HasTrack:    true,
			})
		}
	}
	if len(pts) > 1 {
		pts[0].GroundSpeed, pts[0].Track, pts[0].HasTrack = pts[1].GroundSpeed, pts[1].Track, true
	}
	return pts
}

// Flight wraps NewFlight, failing the test on error
func Flight(tb testing.TB, id string, pts []trajectory.Point) *trajectory.Flight {
	tb.Helper()
	f, err := trajectory.NewFlight(id, pts)
	require.NoError(tb, err)
	return f
}

// Offset returns the position reached from p along bearing for distNM
func Offset(p geo.Latlong, bearing, distNM float64) geo.Latlong {
	return physics.MoveNM(p, bearing, distNM)
}
