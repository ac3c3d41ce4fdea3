package trajectory_test

import (
	"math"
	"testing"
	"time"

	"github.com/skypies/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightdev/internal/trajectory"
	tt "github.com/yegors/flightdev/internal/trajectory/trajectorytest"
)

var origin = geo.Latlong{Lat: 44.8, Long: -0.6}

func levelFlight(t *testing.T, id string, d time.Duration) *trajectory.Flight {
	return tt.Flight(t, id, tt.Legs(tt.T0, origin, 34000, tt.Leg{Bearing: 90, Speed: 450, Altitude: 34000, Duration: d}))
}

func TestNewFlightRejectsEmptyAndInvalid(t *testing.T) {
	_, err := trajectory.NewFlight("X", nil)
	assert.ErrorIs(t, err, trajectory.ErrEmptyFlight)

	_, err = trajectory.NewFlight("X", []trajectory.Point{{Timestamp: tt.T0, Altitude: math.NaN()}})
	assert.ErrorIs(t, err, trajectory.ErrInvalidPoint)

	_, err = trajectory.NewFlight("X", []trajectory.Point{{Timestamp: tt.T0, Latlong: geo.Latlong{Lat: 91}}})
	assert.ErrorIs(t, err, trajectory.ErrInvalidPoint)
}

func TestNewFlightSortsAndCopies(t *testing.T) {
	pts := []trajectory.Point{
		{Timestamp: tt.T0.Add(2 * time.Second), Altitude: 3},
		{Timestamp: tt.T0, Altitude: 1},
		{Timestamp: tt.T0.Add(time.Second), Altitude: 2},
	}
	f, err := trajectory.NewFlight("X", pts)
	require.NoError(t, err)

	pts[0].Altitude = 99
	assert.Equal(t, tt.T0, f.Start())
	assert.Equal(t, tt.T0.Add(2*time.Second), f.Stop())
	assert.Equal(t, 3.0, f.At(2).Altitude)
}

func TestBetweenIsInclusiveAndClips(t *testing.T) {
	f := levelFlight(t, "A", 10*time.Minute)

	sub := f.Between(tt.T0.Add(time.Minute), tt.T0.Add(2*time.Minute))
	require.NotNil(t, sub)
	assert.Equal(t, tt.T0.Add(time.Minute), sub.Start())
	assert.Equal(t, tt.T0.Add(2*time.Minute), sub.Stop())
	assert.Equal(t, 61, sub.Len())
	assert.Equal(t, "A", sub.ID())

	// Partial overlap is clipped rather than rejected
	clipped := f.Between(tt.T0.Add(-time.Hour), tt.T0.Add(30*time.Second))
	require.NotNil(t, clipped)
	assert.Equal(t, tt.T0, clipped.Start())

	assert.Nil(t, f.Between(tt.T0.Add(time.Hour), tt.T0.Add(2*time.Hour)))
}

func TestBeforeIsStrict(t *testing.T) {
	f := levelFlight(t, "A", time.Minute)

	assert.Nil(t, f.Before(tt.T0))
	before := f.Before(tt.T0.Add(2 * time.Second))
	require.NotNil(t, before)
	assert.Equal(t, 2, before.Len())
}

func TestResampleFillsGaps(t *testing.T) {
	pts := []trajectory.Point{
		{Timestamp: tt.T0.Add(500 * time.Millisecond), Latlong: geo.Latlong{Lat: 45, Long: 1}, Altitude: 30000},
		{Timestamp: tt.T0.Add(10*time.Second + 500*time.Millisecond), Latlong: geo.Latlong{Lat: 45.1, Long: 1}, Altitude: 31000},
	}
	f, err := trajectory.NewFlight("R", pts)
	require.NoError(t, err)

	r := f.Resample(time.Second)
	require.NotNil(t, r)
	assert.Equal(t, 10, r.Len())
	assert.Equal(t, tt.T0.Add(time.Second), r.Start())
	assert.Equal(t, tt.T0.Add(10*time.Second), r.Stop())
	for i := 1; i < r.Len(); i++ {
		assert.Equal(t, time.Second, r.At(i).Timestamp.Sub(r.At(i-1).Timestamp))
	}
	assert.InDelta(t, 30050.0, r.At(0).Altitude, 1e-6)

	// Original stays untouched
	assert.Equal(t, 2, f.Len())
}

func TestResampleBetweenInterpolatesAtEdges(t *testing.T) {
	pts := []trajectory.Point{
		{Timestamp: tt.T0, Latlong: geo.Latlong{Lat: 45, Long: 1}, Altitude: 30000},
		{Timestamp: tt.T0.Add(10 * time.Second), Latlong: geo.Latlong{Lat: 45.1, Long: 1}, Altitude: 31000},
	}
	f, err := trajectory.NewFlight("R", pts)
	require.NoError(t, err)

	r := f.ResampleBetween(time.Second, tt.T0.Add(3*time.Second), tt.T0.Add(5*time.Second))
	require.NotNil(t, r)
	require.Equal(t, 3, r.Len())
	assert.Equal(t, tt.T0.Add(3*time.Second), r.Start())
	assert.InDelta(t, 30300.0, r.At(0).Altitude, 1e-6)
	assert.InDelta(t, 30500.0, r.At(2).Altitude, 1e-6)

	// Windows reaching past the flight are clamped to it
	all := f.ResampleBetween(time.Second, tt.T0.Add(-time.Hour), tt.T0.Add(time.Hour))
	require.NotNil(t, all)
	assert.Equal(t, 11, all.Len())

	assert.Nil(t, f.ResampleBetween(time.Second, tt.T0.Add(time.Hour), tt.T0.Add(2*time.Hour)))
}

func TestSplitOnGaps(t *testing.T) {
	f := levelFlight(t, "A", time.Minute)
	pts := f.Points()
	// Drop seconds 20..29
	pts = append(pts[:20:20], pts[30:]...)
	holed, err := trajectory.NewFlight("A", pts)
	require.NoError(t, err)

	runs := holed.Split(time.Second)
	require.Len(t, runs, 2)
	assert.Equal(t, tt.T0, runs[0].Start())
	assert.Equal(t, tt.T0.Add(19*time.Second), runs[0].Stop())
	assert.Equal(t, tt.T0.Add(30*time.Second), runs[1].Start())
	assert.Equal(t, "A", runs[1].ID())

	assert.Len(t, f.Split(time.Second), 1)
}

func TestAltitudeHelpers(t *testing.T) {
	pts := tt.Legs(tt.T0, origin, 34000,
		tt.Leg{Bearing: 90, Speed: 450, Altitude: 34000, Duration: 30 * time.Second},
		tt.Leg{Bearing: 90, Speed: 450, Altitude: 36000, Duration: 60 * time.Second},
	)
	f := tt.Flight(t, "C", pts)

	lo, hi := f.AltitudeRange()
	assert.InDelta(t, 34000.0, lo, 1e-6)
	assert.InDelta(t, 36000.0, hi, 1e-6)

	i, found := f.FirstOutsideAltitude(33950, 34050)
	require.True(t, found)
	assert.Equal(t, tt.T0.Add(32*time.Second), f.At(i).Timestamp)

	head := f.Head(i)
	assert.Equal(t, f.At(i).Timestamp, head.Stop())

	level := f.QueryAltitude(33950, 34050)
	assert.Equal(t, 32, level.Len())
	assert.Nil(t, f.QueryAltitude(0, 1000))
}

func TestTraffic(t *testing.T) {
	a := levelFlight(t, "A", time.Minute)
	b := levelFlight(t, "B", time.Minute)
	traffic := trajectory.NewTraffic(a, nil, b)

	assert.Equal(t, 2, traffic.Len())
	got, ok := traffic.Get("B")
	require.True(t, ok)
	assert.Same(t, b, got)

	rest := traffic.Without("A")
	assert.Equal(t, 1, rest.Len())
	_, ok = rest.Get("A")
	assert.False(t, ok)
	assert.Equal(t, 2, traffic.Len())
}
