package trajectory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/skypies/geo"
)

var (
	// ErrEmptyFlight is returned when a flight would have no points
	ErrEmptyFlight = errors.New("flight has no points")
	// ErrInvalidPoint is returned for points with non-finite coordinates or altitude
	ErrInvalidPoint = errors.New("invalid trajectory point")
)

// Point locates an aircraft in space and time
type Point struct {
	Timestamp   time.Time // Always UTC
	geo.Latlong           // Embedded, so the geo helpers work directly on points

	Altitude    float64 // Pressure altitude in feet
	GroundSpeed float64 // Knots, zero when unknown

	Track         float64 // True track over ground, degrees
	HasTrack      bool
	MagHeading    float64 // Magnetic heading, degrees
	HasMagHeading bool
}

func (p Point) String() string {
	return fmt.Sprintf("[%s] %s %.0fft %.0fkts", p.Timestamp.Format(time.RFC3339), p.Latlong, p.Altitude, p.GroundSpeed)
}

func (p Point) valid() bool {
	for _, v := range []float64{p.Lat, p.Long, p.Altitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Long >= -180 && p.Long <= 180
}

// Flight is an immutable, time-ordered sequence of points. Every derived view (resampled,
// sliced, filtered) is a new Flight; views that would be empty are returned as nil.
type Flight struct {
	id       string
	callsign string
	icao24   string
	points   []Point
}

// NewFlight validates and sorts the given points into a new Flight. The slice is copied.
func NewFlight(id string, points []Point) (*Flight, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrEmptyFlight)
	}
	pts := make([]Point, len(points))
	copy(pts, points)
	for i := range pts {
		if !pts[i].valid() {
			return nil, fmt.Errorf("%s: point %d: %w", id, i, ErrInvalidPoint)
		}
		pts[i].Timestamp = pts[i].Timestamp.UTC()
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })
	return &Flight{id: id, points: pts}, nil
}

// WithIdentity returns a copy of the flight carrying a callsign and icao24 address
func (f *Flight) WithIdentity(callsign, icao24 string) *Flight {
	return &Flight{id: f.id, callsign: callsign, icao24: icao24, points: f.points}
}

// WithID returns a copy of the flight under a different identifier
func (f *Flight) WithID(id string) *Flight {
	return &Flight{id: id, callsign: f.callsign, icao24: f.icao24, points: f.points}
}

// derive builds a view sharing identity; pts must be freshly allocated by the caller
func (f *Flight) derive(pts []Point) *Flight {
	if len(pts) == 0 {
		return nil
	}
	return &Flight{id: f.id, callsign: f.callsign, icao24: f.icao24, points: pts}
}

func (f *Flight) ID() string       { return f.id }
func (f *Flight) Callsign() string { return f.callsign }
func (f *Flight) Icao24() string   { return f.icao24 }
func (f *Flight) Len() int         { return len(f.points) }

func (f *Flight) Start() time.Time        { return f.points[0].Timestamp }
func (f *Flight) Stop() time.Time         { return f.points[len(f.points)-1].Timestamp }
func (f *Flight) Duration() time.Duration { return f.Stop().Sub(f.Start()) }

// At returns the i'th point
func (f *Flight) At(i int) Point { return f.points[i] }

// Points returns a copy of the flight's points
func (f *Flight) Points() []Point {
	ret := make([]Point, len(f.points))
	copy(ret, f.points)
	return ret
}

func (f *Flight) String() string {
	return fmt.Sprintf("Flight %s: %d points, %s -> %s", f.id, len(f.points),
		f.Start().Format(time.RFC3339), f.Stop().Format(time.RFC3339))
}

// Between returns the points within [start, stop] (inclusive). Flights that only partially
// overlap the window are clipped to it.
func (f *Flight) Between(start, stop time.Time) *Flight {
	i := sort.Search(len(f.points), func(i int) bool { return !f.points[i].Timestamp.Before(start) })
	j := sort.Search(len(f.points), func(j int) bool { return f.points[j].Timestamp.After(stop) })
	if i >= j {
		return nil
	}
	pts := make([]Point, j-i)
	copy(pts, f.points[i:j])
	return f.derive(pts)
}

// Before returns the points strictly before t
func (f *Flight) Before(t time.Time) *Flight {
	j := sort.Search(len(f.points), func(j int) bool { return !f.points[j].Timestamp.Before(t) })
	pts := make([]Point, j)
	copy(pts, f.points[:j])
	return f.derive(pts)
}

// AltitudeRange returns the lowest and highest altitude of the flight
func (f *Flight) AltitudeRange() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range f.points {
		lo = math.Min(lo, p.Altitude)
		hi = math.Max(hi, p.Altitude)
	}
	return lo, hi
}

// QueryAltitude keeps the points with min <= altitude <= max
func (f *Flight) QueryAltitude(min, max float64) *Flight {
	pts := []Point{}
	for _, p := range f.points {
		if p.Altitude >= min && p.Altitude <= max {
			pts = append(pts, p)
		}
	}
	return f.derive(pts)
}

// FirstOutsideAltitude returns the index of the first point with altitude < min or > max
func (f *Flight) FirstOutsideAltitude(min, max float64) (int, bool) {
	for i, p := range f.points {
		if p.Altitude < min || p.Altitude > max {
			return i, true
		}
	}
	return -1, false
}

// Head keeps points [0, i] (inclusive)
func (f *Flight) Head(i int) *Flight {
	if i < 0 {
		return nil
	}
	if i >= len(f.points) {
		i = len(f.points) - 1
	}
	pts := make([]Point, i+1)
	copy(pts, f.points[:i+1])
	return f.derive(pts)
}

// Resample interpolates the flight onto a uniform grid of the given step, aligned on
// multiples of step, covering [Start, Stop]
func (f *Flight) Resample(step time.Duration) *Flight {
	if step <= 0 {
		return f
	}
	return f.ResampleBetween(step, f.Start(), f.Stop())
}

// ResampleBetween is Resample restricted to the grid instants within [start, stop]. Points
// outside the window still take part in interpolation, so clipping after resampling loses
// nothing at the edges.
func (f *Flight) ResampleBetween(step time.Duration, start, stop time.Time) *Flight {
	if step <= 0 {
		return f.Between(start, stop)
	}
	if start.Before(f.Start()) {
		start = f.Start()
	}
	if stop.After(f.Stop()) {
		stop = f.Stop()
	}

	first := start.Truncate(step)
	if first.Before(start) {
		first = first.Add(step)
	}

	pts := []Point{}
	// last point at or before first
	j := sort.Search(len(f.points), func(i int) bool { return f.points[i].Timestamp.After(first) }) - 1
	if j < 0 {
		j = 0
	}
	for t := first; !t.After(stop); t = t.Add(step) {
		for j < len(f.points)-1 && !f.points[j+1].Timestamp.After(t) {
			j++
		}
		from := f.points[j]
		if from.Timestamp.Equal(t) || j == len(f.points)-1 {
			p := from
			p.Timestamp = t
			pts = append(pts, p)
			continue
		}
		to := f.points[j+1]
		span := to.Timestamp.Sub(from.Timestamp)
		ratio := 0.0
		if span > 0 {
			ratio = float64(t.Sub(from.Timestamp)) / float64(span)
		}
		pts = append(pts, interpolate(from, to, ratio, t))
	}

	return f.derive(pts)
}

// Split cuts the flight wherever two consecutive points are more than maxGap apart
func (f *Flight) Split(maxGap time.Duration) []*Flight {
	ret := []*Flight{}
	from := 0
	for i := 1; i <= len(f.points); i++ {
		if i < len(f.points) && f.points[i].Timestamp.Sub(f.points[i-1].Timestamp) <= maxGap {
			continue
		}
		pts := make([]Point, i-from)
		copy(pts, f.points[from:i])
		ret = append(ret, f.derive(pts))
		from = i
	}
	return ret
}

func interpolate(from, to Point, ratio float64, t time.Time) Point {
	p := Point{
		Timestamp:   t,
		Latlong:     from.Latlong.InterpolateTo(to.Latlong, ratio),
		Altitude:    interpolateFloat64(from.Altitude, to.Altitude, ratio),
		GroundSpeed: interpolateFloat64(from.GroundSpeed, to.GroundSpeed, ratio),
	}
	if from.HasTrack && to.HasTrack {
		p.Track = geo.InterpolateHeading(from.Track, to.Track, ratio)
		p.HasTrack = true
	}
	if from.HasMagHeading && to.HasMagHeading {
		p.MagHeading = geo.InterpolateHeading(from.MagHeading, to.MagHeading, ratio)
		p.HasMagHeading = true
	}
	return p
}

func interpolateFloat64(from, to, ratio float64) float64 {
	return from + (to-from)*ratio
}
