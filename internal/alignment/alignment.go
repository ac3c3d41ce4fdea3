package alignment

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/physics"
	"github.com/yegors/flightdev/internal/trajectory"
)

// ErrDegenerate is returned for flights too short to derive a track from
var ErrDegenerate = errors.New("flight too short for alignment")

// DefaultMinDuration is how long a flight must keep pointing at a navpoint to count as aligned
const DefaultMinDuration = 30 * time.Second

// Interval is a time range during which the flight follows its plan
type Interval struct {
	Start    time.Time
	Stop     time.Time
	Navpoint string // navpoint the flight was heading to; first one when merged
}

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && !t.After(iv.Stop)
}

// Aligner decides which parts of a flight are on its filed plan
type Aligner interface {
	Align(f *trajectory.Flight, fp *flightplan.FlightPlan, angularPrecision, minDistanceNM float64) ([]Interval, error)
}

// NavpointAligner flags a point as aligned when its track points at one of the plan's
// navpoints (farther away than minDistanceNM) within angularPrecision degrees
type NavpointAligner struct {
	MinDuration time.Duration
}

func NewNavpointAligner(minDuration time.Duration) *NavpointAligner {
	if minDuration <= 0 {
		minDuration = DefaultMinDuration
	}
	return &NavpointAligner{MinDuration: minDuration}
}

// Align returns the merged, time-ordered on-plan intervals
func (a *NavpointAligner) Align(f *trajectory.Flight, fp *flightplan.FlightPlan, angularPrecision, minDistanceNM float64) ([]Interval, error) {
	segs, err := a.Segments(f, fp, angularPrecision, minDistanceNM)
	if err != nil {
		return nil, err
	}
	return Merge(segs), nil
}

// Segments returns one interval per run of points aligned on the same navpoint, sorted by
// start time. Runs may overlap when two navpoints share a bearing.
func (a *NavpointAligner) Segments(f *trajectory.Flight, fp *flightplan.FlightPlan, angularPrecision, minDistanceNM float64) ([]Interval, error) {
	if f == nil || f.Len() < 2 {
		return nil, ErrDegenerate
	}
	if fp == nil || len(fp.Navpoints) == 0 {
		return nil, fmt.Errorf("%s: %w", f.ID(), flightplan.ErrPlanNotFound)
	}

	tracks := Tracks(f)
	segs := []Interval{}

	for _, nav := range fp.Navpoints {
		runStart := -1
		flush := func(end int) {
			if runStart < 0 {
				return
			}
			s, e := f.At(runStart).Timestamp, f.At(end).Timestamp
			if e.Sub(s) >= a.MinDuration {
				segs = append(segs, Interval{Start: s, Stop: e, Navpoint: nav.Name})
			}
			runStart = -1
		}

		for i := 0; i < f.Len(); i++ {
			p := f.At(i)
			aligned := p.DistNM(nav.Latlong) > minDistanceNM &&
				physics.HeadingDifference(tracks[i], p.BearingTowards(nav.Latlong)) < angularPrecision
			if aligned && runStart < 0 {
				runStart = i
			} else if !aligned {
				flush(i - 1)
			}
		}
		flush(f.Len() - 1)
	}

	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start.Before(segs[j].Start) })
	return segs, nil
}

// Merge unions overlapping intervals; input must be sorted by start
func Merge(segs []Interval) []Interval {
	ret := []Interval{}
	for _, s := range segs {
		if n := len(ret); n > 0 && !s.Start.After(ret[n-1].Stop) {
			if s.Stop.After(ret[n-1].Stop) {
				ret[n-1].Stop = s.Stop
			}
			continue
		}
		ret = append(ret, s)
	}
	return ret
}

// Tracks returns the true track at every point: the reported track when present, else the
// magnetic heading corrected for variation, else the bearing between neighbouring points
func Tracks(f *trajectory.Flight) []float64 {
	tracks := make([]float64, f.Len())
	for i := 0; i < f.Len(); i++ {
		p := f.At(i)
		switch {
		case p.HasTrack:
			tracks[i] = p.Track
		case p.HasMagHeading:
			tracks[i] = physics.MagneticToTrue(p.MagHeading, p.Lat, p.Long, p.Altitude, p.Timestamp)
		case f.Len() < 2:
			continue
		default:
			var from, to trajectory.Point
			if i+1 < f.Len() {
				from, to = p, f.At(i+1)
			} else {
				from, to = f.At(i-1), p
			}
			if from.Latlong == to.Latlong {
				if i > 0 {
					tracks[i] = tracks[i-1]
				}
				continue
			}
			tracks[i] = from.BearingTowards(to.Latlong)
		}
	}
	return tracks
}
