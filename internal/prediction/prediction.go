// Package prediction builds the counterfactual trajectory a flight would have flown had it
// kept following its filed plan.
package prediction

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/skypies/geo"

	"github.com/yegors/flightdev/internal/alignment"
	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/physics"
	"github.com/yegors/flightdev/internal/trajectory"
)

var (
	// ErrNoBaseline is returned when the flight has too little history before the deviation
	ErrNoBaseline = errors.New("not enough trajectory before prediction start")
	// ErrNoNavpointAhead is returned when no navpoint of the plan lies ahead of the aircraft
	ErrNoNavpointAhead = errors.New("no navpoint ahead of the aircraft")
)

// SpeedWindow is how much baseline is averaged to estimate ground speed
const SpeedWindow = 60 * time.Second

// Predictor extrapolates a flight along its plan
type Predictor interface {
	Predict(f *trajectory.Flight, fp *flightplan.FlightPlan, start, stop time.Time, minutes int, minDistanceNM float64) (*trajectory.Flight, error)
}

// RoutePredictor flies the aircraft from its last position before the deviation towards the
// navpoint it was following, then along the rest of the route, at constant speed and level
type RoutePredictor struct {
	aligner          *alignment.NavpointAligner
	angularPrecision float64
}

func NewRoutePredictor(aligner *alignment.NavpointAligner, angularPrecision float64) *RoutePredictor {
	if aligner == nil {
		aligner = alignment.NewNavpointAligner(0)
	}
	return &RoutePredictor{aligner: aligner, angularPrecision: angularPrecision}
}

// Predict returns one point per second from the last baseline point until start+minutes
func (p *RoutePredictor) Predict(f *trajectory.Flight, fp *flightplan.FlightPlan, start, stop time.Time, minutes int, minDistanceNM float64) (*trajectory.Flight, error) {
	if f == nil {
		return nil, ErrNoBaseline
	}
	if fp == nil || len(fp.Navpoints) == 0 {
		return nil, fmt.Errorf("%s: %w", f.ID(), flightplan.ErrPlanNotFound)
	}
	if stop.Before(start) {
		return nil, fmt.Errorf("%s: prediction window ends before it starts", f.ID())
	}

	baseline := f.Before(start)
	if baseline == nil {
		return nil, fmt.Errorf("%s: %w", f.ID(), ErrNoBaseline)
	}

	origin := baseline.At(baseline.Len() - 1)
	// a lone point only seeds a prediction from what it reports
	if baseline.Len() == 1 && !origin.HasTrack && !origin.HasMagHeading {
		return nil, fmt.Errorf("%s: no track before %s: %w", f.ID(), start.Format(time.RFC3339), ErrNoBaseline)
	}
	tracks := alignment.Tracks(baseline)
	track := tracks[len(tracks)-1]
	speed := groundSpeed(baseline)
	if speed <= 0 {
		return nil, fmt.Errorf("%s: stationary before %s: %w", f.ID(), start.Format(time.RFC3339), ErrNoBaseline)
	}

	next, err := p.firstTarget(baseline, fp, origin, track, minDistanceNM)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.ID(), err)
	}

	end := start.Add(time.Duration(minutes) * time.Minute)
	stepNM := speed / 3600.0

	pos := origin.Latlong
	heading := track
	pts := []trajectory.Point{predicted(origin.Timestamp, pos, origin.Altitude, speed, heading)}

	for t := origin.Timestamp.Add(time.Second); !t.After(end); t = t.Add(time.Second) {
		// Consume every navpoint reachable within this step
		for next < len(fp.Navpoints) && pos.DistNM(fp.Navpoints[next].Latlong) <= stepNM {
			next++
		}
		if next < len(fp.Navpoints) {
			heading = pos.BearingTowards(fp.Navpoints[next].Latlong)
		}
		pos = physics.MoveNM(pos, heading, stepNM)
		pts = append(pts, predicted(t, pos, origin.Altitude, speed, heading))
	}

	return trajectory.NewFlight(f.ID(), pts)
}

// firstTarget returns the index of the navpoint the aircraft heads to first
func (p *RoutePredictor) firstTarget(baseline *trajectory.Flight, fp *flightplan.FlightPlan, origin trajectory.Point, track, minDistanceNM float64) (int, error) {
	segs, err := p.aligner.Segments(baseline, fp, p.angularPrecision, minDistanceNM)
	if err != nil && !errors.Is(err, alignment.ErrDegenerate) {
		return 0, err
	}

	// Last navpoint the flight was following before it left the plan
	if len(segs) > 0 {
		last := segs[0]
		for _, s := range segs[1:] {
			if s.Stop.After(last.Stop) {
				last = s
			}
		}
		for i, nav := range fp.Navpoints {
			if nav.Name == last.Navpoint && origin.DistNM(nav.Latlong) > minDistanceNM {
				return i, nil
			}
		}
	}

	best, bestDiff := -1, math.Inf(1)
	for i, nav := range fp.Navpoints {
		if origin.DistNM(nav.Latlong) <= minDistanceNM {
			continue
		}
		diff := physics.HeadingDifference(track, origin.BearingTowards(nav.Latlong))
		if diff >= 90 {
			continue
		}
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best < 0 {
		return 0, ErrNoNavpointAhead
	}
	return best, nil
}

// groundSpeed averages reported ground speed over the end of the baseline, falling back to
// distance flown over elapsed time
func groundSpeed(baseline *trajectory.Flight) float64 {
	window := baseline.Between(baseline.Stop().Add(-SpeedWindow), baseline.Stop())
	if window == nil || window.Len() < 2 {
		window = baseline
	}

	sum, n := 0.0, 0
	for i := 0; i < window.Len(); i++ {
		if gs := window.At(i).GroundSpeed; gs > 0 {
			sum += gs
			n++
		}
	}
	if n > 0 {
		return sum / float64(n)
	}

	dist := 0.0
	for i := 1; i < window.Len(); i++ {
		a, b := window.At(i-1), window.At(i)
		dist += a.DistNM(b.Latlong)
	}
	elapsed := window.Duration().Hours()
	if elapsed <= 0 {
		return 0
	}
	return dist / elapsed
}

func predicted(t time.Time, pos geo.Latlong, alt, speed, track float64) trajectory.Point {
	return trajectory.Point{
		Timestamp:   t,
		Latlong:     pos,
		Altitude:    alt,
		GroundSpeed: speed,
		Track:       physics.NormalizeHeading(track),
		HasTrack:    true,
	}
}
