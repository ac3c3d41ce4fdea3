package deviation

import (
	"time"

	"github.com/yegors/flightdev/internal/distance"
	"github.com/yegors/flightdev/internal/trajectory"
)

// neighbourStage narrows a context flight; nil drops it
type neighbourStage func(f *trajectory.Flight) *trajectory.Flight

// SelectNeighbours returns the context flights that share the deviation's airspace, clipped to
// the window: every flight but the analysed one, resampled on the distance grid within
// [Start, Horizon] (partial overlap allowed), keeping only points inside the band, and dropping
// what lasts MinNeighbourDuration or less. Stages run in that order. Resampling comes before the
// band filter so that time spent outside the band stays a gap.
func SelectNeighbours(traffic *trajectory.Traffic, flightID string, w *Window, p Params) map[string]*trajectory.Flight {
	stages := []neighbourStage{
		func(f *trajectory.Flight) *trajectory.Flight {
			return f.ResampleBetween(distance.Step, w.Start, w.Horizon)
		},
		func(f *trajectory.Flight) *trajectory.Flight { return f.QueryAltitude(w.Band.Min, w.Band.Max) },
		minDuration(p.MinNeighbourDuration),
	}

	ret := map[string]*trajectory.Flight{}
	for _, f := range traffic.Without(flightID).Flights() {
		if _, seen := ret[f.ID()]; seen {
			continue
		}
		for _, stage := range stages {
			if f = stage(f); f == nil {
				break
			}
		}
		if f != nil {
			ret[f.ID()] = f
		}
	}
	return ret
}

func minDuration(d time.Duration) neighbourStage {
	return func(f *trajectory.Flight) *trajectory.Flight {
		if f.Duration() <= d {
			return nil
		}
		return f
	}
}
