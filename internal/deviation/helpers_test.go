package deviation

import (
	"testing"
	"time"

	"github.com/skypies/geo"

	"github.com/yegors/flightdev/internal/alignment"
	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/prediction"
	"github.com/yegors/flightdev/internal/trajectory"
	tt "github.com/yegors/flightdev/internal/trajectory/trajectorytest"
	"github.com/yegors/flightdev/pkg/logger"
)

var origin = geo.Latlong{Lat: 44.0, Long: 0.0}

const level = 34000.0

func at(s int) time.Time { return tt.T0.Add(time.Duration(s) * time.Second) }

func onPlan(from, to int) alignment.Interval {
	return alignment.Interval{Start: at(from), Stop: at(to), Navpoint: "EAST"}
}

// fakeAligner returns canned intervals per flight id
type fakeAligner map[string][]alignment.Interval

func (a fakeAligner) Align(f *trajectory.Flight, _ *flightplan.FlightPlan, _, _ float64) ([]alignment.Interval, error) {
	if f.ID() == "BOOM" {
		panic("corrupted trajectory")
	}
	ivs, ok := a[f.ID()]
	if !ok {
		return nil, alignment.ErrDegenerate
	}
	return ivs, nil
}

func testPlan(id string) *flightplan.FlightPlan {
	return &flightplan.FlightPlan{
		FlightID:  id,
		Route:     "EAST",
		Navpoints: []flightplan.Navpoint{{Name: "EAST", Latlong: tt.Offset(origin, 90, 600)}},
	}
}

// deviating flies level: `before` seconds due east, 180s on 045, then 240s on 135.
// Point i is at T0+i seconds. With before == 0 the first point reports neither track nor
// speed, so nothing can be predicted from it.
func deviating(t *testing.T, id string, before int) *trajectory.Flight {
	legs := []tt.Leg{}
	if before > 0 {
		legs = append(legs, tt.Leg{Bearing: 90, Speed: 450, Altitude: level, Duration: time.Duration(before) * time.Second})
	}
	legs = append(legs,
		tt.Leg{Bearing: 45, Speed: 450, Altitude: level, Duration: 180 * time.Second},
		tt.Leg{Bearing: 135, Speed: 450, Altitude: level, Duration: 240 * time.Second},
	)
	pts := tt.Legs(tt.T0, origin, level, legs...)
	if before == 0 {
		pts[0].Track, pts[0].HasTrack, pts[0].GroundSpeed = 0, false, 0
	}
	return tt.Flight(t, id, pts)
}

// crossing flies the opposite way to f's track at index i and passes sepNM abeam of it at
// the same time, lasting 90s either side
func crossing(t *testing.T, id string, f *trajectory.Flight, i int, sepNM float64) *trajectory.Flight {
	p := f.At(i)
	abeam := tt.Offset(p.Latlong, p.Track+90, sepNM)
	start := tt.Offset(abeam, p.Track, 450.0/3600*90)
	return tt.Flight(t, id, tt.Legs(p.Timestamp.Add(-90*time.Second), start, level,
		tt.Leg{Bearing: p.Track + 180, Speed: 450, Altitude: level, Duration: 180 * time.Second}))
}

func newTestAnalyzer(aligner alignment.Aligner, predictor prediction.Predictor, plans ...*flightplan.FlightPlan) *Analyzer {
	params := DefaultParams()
	if predictor == nil {
		predictor = testPredictor()
	}
	return NewAnalyzer(flightplan.NewMapMetadata(plans...), aligner, predictor, nil, params, logger.NewNop())
}

func testPredictor() prediction.Predictor {
	return prediction.NewRoutePredictor(alignment.NewNavpointAligner(30*time.Second), DefaultParams().AnglePrecision)
}
