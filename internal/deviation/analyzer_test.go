package deviation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skypies/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightdev/internal/alignment"
	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/physics"
	"github.com/yegors/flightdev/internal/prediction"
	"github.com/yegors/flightdev/internal/trajectory"
	tt "github.com/yegors/flightdev/internal/trajectory/trajectorytest"
	"github.com/yegors/flightdev/pkg/logger"
)

// Level flight that deviates for three minutes with no history before the deviation, while
// another aircraft passes 3NM abeam
func TestAnalyzeFlightWithoutBaseline(t *testing.T) {
	f := deviating(t, "A", 0)
	b := crossing(t, "B", f, 90, 3)
	a := newTestAnalyzer(fakeAligner{"A": {onPlan(0, 0), onPlan(181, 420)}}, nil, testPlan("A"))

	res, err := a.AnalyzeFlight(context.Background(), f, trajectory.NewTraffic(f, b))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "A", rec.FlightID)
	assert.Equal(t, at(1), rec.Start)
	assert.Equal(t, at(180), rec.Stop)
	assert.InDelta(t, 179.0, rec.Duration, 1e-9)
	assert.Equal(t, at(420), rec.Horizon)

	require.NotNil(t, rec.NeighbourID)
	assert.Equal(t, "B", *rec.NeighbourID)
	require.NotNil(t, rec.MinFDist)
	assert.InDelta(t, 3.0, *rec.MinFDist, 0.3)
	assert.Less(t, *rec.MinFDist, 5.0)
	require.NotNil(t, rec.MinFTime)
	assert.False(t, rec.MinFTime.Before(rec.Start))
	assert.False(t, rec.MinFTime.After(rec.Horizon))
	assert.WithinDuration(t, at(90), *rec.MinFTime, 5*time.Second)

	assert.False(t, rec.Predicted)
	assert.Nil(t, rec.MinFPDist)
	assert.Nil(t, rec.MinFPTime)
	assert.Nil(t, rec.Difference)
	assert.Equal(t, SeparationMeasured, rec.Separation)
}

// Same situation with five minutes of on-plan flight before the deviation
func TestAnalyzeFlightWithBaseline(t *testing.T) {
	f := deviating(t, "A", 300)
	b := crossing(t, "B", f, 390, 3)
	a := newTestAnalyzer(fakeAligner{"A": {onPlan(0, 300), onPlan(481, 720)}}, nil, testPlan("A"))

	res, err := a.AnalyzeFlight(context.Background(), f, trajectory.NewTraffic(f, b))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.True(t, rec.Predicted)
	require.NotNil(t, rec.NeighbourID)
	assert.Equal(t, "B", *rec.NeighbourID)
	require.NotNil(t, rec.MinFDist)
	require.NotNil(t, rec.MinFPDist)
	require.NotNil(t, rec.MinFPTime)
	require.NotNil(t, rec.Difference)
	assert.Equal(t, *rec.MinFDist-*rec.MinFPDist, *rec.Difference)
	// Staying on course would have kept B further away
	assert.Greater(t, *rec.MinFPDist, *rec.MinFDist)
}

// The deviation starts one second into the flight; the single point before it reports its
// track and speed, which is enough to predict from
func TestAnalyzeFlightOnePointBaseline(t *testing.T) {
	f := tt.Flight(t, "A", tt.Legs(tt.T0, origin, level,
		tt.Leg{Bearing: 45, Speed: 450, Altitude: level, Duration: 180 * time.Second},
		tt.Leg{Bearing: 135, Speed: 450, Altitude: level, Duration: 240 * time.Second},
	))
	require.True(t, f.At(0).HasTrack)
	b := crossing(t, "B", f, 90, 3)
	a := newTestAnalyzer(fakeAligner{"A": {onPlan(0, 0), onPlan(181, 420)}}, nil, testPlan("A"))

	res, err := a.AnalyzeFlight(context.Background(), f, trajectory.NewTraffic(f, b))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.True(t, rec.Predicted)
	require.NotNil(t, rec.MinFDist)
	require.NotNil(t, rec.MinFPDist)
	require.NotNil(t, rec.Difference)
}

// dogleg flies direct to nav for `direct` seconds, then 45 degrees left and 45 degrees right
// of the direct bearing for `leg` seconds each, then direct again. Point i is at T0+i seconds.
func dogleg(t *testing.T, id string, nav geo.Latlong, direct, leg int) *trajectory.Flight {
	const speed = 450.0
	pos := origin
	pts := []trajectory.Point{}
	add := func(i int, track float64) {
		pts = append(pts, trajectory.Point{Timestamp: at(i), Latlong: pos, Altitude: level, GroundSpeed: speed, Track: track, HasTrack: true})
	}
	add(0, origin.BearingTowards(nav))
	i := 0
	fly := func(n int, offset float64) {
		for k := 0; k < n; k++ {
			track := physics.NormalizeHeading(pos.BearingTowards(nav) + offset)
			pos = physics.MoveNM(pos, track, speed/3600)
			i++
			add(i, track)
		}
	}
	fly(direct, 0)
	fly(leg, -45)
	fly(leg, 45)
	fly(direct, 0)
	return tt.Flight(t, id, pts)
}

// Runs detection, alignment, prediction and scoring for real: the flight leaves its route for
// a dogleg that brings it close to crossing traffic, then rejoins
func TestAnalyzeFlightDoglegEndToEnd(t *testing.T) {
	plan := testPlan("A")
	f := dogleg(t, "A", plan.Navpoints[0].Latlong, 300, 180)
	b := crossing(t, "B", f, 390, 3)

	aligner := alignment.NewNavpointAligner(30 * time.Second)
	a := newTestAnalyzer(aligner, nil, plan)

	res, err := a.AnalyzeFlight(context.Background(), f, trajectory.NewTraffic(f, b))
	require.NoError(t, err)
	require.Empty(t, res.Skipped)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.WithinDuration(t, at(301), rec.Start, 2*time.Second)
	assert.WithinDuration(t, at(660), rec.Stop, 2*time.Second)
	assert.Equal(t, f.Stop(), rec.Horizon)

	assert.True(t, rec.Predicted)
	assert.Equal(t, SeparationMeasured, rec.Separation)
	require.NotNil(t, rec.NeighbourID)
	assert.Equal(t, "B", *rec.NeighbourID)
	require.NotNil(t, rec.MinFDist)
	require.NotNil(t, rec.MinFPDist)
	require.NotNil(t, rec.MinFPTime)
	require.NotNil(t, rec.Difference)

	assert.InDelta(t, 3.0, *rec.MinFDist, 0.3)
	// on its route A would have stayed about 6NM from B
	assert.InDelta(t, 5.8, *rec.MinFPDist, 0.8)
	assert.Less(t, *rec.Difference, -1.0)
	assert.False(t, rec.MinFPTime.Before(rec.Start))
	assert.False(t, rec.MinFPTime.After(rec.Horizon))
}

func TestAnalyzeFlightShortDeviation(t *testing.T) {
	f := deviating(t, "A", 300)
	b := crossing(t, "B", f, 350, 3)
	a := newTestAnalyzer(fakeAligner{"A": {onPlan(0, 300), onPlan(392, 720)}}, nil, testPlan("A"))

	res, err := a.AnalyzeFlight(context.Background(), f, trajectory.NewTraffic(f, b))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, ReasonTooShort, res.Skipped[0].Reason)
	assert.Equal(t, 90*time.Second, res.Skipped[0].Hole.Duration())
}

func TestAnalyzeFlightPredictionOnly(t *testing.T) {
	f := deviating(t, "A", 300)
	a := newTestAnalyzer(fakeAligner{"A": {onPlan(0, 300), onPlan(481, 720)}}, nil, testPlan("A"))

	res, err := a.AnalyzeFlight(context.Background(), f, trajectory.NewTraffic(f))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.True(t, rec.Predicted)
	assert.Equal(t, SeparationNoNeighbour, rec.Separation)
	assert.Nil(t, rec.NeighbourID)
	assert.Nil(t, rec.MinFDist)
	assert.Nil(t, rec.MinFTime)
	assert.Nil(t, rec.MinFPDist)
	assert.Nil(t, rec.Difference)
}

func TestAnalyzeFlightNothingToScore(t *testing.T) {
	f := deviating(t, "A", 0)
	a := newTestAnalyzer(fakeAligner{"A": {onPlan(0, 0), onPlan(181, 420)}}, nil, testPlan("A"))

	res, err := a.AnalyzeFlight(context.Background(), f, trajectory.NewTraffic(f))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, ReasonNothingToScore, res.Skipped[0].Reason)
}

func TestAnalyzeFlightDropsZeroSeparation(t *testing.T) {
	f := deviating(t, "A", 0)
	b := crossing(t, "B", f, 90, 3)
	a := newTestAnalyzer(fakeAligner{"A": {onPlan(0, 0), onPlan(181, 420)}}, nil, testPlan("A"))

	res, err := a.AnalyzeFlight(context.Background(), f, trajectory.NewTraffic(f, b, f.WithID("A-DUP")))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, ReasonZeroSeparation, res.Skipped[0].Reason)
}

func TestAnalyzeFlightWithoutPlan(t *testing.T) {
	f := deviating(t, "A", 0)
	a := newTestAnalyzer(fakeAligner{}, nil)

	_, err := a.AnalyzeFlight(context.Background(), f, trajectory.NewTraffic(f))
	assert.ErrorIs(t, err, flightplan.ErrPlanNotFound)
}

// failingPredictor fails for one flight and delegates for the others
type failingPredictor struct {
	prediction.Predictor
	failOn string
}

func (p failingPredictor) Predict(f *trajectory.Flight, fp *flightplan.FlightPlan, start, stop time.Time, minutes int, minDistanceNM float64) (*trajectory.Flight, error) {
	if f.ID() == p.failOn {
		return nil, errors.New("route goes nowhere")
	}
	return p.Predictor.Predict(f, fp, start, stop, minutes, minDistanceNM)
}

func TestRunnerIsolatesFailures(t *testing.T) {
	good := deviating(t, "A", 300)
	bad := good.WithID("BAD")
	boom := good.WithID("BOOM")
	noPlan := good.WithID("NOPLAN")
	b := crossing(t, "B", good, 390, 3)

	intervals := []alignment.Interval{onPlan(0, 300), onPlan(481, 720)}
	predictor := failingPredictor{
		Predictor: prediction.NewRoutePredictor(alignment.NewNavpointAligner(30*time.Second), 2),
		failOn:    "BAD",
	}
	a := newTestAnalyzer(fakeAligner{"A": intervals, "BAD": intervals}, predictor,
		testPlan("A"), testPlan("BAD"), testPlan("BOOM"))
	r := NewRunner(a, 2, logger.NewNop())

	outcomes := r.Run(context.Background(), []*trajectory.Flight{bad, good, noPlan, boom}, trajectory.NewTraffic(b))
	require.Len(t, outcomes, 4)

	assert.Equal(t, "BAD", outcomes[0].FlightID)
	assert.Equal(t, KindPrediction, outcomes[0].Kind)
	assert.ErrorIs(t, outcomes[0].Err, ErrPrediction)

	assert.Equal(t, "A", outcomes[1].FlightID)
	assert.Equal(t, KindOK, outcomes[1].Kind)
	require.NoError(t, outcomes[1].Err)

	assert.Equal(t, KindNoPlan, outcomes[2].Kind)
	assert.Equal(t, KindPanic, outcomes[3].Kind)
	assert.ErrorIs(t, outcomes[3].Err, ErrPanic)

	records := outcomes.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].FlightID)
	assert.Equal(t, 2, outcomes.Failed())
}

func TestRunnerKeepsInputOrder(t *testing.T) {
	ids := []string{"F1", "F2", "F3", "F4", "F5", "F6"}
	flights := []*trajectory.Flight{}
	aligner := fakeAligner{}
	plans := []*flightplan.FlightPlan{}
	for _, id := range ids {
		flights = append(flights, deviating(t, id, 300))
		aligner[id] = []alignment.Interval{onPlan(0, 300), onPlan(481, 720)}
		plans = append(plans, testPlan(id))
	}

	r := NewRunner(newTestAnalyzer(aligner, nil, plans...), 3, logger.NewNop())
	records := r.Run(context.Background(), flights, trajectory.NewTraffic()).Records()

	require.Len(t, records, len(ids))
	for i, rec := range records {
		assert.Equal(t, ids[i], rec.FlightID)
	}
}

func TestRunnerCanceled(t *testing.T) {
	f := deviating(t, "A", 300)
	a := newTestAnalyzer(fakeAligner{"A": {onPlan(0, 300), onPlan(481, 720)}}, nil, testPlan("A"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := NewRunner(a, 1, logger.NewNop()).Run(ctx, []*trajectory.Flight{f}, trajectory.NewTraffic())
	require.Len(t, outcomes, 1)
	assert.Equal(t, KindCanceled, outcomes[0].Kind)
	assert.Empty(t, outcomes.Records())
}

func TestRunnerEmptyBatch(t *testing.T) {
	r := NewRunner(newTestAnalyzer(fakeAligner{}, nil), 0, nil)
	records := r.Run(context.Background(), nil, trajectory.NewTraffic()).Records()
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindOK, Classify(nil))
	assert.Equal(t, KindCanceled, Classify(context.Canceled))
	assert.Equal(t, KindNoPlan, Classify(flightplan.ErrPlanNotFound))
	assert.Equal(t, KindGeometry, Classify(alignment.ErrDegenerate))
	assert.Equal(t, KindGeometry, Classify(ErrGeometry))
	assert.Equal(t, KindPrediction, Classify(prediction.ErrNoNavpointAhead))
	assert.Equal(t, KindData, Classify(trajectory.ErrInvalidPoint))
	assert.Equal(t, KindData, Classify(errors.New("something else")))
}
