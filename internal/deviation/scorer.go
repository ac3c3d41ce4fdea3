package deviation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yegors/flightdev/internal/distance"
	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/prediction"
	"github.com/yegors/flightdev/internal/trajectory"
	"github.com/yegors/flightdev/pkg/logger"
)

// ErrPrediction wraps any failure of the predictor
var ErrPrediction = errors.New("prediction failed")

// MinBaselinePoints is how many resampled points before the hole make a prediction possible.
// A single point is enough when it reports its track and ground speed.
const MinBaselinePoints = 1

// DistanceFunc computes the lateral separation series between two trajectories
type DistanceFunc func(a, b *trajectory.Flight) (distance.Series, error)

// Scorer measures the closest approach during a deviation, and what it would have been had
// the flight stayed on its plan
type Scorer struct {
	predictor prediction.Predictor
	distance  DistanceFunc
	params    Params
	logger    *logger.Logger
}

func NewScorer(predictor prediction.Predictor, dist DistanceFunc, params Params, log *logger.Logger) *Scorer {
	if dist == nil {
		dist = distance.Lateral
	}
	return &Scorer{predictor: predictor, distance: dist, params: params, logger: log}
}

// Score builds the record of a hole. It returns false when there is nothing to compare the
// flight against: no neighbour and no baseline the predictor can work from.
func (s *Scorer) Score(resampled *trajectory.Flight, fp *flightplan.FlightPlan, h Hole, w *Window, neighbours map[string]*trajectory.Flight) (Record, bool, error) {
	rec := newRecord(h, w)

	var predicted *trajectory.Flight
	if baseline := resampled.Before(w.Start); baseline != nil && baseline.Len() >= MinBaselinePoints {
		p, err := s.predictor.Predict(resampled, fp, w.Start, h.Stop, s.params.ForwardMinutes(), s.params.MinDistanceNM)
		switch {
		case errors.Is(err, prediction.ErrNoBaseline):
			s.logger.Debug("Baseline too poor to predict from",
				logger.String("flight_id", h.FlightID),
				logger.Error(err))
		case err != nil:
			return rec, false, fmt.Errorf("%w: %s at %s: %w", ErrPrediction, h.FlightID, w.Start.Format(time.RFC3339), err)
		default:
			predicted = p
			rec.Predicted = true
		}
	}

	if len(neighbours) == 0 && predicted == nil {
		return rec, false, nil
	}

	if len(neighbours) == 0 {
		return rec, true, nil
	}

	id, minDist, minTime, err := s.closest(w.Interest, neighbours)
	if err != nil {
		return rec, false, err
	}
	if id == "" {
		rec.Separation = SeparationNoOverlap
		return rec, true, nil
	}

	rec.Separation = SeparationMeasured
	rec.NeighbourID = &id
	rec.MinFDist = &minDist
	rec.MinFTime = &minTime

	if predicted != nil {
		series, err := s.distance(predicted, neighbours[id])
		switch {
		case errors.Is(err, distance.ErrNoOverlap):
			s.logger.Debug("Predicted trajectory does not overlap neighbour",
				logger.String("flight_id", h.FlightID),
				logger.String("neighbour_id", id))
		case err != nil:
			return rec, false, fmt.Errorf("failed to compute predicted separation for %s: %w", h.FlightID, err)
		default:
			d, t := series.Min()
			diff := minDist - d
			rec.MinFPDist = &d
			rec.MinFPTime = &t
			rec.Difference = &diff
		}
	}

	return rec, true, nil
}

// closest returns the neighbour with the smallest lateral distance to the flight. Ties go to
// the lexicographically smallest id. An empty id means no neighbour overlapped in time.
func (s *Scorer) closest(interest *trajectory.Flight, neighbours map[string]*trajectory.Flight) (string, float64, time.Time, error) {
	ids := make([]string, 0, len(neighbours))
	for id := range neighbours {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		bestID   string
		bestDist float64
		bestTime time.Time
	)
	for _, id := range ids {
		series, err := s.distance(interest, neighbours[id])
		if errors.Is(err, distance.ErrNoOverlap) {
			s.logger.Debug("No overlap with neighbour",
				logger.String("flight_id", interest.ID()),
				logger.String("neighbour_id", id))
			continue
		}
		if err != nil {
			return "", 0, time.Time{}, fmt.Errorf("failed to compute separation between %s and %s: %w", interest.ID(), id, err)
		}
		d, t := series.Min()
		if bestID == "" || d < bestDist {
			bestID, bestDist, bestTime = id, d, t
		}
	}
	return bestID, bestDist, bestTime, nil
}
