package deviation

import (
	"context"
	"fmt"

	"github.com/yegors/flightdev/internal/alignment"
	"github.com/yegors/flightdev/internal/distance"
	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/prediction"
	"github.com/yegors/flightdev/internal/trajectory"
	"github.com/yegors/flightdev/pkg/logger"
)

// FlightResult holds what one flight produced. Empty Records means nothing to report.
type FlightResult struct {
	FlightID string
	Records  []Record
	Skipped  []SkippedHole
}

// Analyzer finds the deviations of a single flight and scores them against the surrounding
// traffic
type Analyzer struct {
	metadata flightplan.Metadata
	aligner  alignment.Aligner
	scorer   *Scorer
	params   Params
	logger   *logger.Logger
}

func NewAnalyzer(metadata flightplan.Metadata, aligner alignment.Aligner, predictor prediction.Predictor, dist DistanceFunc, params Params, log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Named("deviation")
	return &Analyzer{
		metadata: metadata,
		aligner:  aligner,
		scorer:   NewScorer(predictor, dist, params, log),
		params:   params,
		logger:   log,
	}
}

// AnalyzeFlight runs the whole pipeline on one flight. A flight without a plan returns an
// error wrapping flightplan.ErrPlanNotFound.
func (a *Analyzer) AnalyzeFlight(ctx context.Context, f *trajectory.Flight, traffic *trajectory.Traffic) (*FlightResult, error) {
	fp, err := a.metadata.Lookup(ctx, f.ID())
	if err != nil {
		return nil, err
	}

	holes, err := ExtractHoles(f, fp, a.aligner, a.params.AnglePrecision, a.params.MinDistanceNM)
	if err != nil {
		return nil, err
	}

	res := &FlightResult{FlightID: f.ID(), Records: []Record{}, Skipped: []SkippedHole{}}
	skip := func(h Hole, reason Reason) {
		holesTotal.WithLabelValues(string(reason)).Inc()
		res.Skipped = append(res.Skipped, SkippedHole{Hole: h, Reason: reason})
		a.logger.Debug("Skipping hole",
			logger.String("flight_id", h.FlightID),
			logger.Time("start", h.Start),
			logger.Time("stop", h.Stop),
			logger.String("reason", string(reason)))
	}

	var resampled *trajectory.Flight
	for _, h := range holes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if ok, reason := Qualify(h, f, a.params); !ok {
			skip(h, reason)
			continue
		}

		if resampled == nil {
			if resampled = f.Resample(distance.Step); resampled == nil {
				return nil, fmt.Errorf("%s: empty after resampling: %w", f.ID(), ErrGeometry)
			}
		}

		w, err := ResolveHorizon(resampled, h, a.params)
		if err != nil {
			return nil, err
		}

		neighbours := SelectNeighbours(traffic, f.ID(), w, a.params)
		rec, ok, err := a.scorer.Score(resampled, fp, h, w, neighbours)
		if err != nil {
			return nil, err
		}
		if !ok {
			skip(h, ReasonNothingToScore)
			continue
		}

		// Two copies of the same trajectory in the traffic
		if rec.MinFDist != nil && *rec.MinFDist == 0 {
			a.logger.Warn("Dropping zero separation record",
				logger.String("flight_id", rec.FlightID),
				logger.String("neighbour_id", *rec.NeighbourID))
			skip(h, ReasonZeroSeparation)
			continue
		}

		holesTotal.WithLabelValues("recorded").Inc()
		res.Records = append(res.Records, rec)
	}

	return res, nil
}
