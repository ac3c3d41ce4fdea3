package deviation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/flightdev/internal/alignment"
	"github.com/yegors/flightdev/internal/distance"
	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/prediction"
	"github.com/yegors/flightdev/internal/trajectory"
	"github.com/yegors/flightdev/pkg/logger"
)

// Kind classifies why a flight produced no result
type Kind string

const (
	KindOK         Kind = ""
	KindNoPlan     Kind = "no_plan"
	KindGeometry   Kind = "geometry"
	KindData       Kind = "data"
	KindPrediction Kind = "prediction"
	KindPanic      Kind = "panic"
	KindCanceled   Kind = "canceled"
)

// ErrPanic wraps a panic recovered while analysing a flight
var ErrPanic = errors.New("panic during analysis")

// Classify maps an analysis error to its kind
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrPanic):
		return KindPanic
	case errors.Is(err, flightplan.ErrPlanNotFound):
		return KindNoPlan
	case errors.Is(err, ErrPrediction), errors.Is(err, prediction.ErrNoBaseline), errors.Is(err, prediction.ErrNoNavpointAhead):
		return KindPrediction
	case errors.Is(err, ErrGeometry), errors.Is(err, alignment.ErrDegenerate), errors.Is(err, distance.ErrNoOverlap):
		return KindGeometry
	default:
		// trajectory.ErrInvalidPoint, trajectory.ErrEmptyFlight and anything unexpected
		return KindData
	}
}

// Outcome is the result of one flight of a batch: either Result or Err is set
type Outcome struct {
	FlightID string
	Result   *FlightResult
	Err      error
	Kind     Kind
}

// Outcomes are in the order the flights were given
type Outcomes []Outcome

// Records concatenates every flight's records. The result is empty, never nil, when the batch
// found nothing.
func (o Outcomes) Records() []Record {
	ret := []Record{}
	for _, oc := range o {
		if oc.Result != nil {
			ret = append(ret, oc.Result.Records...)
		}
	}
	return ret
}

// Skipped concatenates every flight's skipped holes
func (o Outcomes) Skipped() []SkippedHole {
	ret := []SkippedHole{}
	for _, oc := range o {
		if oc.Result != nil {
			ret = append(ret, oc.Result.Skipped...)
		}
	}
	return ret
}

// Failed counts the flights that ended in error, ignoring the ones without a plan
func (o Outcomes) Failed() int {
	n := 0
	for _, oc := range o {
		if oc.Err != nil && oc.Kind != KindNoPlan {
			n++
		}
	}
	return n
}

// Runner analyses a batch of flights on a bounded worker pool. A failing flight never
// affects the others.
type Runner struct {
	analyzer *Analyzer
	workers  int
	logger   *logger.Logger
}

func NewRunner(analyzer *Analyzer, workers int, log *logger.Logger) *Runner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{analyzer: analyzer, workers: workers, logger: log.Named("runner")}
}

// Run analyses every flight against the shared, read-only context traffic. Once ctx is done
// no further flight is started; the remaining ones are reported as canceled.
func (r *Runner) Run(ctx context.Context, flights []*trajectory.Flight, traffic *trajectory.Traffic) Outcomes {
	outcomes := make(Outcomes, len(flights))

	var g errgroup.Group
	g.SetLimit(r.workers)

	for i, f := range flights {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{FlightID: f.ID(), Err: err, Kind: KindCanceled}
			continue
		}
		i, f := i, f
		g.Go(func() error {
			outcomes[i] = r.analyze(ctx, f, traffic)
			return nil
		})
	}
	_ = g.Wait()

	records := 0
	for _, oc := range outcomes {
		r.report(oc)
		if oc.Result != nil {
			records += len(oc.Result.Records)
		}
	}
	r.logger.Info("Batch complete",
		logger.Int("flights", len(flights)),
		logger.Int("records", records),
		logger.Int("failed", outcomes.Failed()))

	return outcomes
}

func (r *Runner) analyze(ctx context.Context, f *trajectory.Flight, traffic *trajectory.Traffic) (oc Outcome) {
	oc.FlightID = f.ID()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			oc.Result = nil
			oc.Err = fmt.Errorf("%w: %s: %v", ErrPanic, f.ID(), rec)
			oc.Kind = KindPanic
		}
		flightDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := r.analyzer.AnalyzeFlight(ctx, f, traffic)
	if err != nil {
		oc.Err = err
		oc.Kind = Classify(err)
		return oc
	}
	oc.Result = res
	return oc
}

func (r *Runner) report(oc Outcome) {
	switch {
	case oc.Kind == KindNoPlan:
		flightsTotal.WithLabelValues(string(KindNoPlan)).Inc()
		r.logger.Debug("No flight plan, skipping", logger.String("flight_id", oc.FlightID))
	case oc.Err != nil:
		flightsTotal.WithLabelValues(string(oc.Kind)).Inc()
		r.logger.Warn("Flight analysis failed",
			logger.String("flight_id", oc.FlightID),
			logger.String("kind", string(oc.Kind)),
			logger.Error(oc.Err))
	default:
		flightsTotal.WithLabelValues("ok").Inc()
		recordsTotal.Add(float64(len(oc.Result.Records)))
	}
}
