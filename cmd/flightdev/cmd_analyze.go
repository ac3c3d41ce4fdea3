package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yegors/flightdev/internal/alignment"
	"github.com/yegors/flightdev/internal/deviation"
	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/ingest"
	"github.com/yegors/flightdev/internal/prediction"
	"github.com/yegors/flightdev/internal/storage/sqlite"
	"github.com/yegors/flightdev/internal/trajectory"
	"github.com/yegors/flightdev/pkg/logger"
)

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	query, err := trafficQuery(analyzeFrom, analyzeTo, e.cfg.Ingest.MinAltitudeFt)
	if err != nil {
		return err
	}

	store, err := openStorage(e.cfg, e.log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	traffic, err := store.LoadTraffic(ctx, query)
	if err != nil {
		return err
	}
	flights := selectFlights(traffic, analyzeFlights, e.log)

	params := analysisParams(e.cfg.Analysis)
	aligner := alignment.NewNavpointAligner(time.Duration(e.cfg.Analysis.MinAlignedSeconds) * time.Second)
	predictor := prediction.NewRoutePredictor(aligner, params.AnglePrecision)
	plans := flightplan.NewCachedMetadata(store, e.log)
	analyzer := deviation.NewAnalyzer(plans, aligner, predictor, nil, params, e.log)
	runner := deviation.NewRunner(analyzer, e.cfg.Analysis.Workers, e.log)

	runID := uuid.NewString()
	paramsJSON, err := json.Marshal(e.cfg.Analysis)
	if err != nil {
		return fmt.Errorf("failed to encode run parameters: %w", err)
	}
	if err := store.CreateRun(ctx, runID, string(paramsJSON), time.Now()); err != nil {
		return err
	}

	e.log.Info("Starting analysis run",
		logger.String("run_id", runID),
		logger.Int("flights", len(flights)),
		logger.Int("traffic", traffic.Len()))

	outcomes := runner.Run(ctx, flights, traffic)
	records := outcomes.Records()
	e.log.Debug("Flight plan lookups", logger.Any("cache", plans.Stats()))

	// Results are stored even when the run was interrupted
	writeCtx := context.WithoutCancel(ctx)
	status := sqlite.RunStatusFinished
	if ctx.Err() != nil {
		status = sqlite.RunStatusFailed
	}
	if err := store.SaveOutcomes(writeCtx, runID, outcomes); err != nil {
		_ = store.FinishRun(writeCtx, runID, sqlite.RunStatusFailed, len(flights), 0, outcomes.Failed())
		return err
	}
	if err := store.FinishRun(writeCtx, runID, status, len(flights), len(records), outcomes.Failed()); err != nil {
		return err
	}

	if analyzeOut != "" {
		if err := writeRecords(analyzeOut, records); err != nil {
			return err
		}
		e.log.Info("Wrote records", logger.String("file", analyzeOut), logger.Int("records", len(records)))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d flights, %d records, %d skipped holes, %d failed\n",
		runID, len(flights), len(records), len(outcomes.Skipped()), outcomes.Failed())
	if status == sqlite.RunStatusFailed {
		return fmt.Errorf("run %s interrupted: %w", runID, ctx.Err())
	}
	return nil
}

func trafficQuery(from, to string, minAltitude float64) (sqlite.TrafficQuery, error) {
	q := sqlite.TrafficQuery{MinAltitude: minAltitude}
	var err error
	if from != "" {
		if q.Start, err = ingest.ParseTimestamp(from); err != nil {
			return q, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if q.Stop, err = ingest.ParseTimestamp(to); err != nil {
			return q, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if !q.Start.IsZero() && !q.Stop.IsZero() && q.Stop.Before(q.Start) {
		return q, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return q, nil
}

// selectFlights picks the flights to analyse. Every loaded flight stays in the context
// traffic either way.
func selectFlights(traffic *trajectory.Traffic, ids []string, log *logger.Logger) []*trajectory.Flight {
	if len(ids) == 0 {
		return traffic.Flights()
	}
	ret := make([]*trajectory.Flight, 0, len(ids))
	for _, id := range ids {
		f, ok := traffic.Get(id)
		if !ok {
			log.Warn("Requested flight not found in traffic", logger.String("flight_id", id))
			continue
		}
		ret = append(ret, f)
	}
	return ret
}

func writeRecords(path string, records []deviation.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := deviation.WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
