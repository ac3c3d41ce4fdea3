package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/trajectory"
	"github.com/yegors/flightdev/pkg/logger"
)

// Store persists imported data
type Store interface {
	UpsertFlight(ctx context.Context, f *trajectory.Flight) error
	InsertMetadata(ctx context.Context, rows []flightplan.Filing) error
	UpsertNavpoints(ctx context.Context, navpoints []flightplan.Navpoint) error
}

// Importer loads files into a Store
type Importer struct {
	store       Store
	maxGap      time.Duration
	minAltitude float64
	logger      *logger.Logger
}

// NewImporter creates an importer. maxGap and minAltitude only apply to ADS-B snapshots.
func NewImporter(store Store, maxGap time.Duration, minAltitude float64, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Importer{
		store:       store,
		maxGap:      maxGap,
		minAltitude: minAltitude,
		logger:      log.Named("ingest"),
	}
}

// ImportTraffic stores every flight of a trajectory CSV file and returns how many were stored
func (im *Importer) ImportTraffic(ctx context.Context, paths ...string) (int, error) {
	total := 0
	for _, path := range paths {
		var flights []*trajectory.Flight
		err := withFile(path, func(r io.Reader) error {
			var err error
			flights, err = ReadTrajectories(r)
			return err
		})
		if err != nil {
			return total, err
		}

		n, err := im.storeFlights(ctx, flights)
		total += n
		if err != nil {
			return total, err
		}
		im.logger.Info("Imported trajectories",
			logger.String("file", path),
			logger.Int("flights", n))
	}
	return total, nil
}

// ImportADSB rebuilds flights from ADS-B snapshot files. Snapshots from every file are
// pooled so a flight may span several files.
func (im *Importer) ImportADSB(ctx context.Context, paths ...string) (int, error) {
	builder := NewTrackBuilder(im.maxGap, im.minAltitude)
	snapshots, positions := 0, 0

	for _, path := range paths {
		err := withFile(path, func(r io.Reader) error {
			return DecodeSnapshots(r, func(s Snapshot) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				snapshots++
				positions += builder.Add(s)
				return nil
			})
		})
		if err != nil {
			return 0, err
		}
	}

	flights, err := builder.Flights()
	if err != nil {
		return 0, err
	}
	n, err := im.storeFlights(ctx, flights)
	im.logger.Info("Imported ADS-B snapshots",
		logger.Int("files", len(paths)),
		logger.Int("snapshots", snapshots),
		logger.Int("positions", positions),
		logger.Int("flights", n))
	return n, err
}

// ImportMetadata stores flight plan filings
func (im *Importer) ImportMetadata(ctx context.Context, path string) (int, error) {
	var rows []flightplan.Filing
	err := withFile(path, func(r io.Reader) error {
		var err error
		rows, err = ReadFilings(r)
		return err
	})
	if err != nil {
		return 0, err
	}
	if err := im.store.InsertMetadata(ctx, rows); err != nil {
		return 0, err
	}
	im.logger.Info("Imported flight plans", logger.String("file", path), logger.Int("plans", len(rows)))
	return len(rows), nil
}

// ImportNavpoints stores a navpoint database
func (im *Importer) ImportNavpoints(ctx context.Context, path string) (int, error) {
	var navpoints []flightplan.Navpoint
	err := withFile(path, func(r io.Reader) error {
		var err error
		navpoints, err = ReadNavpoints(r)
		return err
	})
	if err != nil {
		return 0, err
	}
	if err := im.store.UpsertNavpoints(ctx, navpoints); err != nil {
		return 0, err
	}
	im.logger.Info("Imported navpoints", logger.String("file", path), logger.Int("navpoints", len(navpoints)))
	return len(navpoints), nil
}

func (im *Importer) storeFlights(ctx context.Context, flights []*trajectory.Flight) (int, error) {
	for i, f := range flights {
		if err := im.store.UpsertFlight(ctx, f); err != nil {
			return i, err
		}
	}
	return len(flights), nil
}

func withFile(path string, fn func(io.Reader) error) error {
	rc, err := Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := fn(rc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
