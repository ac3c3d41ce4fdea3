package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yegors/flightdev/internal/ingest"
	"github.com/yegors/flightdev/pkg/logger"
)

func runImportTraffic(cmd *cobra.Command, args []string) error {
	return withImporter(cmd, "flights", func(ctx context.Context, im *ingest.Importer) (int, error) {
		return im.ImportTraffic(ctx, args...)
	})
}

func runImportADSB(cmd *cobra.Command, args []string) error {
	return withImporter(cmd, "flights", func(ctx context.Context, im *ingest.Importer) (int, error) {
		return im.ImportADSB(ctx, args...)
	})
}

func runImportMetadata(cmd *cobra.Command, args []string) error {
	return withImporter(cmd, "flight plans", func(ctx context.Context, im *ingest.Importer) (int, error) {
		return im.ImportMetadata(ctx, args[0])
	})
}

func runImportNavpoints(cmd *cobra.Command, args []string) error {
	return withImporter(cmd, "navpoints", func(ctx context.Context, im *ingest.Importer) (int, error) {
		return im.ImportNavpoints(ctx, args[0])
	})
}

func withImporter(cmd *cobra.Command, what string, fn func(context.Context, *ingest.Importer) (int, error)) error {
	ctx, e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	store, err := openStorage(e.cfg, e.log)
	if err != nil {
		return err
	}
	defer store.Close()

	im := ingest.NewImporter(store,
		time.Duration(e.cfg.Ingest.MaxGapMinutes)*time.Minute,
		e.cfg.Ingest.MinAltitudeFt,
		e.log)

	start := time.Now()
	n, err := fn(ctx, im)
	if err != nil {
		return fmt.Errorf("import failed after %d %s: %w", n, what, err)
	}

	e.log.Info("Import complete",
		logger.String("kind", what),
		logger.Int("count", n),
		logger.Duration("duration", time.Since(start)))
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s\n", n, what)
	return nil
}
