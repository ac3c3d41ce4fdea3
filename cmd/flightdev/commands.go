package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yegors/flightdev/internal/config"
	"github.com/yegors/flightdev/pkg/logger"
)

// --- Global Command Variables ---
var (
	configPath string

	analyzeFrom    string
	analyzeTo      string
	analyzeFlights []string
	analyzeOut     string

	rootCmd = &cobra.Command{
		Use:           "flightdev",
		Short:         "Detects flight plan deviations and scores the separation they caused",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// --- Import ---
	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Import trajectories, flight plans or navpoints into the database",
	}
	importTrafficCmd = &cobra.Command{
		Use:   "traffic FILE...",
		Short: "Import trajectory CSV files (.csv, .csv.gz, .csv.zst)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImportTraffic, // Defined in cmd_import.go
	}
	importADSBCmd = &cobra.Command{
		Use:   "adsb FILE...",
		Short: "Rebuild flights from aircraft.json snapshot files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImportADSB,
	}
	importMetadataCmd = &cobra.Command{
		Use:   "metadata FILE",
		Short: "Import filed routes (flight_id,icao24,route)",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportMetadata,
	}
	importNavpointsCmd = &cobra.Command{
		Use:   "navpoints FILE",
		Short: "Import navpoint positions (name,latitude,longitude)",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportNavpoints,
	}

	// --- Analysis ---
	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Run deviation analysis over stored traffic and store the results as a run",
		Args:  cobra.NoArgs,
		RunE:  runAnalyze, // Defined in cmd_analyze.go
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over a read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (optional - will search in configs/ and root directory)")

	importCmd.AddCommand(importTrafficCmd, importADSBCmd, importMetadataCmd, importNavpointsCmd)

	analyzeCmd.Flags().StringVar(&analyzeFrom, "from", "", "Only analyse flights airborne after this time (RFC3339)")
	analyzeCmd.Flags().StringVar(&analyzeTo, "to", "", "Only analyse flights that started before this time (RFC3339)")
	analyzeCmd.Flags().StringSliceVar(&analyzeFlights, "flight", nil, "Flight identifiers to analyse (repeatable); all others are context traffic")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "Also write the records to this CSV file")

	rootCmd.AddCommand(importCmd, analyzeCmd, serveCmd)
}

// env is what every command needs once the configuration is known
type env struct {
	cfg *config.Config
	log *logger.Logger
}

func setup(cmd *cobra.Command) (context.Context, *env, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("Configuration loaded",
		logger.String("version", Version),
		logger.String("config_path", configPath),
		logger.String("sqlite_path", cfg.Storage.SQLitePath))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, &env{cfg: cfg, log: log}, nil
}
