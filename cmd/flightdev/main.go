package main

import (
	"fmt"
	"os"
	"time"

	"github.com/yegors/flightdev/internal/config"
	"github.com/yegors/flightdev/internal/deviation"
	"github.com/yegors/flightdev/internal/storage/sqlite"
	"github.com/yegors/flightdev/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration with fallback logic. Without any config file the
// defaults are used.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("error loading configuration: %w", err)
		}
		cfg = &config.Config{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}
	return log, nil
}

func openStorage(cfg *config.Config, log *logger.Logger) (*sqlite.Storage, error) {
	store, err := sqlite.NewStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// analysisParams converts the [analysis] section into pipeline parameters
func analysisParams(a config.AnalysisConfig) deviation.Params {
	return deviation.Params{
		MarginFL:             a.MarginFL,
		AnglePrecision:       a.AnglePrecision,
		MinDistanceNM:        a.MinDistanceNM,
		ForwardTime:          time.Duration(a.ForwardTimeMinutes) * time.Minute,
		MinHoleDuration:      time.Duration(a.MinHoleDurationSeconds) * time.Second,
		MinNeighbourDuration: time.Duration(a.MinNeighbourDurationSeconds) * time.Second,
	}
}
