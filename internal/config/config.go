package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Analysis AnalysisConfig `toml:"analysis"` // Deviation detection and scoring parameters
	Ingest   IngestConfig   `toml:"ingest"`   // Trajectory import settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Storage  StorageConfig  `toml:"storage"`  // Data persistence settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the read-only API
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// AnalysisConfig contains the parameters of the deviation pipeline
type AnalysisConfig struct {
	MarginFL                    float64 `toml:"margin_fl" json:"margin_fl"`                                           // Altitude margin in feet around the level of a hole
	AnglePrecision              float64 `toml:"angle_precision" json:"angle_precision"`                               // Degrees between track and navpoint bearing to count as aligned
	MinDistanceNM               float64 `toml:"min_distance_nm" json:"min_distance_nm"`                               // Navpoints closer than this are ignored for alignment
	ForwardTimeMinutes          int     `toml:"forward_time_minutes" json:"forward_time_minutes"`                     // Analysis window and prediction length after a hole starts
	MinHoleDurationSeconds      int     `toml:"min_hole_duration_seconds" json:"min_hole_duration_seconds"`           // Holes must last strictly longer than this
	MinNeighbourDurationSeconds int     `toml:"min_neighbour_duration_seconds" json:"min_neighbour_duration_seconds"` // Neighbour segments must last strictly longer than this
	MinAlignedSeconds           int     `toml:"min_aligned_seconds" json:"min_aligned_seconds"`                       // Minimum run length for an aligned interval
	Workers                     int     `toml:"workers" json:"workers"`                                               // Flights analysed in parallel (0 = GOMAXPROCS)
}

// IngestConfig contains settings for trajectory imports
type IngestConfig struct {
	MaxGapMinutes int     `toml:"max_gap_minutes"` // Split ADS-B tracks into separate flights after a gap this long
	MinAltitudeFt float64 `toml:"min_altitude_ft"` // Positions below this altitude are ignored when loading traffic
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`       // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`      // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`        // Optional log file, rotated by size
	MaxSizeMB  int    `toml:"max_size_mb"` // Size at which the log file is rotated
	MaxBackups int    `toml:"max_backups"` // Number of rotated files to keep
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type (currently only "sqlite" is supported)
	SQLitePath string `toml:"sqlite_path"` // Path of the SQLite database file
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Default returns a configuration with every default applied, used when no file is found
func Default() *Config {
	c := &Config{}
	_ = c.Validate()
	return c
}

// Validate validates the configuration, filling in defaults for unset values
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}

	if err := c.ValidateAnalysis(); err != nil {
		return err
	}

	// Validate ingest config
	if c.Ingest.MaxGapMinutes == 0 {
		c.Ingest.MaxGapMinutes = 10
	}
	if c.Ingest.MaxGapMinutes < 0 {
		return fmt.Errorf("invalid max_gap_minutes: %d (must be > 0)", c.Ingest.MaxGapMinutes)
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/flightdev.db"
	}

	return nil
}

// ValidateAnalysis validates the analysis parameters
func (c *Config) ValidateAnalysis() error {
	a := &c.Analysis

	if a.MarginFL == 0 {
		a.MarginFL = 50
	}
	if a.AnglePrecision == 0 {
		a.AnglePrecision = 2
	}
	if a.MinDistanceNM == 0 {
		a.MinDistanceNM = 200
	}
	if a.ForwardTimeMinutes == 0 {
		a.ForwardTimeMinutes = 20
	}
	if a.MinHoleDurationSeconds == 0 {
		a.MinHoleDurationSeconds = 120
	}
	if a.MinNeighbourDurationSeconds == 0 {
		a.MinNeighbourDurationSeconds = 2
	}
	if a.MinAlignedSeconds == 0 {
		a.MinAlignedSeconds = 30
	}
	if a.Workers == 0 {
		a.Workers = runtime.GOMAXPROCS(0)
	}

	if a.MarginFL < 0 {
		return fmt.Errorf("invalid margin_fl: %v (must be > 0)", a.MarginFL)
	}
	if a.AnglePrecision < 0 || a.AnglePrecision >= 180 {
		return fmt.Errorf("invalid angle_precision: %v (must be between 0 and 180)", a.AnglePrecision)
	}
	if a.MinDistanceNM < 0 {
		return fmt.Errorf("invalid min_distance_nm: %v (must be > 0)", a.MinDistanceNM)
	}
	if a.ForwardTimeMinutes < 0 {
		return fmt.Errorf("invalid forward_time_minutes: %d (must be > 0)", a.ForwardTimeMinutes)
	}
	if a.MinHoleDurationSeconds < 0 || a.MinNeighbourDurationSeconds < 0 || a.MinAlignedSeconds < 0 {
		return fmt.Errorf("analysis durations must be >= 0")
	}
	if a.Workers < 0 {
		return fmt.Errorf("invalid workers: %d (must be > 0)", a.Workers)
	}

	return nil
}
