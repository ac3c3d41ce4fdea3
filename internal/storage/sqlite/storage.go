package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yegors/flightdev/pkg/logger"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexicographically
const timeLayout = "2006-01-02T15:04:05.000Z"

// Storage is a SQLite-based store for traffic, flight plans and analysis runs
type Storage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStorage opens (and creates if needed) the database at dbPath
func NewStorage(dbPath string, log *logger.Logger) (*Storage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open the database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA cache_size=10000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set cache size: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Create tables if they don't exist
	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	statements := []struct {
		name string
		sql  string
	}{
		{"flights table", `
			CREATE TABLE IF NOT EXISTS flights (
				flight_id TEXT PRIMARY KEY,
				callsign TEXT,
				icao24 TEXT,
				start_time TEXT NOT NULL,
				stop_time TEXT NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`},
		{"positions table", `
			CREATE TABLE IF NOT EXISTS positions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				flight_id TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				lat REAL NOT NULL,
				lon REAL NOT NULL,
				altitude REAL NOT NULL,
				groundspeed REAL,
				track REAL,
				mag_heading REAL,
				FOREIGN KEY (flight_id) REFERENCES flights(flight_id) ON DELETE CASCADE,
				UNIQUE(flight_id, timestamp)
			)`},
		{"metadata table", `
			CREATE TABLE IF NOT EXISTS metadata (
				flight_id TEXT PRIMARY KEY,
				icao24 TEXT,
				route TEXT NOT NULL,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`},
		{"navpoints table", `
			CREATE TABLE IF NOT EXISTS navpoints (
				name TEXT PRIMARY KEY,
				lat REAL NOT NULL,
				lon REAL NOT NULL
			)`},
		{"runs table", `
			CREATE TABLE IF NOT EXISTS runs (
				run_id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				params TEXT,
				started_at TEXT NOT NULL,
				finished_at TEXT,
				flights INTEGER DEFAULT 0,
				records INTEGER DEFAULT 0,
				failed INTEGER DEFAULT 0
			)`},
		{"deviations table", `
			CREATE TABLE IF NOT EXISTS deviations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL,
				seq INTEGER NOT NULL,
				flight_id TEXT NOT NULL,
				start_time TEXT NOT NULL,
				stop_time TEXT NOT NULL,
				duration REAL NOT NULL,
				neighbour_id TEXT,
				min_f_dist REAL,
				min_f_time TEXT,
				min_fp_dist REAL,
				min_fp_time TEXT,
				difference REAL,
				horizon TEXT NOT NULL,
				separation TEXT NOT NULL,
				predicted INTEGER DEFAULT 0,
				FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
			)`},
		{"skipped_holes table", `
			CREATE TABLE IF NOT EXISTS skipped_holes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL,
				flight_id TEXT NOT NULL,
				start_time TEXT NOT NULL,
				stop_time TEXT NOT NULL,
				duration REAL NOT NULL,
				altitude_min REAL,
				altitude_max REAL,
				reason TEXT NOT NULL,
				FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
			)`},
		{"flight_failures table", `
			CREATE TABLE IF NOT EXISTS flight_failures (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL,
				flight_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				error TEXT,
				FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
			)`},
		{"index on positions.timestamp", `CREATE INDEX IF NOT EXISTS idx_positions_timestamp ON positions(timestamp)`},
		{"index on flights.start_time", `CREATE INDEX IF NOT EXISTS idx_flights_times ON flights(start_time, stop_time)`},
		{"index on deviations.run_id", `CREATE INDEX IF NOT EXISTS idx_deviations_run ON deviations(run_id, seq)`},
		{"index on deviations.flight_id", `CREATE INDEX IF NOT EXISTS idx_deviations_flight ON deviations(flight_id)`},
		{"index on skipped_holes.run_id", `CREATE INDEX IF NOT EXISTS idx_skipped_run ON skipped_holes(run_id)`},
	}

	for _, st := range statements {
		if _, err := db.Exec(st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// formatNullableTime formats a nullable time.Time for SQL
func formatNullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
