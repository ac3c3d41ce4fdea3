package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/skypies/geo"

	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/pkg/logger"
)

// InsertMetadata stores flight plan routes. When a flight appears more than once, the last
// row wins; icao24 addresses are stored lower case.
func (s *Storage) InsertMetadata(ctx context.Context, rows []flightplan.Filing) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metadata (flight_id, icao24, route)
		VALUES (?, ?, ?)
		ON CONFLICT(flight_id) DO UPDATE SET
			icao24 = excluded.icao24,
			route = excluded.route,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.FlightID, strings.ToLower(r.Icao24), r.Route); err != nil {
			return fmt.Errorf("failed to insert metadata for %s: %w", r.FlightID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metadata: %w", err)
	}

	s.logger.Debug("Inserted metadata", logger.Int("count", len(rows)))
	return nil
}

// Lookup returns the flight plan of a flight, resolving its route against the stored
// navpoints. It implements flightplan.Metadata.
func (s *Storage) Lookup(ctx context.Context, flightID string) (*flightplan.FlightPlan, error) {
	var route string
	err := s.db.QueryRowContext(ctx, "SELECT route FROM metadata WHERE flight_id = ?", flightID).Scan(&route)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", flightID, flightplan.ErrPlanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata for %s: %w", flightID, err)
	}

	navdb, err := s.navpointsFor(ctx, route)
	if err != nil {
		return nil, err
	}
	return flightplan.ParseRoute(flightID, route, navdb)
}

// navpointsFor loads the navpoints a route may reference in a single query
func (s *Storage) navpointsFor(ctx context.Context, route string) (flightplan.MapNavDB, error) {
	tokens := flightplan.RouteTokens(route)
	navdb := flightplan.MapNavDB{}
	if len(tokens) == 0 {
		return navdb, nil
	}

	placeholders := make([]string, len(tokens))
	args := make([]interface{}, len(tokens))
	for i, tok := range tokens {
		placeholders[i] = "?"
		args[i] = tok
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT name, lat, lon FROM navpoints WHERE name IN (%s)", strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query navpoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n flightplan.Navpoint
		if err := rows.Scan(&n.Name, &n.Lat, &n.Long); err != nil {
			return nil, fmt.Errorf("failed to scan navpoint row: %w", err)
		}
		navdb[n.Name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating navpoint rows: %w", err)
	}
	return navdb, nil
}

// UpsertNavpoints stores named navpoints; names are stored upper case
func (s *Storage) UpsertNavpoints(ctx context.Context, navpoints []flightplan.Navpoint) error {
	if len(navpoints) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO navpoints (name, lat, lon) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET lat = excluded.lat, lon = excluded.lon
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare navpoint insert statement: %w", err)
	}
	defer stmt.Close()

	for _, n := range navpoints {
		if _, err := stmt.ExecContext(ctx, strings.ToUpper(n.Name), n.Lat, n.Long); err != nil {
			return fmt.Errorf("failed to insert navpoint %s: %w", n.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit navpoints: %w", err)
	}

	s.logger.Debug("Upserted navpoints", logger.Int("count", len(navpoints)))
	return nil
}

// Navpoint looks a single navpoint up by name. It implements flightplan.NavDB.
func (s *Storage) Navpoint(name string) (flightplan.Navpoint, bool) {
	n := flightplan.Navpoint{}
	var lat, lon float64
	err := s.db.QueryRow("SELECT name, lat, lon FROM navpoints WHERE name = ?", strings.ToUpper(name)).Scan(&n.Name, &lat, &lon)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("Failed to query navpoint", logger.Error(err), logger.String("name", name))
		}
		return n, false
	}
	n.Latlong = geo.Latlong{Lat: lat, Long: lon}
	return n, true
}
