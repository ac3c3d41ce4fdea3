package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/skypies/geo"

	"github.com/yegors/flightdev/internal/trajectory"
	"github.com/yegors/flightdev/pkg/logger"
)

// TrafficQuery selects flights to load. Zero values mean no constraint.
type TrafficQuery struct {
	Start       time.Time // keep flights still airborne at Start
	Stop        time.Time // keep flights that started before Stop
	FlightIDs   []string
	MinAltitude float64 // drop positions below this altitude when positive
}

// UpsertFlight stores a flight and its positions. Positions already stored for the same
// flight and timestamp are kept.
func (s *Storage) UpsertFlight(ctx context.Context, f *trajectory.Flight) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flights (flight_id, callsign, icao24, start_time, stop_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(flight_id) DO UPDATE SET
			callsign = COALESCE(NULLIF(excluded.callsign, ''), flights.callsign),
			icao24 = COALESCE(NULLIF(excluded.icao24, ''), flights.icao24),
			start_time = MIN(flights.start_time, excluded.start_time),
			stop_time = MAX(flights.stop_time, excluded.stop_time),
			updated_at = CURRENT_TIMESTAMP
	`, f.ID(), f.Callsign(), strings.ToLower(f.Icao24()), formatTime(f.Start()), formatTime(f.Stop()))
	if err != nil {
		return fmt.Errorf("failed to upsert flight %s: %w", f.ID(), err)
	}

	if err := insertPositions(ctx, tx, f.ID(), f.Points()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flight %s: %w", f.ID(), err)
	}

	s.logger.Debug("Stored flight",
		logger.String("flight_id", f.ID()),
		logger.Int("positions", f.Len()))
	return nil
}

func insertPositions(ctx context.Context, tx *sql.Tx, flightID string, points []trajectory.Point) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO positions (flight_id, timestamp, lat, lon, altitude, groundspeed, track, mag_heading)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare position insert statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		var track, mag interface{}
		if p.HasTrack {
			track = p.Track
		}
		if p.HasMagHeading {
			mag = p.MagHeading
		}
		if _, err := stmt.ExecContext(ctx, flightID, formatTime(p.Timestamp), p.Lat, p.Long, p.Altitude, p.GroundSpeed, track, mag); err != nil {
			return fmt.Errorf("failed to insert position for %s: %w", flightID, err)
		}
	}
	return nil
}

// LoadTraffic loads every flight matching the query, in flight id order
func (s *Storage) LoadTraffic(ctx context.Context, q TrafficQuery) (*trajectory.Traffic, error) {
	start := time.Now()

	where := []string{"1 = 1"}
	args := []interface{}{}
	if q.MinAltitude > 0 {
		where = append(where, "p.altitude >= ?")
		args = append(args, q.MinAltitude)
	}
	if !q.Start.IsZero() {
		where = append(where, "f.stop_time >= ?")
		args = append(args, formatTime(q.Start))
	}
	if !q.Stop.IsZero() {
		where = append(where, "f.start_time <= ?")
		args = append(args, formatTime(q.Stop))
	}
	if len(q.FlightIDs) > 0 {
		placeholders := make([]string, len(q.FlightIDs))
		for i, id := range q.FlightIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where = append(where, fmt.Sprintf("f.flight_id IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`
		SELECT f.flight_id, COALESCE(f.callsign, ''), COALESCE(f.icao24, ''),
			p.timestamp, p.lat, p.lon, p.altitude, COALESCE(p.groundspeed, 0), p.track, p.mag_heading
		FROM positions p
		JOIN flights f ON f.flight_id = p.flight_id
		WHERE %s
		ORDER BY f.flight_id, p.timestamp
	`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query traffic: %w", err)
	}
	defer rows.Close()

	flights := []*trajectory.Flight{}
	var (
		currentID, callsign, icao24 string
		points                      []trajectory.Point
	)
	flush := func() error {
		if currentID == "" {
			return nil
		}
		f, err := trajectory.NewFlight(currentID, points)
		if err != nil {
			return err
		}
		flights = append(flights, f.WithIdentity(callsign, icao24))
		return nil
	}

	for rows.Next() {
		var (
			id, cs, hex, ts string
			p               trajectory.Point
			lat, lon        float64
			track, mag      sql.NullFloat64
		)
		if err := rows.Scan(&id, &cs, &hex, &ts, &lat, &lon, &p.Altitude, &p.GroundSpeed, &track, &mag); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		if p.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		p.Latlong = geo.Latlong{Lat: lat, Long: lon}
		p.Track, p.HasTrack = track.Float64, track.Valid
		p.MagHeading, p.HasMagHeading = mag.Float64, mag.Valid

		if id != currentID {
			if err := flush(); err != nil {
				return nil, err
			}
			currentID, callsign, icao24, points = id, cs, hex, nil
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	s.logger.Debug("Loaded traffic",
		logger.Int("flights", len(flights)),
		logger.Duration("duration", time.Since(start)))

	return trajectory.NewTraffic(flights...), nil
}

// CountFlights returns the number of stored flights
func (s *Storage) CountFlights(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flights").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count flights: %w", err)
	}
	return n, nil
}
