package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/flightdev/internal/deviation"
	"github.com/yegors/flightdev/pkg/logger"
)

// ErrRunNotFound is returned for unknown run identifiers
var ErrRunNotFound = errors.New("run not found")

// Run statuses
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// Run describes one batch analysis
type Run struct {
	ID         string     `json:"run_id"`
	Status     string     `json:"status"`
	Params     string     `json:"params"` // JSON encoded parameters
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Flights    int        `json:"flights"`
	Records    int        `json:"records"`
	Failed     int        `json:"failed"`
}

// SkippedHoleRow is a stored skipped hole
type SkippedHoleRow struct {
	FlightID    string    `json:"flight_id"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
	Duration    float64   `json:"duration"`
	AltitudeMin float64   `json:"altitude_min"`
	AltitudeMax float64   `json:"altitude_max"`
	Reason      string    `json:"reason"`
}

// DeviationQuery filters stored records. RunID or FlightID must be set.
type DeviationQuery struct {
	RunID    string
	FlightID string
	Limit    int
}

// CreateRun registers a new run in the running state
func (s *Storage) CreateRun(ctx context.Context, runID, params string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, status, params, started_at) VALUES (?, ?, ?, ?)
	`, runID, RunStatusRunning, params, formatTime(startedAt))
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", runID, err)
	}
	return nil
}

// FinishRun records the final status and counters of a run
func (s *Storage) FinishRun(ctx context.Context, runID, status string, flights, records, failed int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, flights = ?, records = ?, failed = ?
		WHERE run_id = ?
	`, status, formatTime(time.Now()), flights, records, failed, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// SaveOutcomes stores the records, skipped holes and failures of a batch in one transaction.
// Records keep the batch order.
func (s *Storage) SaveOutcomes(ctx context.Context, runID string, outcomes deviation.Outcomes) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	recStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deviations (
			run_id, seq, flight_id, start_time, stop_time, duration, neighbour_id,
			min_f_dist, min_f_time, min_fp_dist, min_fp_time, difference,
			horizon, separation, predicted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare deviation insert statement: %w", err)
	}
	defer recStmt.Close()

	skipStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO skipped_holes (run_id, flight_id, start_time, stop_time, duration, altitude_min, altitude_max, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare skipped hole insert statement: %w", err)
	}
	defer skipStmt.Close()

	failStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flight_failures (run_id, flight_id, kind, error) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare failure insert statement: %w", err)
	}
	defer failStmt.Close()

	for i, rec := range outcomes.Records() {
		var neighbour interface{}
		if rec.NeighbourID != nil {
			neighbour = *rec.NeighbourID
		}
		_, err := recStmt.ExecContext(ctx,
			runID, i, rec.FlightID, formatTime(rec.Start), formatTime(rec.Stop), rec.Duration, neighbour,
			nullableFloat(rec.MinFDist), formatNullableTime(rec.MinFTime),
			nullableFloat(rec.MinFPDist), formatNullableTime(rec.MinFPTime),
			nullableFloat(rec.Difference),
			formatTime(rec.Horizon), string(rec.Separation), boolToInt(rec.Predicted),
		)
		if err != nil {
			return fmt.Errorf("failed to insert deviation for %s: %w", rec.FlightID, err)
		}
	}

	for _, sk := range outcomes.Skipped() {
		h := sk.Hole
		_, err := skipStmt.ExecContext(ctx, runID, h.FlightID, formatTime(h.Start), formatTime(h.Stop),
			h.Duration().Seconds(), h.AltitudeMin, h.AltitudeMax, string(sk.Reason))
		if err != nil {
			return fmt.Errorf("failed to insert skipped hole for %s: %w", h.FlightID, err)
		}
	}

	for _, oc := range outcomes {
		if oc.Err == nil || oc.Kind == deviation.KindNoPlan {
			continue
		}
		if _, err := failStmt.ExecContext(ctx, runID, oc.FlightID, string(oc.Kind), oc.Err.Error()); err != nil {
			return fmt.Errorf("failed to insert failure for %s: %w", oc.FlightID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcomes of run %s: %w", runID, err)
	}

	s.logger.Debug("Saved run outcomes",
		logger.String("run_id", runID),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// ListRuns returns runs, most recent first
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, status, COALESCE(params, ''), started_at, finished_at, flights, records, failed
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Status, &r.Params, &started, &finished, &r.Flights, &r.Records, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseNullableTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run
func (s *Storage) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, status, COALESCE(params, ''), started_at, finished_at, flights, records, failed
		FROM runs WHERE run_id = ?
	`, runID).Scan(&r.ID, &r.Status, &r.Params, &started, &finished, &r.Flights, &r.Records, &r.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if r.FinishedAt, err = parseNullableTime(finished); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetDeviations returns stored records oldest run first, each run in batch order
func (s *Storage) GetDeviations(ctx context.Context, q DeviationQuery) ([]deviation.Record, error) {
	where := []string{}
	args := []interface{}{}
	if q.RunID != "" {
		where = append(where, "d.run_id = ?")
		args = append(args, q.RunID)
	}
	if q.FlightID != "" {
		where = append(where, "d.flight_id = ?")
		args = append(args, q.FlightID)
	}
	if len(where) == 0 {
		return nil, fmt.Errorf("deviation query needs a run or a flight")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10000
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.flight_id, d.start_time, d.stop_time, d.duration, d.neighbour_id,
			d.min_f_dist, d.min_f_time, d.min_fp_dist, d.min_fp_time, d.difference,
			d.horizon, d.separation, d.predicted
		FROM deviations d
		JOIN runs r ON r.run_id = d.run_id
		WHERE %s
		ORDER BY r.started_at, d.run_id, d.seq
		LIMIT ?
	`, strings.Join(where, " AND ")), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deviations: %w", err)
	}
	defer rows.Close()

	records := []deviation.Record{}
	for rows.Next() {
		var (
			rec                              deviation.Record
			start, stop, horizon, separation string
			neighbour, minFTime, minFPTime   sql.NullString
			minFDist, minFPDist, difference  sql.NullFloat64
			predicted                        int
		)
		if err := rows.Scan(&rec.FlightID, &start, &stop, &rec.Duration, &neighbour,
			&minFDist, &minFTime, &minFPDist, &minFPTime, &difference,
			&horizon, &separation, &predicted); err != nil {
			return nil, fmt.Errorf("failed to scan deviation row: %w", err)
		}

		if rec.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if rec.Stop, err = parseTime(stop); err != nil {
			return nil, err
		}
		if rec.Horizon, err = parseTime(horizon); err != nil {
			return nil, err
		}
		if rec.MinFTime, err = parseNullableTime(minFTime); err != nil {
			return nil, err
		}
		if rec.MinFPTime, err = parseNullableTime(minFPTime); err != nil {
			return nil, err
		}
		if neighbour.Valid {
			id := neighbour.String
			rec.NeighbourID = &id
		}
		rec.MinFDist = floatPtr(minFDist)
		rec.MinFPDist = floatPtr(minFPDist)
		rec.Difference = floatPtr(difference)
		rec.Separation = deviation.Separation(separation)
		rec.Predicted = predicted != 0

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deviation rows: %w", err)
	}
	return records, nil
}

// GetSkipped returns the skipped holes of a run
func (s *Storage) GetSkipped(ctx context.Context, runID string) ([]SkippedHoleRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flight_id, start_time, stop_time, duration, altitude_min, altitude_max, reason
		FROM skipped_holes
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query skipped holes: %w", err)
	}
	defer rows.Close()

	ret := []SkippedHoleRow{}
	for rows.Next() {
		var (
			row         SkippedHoleRow
			start, stop string
		)
		if err := rows.Scan(&row.FlightID, &start, &stop, &row.Duration, &row.AltitudeMin, &row.AltitudeMax, &row.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan skipped hole row: %w", err)
		}
		if row.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if row.Stop, err = parseTime(stop); err != nil {
			return nil, err
		}
		ret = append(ret, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skipped hole rows: %w", err)
	}
	return ret, nil
}

// FailureRow is a flight of a run that could not be analysed
type FailureRow struct {
	FlightID string `json:"flight_id"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

// GetFailures returns the failed flights of a run
func (s *Storage) GetFailures(ctx context.Context, runID string) ([]FailureRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flight_id, kind, COALESCE(error, '')
		FROM flight_failures
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight failures: %w", err)
	}
	defer rows.Close()

	ret := []FailureRow{}
	for rows.Next() {
		var row FailureRow
		if err := rows.Scan(&row.FlightID, &row.Kind, &row.Error); err != nil {
			return nil, fmt.Errorf("failed to scan flight failure row: %w", err)
		}
		ret = append(ret, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flight failure rows: %w", err)
	}
	return ret, nil
}
