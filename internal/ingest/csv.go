package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/skypies/geo"

	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/trajectory"
)

// ErrMissingColumn is returned when a CSV header lacks a required column
var ErrMissingColumn = errors.New("missing required column")

// header maps column names to their index
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	names, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	h := header{}
	for i, n := range names {
		h[strings.ToLower(strings.TrimSpace(n))] = i
	}
	for _, req := range required {
		if _, ok := h[req]; !ok {
			return nil, fmt.Errorf("%s: %w", req, ErrMissingColumn)
		}
	}
	return h, nil
}

// get returns the trimmed value of a column, empty when absent
func (h header) get(record []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (h header) float(record []string, col string) (float64, bool, error) {
	v := h.get(record, col)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q: %w", col, v, err)
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	return f, true, nil
}

// ParseTimestamp accepts RFC3339 timestamps and unix seconds, possibly fractional
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05Z07:00", s); err == nil {
		return t.UTC(), nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}

// ReadTrajectories reads a CSV with one position per row. Required columns are flight_id,
// timestamp, latitude, longitude and altitude; groundspeed, track, mag_heading, callsign
// and icao24 are optional. Flights are returned in order of first appearance.
func ReadTrajectories(r io.Reader) ([]*trajectory.Flight, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	h, err := readHeader(cr, "flight_id", "timestamp", "latitude", "longitude", "altitude")
	if err != nil {
		return nil, err
	}

	type pending struct {
		callsign, icao24 string
		points           []trajectory.Point
	}
	byID := map[string]*pending{}
	order := []string{}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		id := h.get(record, "flight_id")
		if id == "" {
			return nil, fmt.Errorf("line %d: empty flight_id", line)
		}
		p, err := parsePosition(h, record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		fl, ok := byID[id]
		if !ok {
			fl = &pending{}
			byID[id] = fl
			order = append(order, id)
		}
		if fl.callsign == "" {
			fl.callsign = h.get(record, "callsign")
		}
		if fl.icao24 == "" {
			fl.icao24 = strings.ToLower(h.get(record, "icao24"))
		}
		fl.points = append(fl.points, p)
	}

	flights := make([]*trajectory.Flight, 0, len(order))
	for _, id := range order {
		fl := byID[id]
		f, err := trajectory.NewFlight(id, fl.points)
		if err != nil {
			return nil, err
		}
		flights = append(flights, f.WithIdentity(fl.callsign, fl.icao24))
	}
	return flights, nil
}

func parsePosition(h header, record []string) (trajectory.Point, error) {
	p := trajectory.Point{}

	ts, err := ParseTimestamp(h.get(record, "timestamp"))
	if err != nil {
		return p, err
	}
	p.Timestamp = ts

	lat, okLat, err := h.float(record, "latitude")
	if err != nil {
		return p, err
	}
	lon, okLon, err := h.float(record, "longitude")
	if err != nil {
		return p, err
	}
	alt, okAlt, err := h.float(record, "altitude")
	if err != nil {
		return p, err
	}
	if !okLat || !okLon || !okAlt {
		return p, fmt.Errorf("missing position: %w", trajectory.ErrInvalidPoint)
	}
	p.Latlong = geo.Latlong{Lat: lat, Long: lon}
	p.Altitude = alt

	if p.GroundSpeed, _, err = h.float(record, "groundspeed"); err != nil {
		return p, err
	}
	if p.Track, p.HasTrack, err = h.float(record, "track"); err != nil {
		return p, err
	}
	if p.MagHeading, p.HasMagHeading, err = h.float(record, "mag_heading"); err != nil {
		return p, err
	}
	return p, nil
}

// ReadFilings reads flight plan metadata with columns flight_id, icao24 and route. Rows are
// returned in file order; later rows for the same flight supersede earlier ones when stored.
func ReadFilings(r io.Reader) ([]flightplan.Filing, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := readHeader(cr, "flight_id", "route")
	if err != nil {
		return nil, err
	}

	ret := []flightplan.Filing{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		id := h.get(record, "flight_id")
		if id == "" {
			continue
		}
		ret = append(ret, flightplan.Filing{
			FlightID: id,
			Icao24:   strings.ToLower(h.get(record, "icao24")),
			Route:    h.get(record, "route"),
		})
	}
	return ret, nil
}

// ReadNavpoints reads a CSV of named positions with columns name, latitude and longitude
func ReadNavpoints(r io.Reader) ([]flightplan.Navpoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := readHeader(cr, "name", "latitude", "longitude")
	if err != nil {
		return nil, err
	}

	ret := []flightplan.Navpoint{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		name := strings.ToUpper(h.get(record, "name"))
		lat, okLat, err := h.float(record, "latitude")
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		lon, okLon, err := h.float(record, "longitude")
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if name == "" || !okLat || !okLon {
			return nil, fmt.Errorf("line %d: incomplete navpoint", line)
		}
		ret = append(ret, flightplan.Navpoint{Name: name, Latlong: geo.Latlong{Lat: lat, Long: lon}})
	}
	return ret, nil
}
