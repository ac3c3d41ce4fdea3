package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/skypies/geo"

	"github.com/yegors/flightdev/internal/trajectory"
)

// Snapshot is one aircraft.json document as written by readsb and tar1090 feeders
type Snapshot struct {
	Now      float64  `json:"now"`
	Messages int      `json:"messages"`
	Aircraft []Target `json:"aircraft"`
}

// Target is a single aircraft entry of a snapshot. Only the fields needed to rebuild
// trajectories are decoded.
type Target struct {
	Hex        string        `json:"hex"`
	Flight     string        `json:"flight"`
	AltBaro    FlexibleField `json:"alt_baro"`
	GS         FlexibleField `json:"gs"`
	Track      FlexibleField `json:"track"`
	MagHeading FlexibleField `json:"mag_heading"`
	Lat        *float64      `json:"lat"`
	Lon        *float64      `json:"lon"`
	SeenPos    *float64      `json:"seen_pos"`
}

// FlexibleField holds a JSON value that feeders send either as a number or a string
// (alt_baro is "ground" for aircraft on the ground)
type FlexibleField struct {
	value any
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		f.value = nil
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value = str
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// Float64 returns the numeric value and whether there was one
func (f FlexibleField) Float64() (float64, bool) {
	switch v := f.value.(type) {
	case float64:
		return v, true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// IsGround reports whether the field carries the "ground" marker
func (f FlexibleField) IsGround() bool {
	s, ok := f.value.(string)
	return ok && strings.EqualFold(s, "ground")
}

// DecodeSnapshots reads a stream of concatenated or newline-separated snapshots
func DecodeSnapshots(r io.Reader, fn func(Snapshot) error) error {
	dec := json.NewDecoder(r)
	for n := 0; ; n++ {
		var s Snapshot
		if err := dec.Decode(&s); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to decode snapshot %d: %w", n, err)
		}
		if err := fn(s); err != nil {
			return err
		}
	}
}

// TrackBuilder accumulates positions from snapshots and splits them into flights
type TrackBuilder struct {
	maxGap      time.Duration
	minAltitude float64

	positions map[string][]trajectory.Point
	callsigns map[string]string
}

// NewTrackBuilder creates a builder. A silence longer than maxGap starts a new flight for
// the same airframe; positions below minAltitude are ignored.
func NewTrackBuilder(maxGap time.Duration, minAltitude float64) *TrackBuilder {
	return &TrackBuilder{
		maxGap:      maxGap,
		minAltitude: minAltitude,
		positions:   map[string][]trajectory.Point{},
		callsigns:   map[string]string{},
	}
}

// Add records the airborne positions of one snapshot. A position is dated at now minus
// its seen_pos age.
func (b *TrackBuilder) Add(s Snapshot) int {
	now := s.Now
	added := 0
	for _, t := range s.Aircraft {
		hex := strings.ToLower(strings.TrimSpace(t.Hex))
		if hex == "" || t.Lat == nil || t.Lon == nil || t.AltBaro.IsGround() {
			continue
		}
		alt, ok := t.AltBaro.Float64()
		if !ok || alt < b.minAltitude {
			continue
		}

		at := now
		if t.SeenPos != nil {
			at -= *t.SeenPos
		}
		whole, frac := math.Modf(at)

		p := trajectory.Point{
			Timestamp: time.Unix(int64(whole), int64(frac*1e9)).UTC(),
			Latlong:   geo.Latlong{Lat: *t.Lat, Long: *t.Lon},
			Altitude:  alt,
		}
		p.GroundSpeed, _ = t.GS.Float64()
		p.Track, p.HasTrack = t.Track.Float64()
		p.MagHeading, p.HasMagHeading = t.MagHeading.Float64()

		b.positions[hex] = append(b.positions[hex], p)
		if cs := strings.TrimSpace(t.Flight); cs != "" {
			b.callsigns[hex] = cs
		}
		added++
	}
	return added
}

// Flights returns the accumulated flights sorted by identifier. Each airframe's positions
// are ordered, deduplicated on timestamp and cut wherever the gap exceeds maxGap. The
// identifier is the callsign (or hex) followed by the unix start second.
func (b *TrackBuilder) Flights() ([]*trajectory.Flight, error) {
	ret := []*trajectory.Flight{}
	for hex, pts := range b.positions {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })

		var run []trajectory.Point
		flush := func() error {
			if len(run) == 0 {
				return nil
			}
			f, err := b.flight(hex, run)
			if err != nil {
				return err
			}
			ret = append(ret, f)
			run = nil
			return nil
		}

		for _, p := range pts {
			if n := len(run); n > 0 {
				last := run[n-1].Timestamp
				if p.Timestamp.Equal(last) {
					continue
				}
				if p.Timestamp.Sub(last) > b.maxGap {
					if err := flush(); err != nil {
						return nil, err
					}
				}
			}
			run = append(run, p)
		}
		if err := flush(); err != nil {
			return nil, err
		}
	}

	sort.Slice(ret, func(i, j int) bool { return ret[i].ID() < ret[j].ID() })
	return ret, nil
}

func (b *TrackBuilder) flight(hex string, pts []trajectory.Point) (*trajectory.Flight, error) {
	callsign := b.callsigns[hex]
	prefix := callsign
	if prefix == "" {
		prefix = hex
	}
	id := fmt.Sprintf("%s_%d", prefix, pts[0].Timestamp.Unix())

	f, err := trajectory.NewFlight(id, pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build flight for %s: %w", hex, err)
	}
	return f.WithIdentity(callsign, hex), nil
}
