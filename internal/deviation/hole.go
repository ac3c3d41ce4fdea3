package deviation

import (
	"fmt"
	"time"

	"github.com/yegors/flightdev/internal/alignment"
	"github.com/yegors/flightdev/internal/flightplan"
	"github.com/yegors/flightdev/internal/trajectory"
)

// Hole is a stretch of a flight during which it was not following its plan
type Hole struct {
	FlightID    string
	Start       time.Time
	Stop        time.Time
	AltitudeMin float64
	AltitudeMax float64

	Segment *trajectory.Flight // the flight's own points over [Start, Stop]
}

func (h Hole) Duration() time.Duration { return h.Stop.Sub(h.Start) }

func (h Hole) String() string {
	return fmt.Sprintf("hole %s [%s -> %s] %.0f-%.0fft", h.FlightID,
		h.Start.Format(time.RFC3339), h.Stop.Format(time.RFC3339), h.AltitudeMin, h.AltitudeMax)
}

// ExtractHoles returns the parts of the flight outside every aligned interval, in time
// order. Each hole is a maximal run of consecutive points not covered by an interval.
func ExtractHoles(f *trajectory.Flight, fp *flightplan.FlightPlan, aligner alignment.Aligner, anglePrecision, minDistanceNM float64) ([]Hole, error) {
	intervals, err := aligner.Align(f, fp, anglePrecision, minDistanceNM)
	if err != nil {
		return nil, fmt.Errorf("failed to align %s: %w", f.ID(), err)
	}

	holes := []Hole{}
	first, k := -1, 0
	flush := func(last int) {
		if first < 0 {
			return
		}
		seg := f.Between(f.At(first).Timestamp, f.At(last).Timestamp)
		lo, hi := seg.AltitudeRange()
		holes = append(holes, Hole{
			FlightID:    f.ID(),
			Start:       seg.Start(),
			Stop:        seg.Stop(),
			AltitudeMin: lo,
			AltitudeMax: hi,
			Segment:     seg,
		})
		first = -1
	}

	for i := 0; i < f.Len(); i++ {
		t := f.At(i).Timestamp
		// Intervals are sorted and disjoint; skip the ones already behind us
		for k < len(intervals) && intervals[k].Stop.Before(t) {
			k++
		}
		covered := k < len(intervals) && intervals[k].Contains(t)
		switch {
		case !covered && first < 0:
			first = i
		case covered:
			flush(i - 1)
		}
	}
	flush(f.Len() - 1)

	return holes, nil
}
