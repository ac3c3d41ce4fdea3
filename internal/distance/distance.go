package distance

import (
	"errors"
	"time"

	"github.com/yegors/flightdev/internal/trajectory"
)

// ErrNoOverlap means the two trajectories share no timestamp. It is distinct from a
// computed lateral distance of zero.
var ErrNoOverlap = errors.New("trajectories do not overlap in time")

// Step is the cadence both trajectories are resampled on before pairing
const Step = time.Second

// Sample is the lateral separation at one instant
type Sample struct {
	Timestamp time.Time
	LateralNM float64
}

// Series is a time-ordered list of samples
type Series []Sample

// Min returns the smallest lateral distance and the first timestamp at which it occurs
func (s Series) Min() (float64, time.Time) {
	best := 0
	for i := range s {
		if s[i].LateralNM < s[best].LateralNM {
			best = i
		}
	}
	return s[best].LateralNM, s[best].Timestamp
}

// Lateral pairs the two flights by timestamp on a Step grid and returns the horizontal
// great-circle distance between them, in nautical miles. Each flight is resampled one
// contiguous run at a time so gaps longer than Step stay gaps.
func Lateral(a, b *trajectory.Flight) (Series, error) {
	if a == nil || b == nil {
		return nil, ErrNoOverlap
	}
	if a.Stop().Before(b.Start()) || b.Stop().Before(a.Start()) {
		return nil, ErrNoOverlap
	}

	ra, rb := onGrid(a), onGrid(b)

	series := Series{}
	i, j := 0, 0
	for i < len(ra) && j < len(rb) {
		pa, pb := ra[i], rb[j]
		switch {
		case pa.Timestamp.Before(pb.Timestamp):
			i++
		case pb.Timestamp.Before(pa.Timestamp):
			j++
		default:
			series = append(series, Sample{Timestamp: pa.Timestamp, LateralNM: pa.DistNM(pb.Latlong)})
			i++
			j++
		}
	}

	if len(series) == 0 {
		return nil, ErrNoOverlap
	}
	return series, nil
}

// onGrid resamples every contiguous run of f on the Step grid
func onGrid(f *trajectory.Flight) []trajectory.Point {
	var pts []trajectory.Point
	for _, run := range f.Split(Step) {
		r := run.Resample(Step)
		if r == nil {
			continue
		}
		for i := 0; i < r.Len(); i++ {
			pts = append(pts, r.At(i))
		}
	}
	return pts
}
