package deviation

import (
	"errors"
	"fmt"
	"time"

	"github.com/yegors/flightdev/internal/distance"
	"github.com/yegors/flightdev/internal/trajectory"
)

// ErrGeometry is returned when a qualified hole yields no usable trajectory window
var ErrGeometry = errors.New("degenerate deviation geometry")

// Band is an inclusive altitude range in feet
type Band struct {
	Min float64
	Max float64
}

func (b Band) Contains(alt float64) bool { return alt >= b.Min && alt <= b.Max }

// Window is the part of a deviation that gets scored
type Window struct {
	Start    time.Time          // hole start on the resampled grid
	Horizon  time.Time          // end of the window, inclusive
	Band     Band               // the hole's level widened by the margin
	Interest *trajectory.Flight // the analysed flight over [Start, Horizon]
}

// ResolveHorizon computes the scoring window of a hole. resampled must be the analysed flight
// on the distance.Step grid. The window ends ForwardTime after the hole starts, at the end
// of the flight, or at the first point leaving the altitude band, whichever comes first;
// that point is kept as the last one of Interest.
func ResolveHorizon(resampled *trajectory.Flight, h Hole, p Params) (*Window, error) {
	seg := h.Segment.Resample(distance.Step)
	if seg == nil {
		return nil, fmt.Errorf("%s: empty resampled hole at %s: %w", h.FlightID, h.Start.Format(time.RFC3339), ErrGeometry)
	}

	lo, hi := seg.AltitudeRange()
	w := &Window{
		Start: seg.Start(),
		Band:  Band{Min: lo - p.MarginFL, Max: hi + p.MarginFL},
	}

	w.Horizon = w.Start.Add(p.ForwardTime)
	if resampled.Stop().Before(w.Horizon) {
		w.Horizon = resampled.Stop()
	}

	w.Interest = resampled.Between(w.Start, w.Horizon)
	if w.Interest == nil {
		return nil, fmt.Errorf("%s: no trajectory between %s and %s: %w", h.FlightID,
			w.Start.Format(time.RFC3339), w.Horizon.Format(time.RFC3339), ErrGeometry)
	}

	if i, ok := w.Interest.FirstOutsideAltitude(w.Band.Min, w.Band.Max); ok {
		w.Interest = w.Interest.Head(i)
		if w.Interest == nil {
			return nil, fmt.Errorf("%s: hole starts outside its own band: %w", h.FlightID, ErrGeometry)
		}
		w.Horizon = w.Interest.Stop()
	}

	return w, nil
}
