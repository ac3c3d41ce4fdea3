package deviation

import "time"

// Separation tells how the actual separation fields of a record were filled
type Separation string

const (
	SeparationMeasured    Separation = "measured"     // a neighbour overlapped the window
	SeparationNoNeighbour Separation = "no_neighbour" // nobody else in the band
	SeparationNoOverlap   Separation = "no_overlap"   // neighbours exist but never share a timestamp with the flight
)

// Record is the outcome of one qualified hole. Nullable fields are nil when unknown; a
// record is never modified once emitted.
type Record struct {
	FlightID string    `json:"flight_id"`
	Start    time.Time `json:"start"`
	Stop     time.Time `json:"stop"`
	Duration float64   `json:"duration"` // seconds

	NeighbourID *string    `json:"neighbour_id"`
	MinFDist    *float64   `json:"min_f_dist"` // NM
	MinFTime    *time.Time `json:"min_f_time"`
	MinFPDist   *float64   `json:"min_fp_dist"` // NM
	MinFPTime   *time.Time `json:"min_fp_time"`
	Difference  *float64   `json:"difference"` // MinFDist - MinFPDist

	Horizon    time.Time  `json:"horizon"`
	Separation Separation `json:"separation"`
	Predicted  bool       `json:"predicted"`
}

func newRecord(h Hole, w *Window) Record {
	return Record{
		FlightID:   h.FlightID,
		Start:      h.Start,
		Stop:       h.Stop,
		Duration:   h.Duration().Seconds(),
		Horizon:    w.Horizon,
		Separation: SeparationNoNeighbour,
	}
}
