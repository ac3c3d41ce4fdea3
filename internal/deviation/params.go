package deviation

import "time"

// Params tunes hole detection and scoring
type Params struct {
	MarginFL             float64       // Altitude margin in feet around the hole's level
	AnglePrecision       float64       // Degrees, passed to the aligner
	MinDistanceNM        float64       // Navpoints closer than this are ignored for alignment
	ForwardTime          time.Duration // Analysis window after the hole starts; also the prediction length
	MinHoleDuration      time.Duration // A hole must last strictly longer than this
	MinNeighbourDuration time.Duration // Neighbour segments must last strictly longer than this
}

// DefaultParams returns the reference parameter set
func DefaultParams() Params {
	return Params{
		MarginFL:             50,
		AnglePrecision:       2,
		MinDistanceNM:        200,
		ForwardTime:          20 * time.Minute,
		MinHoleDuration:      120 * time.Second,
		MinNeighbourDuration: 2 * time.Second,
	}
}

// ForwardMinutes is ForwardTime rounded down to whole minutes, as the predictor expects
func (p Params) ForwardMinutes() int {
	return int(p.ForwardTime / time.Minute)
}
