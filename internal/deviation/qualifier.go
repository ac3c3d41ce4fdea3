package deviation

import "github.com/yegors/flightdev/internal/trajectory"

// Reason explains why a hole produced no record
type Reason string

const (
	ReasonTooShort        Reason = "too_short"
	ReasonNotLevel        Reason = "not_level"
	ReasonTouchesBoundary Reason = "touches_boundary"
	ReasonNothingToScore  Reason = "nothing_to_score"
	ReasonZeroSeparation  Reason = "zero_separation"
)

// SkippedHole is a hole dropped before or after scoring, kept for auditing
type SkippedHole struct {
	Hole   Hole
	Reason Reason
}

// Qualify reports whether a hole is worth scoring. A hole qualifies when it lasts longer than
// MinHoleDuration, stays within MarginFL of a single level, and lies strictly inside the
// flight. The returned reason is empty for qualified holes.
func Qualify(h Hole, f *trajectory.Flight, p Params) (bool, Reason) {
	if h.Duration() <= p.MinHoleDuration {
		return false, ReasonTooShort
	}
	if h.AltitudeMax-h.AltitudeMin >= p.MarginFL {
		return false, ReasonNotLevel
	}
	if !h.Start.After(f.Start()) || !h.Stop.Before(f.Stop()) {
		return false, ReasonTouchesBoundary
	}
	return true, ""
}
