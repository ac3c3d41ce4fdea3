package physics

import (
	"math"
	"time"

	"github.com/skypies/geo"
	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

const FeetToMeters = 0.3048

// NormalizeHeading folds any angle into [0, 360)
func NormalizeHeading(h float64) float64 {
	return math.Mod(math.Mod(h, 360)+360, 360)
}

// HeadingDifference returns the absolute angle between two headings, in [0, 180]
func HeadingDifference(a, b float64) float64 {
	d := math.Abs(NormalizeHeading(a) - NormalizeHeading(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// MoveNM returns the point reached by travelling distanceNM from p along a great circle with
// the given initial true bearing. geo.Latlong.MoveNM scales the distance the wrong way.
func MoveNM(p geo.Latlong, bearing, distanceNM float64) geo.Latlong {
	return p.MoveKM(bearing, geo.NM2KM(distanceNM))
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * FeetToMeters

	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Outside the model's validity window; treat magnetic as true
		return 0.0
	}

	return mag.D()
}

// MagneticToTrue converts a magnetic heading into a true heading at the given position and time
func MagneticToTrue(magHeading, lat, lon, altFt float64, date time.Time) float64 {
	return NormalizeHeading(magHeading + CalculateMagneticVariation(lat, lon, altFt, date))
}
