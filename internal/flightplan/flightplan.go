package flightplan

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/skypies/geo"
)

// ErrPlanNotFound is returned by Metadata when no plan is filed for a flight
var ErrPlanNotFound = errors.New("flight plan not found")

// Navpoint is a named navigation point (fix, navaid or coordinate)
type Navpoint struct {
	Name string
	geo.Latlong
}

func (n Navpoint) String() string {
	return fmt.Sprintf("%s%s", n.Name, n.Latlong)
}

// FlightPlan is the filed route of one flight, resolved into positioned navpoints
type FlightPlan struct {
	FlightID  string
	Route     string
	Navpoints []Navpoint
}

// Filing links a flight to the route it filed, as found in metadata exports
type Filing struct {
	FlightID string
	Icao24   string
	Route    string
}

// Metadata looks up the filed plan of a flight
type Metadata interface {
	Lookup(ctx context.Context, flightID string) (*FlightPlan, error)
}

// NavDB resolves navpoint names into positions
type NavDB interface {
	Navpoint(name string) (Navpoint, bool)
}

// Names returns the navpoint names in route order
func (fp *FlightPlan) Names() []string {
	ret := make([]string, len(fp.Navpoints))
	for i, n := range fp.Navpoints {
		ret[i] = n.Name
	}
	return ret
}

var (
	// 4620N00105W
	reCoordMinutes = regexp.MustCompile(`^(\d{2})(\d{2})([NS])(\d{3})(\d{2})([EW])$`)
	// 46N001W
	reCoordDegrees = regexp.MustCompile(`^(\d{2})([NS])(\d{3})([EW])$`)
	// N0450F350, M082F370, K0830S1130 ...
	reSpeedLevel = regexp.MustCompile(`^[NKM]\d{3,4}[FASM]\d{3,4}$`)
)

// ParseRoute resolves an ICAO field-15 style route string into a FlightPlan. Speed/level
// groups, DCT, airways and names unknown to navdb are skipped; coordinate tokens are
// decoded directly.
func ParseRoute(flightID, route string, navdb NavDB) (*FlightPlan, error) {
	fp := &FlightPlan{FlightID: flightID, Route: route}

	for _, tok := range RouteTokens(route) {
		var nav Navpoint
		if ll, ok := parseCoordinate(tok); ok {
			nav = Navpoint{Name: tok, Latlong: ll}
		} else if navdb != nil {
			found, ok := navdb.Navpoint(tok)
			if !ok {
				continue
			}
			nav = found
		} else {
			continue
		}

		if n := len(fp.Navpoints); n > 0 && fp.Navpoints[n-1].Name == nav.Name {
			continue
		}
		fp.Navpoints = append(fp.Navpoints, nav)
	}

	if len(fp.Navpoints) == 0 {
		return nil, fmt.Errorf("route for %s resolves to no navpoints: %w", flightID, ErrPlanNotFound)
	}
	return fp, nil
}

// RouteTokens returns the upper-cased tokens of a route that may name a navpoint, in order
func RouteTokens(route string) []string {
	ret := []string{}
	for _, tok := range strings.Fields(strings.ToUpper(route)) {
		if i := strings.IndexByte(tok, '/'); i >= 0 {
			tok = tok[:i]
		}
		if tok == "" || tok == "DCT" || reSpeedLevel.MatchString(tok) {
			continue
		}
		ret = append(ret, tok)
	}
	return ret
}

func parseCoordinate(tok string) (geo.Latlong, bool) {
	if m := reCoordMinutes.FindStringSubmatch(tok); m != nil {
		lat := atof(m[1]) + atof(m[2])/60
		lon := atof(m[4]) + atof(m[5])/60
		return signed(lat, lon, m[3], m[6])
	}
	if m := reCoordDegrees.FindStringSubmatch(tok); m != nil {
		return signed(atof(m[1]), atof(m[3]), m[2], m[4])
	}
	return geo.Latlong{}, false
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func signed(lat, lon float64, ns, ew string) (geo.Latlong, bool) {
	if ns == "S" {
		lat = -lat
	}
	if ew == "W" {
		lon = -lon
	}
	if lat > 90 || lon > 180 || lat < -90 || lon < -180 {
		return geo.Latlong{}, false
	}
	return geo.Latlong{Lat: lat, Long: lon}, true
}

// MapNavDB is an in-memory NavDB
type MapNavDB map[string]Navpoint

func (m MapNavDB) Navpoint(name string) (Navpoint, bool) {
	n, ok := m[strings.ToUpper(name)]
	return n, ok
}

// MapMetadata is an in-memory Metadata store, safe for concurrent use
type MapMetadata struct {
	mu    sync.RWMutex
	plans map[string]*FlightPlan
}

func NewMapMetadata(plans ...*FlightPlan) *MapMetadata {
	m := &MapMetadata{plans: map[string]*FlightPlan{}}
	for _, fp := range plans {
		m.Put(fp)
	}
	return m
}

// Put stores a plan; a later plan for the same flight replaces the earlier one
func (m *MapMetadata) Put(fp *FlightPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[fp.FlightID] = fp
}

func (m *MapMetadata) Lookup(_ context.Context, flightID string) (*FlightPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fp, ok := m.plans[flightID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", flightID, ErrPlanNotFound)
	}
	return fp, nil
}
