package trajectory

// Traffic is an ordered, read-only collection of flights
type Traffic struct {
	flights []*Flight
	index   map[string]int
}

// NewTraffic builds a Traffic from the given flights; nil entries are ignored. When two
// flights share an identifier, Get returns the first one.
func NewTraffic(flights ...*Flight) *Traffic {
	t := &Traffic{index: map[string]int{}}
	for _, f := range flights {
		if f == nil {
			continue
		}
		if _, exists := t.index[f.ID()]; !exists {
			t.index[f.ID()] = len(t.flights)
		}
		t.flights = append(t.flights, f)
	}
	return t
}

// Len returns the number of flights
func (t *Traffic) Len() int {
	if t == nil {
		return 0
	}
	return len(t.flights)
}

// Flights returns the flights in insertion order
func (t *Traffic) Flights() []*Flight {
	if t == nil {
		return nil
	}
	ret := make([]*Flight, len(t.flights))
	copy(ret, t.flights)
	return ret
}

// Get looks a flight up by identifier
func (t *Traffic) Get(id string) (*Flight, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.flights[i], true
}

// Without returns a new Traffic excluding every flight with the given identifier
func (t *Traffic) Without(id string) *Traffic {
	kept := []*Flight{}
	for _, f := range t.Flights() {
		if f.ID() != id {
			kept = append(kept, f)
		}
	}
	return NewTraffic(kept...)
}
