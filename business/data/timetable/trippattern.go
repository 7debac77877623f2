package timetable

// StopPattern is the ordered list of stops and their boarding rules shared
// by every trip that uses a TripPattern. Two trips share a StopPattern
// exactly when their stop ids and boarding rules are identical in order.
type StopPattern struct {
	StopIDs  []string
	Pickups  []BoardingRule
	Dropoffs []BoardingRule
}

// NewStopPattern builds a StopPattern from parallel stop time data, interning
// its boarding-rule arrays and stop id strings through dedup so that many
// trips following the same physical route share that storage. The StopIDs
// slice itself is allocated anew on every call.
func NewStopPattern(stopIDs []string, pickups, dropoffs []BoardingRule, dedup *Deduplicator) *StopPattern {
	ids := make([]*string, len(stopIDs))
	for i := range stopIDs {
		s := stopIDs[i]
		ids[i] = &s
	}
	interned := dedup.InternStrings(ids)
	out := make([]string, len(interned))
	for i, p := range interned {
		out[i] = *p
	}
	return &StopPattern{
		StopIDs:  out,
		Pickups:  dedup.InternRules(append([]BoardingRule(nil), pickups...)),
		Dropoffs: dedup.InternRules(append([]BoardingRule(nil), dropoffs...)),
	}
}

// NumberOfStops returns the number of stops in the pattern.
func (s *StopPattern) NumberOfStops() int {
	return len(s.StopIDs)
}

// Equal reports whether two StopPatterns have identical stops and rules.
func (s *StopPattern) Equal(other *StopPattern) bool {
	if other == nil || len(s.StopIDs) != len(other.StopIDs) {
		return false
	}
	for i := range s.StopIDs {
		if s.StopIDs[i] != other.StopIDs[i] ||
			s.Pickups[i] != other.Pickups[i] ||
			s.Dropoffs[i] != other.Dropoffs[i] {
			return false
		}
	}
	return true
}

// TripPattern is the static shape shared by many trips: a StopPattern plus
// the route it belongs to and the Timetable holding its base schedule. A
// TripPattern is built once during graph construction and never mutated at
// runtime; real-time changes live in per-service-date overlays held by a
// TimetableSnapshot, never here.
type TripPattern struct {
	ID          string
	RouteID     string
	StopPattern *StopPattern
	Scheduled   *Timetable
}

// NewTripPattern builds a TripPattern owning an empty scheduled Timetable.
// Callers add the pattern's scheduled trips with Scheduled.Add.
func NewTripPattern(id, routeID string, stopPattern *StopPattern) *TripPattern {
	p := &TripPattern{
		ID:          id,
		RouteID:     routeID,
		StopPattern: stopPattern,
	}
	p.Scheduled = NewTimetable(p)
	return p
}

// NumberOfStops returns the number of stops in the pattern.
func (p *TripPattern) NumberOfStops() int {
	return p.StopPattern.NumberOfStops()
}
