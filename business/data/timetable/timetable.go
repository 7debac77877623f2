package timetable

import "sort"

// Timetable is an ordered collection of TripTimes belonging to one
// TripPattern. It is kept sorted by SortIndex ascending, the order the
// router relies on for earliest-departure search, under the assumption
// that no trip on the pattern overtakes another — feeds that violate that
// assumption are expected to be rejected upstream, not here.
//
// A Timetable with no associated ServiceDate (TripPattern.Scheduled) holds
// the base schedule; a Timetable returned by TimetableSnapshot.Resolve for
// a specific (pattern, date) holds that day's real-time overlay.
type Timetable struct {
	pattern   *TripPattern
	tripTimes []*TripTimes
	sorted    bool
}

// NewTimetable returns an empty Timetable for pattern.
func NewTimetable(pattern *TripPattern) *Timetable {
	return &Timetable{pattern: pattern}
}

// Pattern returns the owning TripPattern.
func (tt *Timetable) Pattern() *TripPattern {
	return tt.pattern
}

// Len returns the number of TripTimes in the table.
func (tt *Timetable) Len() int {
	return len(tt.tripTimes)
}

// Get returns the TripTimes at sorted position i.
func (tt *Timetable) Get(i int) *TripTimes {
	tt.ensureSorted()
	return tt.tripTimes[i]
}

// All returns the TripTimes in sorted order. The returned slice must not be
// mutated by the caller.
func (tt *Timetable) All() []*TripTimes {
	tt.ensureSorted()
	return tt.tripTimes
}

// Add appends a TripTimes to the table, deferring the sort until the table
// is next read.
func (tt *Timetable) Add(t *TripTimes) {
	tt.tripTimes = append(tt.tripTimes, t)
	tt.sorted = false
}

// TripTimesForTrip returns the TripTimes for tripID, or false if the trip is
// not present in this table.
func (tt *Timetable) TripTimesForTrip(tripID string) (*TripTimes, bool) {
	for _, t := range tt.tripTimes {
		if t.trip.ID == tripID {
			return t, true
		}
	}
	return nil, false
}

// Replace substitutes the TripTimes for the same trip id as replacement,
// appending it if no existing entry matches. It re-sorts the table lazily
// and returns a new Timetable, leaving tt untouched, so that callers doing
// copy-on-write at the pattern-day granularity never mutate a table another
// reader might be holding.
func (tt *Timetable) Replace(replacement *TripTimes) *Timetable {
	next := &Timetable{pattern: tt.pattern}
	next.tripTimes = make([]*TripTimes, 0, len(tt.tripTimes)+1)
	replaced := false
	for _, t := range tt.tripTimes {
		if t.trip.ID == replacement.trip.ID {
			next.tripTimes = append(next.tripTimes, replacement)
			replaced = true
		} else {
			next.tripTimes = append(next.tripTimes, t)
		}
	}
	if !replaced {
		next.tripTimes = append(next.tripTimes, replacement)
	}
	return next
}

// Clone returns a shallow copy of tt: the same TripTimes pointers in a new
// backing slice, so appending to or replacing entries in the clone cannot
// affect tt.
func (tt *Timetable) Clone() *Timetable {
	next := &Timetable{pattern: tt.pattern, sorted: tt.sorted}
	next.tripTimes = append([]*TripTimes(nil), tt.tripTimes...)
	return next
}

func (tt *Timetable) ensureSorted() {
	if tt.sorted {
		return
	}
	sort.SliceStable(tt.tripTimes, func(i, j int) bool {
		return tt.tripTimes[i].SortIndex() < tt.tripTimes[j].SortIndex()
	})
	tt.sorted = true
}
