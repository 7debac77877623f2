package timetable

import "testing"

func TestNewStopPattern_Equal(t *testing.T) {
	dedup := NewDeduplicator()
	a := NewStopPattern(
		[]string{"s1", "s2", "s3"},
		[]BoardingRule{Regular, Regular, Regular},
		[]BoardingRule{Regular, Regular, Regular},
		dedup,
	)
	b := NewStopPattern(
		[]string{"s1", "s2", "s3"},
		[]BoardingRule{Regular, Regular, Regular},
		[]BoardingRule{Regular, Regular, Regular},
		dedup,
	)
	c := NewStopPattern(
		[]string{"s1", "s2", "s4"},
		[]BoardingRule{Regular, Regular, Regular},
		[]BoardingRule{Regular, Regular, Regular},
		dedup,
	)

	if !a.Equal(b) {
		t.Errorf("Equal() = false for identical stop patterns")
	}
	if a.Equal(c) {
		t.Errorf("Equal() = true for differing stop patterns")
	}
	if a.Equal(nil) {
		t.Errorf("Equal(nil) = true")
	}
	if got := a.NumberOfStops(); got != 3 {
		t.Errorf("NumberOfStops() = %d, want 3", got)
	}
}

func TestNewTripPattern_HasEmptyScheduledTimetable(t *testing.T) {
	dedup := NewDeduplicator()
	sp := NewStopPattern([]string{"s1", "s2"}, []BoardingRule{Regular, Regular}, []BoardingRule{Regular, Regular}, dedup)
	p := NewTripPattern("pattern-1", "route-1", sp)

	if p.Scheduled == nil {
		t.Fatalf("NewTripPattern() did not initialize Scheduled")
	}
	if got := p.Scheduled.Len(); got != 0 {
		t.Errorf("Scheduled.Len() = %d, want 0", got)
	}
	if got := p.NumberOfStops(); got != 2 {
		t.Errorf("NumberOfStops() = %d, want 2", got)
	}
	if p.Scheduled.Pattern() != p {
		t.Errorf("Scheduled.Pattern() did not round-trip to the owning TripPattern")
	}
}
