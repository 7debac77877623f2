package scheduleload

import (
	"github.com/google/uuid"

	"github.com/otptransit/timetablecore/business/data/timetable"
)

// SynthesizedPatternFactory implements timetable.PatternFactory by minting a
// fresh, unpersisted TripPattern for trips GTFS-RT describes that the static
// schedule graph has never seen: added trips and modified trips whose stop
// sequence diverges from their scheduled pattern. The pattern it returns
// exists only in the in-memory snapshot; nothing writes it back to Postgres.
type SynthesizedPatternFactory struct {
	Dedup *timetable.Deduplicator
}

// NewSynthesizedPatternFactory returns a factory that interns its stop
// patterns against dedup, the same Deduplicator the static graph was loaded
// with, so repeated realtime patterns share backing storage with the
// scheduled ones.
func NewSynthesizedPatternFactory(dedup *timetable.Deduplicator) *SynthesizedPatternFactory {
	return &SynthesizedPatternFactory{Dedup: dedup}
}

// NewPattern implements timetable.PatternFactory.
func (f *SynthesizedPatternFactory) NewPattern(routeID string, stopIDs []string, pickups, dropoffs []timetable.BoardingRule) *timetable.TripPattern {
	stopPattern := timetable.NewStopPattern(stopIDs, pickups, dropoffs, f.Dedup)
	id := "rt-" + uuid.NewString()
	return timetable.NewTripPattern(id, routeID, stopPattern)
}
