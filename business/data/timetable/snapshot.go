package timetable

// patternDayKey identifies one TripPattern's schedule on one service date,
// the granularity at which TimetableSnapshot performs copy-on-write.
type patternDayKey struct {
	patternID string
	date      ServiceDate
}

// TimetableSnapshot is a layered view of the transit schedule: a mapping
// from (pattern, service date) to the real-time Timetable for that day,
// present only where a real-time message has touched it. A snapshot made by
// NewBuilder starts dirty (mutable, not yet published); Commit freezes it,
// after which every mutating method returns ErrSnapshotFrozen.
type TimetableSnapshot struct {
	dirty              bool
	realtimeTimetables map[patternDayKey]*Timetable

	// lastAddedTripPattern records TripPatterns synthesized for ADDED trips,
	// keyed by a signature of their stop ids, so that two added trips on the
	// same snapshot that happen to share a stop sequence share one pattern
	// instead of each minting their own.
	lastAddedTripPattern map[string]*TripPattern
}

// NewTimetableSnapshot returns an empty, already-committed snapshot: the
// starting point for a SnapshotContainer before any real-time message has
// been applied.
func NewTimetableSnapshot() *TimetableSnapshot {
	return &TimetableSnapshot{
		realtimeTimetables:   make(map[patternDayKey]*Timetable),
		lastAddedTripPattern: make(map[string]*TripPattern),
	}
}

// NewBuilder returns a new dirty TimetableSnapshot seeded as a shallow copy
// of s: only pattern-days touched by the caller's subsequent Update calls
// are deep-copied, so the cost of starting a batch is independent of how
// many pattern-days the published snapshot currently overlays.
func (s *TimetableSnapshot) NewBuilder() *TimetableSnapshot {
	b := &TimetableSnapshot{
		dirty:                true,
		realtimeTimetables:   make(map[patternDayKey]*Timetable, len(s.realtimeTimetables)),
		lastAddedTripPattern: make(map[string]*TripPattern, len(s.lastAddedTripPattern)),
	}
	for k, v := range s.realtimeTimetables {
		b.realtimeTimetables[k] = v
	}
	for k, v := range s.lastAddedTripPattern {
		b.lastAddedTripPattern[k] = v
	}
	return b
}

// IsDirty reports whether s is still a mutable builder.
func (s *TimetableSnapshot) IsDirty() bool {
	return s.dirty
}

// Resolve returns the effective Timetable for pattern on date: the overlay
// if real-time data has touched that pattern-day, otherwise the pattern's
// scheduled Timetable. Resolve never blocks and never allocates; it is safe
// to call concurrently from any number of readers once s is frozen.
func (s *TimetableSnapshot) Resolve(pattern *TripPattern, date ServiceDate) *Timetable {
	if overlay, ok := s.realtimeTimetables[patternDayKey{pattern.ID, date}]; ok {
		return overlay
	}
	return pattern.Scheduled
}

// Update replaces newTripTimes in the Timetable for (pattern, date). Each
// call stores a new Timetable built from the current one by Replace, so a
// Timetable a reader may hold is never mutated.
// It returns ErrSnapshotFrozen if s has already been committed.
func (s *TimetableSnapshot) Update(pattern *TripPattern, date ServiceDate, newTripTimes *TripTimes) error {
	if !s.dirty {
		return ErrSnapshotFrozen
	}
	key := patternDayKey{pattern.ID, date}
	base := s.Resolve(pattern, date)
	s.realtimeTimetables[key] = base.Replace(newTripTimes)
	return nil
}

// AddPattern records pattern as a builder-local scheduled Timetable holder
// for an ADDED trip and, if signature has not been seen in this snapshot
// before, remembers pattern under it for reuse by a later ADDED trip with
// the same stops. It returns ErrSnapshotFrozen if s has already been
// committed.
func (s *TimetableSnapshot) AddPattern(signature string, pattern *TripPattern) error {
	if !s.dirty {
		return ErrSnapshotFrozen
	}
	if _, ok := s.lastAddedTripPattern[signature]; !ok {
		s.lastAddedTripPattern[signature] = pattern
	}
	return nil
}

// FindAddedPattern returns a previously synthesized pattern for signature,
// if one was recorded earlier in this snapshot.
func (s *TimetableSnapshot) FindAddedPattern(signature string) (*TripPattern, bool) {
	p, ok := s.lastAddedTripPattern[signature]
	return p, ok
}

// Commit freezes s: dirty is cleared and every subsequent call to Update or
// AddPattern returns ErrSnapshotFrozen. Commit does not itself publish s;
// that is SnapshotContainer's job, so that a structural failure discovered
// after Commit but before publication can still discard the builder
// without exposing it to readers.
func (s *TimetableSnapshot) Commit() {
	s.dirty = false
}

// Stats summarizes the overlay state of a (committed or dirty) snapshot for
// diagnostics. It never reveals trip-level detail.
type Stats struct {
	OverlaidPatternDays int
	SynthesizedPatterns int
}

// Stats returns a snapshot of s's overlay counts.
func (s *TimetableSnapshot) Stats() Stats {
	return Stats{
		OverlaidPatternDays: len(s.realtimeTimetables),
		SynthesizedPatterns: len(s.lastAddedTripPattern),
	}
}

// PruneServiceDatesBefore returns a new builder like s but with every
// pattern-day overlay strictly before cutoff removed. It is the scheduled
// equivalent of expiring stale real-time data once its service date has
// fully elapsed, so memory overhead tracks update churn rather than the
// full history of every date ever touched.
func (s *TimetableSnapshot) PruneServiceDatesBefore(cutoff ServiceDate) *TimetableSnapshot {
	b := s.NewBuilder()
	for k := range b.realtimeTimetables {
		if before(k.date, cutoff) {
			delete(b.realtimeTimetables, k)
		}
	}
	return b
}

func before(a, b ServiceDate) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Month != b.Month {
		return a.Month < b.Month
	}
	return a.Day < b.Day
}
