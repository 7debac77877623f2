package timetable

import "errors"

// Error kinds returned by TripTimes construction, UpdateApplier record
// processing, and TimetableSnapshot mutation. Callers should compare with
// errors.Is rather than matching on message text.
var (
	// ErrMalformedSchedule is returned when stop times supplied to NewTripTimes
	// are not monotonically increasing. The TripTimes is not constructed.
	ErrMalformedSchedule = errors.New("timetable: non-monotonic stop times")

	// ErrUnknownTrip is returned when an update record references a
	// (feedId, tripId, serviceDate) that cannot be located.
	ErrUnknownTrip = errors.New("timetable: unknown trip")

	// ErrUnknownStopSequence is returned when an update record references a
	// GTFS stop sequence number that is not present on the target TripTimes.
	ErrUnknownStopSequence = errors.New("timetable: unknown stop sequence")

	// ErrInconsistentUpdate is returned when applying a record would leave a
	// TripTimes with a negative dwell or negative running time. The change
	// is rolled back before this error is returned.
	ErrInconsistentUpdate = errors.New("timetable: update produces non-increasing times")

	// ErrPatternStructureRequired is returned for an added or modified trip
	// that does not fit any existing pattern when the applier has not been
	// configured to synthesize one.
	ErrPatternStructureRequired = errors.New("timetable: no pattern available for trip")

	// ErrSnapshotFrozen is returned when a mutating method is called on a
	// TimetableSnapshot that has already been committed. This indicates a
	// programming error in the caller.
	ErrSnapshotFrozen = errors.New("timetable: snapshot already committed")
)
