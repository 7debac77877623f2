package timetable

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

// RecordKind identifies which real-time message shape an UpdateRecord
// carries, matching the message table in the design: delay, cancellation,
// skipped stop, added trip, modified trip, prediction quality, and an
// observed (rather than predicted) stop time.
type RecordKind int8

const (
	RecordTripDelay RecordKind = iota
	RecordTripCancelled
	RecordStopSkipped
	RecordTripAdded
	RecordTripModified
	RecordPredictionInaccurate
	RecordObservationArrived
)

// TripSelector identifies the target trip of an UpdateRecord. Stops within
// it are referenced by GTFS stop sequence, never by array index, because
// sequence numbers may be non-contiguous and the mapping from sequence to
// index is private to each TripTimes.
type TripSelector struct {
	FeedID      string
	TripID      string
	ServiceDate ServiceDate
}

// StopDelay carries a delay update for one stop, referenced by GTFS stop
// sequence.
type StopDelay struct {
	StopSequence   int
	ArrivalDelay   *int
	DepartureDelay *int
}

// UpdateRecord is one real-time message to apply to the timetable.
type UpdateRecord struct {
	Kind   RecordKind
	Trip   TripSelector
	Vehicle string

	// RecordTripDelay
	StopDelays []StopDelay

	// RecordStopSkipped / RecordPredictionInaccurate / RecordObservationArrived
	StopSequence int

	// RecordTripAdded / RecordTripModified. A modified trip that is found in
	// the schedule keeps its scheduled route and service code; RouteID and
	// ServiceCode are then not used.
	RouteID    string
	Headsign   string
	ServiceCode int
	StopTimes  []StopTime

	// RecordPredictionInaccurate / RecordObservationArrived
	Inaccurate        bool
	ObservedArrival   *int
	ObservedDeparture *int
}

// UpdateBatch is a sequence of real-time records from one feed delivery,
// applied together as one commit.
type UpdateBatch struct {
	ID      string
	FeedID  string
	Records []UpdateRecord
}

// NewUpdateBatch returns an UpdateBatch with a fresh correlation id, used to
// tie a later UpdateResult, and any log lines produced while applying it,
// back to one feed delivery.
func NewUpdateBatch(feedID string) *UpdateBatch {
	return &UpdateBatch{ID: uuid.NewString(), FeedID: feedID}
}

// FailureReason categorizes why a record was rejected, mirroring the error
// kinds a caller can also obtain with errors.Is against the record's Err.
type FailureReason int8

const (
	FailureNone FailureReason = iota
	FailureUnknownTrip
	FailureUnknownStopSequence
	FailureInconsistentUpdate
	FailurePatternStructureRequired
	FailureMalformedSchedule
)

// RecordResult is the outcome of applying one UpdateRecord.
type RecordResult struct {
	Index         int
	TripID        string
	Success       bool
	FailureReason FailureReason
	Err           error
}

// UpdateResult is the outcome of applying an UpdateBatch: per-record success
// or failure, never a single pass/fail for the whole batch. A batch-level
// structural failure is reported separately via Apply's error return.
type UpdateResult struct {
	BatchID string
	Records []RecordResult
}

// PatternLocator finds the TripPattern and currently scheduled TripTimes for
// a trip. It is the boundary between this package and whatever owns the
// base graph; the timetable package has no opinion on how a locator is
// built or kept up to date.
type PatternLocator interface {
	LocateScheduledTripTimes(feedID, tripID string) (*TripPattern, *TripTimes, bool)
}

// PatternFactory synthesizes a TripPattern for a trip that does not fit any
// existing pattern, used for RecordTripAdded and RecordTripModified. A nil
// PatternFactory means the UpdateApplier is not configured to synthesize
// patterns, and such records are rejected with ErrPatternStructureRequired.
type PatternFactory interface {
	NewPattern(routeID string, stopIDs []string, pickups, dropoffs []BoardingRule) *TripPattern
}

// UpdateApplier consumes UpdateBatches and commits the resulting TripTimes
// into a SnapshotContainer. It holds no schedule data of its own; Locator
// and Patterns are the only collaborators it needs.
type UpdateApplier struct {
	Container *SnapshotContainer
	Locator   PatternLocator
	Patterns  PatternFactory
	Dedup     *Deduplicator
	Log       *log.Logger
}

// NewUpdateApplier returns an UpdateApplier. patterns and logger may be nil;
// a nil logger disables logging and a nil PatternFactory rejects
// added/modified trips that need a new pattern.
func NewUpdateApplier(container *SnapshotContainer, locator PatternLocator, patterns PatternFactory, logger *log.Logger) *UpdateApplier {
	return &UpdateApplier{
		Container: container,
		Locator:   locator,
		Patterns:  patterns,
		Dedup:     NewDeduplicator(),
		Log:       logger,
	}
}

func (a *UpdateApplier) logf(format string, args ...interface{}) {
	if a.Log != nil {
		a.Log.Printf(format, args...)
	}
}

// Apply applies every record in batch to a freshly staged builder and
// commits it in one atomic publish. Per-record failures are reported in the
// returned UpdateResult and do not prevent the rest of the batch from
// being applied. A non-nil error return means the whole batch was
// discarded — the previous snapshot remains current — because continuing
// would have left an invariant broken; see §7's SnapshotFrozen/structural
// failure policy.
func (a *UpdateApplier) Apply(batch *UpdateBatch) (result *UpdateResult, err error) {
	builder := a.Container.NewBuilder()
	// commitAttempted tracks whether Commit was called at all, not whether it
	// succeeded: Commit releases the writer lock itself whenever builder is
	// the pending snapshot, which it always is while this call holds the
	// lock, so calling Discard after Commit would unlock it a second time.
	commitAttempted := false
	defer func() {
		if r := recover(); r != nil {
			if !commitAttempted {
				a.Container.Discard(builder)
			}
			err = fmt.Errorf("timetable: batch %s discarded after panic: %v", batch.ID, r)
			return
		}
		if !commitAttempted {
			a.Container.Discard(builder)
		}
	}()

	result = &UpdateResult{BatchID: batch.ID}
	for i, record := range batch.Records {
		rr := a.applyRecord(builder, batch.FeedID, record)
		rr.Index = i
		result.Records = append(result.Records, rr)
		if !rr.Success {
			a.logf("timetable: batch %s feed %s trip %s rejected: %v",
				batch.ID, batch.FeedID, record.Trip.TripID, rr.Err)
		}
	}

	commitAttempted = true
	if err := a.Container.Commit(builder); err != nil {
		return result, err
	}
	return result, nil
}

func (a *UpdateApplier) applyRecord(builder *TimetableSnapshot, feedID string, record UpdateRecord) RecordResult {
	fail := func(reason FailureReason, err error) RecordResult {
		return RecordResult{TripID: record.Trip.TripID, Success: false, FailureReason: reason, Err: err}
	}

	switch record.Kind {
	case RecordTripAdded:
		return a.applyAdded(builder, record)
	case RecordTripModified:
		return a.applyModified(builder, feedID, record)
	}

	pattern, scheduled, ok := a.Locator.LocateScheduledTripTimes(feedID, record.Trip.TripID)
	if !ok {
		return fail(FailureUnknownTrip, fmt.Errorf("%w: feed %s trip %s", ErrUnknownTrip, feedID, record.Trip.TripID))
	}
	current := builder.Resolve(pattern, record.Trip.ServiceDate)
	base, ok := current.TripTimesForTrip(record.Trip.TripID)
	if !ok {
		base = scheduled
	}
	clone := base.Copy()

	switch record.Kind {
	case RecordTripDelay:
		for _, d := range record.StopDelays {
			idx, ok := clone.IndexOfGTFSStopSequence(d.StopSequence)
			if !ok {
				return fail(FailureUnknownStopSequence,
					fmt.Errorf("%w: trip %s sequence %d", ErrUnknownStopSequence, record.Trip.TripID, d.StopSequence))
			}
			if d.ArrivalDelay != nil {
				clone.UpdateArrivalDelay(idx, *d.ArrivalDelay)
			}
			if d.DepartureDelay != nil {
				clone.UpdateDepartureDelay(idx, *d.DepartureDelay)
			}
		}
	case RecordTripCancelled:
		clone.Cancel()
	case RecordStopSkipped:
		idx, ok := clone.IndexOfGTFSStopSequence(record.StopSequence)
		if !ok {
			return fail(FailureUnknownStopSequence,
				fmt.Errorf("%w: trip %s sequence %d", ErrUnknownStopSequence, record.Trip.TripID, record.StopSequence))
		}
		clone.CancelStop(idx)
	case RecordPredictionInaccurate:
		idx, ok := clone.IndexOfGTFSStopSequence(record.StopSequence)
		if !ok {
			return fail(FailureUnknownStopSequence,
				fmt.Errorf("%w: trip %s sequence %d", ErrUnknownStopSequence, record.Trip.TripID, record.StopSequence))
		}
		clone.SetPredictionInaccurate(idx, record.Inaccurate)
	case RecordObservationArrived:
		idx, ok := clone.IndexOfGTFSStopSequence(record.StopSequence)
		if !ok {
			return fail(FailureUnknownStopSequence,
				fmt.Errorf("%w: trip %s sequence %d", ErrUnknownStopSequence, record.Trip.TripID, record.StopSequence))
		}
		if record.ObservedArrival != nil {
			clone.UpdateArrivalTime(idx, *record.ObservedArrival)
		}
		if record.ObservedDeparture != nil {
			clone.UpdateDepartureTime(idx, *record.ObservedDeparture)
		}
		clone.SetRecorded(idx, true)
	}

	if !clone.TimesIncreasing() {
		return fail(FailureInconsistentUpdate,
			fmt.Errorf("%w: trip %s", ErrInconsistentUpdate, record.Trip.TripID))
	}

	_ = builder.Update(pattern, record.Trip.ServiceDate, clone)
	return RecordResult{TripID: record.Trip.TripID, Success: true}
}

func (a *UpdateApplier) applyAdded(builder *TimetableSnapshot, record UpdateRecord) RecordResult {
	fail := func(reason FailureReason, err error) RecordResult {
		return RecordResult{TripID: record.Trip.TripID, Success: false, FailureReason: reason, Err: err}
	}
	if a.Patterns == nil {
		return fail(FailurePatternStructureRequired,
			fmt.Errorf("%w: trip %s", ErrPatternStructureRequired, record.Trip.TripID))
	}

	stopIDs := make([]string, len(record.StopTimes))
	pickups := make([]BoardingRule, len(record.StopTimes))
	dropoffs := make([]BoardingRule, len(record.StopTimes))
	for i, st := range record.StopTimes {
		stopIDs[i] = st.StopID
		pickups[i] = st.PickupType
		dropoffs[i] = st.DropoffType
	}
	signature := patternSignature(record.RouteID, stopIDs)

	pattern, ok := builder.FindAddedPattern(signature)
	if !ok {
		pattern = a.Patterns.NewPattern(record.RouteID, stopIDs, pickups, dropoffs)
		_ = builder.AddPattern(signature, pattern)
	}

	trip := &Trip{ID: record.Trip.TripID, RouteID: record.RouteID, Headsign: nonEmptyHeadsign(record.Headsign)}
	tt, err := NewTripTimes(trip, record.ServiceCode, record.StopTimes, a.Dedup)
	if err != nil {
		return fail(FailureMalformedSchedule, err)
	}
	tt.realTimeState = Added

	_ = builder.Update(pattern, record.Trip.ServiceDate, tt)
	return RecordResult{TripID: record.Trip.TripID, Success: true}
}

func (a *UpdateApplier) applyModified(builder *TimetableSnapshot, feedID string, record UpdateRecord) RecordResult {
	fail := func(reason FailureReason, err error) RecordResult {
		return RecordResult{TripID: record.Trip.TripID, Success: false, FailureReason: reason, Err: err}
	}

	pattern, scheduled, ok := a.Locator.LocateScheduledTripTimes(feedID, record.Trip.TripID)
	if !ok {
		if a.Patterns == nil {
			return fail(FailurePatternStructureRequired,
				fmt.Errorf("%w: trip %s", ErrPatternStructureRequired, record.Trip.TripID))
		}
		return a.applyAdded(builder, record)
	}

	stopIDs := make([]string, len(record.StopTimes))
	pickups := make([]BoardingRule, len(record.StopTimes))
	dropoffs := make([]BoardingRule, len(record.StopTimes))
	for i, st := range record.StopTimes {
		stopIDs[i] = st.StopID
		pickups[i] = st.PickupType
		dropoffs[i] = st.DropoffType
	}
	newStopPattern := NewStopPattern(stopIDs, pickups, dropoffs, a.Dedup)

	targetPattern := pattern
	if !newStopPattern.Equal(pattern.StopPattern) {
		if a.Patterns == nil {
			return fail(FailurePatternStructureRequired,
				fmt.Errorf("%w: trip %s", ErrPatternStructureRequired, record.Trip.TripID))
		}
		signature := patternSignature(pattern.RouteID, stopIDs)
		if found, ok := builder.FindAddedPattern(signature); ok {
			targetPattern = found
		} else {
			targetPattern = a.Patterns.NewPattern(pattern.RouteID, stopIDs, pickups, dropoffs)
			_ = builder.AddPattern(signature, targetPattern)
		}
	}

	headsign := nonEmptyHeadsign(record.Headsign)
	if headsign == nil {
		headsign = scheduled.trip.Headsign
	}
	trip := &Trip{ID: record.Trip.TripID, RouteID: pattern.RouteID, Headsign: headsign}
	tt, err := NewTripTimes(trip, scheduled.serviceCode, record.StopTimes, a.Dedup)
	if err != nil {
		return fail(FailureMalformedSchedule, err)
	}
	tt.realTimeState = Modified

	_ = builder.Update(targetPattern, record.Trip.ServiceDate, tt)
	return RecordResult{TripID: record.Trip.TripID, Success: true}
}

// nonEmptyHeadsign converts a wire-level headsign string, where "" means
// absent, to the nil-or-value form Trip.Headsign needs to keep that
// distinction through the rest of the package.
func nonEmptyHeadsign(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func patternSignature(routeID string, stopIDs []string) string {
	sig := routeID + "|"
	for _, id := range stopIDs {
		sig += id + ","
	}
	return sig
}
