package timetable

import (
	"testing"
)

type fakeLocatorEntry struct {
	pattern *TripPattern
	times   *TripTimes
}

type fakeLocator map[string]fakeLocatorEntry

func (f fakeLocator) LocateScheduledTripTimes(feedID, tripID string) (*TripPattern, *TripTimes, bool) {
	e, ok := f[tripID]
	if !ok {
		return nil, nil, false
	}
	return e.pattern, e.times, true
}

type fakePatternFactory struct {
	calls int
}

func (f *fakePatternFactory) NewPattern(routeID string, stopIDs []string, pickups, dropoffs []BoardingRule) *TripPattern {
	f.calls++
	dedup := NewDeduplicator()
	sp := NewStopPattern(stopIDs, pickups, dropoffs, dedup)
	return NewTripPattern("synth-"+routeID, routeID, sp)
}

func newApplierFixture(t *testing.T) (*UpdateApplier, fakeLocator, *SnapshotContainer) {
	t.Helper()
	pattern := testPattern(t, "p1")
	tt, _ := pattern.Scheduled.TripTimesForTrip("t1")
	locator := fakeLocator{
		"t1": {pattern: pattern, times: tt},
	}
	container := NewSnapshotContainer()
	applier := NewUpdateApplier(container, locator, nil, nil)
	return applier, locator, container
}

func TestUpdateApplier_DelayUpdateCommits(t *testing.T) {
	applier, locator, container := newApplierFixture(t)
	entry := locator["t1"]
	delay := 120

	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind: RecordTripDelay,
		Trip: TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: ServiceDate{Year: 2026, Month: 8, Day: 1}},
		StopDelays: []StopDelay{
			{StopSequence: 1, ArrivalDelay: &delay, DepartureDelay: &delay},
			{StopSequence: 2, ArrivalDelay: &delay, DepartureDelay: &delay},
		},
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Records) != 1 || !result.Records[0].Success {
		t.Fatalf("Apply() result = %+v, want one successful record", result.Records)
	}

	snap := container.Current()
	table := snap.Resolve(entry.pattern, ServiceDate{Year: 2026, Month: 8, Day: 1})
	got, ok := table.TripTimesForTrip("t1")
	if !ok || got.ArrivalDelay(0) != 120 {
		t.Errorf("committed snapshot did not reflect the applied delay")
	}
}

func TestUpdateApplier_UnknownTripRejected(t *testing.T) {
	applier, _, _ := newApplierFixture(t)
	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind: RecordTripCancelled,
		Trip: TripSelector{FeedID: "feed-1", TripID: "ghost", ServiceDate: ServiceDate{Year: 2026, Month: 8, Day: 1}},
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Records[0].Success {
		t.Fatalf("Apply() succeeded for an unknown trip")
	}
	if result.Records[0].FailureReason != FailureUnknownTrip {
		t.Errorf("FailureReason = %v, want FailureUnknownTrip", result.Records[0].FailureReason)
	}
}

func TestUpdateApplier_CancelledTrip(t *testing.T) {
	applier, locator, container := newApplierFixture(t)
	entry := locator["t1"]
	date := ServiceDate{Year: 2026, Month: 8, Day: 1}

	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind: RecordTripCancelled,
		Trip: TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: date},
	})

	result, err := applier.Apply(batch)
	if err != nil || !result.Records[0].Success {
		t.Fatalf("Apply() failed to cancel trip: err=%v result=%+v", err, result)
	}

	table := container.Current().Resolve(entry.pattern, date)
	got, _ := table.TripTimesForTrip("t1")
	if !got.IsCanceled() {
		t.Errorf("committed TripTimes is not cancelled")
	}
}

func TestUpdateApplier_StopSkippedUnknownSequenceRejected(t *testing.T) {
	applier, _, _ := newApplierFixture(t)
	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind:         RecordStopSkipped,
		Trip:         TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: ServiceDate{Year: 2026, Month: 8, Day: 1}},
		StopSequence: 999,
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Records[0].Success {
		t.Fatalf("Apply() succeeded for an unknown stop sequence")
	}
	if result.Records[0].FailureReason != FailureUnknownStopSequence {
		t.Errorf("FailureReason = %v, want FailureUnknownStopSequence", result.Records[0].FailureReason)
	}
}

func TestUpdateApplier_InconsistentDelayRejectedWithoutCommitEffect(t *testing.T) {
	applier, locator, container := newApplierFixture(t)
	entry := locator["t1"]
	date := ServiceDate{Year: 2026, Month: 8, Day: 1}
	badDelay := -1000

	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind: RecordTripDelay,
		Trip: TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: date},
		StopDelays: []StopDelay{
			{StopSequence: 2, ArrivalDelay: &badDelay},
		},
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Records[0].Success {
		t.Fatalf("Apply() accepted an update that produces non-increasing times")
	}
	if result.Records[0].FailureReason != FailureInconsistentUpdate {
		t.Errorf("FailureReason = %v, want FailureInconsistentUpdate", result.Records[0].FailureReason)
	}

	table := container.Current().Resolve(entry.pattern, date)
	if table != entry.pattern.Scheduled {
		t.Errorf("a rejected record's overlay leaked into the committed snapshot")
	}
}

func TestUpdateApplier_AddedTripWithoutFactoryRejected(t *testing.T) {
	applier, _, _ := newApplierFixture(t)
	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind:       RecordTripAdded,
		Trip:       TripSelector{FeedID: "feed-1", TripID: "extra-1", ServiceDate: ServiceDate{Year: 2026, Month: 8, Day: 1}},
		RouteID:    "r1",
		ServiceCode: 1,
		StopTimes: []StopTime{
			{StopID: "s1", GTFSStopSequence: 1, ArrivalTime: 500, DepartureTime: 500},
			{StopID: "s2", GTFSStopSequence: 2, ArrivalTime: 600, DepartureTime: 600},
		},
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Records[0].Success {
		t.Fatalf("Apply() added a trip without a configured PatternFactory")
	}
	if result.Records[0].FailureReason != FailurePatternStructureRequired {
		t.Errorf("FailureReason = %v, want FailurePatternStructureRequired", result.Records[0].FailureReason)
	}
}

func TestUpdateApplier_AddedTripWithFactorySynthesizesPattern(t *testing.T) {
	pattern := testPattern(t, "p1")
	tt, _ := pattern.Scheduled.TripTimesForTrip("t1")
	locator := fakeLocator{"t1": {pattern: pattern, times: tt}}
	container := NewSnapshotContainer()
	factory := &fakePatternFactory{}
	applier := NewUpdateApplier(container, locator, factory, nil)

	date := ServiceDate{Year: 2026, Month: 8, Day: 1}
	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind:        RecordTripAdded,
		Trip:        TripSelector{FeedID: "feed-1", TripID: "extra-1", ServiceDate: date},
		RouteID:     "r9",
		ServiceCode: 1,
		StopTimes: []StopTime{
			{StopID: "s1", GTFSStopSequence: 1, ArrivalTime: 500, DepartureTime: 500},
			{StopID: "s2", GTFSStopSequence: 2, ArrivalTime: 600, DepartureTime: 600},
		},
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !result.Records[0].Success {
		t.Fatalf("Apply() rejected an added trip with a PatternFactory configured: %v", result.Records[0].Err)
	}
	if factory.calls != 1 {
		t.Errorf("PatternFactory.NewPattern called %d times, want 1", factory.calls)
	}

	signature := patternSignature("r9", []string{"s1", "s2"})
	synthesized, ok := container.Current().FindAddedPattern(signature)
	if !ok {
		t.Fatalf("synthesized pattern was not recorded under its signature")
	}
	table := container.Current().Resolve(synthesized, date)
	added, ok := table.TripTimesForTrip("extra-1")
	if !ok || added.RealTimeState() != Added {
		t.Errorf("added trip was not committed with RealTimeState Added")
	}
}

func TestUpdateApplier_PredictionInaccurateTargetsOnlyItsStop(t *testing.T) {
	applier, locator, container := newApplierFixture(t)
	entry := locator["t1"]
	date := ServiceDate{Year: 2026, Month: 8, Day: 1}

	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind:         RecordPredictionInaccurate,
		Trip:         TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: date},
		StopSequence: 2,
		Inaccurate:   true,
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !result.Records[0].Success {
		t.Fatalf("Apply() rejected a valid prediction-inaccurate record: %v", result.Records[0].Err)
	}

	table := container.Current().Resolve(entry.pattern, date)
	got, _ := table.TripTimesForTrip("t1")
	if got.IsPredictionInaccurate(0) {
		t.Errorf("prediction-inaccurate record marked stop 0, which it did not target")
	}
	if !got.IsPredictionInaccurate(1) {
		t.Errorf("prediction-inaccurate record did not mark stop 1, its target sequence")
	}
}

func TestUpdateApplier_PredictionInaccurateUnknownSequenceRejected(t *testing.T) {
	applier, _, _ := newApplierFixture(t)
	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind:         RecordPredictionInaccurate,
		Trip:         TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: ServiceDate{Year: 2026, Month: 8, Day: 1}},
		StopSequence: 999,
		Inaccurate:   true,
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Records[0].Success {
		t.Fatalf("Apply() succeeded for an unknown stop sequence")
	}
	if result.Records[0].FailureReason != FailureUnknownStopSequence {
		t.Errorf("FailureReason = %v, want FailureUnknownStopSequence", result.Records[0].FailureReason)
	}
}

func TestUpdateApplier_ObservationArrivedSetsTimeAndRecordedFlag(t *testing.T) {
	applier, locator, container := newApplierFixture(t)
	entry := locator["t1"]
	date := ServiceDate{Year: 2026, Month: 8, Day: 1}
	observed := 1095

	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind:            RecordObservationArrived,
		Trip:            TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: date},
		StopSequence:    2,
		ObservedArrival: &observed,
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !result.Records[0].Success {
		t.Fatalf("Apply() rejected a valid observation-arrived record: %v", result.Records[0].Err)
	}

	table := container.Current().Resolve(entry.pattern, date)
	got, _ := table.TripTimesForTrip("t1")
	if got.ArrivalTime(1) != observed {
		t.Errorf("ArrivalTime(1) = %d, want %d", got.ArrivalTime(1), observed)
	}
	if !got.IsRecorded(1) {
		t.Errorf("observation-arrived record did not set the recorded flag")
	}
}

func TestUpdateApplier_TripModifiedReplacesStopPatternAndKeepsHeadsign(t *testing.T) {
	pattern := testPattern(t, "p1")
	tt, _ := pattern.Scheduled.TripTimesForTrip("t1")
	locator := fakeLocator{"t1": {pattern: pattern, times: tt}}
	container := NewSnapshotContainer()
	factory := &fakePatternFactory{}
	applier := NewUpdateApplier(container, locator, factory, nil)
	date := ServiceDate{Year: 2026, Month: 8, Day: 1}

	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind:        RecordTripModified,
		Trip:        TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: date},
		ServiceCode: 1,
		StopTimes: []StopTime{
			{StopID: "s1", GTFSStopSequence: 1, ArrivalTime: 1000, DepartureTime: 1000},
			{StopID: "s3", GTFSStopSequence: 2, ArrivalTime: 1150, DepartureTime: 1150},
		},
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !result.Records[0].Success {
		t.Fatalf("Apply() rejected a modified trip with a PatternFactory configured: %v", result.Records[0].Err)
	}

	signature := patternSignature("r1", []string{"s1", "s3"})
	targetPattern, ok := container.Current().FindAddedPattern(signature)
	if !ok {
		t.Fatalf("modified trip's replacement pattern was not recorded under its signature")
	}
	table := container.Current().Resolve(targetPattern, date)
	got, ok := table.TripTimesForTrip("t1")
	if !ok {
		t.Fatalf("modified trip was not committed under its replacement pattern")
	}
	if got.RealTimeState() != Modified {
		t.Errorf("RealTimeState() = %v, want Modified", got.RealTimeState())
	}
	if got.Headsign(0) != "" {
		t.Errorf("Headsign(0) = %q, want empty: the modified record carried no headsign and the scheduled trip had none", got.Headsign(0))
	}
}

func TestUpdateApplier_TripModifiedWithoutFactoryRejectedWhenPatternChanges(t *testing.T) {
	applier, _, _ := newApplierFixture(t)
	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records, UpdateRecord{
		Kind:        RecordTripModified,
		Trip:        TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: ServiceDate{Year: 2026, Month: 8, Day: 1}},
		ServiceCode: 1,
		StopTimes: []StopTime{
			{StopID: "s1", GTFSStopSequence: 1, ArrivalTime: 1000, DepartureTime: 1000},
			{StopID: "s3", GTFSStopSequence: 2, ArrivalTime: 1150, DepartureTime: 1150},
		},
	})

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Records[0].Success {
		t.Fatalf("Apply() modified a trip's stop pattern without a configured PatternFactory")
	}
	if result.Records[0].FailureReason != FailurePatternStructureRequired {
		t.Errorf("FailureReason = %v, want FailurePatternStructureRequired", result.Records[0].FailureReason)
	}
}

func TestUpdateApplier_BatchCommitsEvenWithRejectedRecords(t *testing.T) {
	applier, locator, container := newApplierFixture(t)
	entry := locator["t1"]
	date := ServiceDate{Year: 2026, Month: 8, Day: 1}
	delay := 30

	batch := NewUpdateBatch("feed-1")
	batch.Records = append(batch.Records,
		UpdateRecord{
			Kind:         RecordStopSkipped,
			Trip:         TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: date},
			StopSequence: 999,
		},
		UpdateRecord{
			Kind: RecordTripDelay,
			Trip: TripSelector{FeedID: "feed-1", TripID: "t1", ServiceDate: date},
			StopDelays: []StopDelay{
				{StopSequence: 1, ArrivalDelay: &delay},
			},
		},
	)

	result, err := applier.Apply(batch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Records[0].Success {
		t.Errorf("first record should have been rejected")
	}
	if !result.Records[1].Success {
		t.Errorf("second record should have succeeded despite the first failing")
	}

	table := container.Current().Resolve(entry.pattern, date)
	got, _ := table.TripTimesForTrip("t1")
	if got.ArrivalDelay(0) != 30 {
		t.Errorf("successful record in a mixed batch was not committed")
	}
}
