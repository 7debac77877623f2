package timetable

import (
	"fmt"
	"hash/fnv"
)

// TripTimes is the arrival/departure time vector and per-stop metadata for
// one run of one trip on one service day. Once constructed, a TripTimes
// with no real-time overlay (arrival/departure both nil) is effectively
// immutable and safe to share across every service day the trip runs and
// across every reader; this is the "scheduled" state in RealTimeState.
//
// A TripTimes that has been copied for real-time mutation (see Copy) may be
// mutated freely until it is handed to a TimetableSnapshot's Update, after
// which it must be treated as read-only by every caller that still holds it.
type TripTimes struct {
	trip        *Trip
	serviceCode int

	scheduledArrivalTimes   []int
	scheduledDepartureTimes []int
	timeShift               int

	arrivalTimes   []int
	departureTimes []int

	recordedStops         []bool
	predictionInaccurate  []bool
	pickups               []BoardingRule
	dropoffs              []BoardingRule
	pickupBookingInfo     []*BookingInfo
	dropoffBookingInfo    []*BookingInfo
	headsigns             []*string
	originalStopSequences []int
	timepoints            *BitSet

	realTimeState RealTimeState
}

// NewTripTimes builds a scheduled TripTimes from a Trip and its ordered,
// pre-validated StopTime rows, interning the resulting arrays through dedup
// so that trips sharing a stop pattern and boarding rules share storage.
// It returns ErrMalformedSchedule if the stop times are not monotonically
// non-decreasing (arrival <= departure at each stop, departure <= next
// arrival).
func NewTripTimes(trip *Trip, serviceCode int, stopTimes []StopTime, dedup *Deduplicator) (*TripTimes, error) {
	n := len(stopTimes)
	if n == 0 {
		return nil, fmt.Errorf("%w: trip %s has no stop times", ErrMalformedSchedule, trip.ID)
	}

	timeShift := stopTimes[0].ArrivalTime

	scheduledArrival := make([]int, n)
	scheduledDeparture := make([]int, n)
	pickups := make([]BoardingRule, n)
	dropoffs := make([]BoardingRule, n)
	pickupBooking := make([]*BookingInfo, n)
	dropoffBooking := make([]*BookingInfo, n)
	originalSeq := make([]int, n)
	timepoints := NewBitSet(n)
	headsigns := make([]*string, n)
	anyHeadsignOverride := false
	allHeadsignsNil := true

	for i, st := range stopTimes {
		scheduledArrival[i] = st.ArrivalTime - timeShift
		scheduledDeparture[i] = st.DepartureTime - timeShift
		pickups[i] = st.PickupType
		dropoffs[i] = st.DropoffType
		pickupBooking[i] = st.PickupBookingInfo
		dropoffBooking[i] = st.DropoffBookingInfo
		originalSeq[i] = st.GTFSStopSequence
		if st.Timepoint {
			timepoints.Set(i)
		}
		headsigns[i] = st.Headsign
		if st.Headsign != nil {
			allHeadsignsNil = false
			if trip.Headsign == nil || *st.Headsign != *trip.Headsign {
				anyHeadsignOverride = true
			}
		}

		if scheduledArrival[i] > scheduledDeparture[i] {
			return nil, fmt.Errorf("%w: trip %s stop %d arrival after departure",
				ErrMalformedSchedule, trip.ID, i)
		}
		if i > 0 && scheduledDeparture[i-1] > scheduledArrival[i] {
			return nil, fmt.Errorf("%w: trip %s stop %d departs after next stop arrives",
				ErrMalformedSchedule, trip.ID, i)
		}
	}

	tt := &TripTimes{
		trip:                    trip,
		serviceCode:             serviceCode,
		scheduledArrivalTimes:   dedup.InternInts(scheduledArrival),
		scheduledDepartureTimes: dedup.InternInts(scheduledDeparture),
		timeShift:               timeShift,
		recordedStops:           dedup.InternBools(make([]bool, n)),
		predictionInaccurate:    dedup.InternBools(make([]bool, n)),
		pickups:                 dedup.InternRules(pickups),
		dropoffs:                dedup.InternRules(dropoffs),
		pickupBookingInfo:       Intern(dedup, pickupBooking),
		dropoffBookingInfo:      Intern(dedup, dropoffBooking),
		originalStopSequences:   dedup.InternInts(originalSeq),
		timepoints:              dedup.InternBitSet(timepoints),
		realTimeState:           Scheduled,
	}

	// headsigns rule: omit the per-stop array entirely when every stop-time
	// headsign is either null or equal to the trip's own headsign, so the
	// common case of "use the trip headsign" costs nothing per trip.
	if trip.Headsign != nil && !anyHeadsignOverride {
		tt.headsigns = nil
	} else if allHeadsignsNil {
		tt.headsigns = nil
	} else {
		tt.headsigns = dedup.InternStrings(headsigns)
	}

	return tt, nil
}

// NumberOfStops returns the fixed stop count for this TripTimes.
func (t *TripTimes) NumberOfStops() int {
	return len(t.scheduledArrivalTimes)
}

// Trip returns the owning Trip reference.
func (t *TripTimes) Trip() *Trip {
	return t.trip
}

// ServiceCode returns the calendar identifier that must be active for this
// TripTimes to run on a given ServiceDate.
func (t *TripTimes) ServiceCode() int {
	return t.serviceCode
}

// TimeShift returns the offset added to the scheduled arrays to recover
// actual times. For a trip built directly from StopTime rows this equals
// the original first arrival time; for a frequency-based materialization
// it is the virtual run's own start offset.
func (t *TripTimes) TimeShift() int {
	return t.timeShift
}

// IsScheduled reports whether this TripTimes carries no real-time overlay.
func (t *TripTimes) IsScheduled() bool {
	return t.arrivalTimes == nil && t.departureTimes == nil
}

// IsCanceled reports whether this TripTimes has been cancelled in its
// entirety.
func (t *TripTimes) IsCanceled() bool {
	return t.realTimeState == Canceled
}

// RealTimeState returns the current classification of this TripTimes.
func (t *TripTimes) RealTimeState() RealTimeState {
	return t.realTimeState
}

// ArrivalTime returns the effective arrival time at stop i: the overlay
// value if present, otherwise the scheduled value shifted by TimeShift.
func (t *TripTimes) ArrivalTime(i int) int {
	if t.arrivalTimes != nil {
		return t.arrivalTimes[i]
	}
	return t.scheduledArrivalTimes[i] + t.timeShift
}

// DepartureTime returns the effective departure time at stop i, symmetric
// with ArrivalTime.
func (t *TripTimes) DepartureTime(i int) int {
	if t.departureTimes != nil {
		return t.departureTimes[i]
	}
	return t.scheduledDepartureTimes[i] + t.timeShift
}

// Dwell returns the time spent at stop i.
func (t *TripTimes) Dwell(i int) int {
	return t.DepartureTime(i) - t.ArrivalTime(i)
}

// RunningTime returns the travel time from stop i to stop i+1.
func (t *TripTimes) RunningTime(i int) int {
	return t.ArrivalTime(i+1) - t.DepartureTime(i)
}

// ArrivalDelay returns the difference between the effective and scheduled
// arrival time at stop i.
func (t *TripTimes) ArrivalDelay(i int) int {
	return t.ArrivalTime(i) - (t.scheduledArrivalTimes[i] + t.timeShift)
}

// DepartureDelay returns the difference between the effective and scheduled
// departure time at stop i.
func (t *TripTimes) DepartureDelay(i int) int {
	return t.DepartureTime(i) - (t.scheduledDepartureTimes[i] + t.timeShift)
}

// SortIndex returns the key Timetable uses to keep its trips ordered.
func (t *TripTimes) SortIndex() int {
	return t.ArrivalTime(0)
}

// Pickup returns the boarding rule at stop i.
func (t *TripTimes) Pickup(i int) BoardingRule {
	return t.pickups[i]
}

// Dropoff returns the alighting rule at stop i.
func (t *TripTimes) Dropoff(i int) BoardingRule {
	return t.dropoffs[i]
}

// PickupBookingInfo returns the booking record for boarding at stop i, or
// nil if none was supplied.
func (t *TripTimes) PickupBookingInfo(i int) *BookingInfo {
	return t.pickupBookingInfo[i]
}

// DropoffBookingInfo returns the booking record for alighting at stop i, or
// nil if none was supplied.
func (t *TripTimes) DropoffBookingInfo(i int) *BookingInfo {
	return t.dropoffBookingInfo[i]
}

// IsStopCancelled reports whether stop i has been cancelled, true exactly
// when both its pickup and dropoff rules are Cancelled.
func (t *TripTimes) IsStopCancelled(i int) bool {
	return t.pickups[i] == Cancelled && t.dropoffs[i] == Cancelled
}

// Headsign returns the headsign to display at stop i: the per-stop override
// if one was recorded, otherwise the trip's own headsign.
func (t *TripTimes) Headsign(i int) string {
	if t.headsigns != nil && t.headsigns[i] != nil {
		return *t.headsigns[i]
	}
	if t.trip.Headsign == nil {
		return ""
	}
	return *t.trip.Headsign
}

// OriginalGTFSStopSequence returns the feed-declared stop sequence number
// for stop i, used to match incoming real-time messages that reference
// stops by sequence rather than array index.
func (t *TripTimes) OriginalGTFSStopSequence(i int) int {
	return t.originalStopSequences[i]
}

// IndexOfGTFSStopSequence returns the array index for a feed-declared stop
// sequence number, and false if it is not present on this TripTimes.
func (t *TripTimes) IndexOfGTFSStopSequence(seq int) (int, bool) {
	for i, s := range t.originalStopSequences {
		if s == seq {
			return i, true
		}
	}
	return 0, false
}

// IsTimepoint reports whether stop i is an authoritative timing anchor
// rather than an interpolated stop.
func (t *TripTimes) IsTimepoint(i int) bool {
	return t.timepoints != nil && t.timepoints.Get(i)
}

// IsRecorded reports whether stop i has been observed rather than merely
// predicted.
func (t *TripTimes) IsRecorded(i int) bool {
	return t.recordedStops[i]
}

// IsPredictionInaccurate reports whether the prediction at stop i is known
// to be of low quality. This is observational metadata only: it never
// changes any arrival or departure time.
func (t *TripTimes) IsPredictionInaccurate(i int) bool {
	return t.predictionInaccurate[i]
}

// Copy returns a deep-enough clone of t suitable for staging real-time
// mutations: the scheduled arrays continue to be shared (they are never
// mutated), while any already-present overlay and the observational flag
// slices are cloned so mutating the copy cannot affect t or any other
// TripTimes sharing its deduplicated arrays.
func (t *TripTimes) Copy() *TripTimes {
	c := *t
	if t.arrivalTimes != nil {
		c.arrivalTimes = append([]int(nil), t.arrivalTimes...)
		c.departureTimes = append([]int(nil), t.departureTimes...)
	}
	c.recordedStops = append([]bool(nil), t.recordedStops...)
	c.predictionInaccurate = append([]bool(nil), t.predictionInaccurate...)
	c.pickups = append([]BoardingRule(nil), t.pickups...)
	c.dropoffs = append([]BoardingRule(nil), t.dropoffs...)
	return &c
}

// ensureOverlay lazily allocates the real-time overlay arrays, seeding them
// from the scheduled arrays shifted by TimeShift, and marks this TripTimes
// Updated if it was previously Scheduled.
func (t *TripTimes) ensureOverlay() {
	if t.arrivalTimes != nil {
		return
	}
	n := t.NumberOfStops()
	t.arrivalTimes = make([]int, n)
	t.departureTimes = make([]int, n)
	for i := 0; i < n; i++ {
		t.arrivalTimes[i] = t.scheduledArrivalTimes[i] + t.timeShift
		t.departureTimes[i] = t.scheduledDepartureTimes[i] + t.timeShift
	}
	if t.realTimeState == Scheduled {
		t.realTimeState = Updated
	}
}

// UpdateArrivalTime sets an absolute arrival time at stop i, allocating the
// overlay if necessary.
func (t *TripTimes) UpdateArrivalTime(i, time int) {
	t.ensureOverlay()
	t.arrivalTimes[i] = time
}

// UpdateDepartureTime sets an absolute departure time at stop i, allocating
// the overlay if necessary.
func (t *TripTimes) UpdateDepartureTime(i, time int) {
	t.ensureOverlay()
	t.departureTimes[i] = time
}

// UpdateArrivalDelay sets the arrival time at stop i to its scheduled time
// plus delay. A later call for the same stop overwrites the earlier one.
func (t *TripTimes) UpdateArrivalDelay(i, delaySeconds int) {
	t.UpdateArrivalTime(i, t.scheduledArrivalTimes[i]+t.timeShift+delaySeconds)
}

// UpdateDepartureDelay sets the departure time at stop i to its scheduled
// time plus delay.
func (t *TripTimes) UpdateDepartureDelay(i, delaySeconds int) {
	t.UpdateDepartureTime(i, t.scheduledDepartureTimes[i]+t.timeShift+delaySeconds)
}

// Cancel marks the entire trip as not running. It does not alter any
// arrival or departure time, and is idempotent.
func (t *TripTimes) Cancel() {
	t.realTimeState = Canceled
}

// CancelStop marks stop i as cancelled for boarding and alighting. It does
// not change that stop's times.
func (t *TripTimes) CancelStop(i int) {
	t.pickups[i] = Cancelled
	t.dropoffs[i] = Cancelled
}

// SetRecorded toggles the observed-rather-than-predicted flag at stop i.
func (t *TripTimes) SetRecorded(i int, recorded bool) {
	t.recordedStops[i] = recorded
}

// SetPredictionInaccurate toggles the low-quality-prediction flag at stop i.
func (t *TripTimes) SetPredictionInaccurate(i int, inaccurate bool) {
	t.predictionInaccurate[i] = inaccurate
}

// Shifted returns a clone of t whose TimeShift has been adjusted so that
// stop index's arrival (or departure, if departFlag is true) time equals
// target. It returns false if t already carries a real-time overlay, since
// shifting only has meaning for a scheduled or frequency-based TripTimes.
func (t *TripTimes) Shifted(stopIndex, target int, departFlag bool) (*TripTimes, bool) {
	if !t.IsScheduled() {
		return nil, false
	}
	c := t.Copy()
	var scheduled int
	if departFlag {
		scheduled = t.scheduledDepartureTimes[stopIndex]
	} else {
		scheduled = t.scheduledArrivalTimes[stopIndex]
	}
	c.timeShift = target - scheduled
	return c, true
}

// MaterializeFrequency expands a frequency-based trip into the virtual runs
// it represents: one TripTimes departing stop 0 every headwaySeconds between
// startTime and endTime, each sharing trip's scheduled arrays and differing
// only in TimeShift. It returns nil if headwaySeconds is not positive, if
// endTime does not come after startTime, or if trip already carries a
// real-time overlay (Shifted has no meaning for it).
func MaterializeFrequency(trip *TripTimes, startTime, endTime, headwaySeconds int) []*TripTimes {
	if headwaySeconds <= 0 || endTime <= startTime {
		return nil
	}
	var runs []*TripTimes
	for depart := startTime; depart < endTime; depart += headwaySeconds {
		shifted, ok := trip.Shifted(0, depart, true)
		if !ok {
			return nil
		}
		runs = append(runs, shifted)
	}
	return runs
}

// TimesIncreasing sweeps the current, post-overlay times and reports false
// if any stop has negative dwell or any hop has negative running time.
// Callers use this to validate an update batch before committing it.
func (t *TripTimes) TimesIncreasing() bool {
	n := t.NumberOfStops()
	for i := 0; i < n; i++ {
		if t.ArrivalTime(i) > t.DepartureTime(i) {
			return false
		}
		if i < n-1 && t.DepartureTime(i) > t.ArrivalTime(i+1) {
			return false
		}
	}
	return true
}

// SemanticHash is a stable fingerprint over scheduled hop times
// (departure[0], arrival[1], departure[1], ..., arrival[n-1]). The first
// arrival and last departure are excluded so a whole-trip time shift, or
// construction from equal inputs via a different Deduplicator, does not
// change the hash.
func (t *TripTimes) SemanticHash() uint64 {
	h := fnv.New64a()
	n := t.NumberOfStops()
	var buf [8]byte
	writeInt := func(v int) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	for i := 0; i < n-1; i++ {
		writeInt(t.scheduledDepartureTimes[i])
		writeInt(t.scheduledArrivalTimes[i+1])
	}
	return h.Sum64()
}
