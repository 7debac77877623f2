// Package gtfsrt adapts GTFS Realtime protocol buffer feed messages into
// timetable.UpdateBatch, the only shape the timetable package understands.
// It performs the one piece of I/O-adjacent translation the core package
// deliberately has no opinion on: turning a feed's absolute Unix timestamps
// into the service-date-relative seconds TripTimes expects.
package gtfsrt

import (
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/otptransit/timetablecore/business/data/timetable"
)

// Decoder turns raw GTFS-RT FeedMessage bytes from one feed into an
// UpdateBatch. A Decoder is safe for concurrent use; it holds no mutable
// state.
type Decoder struct {
	FeedID   string
	Location *time.Location
}

// NewDecoder returns a Decoder for feedID, resolving trip-update stop times
// against loc.
func NewDecoder(feedID string, loc *time.Location) *Decoder {
	return &Decoder{FeedID: feedID, Location: loc}
}

// Decode unmarshals data as a GTFS-RT FeedMessage and translates every
// trip_update entity it carries into UpdateRecords. Entities this bridge
// does not support (UNSCHEDULED or DUPLICATED trips, vehicle positions,
// alerts) are silently skipped; the caller's logger, not this package,
// decides whether that is worth reporting.
func (d *Decoder) Decode(data []byte) (*timetable.UpdateBatch, error) {
	var msg gtfsproto.FeedMessage
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("gtfsrt: unmarshaling feed message: %w", err)
	}

	batch := timetable.NewUpdateBatch(d.FeedID)
	for _, entity := range msg.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		trip := tu.GetTrip()
		if trip == nil || trip.GetTripId() == "" {
			continue
		}

		selector := timetable.TripSelector{
			FeedID:      d.FeedID,
			TripID:      trip.GetTripId(),
			ServiceDate: d.serviceDateOf(trip),
		}

		switch trip.GetScheduleRelationship() {
		case gtfsproto.TripDescriptor_SCHEDULED:
			batch.Records = append(batch.Records, d.decodeScheduled(selector, tu)...)
		case gtfsproto.TripDescriptor_CANCELED:
			batch.Records = append(batch.Records, timetable.UpdateRecord{
				Kind: timetable.RecordTripCancelled,
				Trip: selector,
			})
		case gtfsproto.TripDescriptor_ADDED:
			batch.Records = append(batch.Records, d.decodeAdded(selector, trip, tu))
		default:
			continue
		}
	}
	return batch, nil
}

// serviceDateOf resolves the ServiceDate a trip_update entity applies to
// from its start_date field, falling back to the current date in the
// decoder's location for feeds that omit it on SCHEDULED trips.
func (d *Decoder) serviceDateOf(trip *gtfsproto.TripDescriptor) timetable.ServiceDate {
	if s := trip.GetStartDate(); s != "" {
		if t, err := time.ParseInLocation("20060102", s, d.Location); err == nil {
			return timetable.NewServiceDate(t)
		}
	}
	return timetable.NewServiceDate(time.Now().In(d.Location))
}

// decodeScheduled splits one trip_update's stop_time_update list into a
// single delay record carrying every scheduled-relationship stop that has an
// arrival or departure delay, plus one stop-skipped record per skipped stop,
// matching the shape UpdateApplier expects.
func (d *Decoder) decodeScheduled(selector timetable.TripSelector, tu *gtfsproto.TripUpdate) []timetable.UpdateRecord {
	var delays []timetable.StopDelay
	var records []timetable.UpdateRecord

	for _, stu := range tu.GetStopTimeUpdate() {
		switch stu.GetScheduleRelationship() {
		case gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED:
			records = append(records, timetable.UpdateRecord{
				Kind:         timetable.RecordStopSkipped,
				Trip:         selector,
				StopSequence: int(stu.GetStopSequence()),
			})
		case gtfsproto.TripUpdate_StopTimeUpdate_NO_DATA:
			continue
		default:
			sd := timetable.StopDelay{StopSequence: int(stu.GetStopSequence())}
			if stu.Arrival != nil {
				delay := int(stu.GetArrival().GetDelay())
				sd.ArrivalDelay = &delay
			}
			if stu.Departure != nil {
				delay := int(stu.GetDeparture().GetDelay())
				sd.DepartureDelay = &delay
			}
			if sd.ArrivalDelay != nil || sd.DepartureDelay != nil {
				delays = append(delays, sd)
			}
		}
	}

	if len(delays) > 0 {
		records = append([]timetable.UpdateRecord{{
			Kind:       timetable.RecordTripDelay,
			Trip:       selector,
			StopDelays: delays,
		}}, records...)
	}
	return records
}

// decodeAdded builds a trip-added record from an entity's absolute
// stop_time_update timestamps, converting each to seconds past midnight of
// the trip's service date. Stops that carry only one of arrival/departure
// use it for both, the usual convention for a stop with no dwell time.
func (d *Decoder) decodeAdded(selector timetable.TripSelector, trip *gtfsproto.TripDescriptor, tu *gtfsproto.TripUpdate) timetable.UpdateRecord {
	midnight := selector.ServiceDate.Time(d.Location)
	stopTimes := make([]timetable.StopTime, 0, len(tu.GetStopTimeUpdate()))
	for _, stu := range tu.GetStopTimeUpdate() {
		arrival := secondsSinceMidnight(midnight, stu.GetArrival())
		departure := secondsSinceMidnight(midnight, stu.GetDeparture())
		if departure == 0 && arrival != 0 {
			departure = arrival
		}
		if arrival == 0 && departure != 0 {
			arrival = departure
		}
		stopTimes = append(stopTimes, timetable.StopTime{
			StopID:           stu.GetStopId(),
			GTFSStopSequence: int(stu.GetStopSequence()),
			ArrivalTime:      arrival,
			DepartureTime:    departure,
		})
	}

	return timetable.UpdateRecord{
		Kind:      timetable.RecordTripAdded,
		Trip:      selector,
		RouteID:   trip.GetRouteId(),
		StopTimes: stopTimes,
	}
}

func secondsSinceMidnight(midnight time.Time, event *gtfsproto.TripUpdate_StopTimeEvent) int {
	if event == nil || event.GetTime() == 0 {
		return 0
	}
	t := time.Unix(event.GetTime(), 0).In(midnight.Location())
	return int(t.Sub(midnight).Seconds())
}
