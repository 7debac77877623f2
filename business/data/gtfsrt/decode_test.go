package gtfsrt

import (
	"testing"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/otptransit/timetablecore/business/data/timetable"
)

func marshalFeed(t *testing.T, entities []*gtfsproto.FeedEntity) []byte {
	t.Helper()
	version := "2.0"
	incrementality := gtfsproto.FeedHeader_FULL_DATASET
	var ts uint64 = 1000
	msg := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: &version,
			Incrementality:      &incrementality,
			Timestamp:           &ts,
		},
		Entity: entities,
	}
	data, err := proto.Marshal(msg)
	require.NoError(t, err)
	return data
}

func scheduledTrip(tripID, startDate string) *gtfsproto.TripDescriptor {
	sr := gtfsproto.TripDescriptor_SCHEDULED
	return &gtfsproto.TripDescriptor{TripId: &tripID, StartDate: &startDate, ScheduleRelationship: &sr}
}

func TestDecoder_DelayAndSkip(t *testing.T) {
	entityID := "e1"
	seq1, seq2 := uint32(1), uint32(2)
	delay := int32(90)
	skipped := gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED

	entity := &gtfsproto.FeedEntity{
		Id: &entityID,
		TripUpdate: &gtfsproto.TripUpdate{
			Trip: scheduledTrip("t1", "20260801"),
			StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{
				{
					StopSequence: &seq1,
					Arrival:      &gtfsproto.TripUpdate_StopTimeEvent{Delay: &delay},
				},
				{
					StopSequence:         &seq2,
					ScheduleRelationship: &skipped,
				},
			},
		},
	}

	d := NewDecoder("feed-1", time.UTC)
	batch, err := d.Decode(marshalFeed(t, []*gtfsproto.FeedEntity{entity}))
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)

	require.Equal(t, timetable.RecordTripDelay, batch.Records[0].Kind)
	require.Len(t, batch.Records[0].StopDelays, 1)
	require.Equal(t, 1, batch.Records[0].StopDelays[0].StopSequence)
	require.NotNil(t, batch.Records[0].StopDelays[0].ArrivalDelay)
	require.Equal(t, 90, *batch.Records[0].StopDelays[0].ArrivalDelay)

	require.Equal(t, timetable.RecordStopSkipped, batch.Records[1].Kind)
	require.Equal(t, 2, batch.Records[1].StopSequence)
}

func TestDecoder_Cancelled(t *testing.T) {
	entityID := "e1"
	sr := gtfsproto.TripDescriptor_CANCELED
	tripID := "t1"
	entity := &gtfsproto.FeedEntity{
		Id: &entityID,
		TripUpdate: &gtfsproto.TripUpdate{
			Trip: &gtfsproto.TripDescriptor{TripId: &tripID, ScheduleRelationship: &sr},
		},
	}

	d := NewDecoder("feed-1", time.UTC)
	batch, err := d.Decode(marshalFeed(t, []*gtfsproto.FeedEntity{entity}))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	require.Equal(t, timetable.RecordTripCancelled, batch.Records[0].Kind)
	require.Equal(t, "t1", batch.Records[0].Trip.TripID)
}

func TestDecoder_AddedTripConvertsAbsoluteTimesToServiceSeconds(t *testing.T) {
	entityID := "e1"
	sr := gtfsproto.TripDescriptor_ADDED
	tripID := "extra-1"
	routeID := "r1"
	startDate := "20260801"
	seq1 := uint32(1)
	stopID := "s1"

	midnight := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	arrivalUnix := midnight.Add(2 * time.Hour).Unix()

	entity := &gtfsproto.FeedEntity{
		Id: &entityID,
		TripUpdate: &gtfsproto.TripUpdate{
			Trip: &gtfsproto.TripDescriptor{
				TripId: &tripID, RouteId: &routeID, StartDate: &startDate, ScheduleRelationship: &sr,
			},
			StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{
				{
					StopSequence: &seq1,
					StopId:       &stopID,
					Arrival:      &gtfsproto.TripUpdate_StopTimeEvent{Time: &arrivalUnix},
				},
			},
		},
	}

	d := NewDecoder("feed-1", time.UTC)
	batch, err := d.Decode(marshalFeed(t, []*gtfsproto.FeedEntity{entity}))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	require.Equal(t, timetable.RecordTripAdded, batch.Records[0].Kind)
	require.Equal(t, "r1", batch.Records[0].RouteID)
	require.Len(t, batch.Records[0].StopTimes, 1)
	require.Equal(t, 2*60*60, batch.Records[0].StopTimes[0].ArrivalTime)
	require.Equal(t, batch.Records[0].StopTimes[0].ArrivalTime, batch.Records[0].StopTimes[0].DepartureTime)
}

func TestDecoder_SkipsEntityWithoutTripID(t *testing.T) {
	entityID := "e1"
	empty := ""
	sr := gtfsproto.TripDescriptor_SCHEDULED
	entity := &gtfsproto.FeedEntity{
		Id: &entityID,
		TripUpdate: &gtfsproto.TripUpdate{
			Trip: &gtfsproto.TripDescriptor{TripId: &empty, ScheduleRelationship: &sr},
		},
	}

	d := NewDecoder("feed-1", time.UTC)
	batch, err := d.Decode(marshalFeed(t, []*gtfsproto.FeedEntity{entity}))
	require.NoError(t, err)
	require.Empty(t, batch.Records)
}
