// Package timetable holds the immutable-at-rest, updatable-at-runtime
// representation of scheduled vehicle runs that routing consumes: TripTimes,
// Timetable, TripPattern/StopPattern, the TimetableSnapshot overlay, and the
// UpdateApplier that turns real-time messages into committed snapshots.
//
// The package performs no I/O and holds no references to a database or
// network connection; that is left to the applications under app/ and the
// loaders under business/data/scheduleload and business/data/gtfsrt.
package timetable

import (
	"fmt"
	"time"
)

// BoardingRule describes whether passengers may board or alight at a stop.
type BoardingRule int8

const (
	// Regular boarding/alighting is permitted on the normal schedule.
	Regular BoardingRule = iota
	// None means boarding/alighting is never permitted at this stop.
	None
	// Phone means boarding must be arranged by phoning the agency.
	Phone
	// CoordinateWithDriver means boarding must be arranged with the driver.
	CoordinateWithDriver
	// Cancelled means this stop has been skipped for the run in question.
	Cancelled
)

func (b BoardingRule) String() string {
	switch b {
	case Regular:
		return "REGULAR"
	case None:
		return "NONE"
	case Phone:
		return "PHONE"
	case CoordinateWithDriver:
		return "COORDINATE_WITH_DRIVER"
	case Cancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("BoardingRule(%d)", int8(b))
	}
}

// RealTimeState classifies how a TripTimes relates to the originally
// published schedule.
type RealTimeState int8

const (
	// Scheduled TripTimes carry no real-time overlay.
	Scheduled RealTimeState = iota
	// Updated TripTimes have had at least one stop's time adjusted.
	Updated
	// Canceled TripTimes represent a trip that will not run.
	Canceled
	// Added TripTimes represent a trip that was not in the static schedule.
	Added
	// Modified TripTimes represent a scheduled trip whose stop pattern or
	// times were substantially replaced by a real-time message.
	Modified
)

func (s RealTimeState) String() string {
	switch s {
	case Scheduled:
		return "SCHEDULED"
	case Updated:
		return "UPDATED"
	case Canceled:
		return "CANCELED"
	case Added:
		return "ADDED"
	case Modified:
		return "MODIFIED"
	default:
		return fmt.Sprintf("RealTimeState(%d)", int8(s))
	}
}

// BookingInfo is an opaque booking record attached to a pickup or dropoff.
// Its fields are not interpreted by this package; they are carried through
// construction, deduplication, and real-time updates for the consumer that
// ultimately renders an itinerary.
type BookingInfo struct {
	Message                 string
	Phone                   string
	PriorNoticeDurationMin  *int
	PriorNoticeLastDayShift *int
}

// Trip is an opaque reference to one scheduled run of one vehicle. Routing
// and itinerary formatting own the rest of a trip's attributes; TripTimes
// only needs the identity and headsign fallback below.
type Trip struct {
	ID          string
	RouteID     string
	Headsign    *string
	DirectionID int8
}

// ServiceDate is a calendar day in the timezone of the agency operating the
// service, with no time-of-day component. It is comparable and safe to use
// as a map key.
type ServiceDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewServiceDate truncates t to its calendar date in t's own location.
func NewServiceDate(t time.Time) ServiceDate {
	y, m, d := t.Date()
	return ServiceDate{Year: y, Month: m, Day: d}
}

// Time returns midnight of this ServiceDate in loc, the reference instant
// that scheduled seconds-past-midnight values are added to.
func (d ServiceDate) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the ServiceDate n calendar days after d.
func (d ServiceDate) AddDays(n int) ServiceDate {
	return NewServiceDate(d.Time(time.UTC).AddDate(0, 0, n))
}

func (d ServiceDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// StopTime is one row of pre-validated schedule data passed to NewTripTimes.
// Times are seconds past midnight of the service date and may exceed 86400
// for trips that run past midnight.
type StopTime struct {
	StopID                string
	GTFSStopSequence      int
	ArrivalTime           int
	DepartureTime         int
	Headsign              *string
	PickupType            BoardingRule
	DropoffType           BoardingRule
	PickupBookingInfo     *BookingInfo
	DropoffBookingInfo    *BookingInfo
	Timepoint             bool
}
