// Package scheduleload builds the static schedule graph timetable.UpdateApplier
// and routing need from Postgres: TripPatterns with their scheduled Timetables
// and a ServiceCalendar. The schema it reads is an opaque serialization of
// that graph; nothing upstream of this package is supposed to know its shape.
package scheduleload

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/otptransit/timetablecore/business/data/timetable"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// patternRow is one row of the trip_pattern table.
type patternRow struct {
	PatternID string `db:"pattern_id"`
	RouteID   string `db:"route_id"`
}

// patternStopRow is one row of the trip_pattern_stop table, ordered by
// StopSequence within a pattern.
type patternStopRow struct {
	StopID       string `db:"stop_id"`
	StopSequence int    `db:"stop_sequence"`
	PickupType   int8   `db:"pickup_type"`
	DropoffType  int8   `db:"drop_off_type"`
}

// tripRow is one row of the trip table.
type tripRow struct {
	TripID      string `db:"trip_id"`
	PatternID   string `db:"pattern_id"`
	RouteID     string `db:"route_id"`
	Headsign    *string `db:"trip_headsign"`
	DirectionID int8   `db:"direction_id"`
	ServiceCode int    `db:"service_code"`
}

// stopTimeRow is one row of the stop_time table.
type stopTimeRow struct {
	TripID           string  `db:"trip_id"`
	GTFSStopSequence int     `db:"stop_sequence"`
	ArrivalTime      int     `db:"arrival_time"`
	DepartureTime    int     `db:"departure_time"`
	StopID           string  `db:"stop_id"`
	Headsign         *string `db:"stop_headsign"`
	PickupType       int8    `db:"pickup_type"`
	DropoffType      int8    `db:"drop_off_type"`
	Timepoint        bool    `db:"timepoint"`
}

// calendarRow is one row of the service_calendar table.
type calendarRow struct {
	ServiceCode int       `db:"service_code"`
	StartDate   time.Time `db:"start_date"`
	EndDate     time.Time `db:"end_date"`
	Monday      bool
	Tuesday     bool
	Wednesday   bool
	Thursday    bool
	Friday      bool
	Saturday    bool
	Sunday      bool
}

// calendarExceptionRow is one row of the service_calendar_exception table.
type calendarExceptionRow struct {
	ServiceCode int       `db:"service_code"`
	Date        time.Time `db:"date"`
	Added       bool
}

// ServiceGraph is the static schedule for one feed: every TripPattern and
// the ServiceCalendar that governs which trips run on which day. It
// implements timetable.PatternLocator directly, so it can be handed to an
// UpdateApplier without an adapter.
type ServiceGraph struct {
	FeedID    string
	Patterns  map[string]*timetable.TripPattern
	Calendar  *timetable.ServiceCalendar
	Dedup     *timetable.Deduplicator
	tripIndex map[string]string // tripID -> patternID
}

// LocateScheduledTripTimes implements timetable.PatternLocator.
func (g *ServiceGraph) LocateScheduledTripTimes(feedID, tripID string) (*timetable.TripPattern, *timetable.TripTimes, bool) {
	if feedID != g.FeedID {
		return nil, nil, false
	}
	patternID, ok := g.tripIndex[tripID]
	if !ok {
		return nil, nil, false
	}
	pattern := g.Patterns[patternID]
	tt, ok := pattern.Scheduled.TripTimesForTrip(tripID)
	return pattern, tt, ok
}

// Loader reads a ServiceGraph out of Postgres.
type Loader struct {
	DB    *sqlx.DB
	Dedup *timetable.Deduplicator
}

// NewLoader returns a Loader backed by db. A Loader is not safe for
// concurrent use across multiple Load calls that share a Deduplicator.
func NewLoader(db *sqlx.DB) *Loader {
	return &Loader{DB: db, Dedup: timetable.NewDeduplicator()}
}

// Load builds the full ServiceGraph for feedID: every TripPattern with its
// scheduled Timetable populated, and the feed's ServiceCalendar.
func (l *Loader) Load(ctx context.Context, feedID string) (*ServiceGraph, error) {
	graph := &ServiceGraph{
		FeedID:    feedID,
		Patterns:  make(map[string]*timetable.TripPattern),
		Dedup:     l.Dedup,
		tripIndex: make(map[string]string),
	}

	if err := l.loadPatterns(ctx, feedID, graph); err != nil {
		return nil, fmt.Errorf("scheduleload: loading patterns: %w", err)
	}
	if err := l.loadTrips(ctx, feedID, graph); err != nil {
		return nil, fmt.Errorf("scheduleload: loading trips: %w", err)
	}
	calendar, err := l.loadCalendar(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("scheduleload: loading calendar: %w", err)
	}
	graph.Calendar = calendar

	return graph, nil
}

func (l *Loader) loadPatterns(ctx context.Context, feedID string, graph *ServiceGraph) error {
	query, args, err := psql.Select("pattern_id", "route_id").
		From("trip_pattern").
		Where(sq.Eq{"feed_id": feedID}).
		ToSql()
	if err != nil {
		return err
	}
	var rows []patternRow
	if err := l.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("querying trip_pattern: %w", err)
	}

	for _, row := range rows {
		stopPattern, err := l.loadStopPattern(ctx, row.PatternID)
		if err != nil {
			return err
		}
		graph.Patterns[row.PatternID] = timetable.NewTripPattern(row.PatternID, row.RouteID, stopPattern)
	}
	return nil
}

func (l *Loader) loadStopPattern(ctx context.Context, patternID string) (*timetable.StopPattern, error) {
	query, args, err := psql.Select("stop_id", "stop_sequence", "pickup_type", "drop_off_type").
		From("trip_pattern_stop").
		Where(sq.Eq{"pattern_id": patternID}).
		OrderBy("stop_sequence").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []patternStopRow
	if err := l.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying trip_pattern_stop for %s: %w", patternID, err)
	}

	stopIDs := make([]string, len(rows))
	pickups := make([]timetable.BoardingRule, len(rows))
	dropoffs := make([]timetable.BoardingRule, len(rows))
	for i, row := range rows {
		stopIDs[i] = row.StopID
		pickups[i] = timetable.BoardingRule(row.PickupType)
		dropoffs[i] = timetable.BoardingRule(row.DropoffType)
	}
	return timetable.NewStopPattern(stopIDs, pickups, dropoffs, l.Dedup), nil
}

func (l *Loader) loadTrips(ctx context.Context, feedID string, graph *ServiceGraph) error {
	query, args, err := psql.Select("trip_id", "pattern_id", "route_id", "trip_headsign", "direction_id", "service_code").
		From("trip").
		Where(sq.Eq{"feed_id": feedID}).
		ToSql()
	if err != nil {
		return err
	}
	var trips []tripRow
	if err := l.DB.SelectContext(ctx, &trips, query, args...); err != nil {
		return fmt.Errorf("querying trip: %w", err)
	}

	for _, trip := range trips {
		pattern, ok := graph.Patterns[trip.PatternID]
		if !ok {
			return fmt.Errorf("trip %s references unknown pattern %s", trip.TripID, trip.PatternID)
		}
		stopTimes, err := l.loadStopTimes(ctx, trip.TripID)
		if err != nil {
			return err
		}
		tt, err := timetable.NewTripTimes(
			&timetable.Trip{ID: trip.TripID, RouteID: trip.RouteID, Headsign: trip.Headsign, DirectionID: trip.DirectionID},
			trip.ServiceCode, stopTimes, l.Dedup,
		)
		if err != nil {
			return fmt.Errorf("building TripTimes for %s: %w", trip.TripID, err)
		}
		pattern.Scheduled.Add(tt)
		graph.tripIndex[trip.TripID] = trip.PatternID
	}
	return nil
}

func (l *Loader) loadStopTimes(ctx context.Context, tripID string) ([]timetable.StopTime, error) {
	query, args, err := psql.Select("trip_id", "stop_sequence", "arrival_time", "departure_time",
		"stop_id", "stop_headsign", "pickup_type", "drop_off_type", "timepoint").
		From("stop_time").
		Where(sq.Eq{"trip_id": tripID}).
		OrderBy("stop_sequence").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []stopTimeRow
	if err := l.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying stop_time for %s: %w", tripID, err)
	}

	stopTimes := make([]timetable.StopTime, len(rows))
	for i, row := range rows {
		stopTimes[i] = timetable.StopTime{
			StopID:           row.StopID,
			GTFSStopSequence: row.GTFSStopSequence,
			ArrivalTime:      row.ArrivalTime,
			DepartureTime:    row.DepartureTime,
			Headsign:         row.Headsign,
			PickupType:       timetable.BoardingRule(row.PickupType),
			DropoffType:      timetable.BoardingRule(row.DropoffType),
			Timepoint:        row.Timepoint,
		}
	}
	return stopTimes, nil
}

func (l *Loader) loadCalendar(ctx context.Context, feedID string) (*timetable.ServiceCalendar, error) {
	calendar := timetable.NewServiceCalendar()

	query, args, err := psql.Select("service_code", "start_date", "end_date",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday").
		From("service_calendar").
		Where(sq.Eq{"feed_id": feedID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []calendarRow
	if err := l.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying service_calendar: %w", err)
	}
	for _, row := range rows {
		var days []time.Weekday
		if row.Sunday {
			days = append(days, time.Sunday)
		}
		if row.Monday {
			days = append(days, time.Monday)
		}
		if row.Tuesday {
			days = append(days, time.Tuesday)
		}
		if row.Wednesday {
			days = append(days, time.Wednesday)
		}
		if row.Thursday {
			days = append(days, time.Thursday)
		}
		if row.Friday {
			days = append(days, time.Friday)
		}
		if row.Saturday {
			days = append(days, time.Saturday)
		}
		calendar.AddServiceCode(row.ServiceCode,
			timetable.NewServiceDate(row.StartDate), timetable.NewServiceDate(row.EndDate), days...)
	}

	excQuery, excArgs, err := psql.Select("service_code", "date", "added").
		From("service_calendar_exception").
		Where(sq.Eq{"feed_id": feedID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var exceptions []calendarExceptionRow
	if err := l.DB.SelectContext(ctx, &exceptions, excQuery, excArgs...); err != nil {
		return nil, fmt.Errorf("querying service_calendar_exception: %w", err)
	}
	for _, exc := range exceptions {
		calendar.AddException(exc.ServiceCode, timetable.NewServiceDate(exc.Date), exc.Added)
	}

	return calendar, nil
}
