package timetable

import (
	"sort"
	"time"

	calpkg "github.com/rickar/cal/v2"
)

// weekdayMask is a bitmask of days of the week a serviceCode runs on, with
// bit 0 as Sunday through bit 6 as Saturday, matching time.Weekday.
type weekdayMask uint8

func maskFor(days ...time.Weekday) weekdayMask {
	var m weekdayMask
	for _, d := range days {
		m |= 1 << uint(d)
	}
	return m
}

func (m weekdayMask) runsOn(d time.Weekday) bool {
	return m&(1<<uint(d)) != 0
}

// serviceCodeRule is one serviceCode's calendar: a weekday mask effective
// between start and end, adjusted by individual added/removed exception
// dates. This mirrors the shape of GTFS calendar.txt/calendar_dates.txt
// without parsing any feed file — it is built in memory from data a
// collaborator has already parsed.
type serviceCodeRule struct {
	weekdays weekdayMask
	start    ServiceDate
	end      ServiceDate
	added    map[ServiceDate]bool
	removed  map[ServiceDate]bool
}

// ServiceCalendar resolves which serviceCode values are active on a given
// ServiceDate, optionally treating an agency's observed holidays as
// Sundays for the purpose of the weekday mask.
type ServiceCalendar struct {
	rules          map[int]*serviceCodeRule
	holidays       *calpkg.BusinessCalendar
	treatHolidayAs time.Weekday
}

// NewServiceCalendar returns an empty ServiceCalendar. Holiday awareness is
// opt-in via WithHolidays.
func NewServiceCalendar() *ServiceCalendar {
	return &ServiceCalendar{rules: make(map[int]*serviceCodeRule)}
}

// WithHolidays configures sc to treat any date observed on cal as if it
// fell on treatHolidayAs when evaluating weekday masks, the common
// "holidays run a Sunday schedule" convention.
func (sc *ServiceCalendar) WithHolidays(cal *calpkg.BusinessCalendar, treatHolidayAs time.Weekday) *ServiceCalendar {
	sc.holidays = cal
	sc.treatHolidayAs = treatHolidayAs
	return sc
}

// AddServiceCode registers the base weekday rule for a serviceCode.
func (sc *ServiceCalendar) AddServiceCode(code int, start, end ServiceDate, days ...time.Weekday) {
	sc.rules[code] = &serviceCodeRule{
		weekdays: maskFor(days...),
		start:    start,
		end:      end,
		added:    make(map[ServiceDate]bool),
		removed:  make(map[ServiceDate]bool),
	}
}

// AddException adds or removes a single ServiceDate from a serviceCode,
// overriding its weekday rule for that one day.
func (sc *ServiceCalendar) AddException(code int, date ServiceDate, add bool) {
	r, ok := sc.rules[code]
	if !ok {
		return
	}
	if add {
		r.added[date] = true
		delete(r.removed, date)
	} else {
		r.removed[date] = true
		delete(r.added, date)
	}
}

// IsActive reports whether serviceCode runs on date.
func (sc *ServiceCalendar) IsActive(code int, date ServiceDate) bool {
	r, ok := sc.rules[code]
	if !ok {
		return false
	}
	if r.removed[date] {
		return false
	}
	if r.added[date] {
		return true
	}
	if before(date, r.start) || before(r.end, date) {
		return false
	}
	weekday := date.Time(time.UTC).Weekday()
	if sc.holidays != nil {
		if _, observed, _ := sc.holidays.IsHoliday(date.Time(time.UTC)); observed {
			weekday = sc.treatHolidayAs
		}
	}
	return r.weekdays.runsOn(weekday)
}

// ActiveServiceCodes returns every serviceCode active on date, in ascending
// order.
func (sc *ServiceCalendar) ActiveServiceCodes(date ServiceDate) []int {
	var active []int
	for code := range sc.rules {
		if sc.IsActive(code, date) {
			active = append(active, code)
		}
	}
	sort.Ints(active)
	return active
}
