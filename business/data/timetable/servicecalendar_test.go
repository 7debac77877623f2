package timetable

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestServiceCalendar_WeekdayMaskAndRange(t *testing.T) {
	chk := is.New(t)
	sc := NewServiceCalendar()
	sc.AddServiceCode(1,
		ServiceDate{Year: 2026, Month: 8, Day: 1},
		ServiceDate{Year: 2026, Month: 8, Day: 31},
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	)

	saturday := ServiceDate{Year: 2026, Month: 8, Day: 8}
	chk.Equal(sc.IsActive(1, saturday), false)

	monday := ServiceDate{Year: 2026, Month: 8, Day: 3}
	chk.Equal(sc.IsActive(1, monday), true)

	beforeRange := ServiceDate{Year: 2026, Month: 7, Day: 27}
	chk.Equal(sc.IsActive(1, beforeRange), false)
}

func TestServiceCalendar_Exceptions(t *testing.T) {
	chk := is.New(t)
	sc := NewServiceCalendar()
	sc.AddServiceCode(1,
		ServiceDate{Year: 2026, Month: 8, Day: 1},
		ServiceDate{Year: 2026, Month: 8, Day: 31},
		time.Monday,
	)

	monday := ServiceDate{Year: 2026, Month: 8, Day: 3}
	saturday := ServiceDate{Year: 2026, Month: 8, Day: 8}

	sc.AddException(1, monday, false)
	chk.Equal(sc.IsActive(1, monday), false)

	sc.AddException(1, saturday, true)
	chk.Equal(sc.IsActive(1, saturday), true)
}

func TestServiceCalendar_ActiveServiceCodesSorted(t *testing.T) {
	chk := is.New(t)
	sc := NewServiceCalendar()
	date := ServiceDate{Year: 2026, Month: 8, Day: 3}
	sc.AddServiceCode(3, date, date, time.Monday)
	sc.AddServiceCode(1, date, date, time.Monday)
	sc.AddServiceCode(2, date, date, time.Monday)

	chk.Equal(sc.ActiveServiceCodes(date), []int{1, 2, 3})
}

func TestServiceCalendar_UnknownCodeIsNeverActive(t *testing.T) {
	chk := is.New(t)
	sc := NewServiceCalendar()
	chk.Equal(sc.IsActive(99, ServiceDate{Year: 2026, Month: 8, Day: 3}), false)
}
