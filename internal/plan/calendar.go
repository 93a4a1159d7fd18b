package plan

import "time"

// Calendar anchors the plan to a start date in a time zone.
type Calendar struct {
	Start    time.Time
	Location *time.Location
}

// NewCalendar returns a calendar starting on start's date in loc. A nil
// location means UTC.
func NewCalendar(start time.Time, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Start: startOfDay(start.In(loc)), Location: loc}
}

// YearCalendar returns a calendar starting on January 1 of now's year in loc.
func YearCalendar(now time.Time, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	return Calendar{Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc), Location: loc}
}

// Today returns the plan day number for now.
func (c Calendar) Today(now time.Time) int {
	return DayNumberForDate(now, c.Start, c.Location)
}

// DayNumberForDate returns the plan-relative index of date, where planStart
// is day 1. Both instants are read as calendar dates in loc. Dates before the
// start give 0; dates after the last plan day give Days+1.
func DayNumberForDate(date, planStart time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	d := civilDate(date.In(loc))
	s := civilDate(planStart.In(loc))

	// Both values are UTC midnights, so the difference is a whole number of days.
	diff := int(d.Sub(s) / (24 * time.Hour))
	if diff < 0 {
		return 0
	}
	n := diff + 1
	if n > Days+1 {
		return Days + 1
	}
	return n
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
