package engine

import (
	"time"
)

// DateRange is an inclusive span of calendar dates [Start, End]
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange normalizes start and end to midnight in loc
func NewDateRange(start, end time.Time, loc *time.Location) DateRange {
	return DateRange{Start: StartOfDay(start, loc), End: StartOfDay(end, loc)}
}

// WeekOf returns the ISO week (Monday to Sunday) containing t
func WeekOf(t time.Time, loc *time.Location) DateRange {
	day := StartOfDay(t, loc)
	monday := day.AddDate(0, 0, 1-ISOWeekday(day))
	return DateRange{Start: monday, End: monday.AddDate(0, 0, 6)}
}

// Valid reports whether End is not before Start
func (r DateRange) Valid() bool {
	return !r.End.Before(r.Start)
}

// Contains reports whether t's calendar date lies within the range
func (r DateRange) Contains(t time.Time) bool {
	day := StartOfDay(t, r.Start.Location())
	return !day.Before(r.Start) && !day.After(r.End)
}

// Days returns every date in the range, in order
func (r DateRange) Days() []time.Time {
	days := make([]time.Time, 0, r.NumDays())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// NumDays returns the number of calendar days in the range
func (r DateRange) NumDays() int {
	if !r.Valid() {
		return 0
	}
	return int((calendarNoon(r.End)-calendarNoon(r.Start))/secondsPerDay) + 1
}

const secondsPerDay = 24 * 60 * 60

// calendarNoon returns t's calendar date at noon UTC as Unix seconds. DST
// shifts never change the difference, and time.Duration would overflow on
// ranges longer than 292 years.
func calendarNoon(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC).Unix()
}

func (r DateRange) String() string {
	return "[" + r.Start.Format(dayKeyLayout) + ", " + r.End.Format(dayKeyLayout) + "]"
}
