// Package engine reconciles raw clock punches into work intervals, hours and
// schedule flags. Everything here is a pure function of its inputs: callers
// fetch punches, schedules and absences and pass "now" explicitly.
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dayKeyLayout = "2006-01-02"

// FormatError is returned when a wall-clock string cannot be parsed
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time of day %q: %s", e.Input, e.Reason)
}

// TimeOfDay is a wall-clock time with the calendar date stripped, stored as the
// offset from midnight. Comparing two values never involves a calendar date.
type TimeOfDay time.Duration

// NewTimeOfDay builds a TimeOfDay from its components
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second)
}

// ParseTimeOfDay accepts "HH:mm" or "HH:mm:ss"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, &FormatError{Input: s, Reason: "expected HH:mm or HH:mm:ss"}
	}

	limits := []int{23, 59, 59}
	names := []string{"hour", "minute", "second"}
	values := make([]int, 3)

	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return 0, &FormatError{Input: s, Reason: names[i] + " must have one or two digits"}
		}
		n, err := strconv.Atoi(p)
		if err != nil || strings.TrimLeft(p, "0123456789") != "" {
			return 0, &FormatError{Input: s, Reason: names[i] + " is not numeric"}
		}
		if n > limits[i] {
			return 0, &FormatError{Input: s, Reason: fmt.Sprintf("%s must be between 0 and %d", names[i], limits[i])}
		}
		values[i] = n
	}

	return NewTimeOfDay(values[0], values[1], values[2]), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for constants; it panics on bad input
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf strips the calendar date from t, keeping millisecond precision.
// The wall clock of t's own location is used.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()/int(time.Millisecond))*time.Millisecond)
}

func (t TimeOfDay) Hour() int        { return int(time.Duration(t) / time.Hour) }
func (t TimeOfDay) Minute() int      { return int(time.Duration(t) % time.Hour / time.Minute) }
func (t TimeOfDay) Second() int      { return int(time.Duration(t) % time.Minute / time.Second) }
func (t TimeOfDay) Millisecond() int { return int(time.Duration(t) % time.Second / time.Millisecond) }

// Seconds returns the offset from midnight in seconds
func (t TimeOfDay) Seconds() float64 { return time.Duration(t).Seconds() }

// Sub returns t - other
func (t TimeOfDay) Sub(other TimeOfDay) time.Duration { return time.Duration(t - other) }

func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }
func (t TimeOfDay) After(other TimeOfDay) bool  { return t > other }

// On places the time of day on the calendar date of day, in loc
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	return StartOfDay(day, loc).Add(time.Duration(t))
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// MarshalText encodes as HH:MM:SS
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts HH:MM or HH:MM:SS
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ISOWeekday maps t's weekday to ISO 8601 numbering (1=Monday .. 7=Sunday)
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// StartOfDay returns midnight of t's calendar date as seen from loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	loc = locOrUTC(loc)
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayKey returns the YYYY-MM-DD bucket of t as seen from loc
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(locOrUTC(loc)).Format(dayKeyLayout)
}

// ParseDay parses a YYYY-MM-DD string as midnight in loc
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dayKeyLayout, s, locOrUTC(loc))
}

// SameDay reports whether a and b fall on the same calendar date in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayKey(a, loc) == DayKey(b, loc)
}
