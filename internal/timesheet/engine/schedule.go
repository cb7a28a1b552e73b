package engine

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultGracePeriodMinutes is the tolerance after scheduled start before lateness is flagged
const DefaultGracePeriodMinutes = 15

// ErrInvalidSchedule is returned by NewSchedule for inconsistent schedules
var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule is the declared working window of a team or individual
type Schedule struct {
	StartTime      TimeOfDay `json:"start_time"`
	EndTime        TimeOfDay `json:"end_time"`
	ActiveWeekdays []int     `json:"active_weekdays"` // ISO 8601, 1=Monday..7=Sunday
}

// NewSchedule parses and validates a schedule record. Parsing failures are
// returned as *FormatError.
func NewSchedule(start, end string, weekdays []int) (*Schedule, error) {
	startTime, err := ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	endTime, err := ParseTimeOfDay(end)
	if err != nil {
		return nil, err
	}
	if !startTime.Before(endTime) {
		return nil, fmt.Errorf("%w: start %s must be before end %s", ErrInvalidSchedule, startTime, endTime)
	}
	if len(weekdays) == 0 {
		return nil, fmt.Errorf("%w: at least one active weekday is required", ErrInvalidSchedule)
	}

	seen := make(map[int]bool, len(weekdays))
	for _, wd := range weekdays {
		if wd < 1 || wd > 7 {
			return nil, fmt.Errorf("%w: weekday %d out of range 1-7", ErrInvalidSchedule, wd)
		}
		if seen[wd] {
			return nil, fmt.Errorf("%w: weekday %d listed twice", ErrInvalidSchedule, wd)
		}
		seen[wd] = true
	}

	return &Schedule{StartTime: startTime, EndTime: endTime, ActiveWeekdays: weekdays}, nil
}

// IsActiveWorkday reports whether t's ISO weekday is an active day of s
func IsActiveWorkday(t time.Time, s *Schedule) bool {
	if s == nil {
		return false
	}
	wd := ISOWeekday(t)
	for _, active := range s.ActiveWeekdays {
		if active == wd {
			return true
		}
	}
	return false
}

// ResolveSchedule picks the schedule that applies to a subject. An individual
// override always wins; the team schedule is used only without one.
func ResolveSchedule(individual, team *Schedule) *Schedule {
	if individual != nil {
		return individual
	}
	return team
}

// PresenceStatus is the outcome of a presence check
type PresenceStatus string

const (
	PresenceOnTime       PresenceStatus = "ON_TIME"
	PresenceLate         PresenceStatus = "LATE"
	PresenceAbsent       PresenceStatus = "ABSENT"
	PresenceNotScheduled PresenceStatus = "NOT_SCHEDULED"
)

// PresenceCheck tells whether a subject is expected at work at a given instant
type PresenceCheck struct {
	ShouldBePresent bool           `json:"should_be_present"`
	MinutesLate     int            `json:"minutes_late"`
	Status          PresenceStatus `json:"status"`
}

// CheckPresence evaluates now against s. The weekday and time of day are read
// in now's own location, so callers convert now first. MinutesLate counts the
// minutes past the end of the grace period.
func CheckPresence(s *Schedule, now time.Time, graceMinutes int) PresenceCheck {
	if !IsActiveWorkday(now, s) {
		return PresenceCheck{Status: PresenceNotScheduled}
	}

	late := int(math.Floor(TimeOfDayOf(now).Sub(s.StartTime).Minutes()))
	switch {
	case late < 0:
		return PresenceCheck{ShouldBePresent: false, Status: PresenceOnTime}
	case late <= graceMinutes:
		return PresenceCheck{ShouldBePresent: true, Status: PresenceOnTime}
	default:
		return PresenceCheck{ShouldBePresent: true, MinutesLate: late - graceMinutes, Status: PresenceLate}
	}
}

// ClassifyPunch recomputes the advisory status of p against s. Only IN punches
// carry lateness; everything else is NORMAL.
func ClassifyPunch(p Punch, s *Schedule, graceMinutes int) PunchStatus {
	if p.Direction != DirectionIn || s == nil {
		return StatusNormal
	}
	if CheckPresence(s, p.Timestamp, graceMinutes).Status == PresenceLate {
		return StatusLate
	}
	return StatusNormal
}

// DayLateness returns the minutes past grace of the first IN punch of a day,
// or 0 when there is no IN punch or the subject arrived within grace
func DayLateness(rec Reconciliation, s *Schedule, graceMinutes int, loc *time.Location) int {
	var first *Punch
	consider := func(p Punch) {
		if p.Direction == DirectionIn && (first == nil || p.Timestamp.Before(first.Timestamp)) {
			pc := p
			first = &pc
		}
	}
	for _, iv := range rec.Intervals {
		consider(iv.Start)
	}
	for _, o := range rec.Orphans {
		consider(o.Punch)
	}
	if first == nil || s == nil {
		return 0
	}
	return CheckPresence(s, first.Timestamp.In(locOrUTC(loc)), graceMinutes).MinutesLate
}

// Axis is the visible span of a day timeline
type Axis struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// DefaultAxis covers 06:00 to 23:00
var DefaultAxis = Axis{Start: NewTimeOfDay(6, 0, 0), End: NewTimeOfDay(23, 0, 0)}

// Window is a schedule span expressed as percentages of an axis
type Window struct {
	StartPercent float64 `json:"start_percent"`
	EndPercent   float64 `json:"end_percent"`
	OutOfFrame   bool    `json:"out_of_frame,omitempty"`
}

// AxisPosition places t on the axis as a percentage clamped to [0, 100].
// outOfFrame is set when t had to be clamped.
func AxisPosition(t TimeOfDay, axis Axis) (percent float64, outOfFrame bool) {
	span := axis.End.Seconds() - axis.Start.Seconds()
	if span <= 0 {
		return 0, true
	}
	percent = (t.Seconds() - axis.Start.Seconds()) / span * 100
	switch {
	case percent < 0:
		return 0, true
	case percent > 100:
		return 100, true
	default:
		return percent, false
	}
}

// ScheduleWindow maps s onto axis
func ScheduleWindow(s *Schedule, axis Axis) Window {
	start, startOut := AxisPosition(s.StartTime, axis)
	end, endOut := AxisPosition(s.EndTime, axis)
	return Window{StartPercent: start, EndPercent: end, OutOfFrame: startOut || endOut}
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
