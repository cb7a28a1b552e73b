package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxIntervalHours is the longest duration accepted for a single interval
const MaxIntervalHours = 24.0

// measure returns the duration between start and end in hours. Durations
// outside [0, 24] are corrupt measurements: they count as zero and are flagged.
func measure(start, end time.Time) (float64, Anomaly) {
	hours := end.Sub(start).Hours()
	switch {
	case hours < 0:
		return 0, AnomalyNegativeDuration
	case hours > MaxIntervalHours:
		return 0, AnomalyExcessiveDuration
	default:
		return hours, AnomalyNone
	}
}

// IntervalHours returns the worked hours of iv. An open interval is measured
// up to now. The result is always within [0, 24].
func IntervalHours(iv Interval, now time.Time) float64 {
	end := now
	if iv.End != nil {
		end = iv.End.Timestamp
	}
	hours, _ := measure(iv.Start.Timestamp, end)
	return hours
}

// OpenInterval pairs a still-open punch with "now" for live display
func OpenInterval(o Orphan, now time.Time) Interval {
	hours, anomaly := measure(o.Punch.Timestamp, now)
	return Interval{
		Start:         o.Punch,
		DurationHours: hours,
		Anomaly:       anomaly,
	}
}

// DailyHours sums the intervals of one day's reconciliation. When day is the
// current date in loc, the still-open punch contributes its elapsed time.
func DailyHours(rec Reconciliation, day, now time.Time, loc *time.Location) float64 {
	total := 0.0
	for _, iv := range rec.Intervals {
		total += IntervalHours(iv, now)
	}

	if SameDay(day, now, loc) {
		if live, ok := rec.LiveOrphan(); ok {
			total += OpenInterval(live, now).DurationHours
		}
	}

	return total
}

// PeriodHours sums DailyHours over every date in r. byDay is keyed by DayKey.
func PeriodHours(byDay map[string]Reconciliation, r DateRange, now time.Time, loc *time.Location) float64 {
	total := 0.0
	for _, day := range r.Days() {
		rec, ok := byDay[DayKey(day, loc)]
		if !ok {
			continue
		}
		total += DailyHours(rec, day, now, loc)
	}
	return total
}

// AverageDailyHours divides total by the number of calendar days in r,
// non-working days included.
func AverageDailyHours(total float64, r DateRange) float64 {
	days := r.NumDays()
	if days <= 0 {
		return 0
	}
	return total / float64(days)
}

// RoundHours rounds to one decimal place for display. Internal aggregation
// always keeps full precision.
func RoundHours(hours float64) float64 {
	f, _ := decimal.NewFromFloat(hours).Round(1).Float64()
	return f
}
