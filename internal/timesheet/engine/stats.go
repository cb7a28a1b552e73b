package engine

import (
	"strconv"
	"time"
)

// StatusCounts breaks IN punches down by outcome
type StatusCounts struct {
	Normal     int `json:"normal"`
	Late       int `json:"late"`
	Incomplete int `json:"incomplete"`
}

// Stats is a rollup of punch activity over a date range
type Stats struct {
	TotalPunches     int          `json:"total_punches"`
	TotalClockIns    int          `json:"total_clock_ins"`
	TotalClockOuts   int          `json:"total_clock_outs"`
	CountByStatus    StatusCounts `json:"count_by_status"`
	UniqueWorkedDays int          `json:"unique_worked_days"`
}

// ComputeStats rolls up the punches of one subject that fall within r.
//
// LATE counts IN punches recorded as LATE. INCOMPLETE counts IN punches left
// without an OUT, except the live punch of the current day; a punch can be
// both. IN punches that are neither count as NORMAL. OUT punches only feed
// the totals.
func ComputeStats(punches []Punch, r DateRange, now time.Time, loc *time.Location) Stats {
	var stats Stats

	// Punches are re-keyed by position so identical instants stay distinct.
	inRange := make([]Punch, 0, len(punches))
	for i, p := range punches {
		if r.Contains(p.Timestamp.In(locOrUTC(loc))) {
			p.ID = strconv.Itoa(i)
			inRange = append(inRange, p)
		}
	}

	buckets := BucketByDay(inRange, loc)
	stats.UniqueWorkedDays = len(buckets)

	incomplete := make(map[string]bool)
	for _, dayPunches := range buckets {
		rec := Pair(dayPunches, now, loc)
		for _, o := range rec.Orphans {
			if o.Punch.Direction == DirectionIn && o.Reason == OrphanNoMatchingOut {
				incomplete[o.Punch.ID] = true
			}
		}
	}

	for _, p := range inRange {
		stats.TotalPunches++
		switch p.Direction {
		case DirectionOut:
			stats.TotalClockOuts++
			continue
		case DirectionIn:
			stats.TotalClockIns++
		default:
			continue
		}

		late := p.Status == StatusLate
		if late {
			stats.CountByStatus.Late++
		}
		if incomplete[p.ID] {
			stats.CountByStatus.Incomplete++
		} else if !late {
			stats.CountByStatus.Normal++
		}
	}

	return stats
}
