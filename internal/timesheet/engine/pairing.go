package engine

import (
	"sort"
	"time"
)

// Reconciliation is the result of pairing one subject's punches for one day
type Reconciliation struct {
	Intervals []Interval `json:"intervals"`
	Orphans   []Orphan   `json:"orphans"`
}

// Total returns the number of punches accounted for. It always equals the
// number of punches passed to Pair.
func (r Reconciliation) Total() int {
	return 2*len(r.Intervals) + len(r.Orphans)
}

// LiveOrphan returns the currently clocked-in punch, if any
func (r Reconciliation) LiveOrphan() (Orphan, bool) {
	for _, o := range r.Orphans {
		if o.Live() {
			return o, true
		}
	}
	return Orphan{}, false
}

// HasAnomalies reports whether any punch is orphaned for a reason other than
// being still open, or any interval carries an anomaly flag
func (r Reconciliation) HasAnomalies() bool {
	for _, o := range r.Orphans {
		if !o.Live() {
			return true
		}
	}
	for _, iv := range r.Intervals {
		if iv.Anomaly != AnomalyNone {
			return true
		}
	}
	return false
}

// SortPunches returns a copy of punches ordered by timestamp. Equal timestamps
// keep their input order so same-millisecond double punches never swap.
func SortPunches(punches []Punch) []Punch {
	sorted := make([]Punch, len(punches))
	copy(sorted, punches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// Pair reconciles the punches of one subject on one calendar day.
//
// Only strictly sequential IN then OUT punches form an interval. An IN that is
// not directly followed by an OUT is orphaned: STILL_OPEN when it is the last
// punch and its day is the current day in loc, NO_MATCHING_OUT otherwise. An
// OUT that was not consumed by the preceding IN is orphaned as NO_MATCHING_IN.
// Pair never fails and every punch ends up in exactly one place.
func Pair(punches []Punch, now time.Time, loc *time.Location) Reconciliation {
	sorted := SortPunches(punches)
	rec := Reconciliation{
		Intervals: make([]Interval, 0, len(sorted)/2),
		Orphans:   []Orphan{},
	}

	used := make([]bool, len(sorted))
	reasons := make([]OrphanReason, len(sorted))
	for i := 0; i < len(sorted); {
		p := sorted[i]
		if used[i] || p.Direction != DirectionIn {
			i++
			continue
		}

		if i+1 < len(sorted) && !used[i+1] && sorted[i+1].Direction == DirectionOut {
			rec.Intervals = append(rec.Intervals, closedInterval(p, sorted[i+1]))
			used[i], used[i+1] = true, true
			i += 2
			continue
		}

		reasons[i] = OrphanNoMatchingOut
		if i == len(sorted)-1 && SameDay(p.Timestamp, now, loc) {
			reasons[i] = OrphanStillOpen
		}
		used[i] = true
		i++
	}

	// Leftover OUT punches never look backward for an already consumed IN.
	for i, p := range sorted {
		switch {
		case reasons[i] != "":
			rec.Orphans = append(rec.Orphans, Orphan{Punch: p, Reason: reasons[i]})
		case !used[i]:
			rec.Orphans = append(rec.Orphans, Orphan{Punch: p, Reason: OrphanNoMatchingIn})
		}
	}

	return rec
}

// BucketByDay groups punches by calendar date in loc. Each bucket keeps the
// input order; Pair sorts it.
func BucketByDay(punches []Punch, loc *time.Location) map[string][]Punch {
	buckets := make(map[string][]Punch)
	for _, p := range punches {
		key := DayKey(p.Timestamp, loc)
		buckets[key] = append(buckets[key], p)
	}
	return buckets
}

func closedInterval(start, end Punch) Interval {
	hours, anomaly := measure(start.Timestamp, end.Timestamp)
	return Interval{
		Start:         start,
		End:           &end,
		DurationHours: hours,
		Anomaly:       anomaly,
	}
}
