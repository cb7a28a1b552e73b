package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
)

func lateIn(day time.Time, hhmm string) engine.Punch {
	p := in(day, hhmm)
	p.Status = engine.StatusLate
	return p
}

func TestComputeStats(t *testing.T) {
	tuesday := monday.AddDate(0, 0, 1)
	wednesday := monday.AddDate(0, 0, 2)
	week := engine.WeekOf(monday, time.UTC)
	now := at(wednesday, "11:00")

	punches := []engine.Punch{
		// Monday: normal day
		in(monday, "09:00"), out(monday, "17:00"),
		// Tuesday: late, then forgot to clock out after lunch
		lateIn(tuesday, "09:40"), out(tuesday, "12:00"), in(tuesday, "13:00"),
		// Wednesday: currently clocked in
		in(wednesday, "08:55"),
		// next Monday: outside the range
		in(monday.AddDate(0, 0, 7), "09:00"),
	}

	stats := engine.ComputeStats(punches, week, now, time.UTC)

	assert.Equal(t, 6, stats.TotalPunches)
	assert.Equal(t, 4, stats.TotalClockIns)
	assert.Equal(t, 2, stats.TotalClockOuts)
	assert.Equal(t, engine.StatusCounts{Normal: 2, Late: 1, Incomplete: 1}, stats.CountByStatus)
	assert.Equal(t, 3, stats.UniqueWorkedDays)
}

func TestComputeStats_LateAndIncomplete(t *testing.T) {
	week := engine.WeekOf(monday, time.UTC)
	stats := engine.ComputeStats([]engine.Punch{lateIn(monday, "10:00")}, week, later, time.UTC)

	assert.Equal(t, engine.StatusCounts{Late: 1, Incomplete: 1}, stats.CountByStatus)
}

func TestComputeStats_LateOutIsIgnored(t *testing.T) {
	week := engine.WeekOf(monday, time.UTC)
	lateOut := out(monday, "17:00")
	lateOut.Status = engine.StatusLate

	stats := engine.ComputeStats([]engine.Punch{in(monday, "09:00"), lateOut}, week, later, time.UTC)
	assert.Equal(t, 0, stats.CountByStatus.Late)
	assert.Equal(t, 1, stats.CountByStatus.Normal)
}

func TestComputeStats_UnknownDirectionIsNotAClockIn(t *testing.T) {
	week := engine.WeekOf(monday, time.UTC)
	odd := lateIn(monday, "18:00")
	odd.Direction = "UP"

	stats := engine.ComputeStats([]engine.Punch{in(monday, "09:00"), out(monday, "17:00"), odd}, week, later, time.UTC)
	assert.Equal(t, 3, stats.TotalPunches)
	assert.Equal(t, 1, stats.TotalClockIns)
	assert.Equal(t, 1, stats.TotalClockOuts)
	assert.Equal(t, engine.StatusCounts{Normal: 1}, stats.CountByStatus)
}

func TestComputeStats_IdenticalDoublePunch(t *testing.T) {
	week := engine.WeekOf(monday, time.UTC)
	// two IN punches at the same instant without IDs, then an OUT
	stats := engine.ComputeStats([]engine.Punch{
		in(monday, "09:00"), in(monday, "09:00"), out(monday, "17:00"),
	}, week, later, time.UTC)

	assert.Equal(t, engine.StatusCounts{Normal: 1, Incomplete: 1}, stats.CountByStatus)
	assert.Equal(t, 1, stats.UniqueWorkedDays)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := engine.ComputeStats(nil, engine.WeekOf(monday, time.UTC), later, time.UTC)
	assert.Equal(t, engine.Stats{}, stats)
}
