package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/internal/timesheet/events"
	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
	"github.com/workclock/timesheet-backend/internal/timesheet/service"
	"github.com/workclock/timesheet-backend/pkg/logger"
	"github.com/workclock/timesheet-backend/pkg/messaging"
	"github.com/workclock/timesheet-backend/pkg/testutil"
)

var tuesdayMorning = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

// ============================================================================
// DAY REPORT
// ============================================================================

func TestDayReport_SplitShift(t *testing.T) {
	f := newFixture(t, tuesdayMorning)
	f.officeHours(t)
	f.punch(t, engine.DirectionIn, monday(9, 0))
	f.punch(t, engine.DirectionOut, monday(12, 0))
	f.punch(t, engine.DirectionIn, monday(13, 0))
	f.punch(t, engine.DirectionOut, monday(17, 30))
	f.pub.Reset()

	report, err := f.svc.DayReport(context.Background(), employee, "2024-03-04")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-04", report.Date)
	assert.Equal(t, 1, report.Weekday)
	assert.True(t, report.Workday)
	assert.Equal(t, 7.5, report.TotalHours)
	assert.Zero(t, report.MinutesLate)
	assert.Len(t, report.Intervals, 2)
	assert.Empty(t, report.Orphans)
	assert.Nil(t, report.Live)
	assert.False(t, report.HasAnomalies)
	require.NotNil(t, report.ScheduleWindow)

	f.pub.AssertNoEventsPublished(t)
}

func TestDayReport_Lateness(t *testing.T) {
	t.Run("first arrival counts", func(t *testing.T) {
		f := newFixture(t, tuesdayMorning)
		f.officeHours(t)
		f.punch(t, engine.DirectionIn, monday(9, 40))
		f.punch(t, engine.DirectionOut, monday(17, 0))

		report, err := f.svc.DayReport(context.Background(), employee, "2024-03-04")
		require.NoError(t, err)
		assert.Equal(t, 25, report.MinutesLate)
		assert.False(t, report.OnApprovedAbsence)
	})

	t.Run("suppressed by approved absence", func(t *testing.T) {
		f := newFixture(t, tuesdayMorning)
		f.officeHours(t)
		f.approveAbsence(t, "2024-03-01", "2024-03-04")
		f.punch(t, engine.DirectionIn, monday(9, 40))
		f.punch(t, engine.DirectionOut, monday(17, 0))

		report, err := f.svc.DayReport(context.Background(), employee, "2024-03-04")
		require.NoError(t, err)
		assert.Zero(t, report.MinutesLate)
		assert.True(t, report.OnApprovedAbsence)
	})
}

func TestDayReport_AnomaliesArePublished(t *testing.T) {
	f := newFixture(t, tuesdayMorning)
	f.punch(t, engine.DirectionOut, monday(8, 0))
	f.punch(t, engine.DirectionIn, monday(9, 0))
	f.punch(t, engine.DirectionOut, monday(17, 0))

	report, err := f.svc.DayReport(context.Background(), employee, "2024-03-04")
	require.NoError(t, err)

	assert.True(t, report.HasAnomalies)
	require.Len(t, report.Orphans, 1)
	assert.Equal(t, engine.OrphanNoMatchingIn, report.Orphans[0].Reason)
	assert.Equal(t, 8.0, report.TotalHours)

	published := f.pub.Events(messaging.EventAnomalyDetected)
	require.Len(t, published, 1)
	data := published[0].Payload.(messaging.AnomalyDetectedEvent)
	assert.Equal(t, "2024-03-04", data.Date)
	assert.Len(t, data.Orphans, 1)
}

func TestDayReport_LiveInterval(t *testing.T) {
	f := newFixture(t, monday(10, 30))
	f.punch(t, engine.DirectionIn, monday(9, 0))
	f.pub.Reset()

	report, err := f.svc.DayReport(context.Background(), employee, "2024-03-04")
	require.NoError(t, err)

	require.NotNil(t, report.Live)
	assert.Equal(t, 1.5, report.Live.DurationHours)
	assert.Equal(t, 1.5, report.TotalHours)
	require.Len(t, report.Orphans, 1)
	assert.Equal(t, engine.OrphanStillOpen, report.Orphans[0].Reason)
	assert.False(t, report.HasAnomalies)
	f.pub.AssertNoEventsPublished(t)
}

func TestDayReport_PastOpenPunchIsIncomplete(t *testing.T) {
	f := newFixture(t, tuesdayMorning)
	f.punch(t, engine.DirectionIn, monday(9, 0))

	report, err := f.svc.DayReport(context.Background(), employee, "2024-03-04")
	require.NoError(t, err)

	assert.Nil(t, report.Live)
	assert.Zero(t, report.TotalHours)
	require.Len(t, report.Orphans, 1)
	assert.Equal(t, engine.OrphanNoMatchingOut, report.Orphans[0].Reason)
	assert.True(t, report.HasAnomalies)
}

func TestDayReport_AxisPositions(t *testing.T) {
	f := newFixture(t, tuesdayMorning)
	f.punch(t, engine.DirectionIn, monday(5, 0))
	f.punch(t, engine.DirectionOut, monday(7, 0))
	f.punch(t, engine.DirectionIn, monday(12, 0))
	f.punch(t, engine.DirectionOut, monday(14, 0))

	report, err := f.svc.DayReport(context.Background(), employee, "2024-03-04")
	require.NoError(t, err)
	require.Len(t, report.Intervals, 2)

	early := report.Intervals[0]
	assert.Equal(t, engine.AnomalyOutOfFrame, early.Anomaly)
	assert.True(t, early.Position.OutOfFrame)
	assert.Zero(t, early.Position.StartPercent)
	assert.InDelta(t, 1.0/17*100, early.Position.EndPercent, 0.001)

	midday := report.Intervals[1]
	assert.Equal(t, engine.AnomalyNone, midday.Anomaly)
	assert.InDelta(t, 6.0/17*100, midday.Position.StartPercent, 0.001)
	assert.InDelta(t, 8.0/17*100, midday.Position.EndPercent, 0.001)

	// out of frame is a display concern only
	assert.False(t, report.HasAnomalies)
}

func TestDayReport_NonWorkingDay(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC))
	f.officeHours(t)
	f.punch(t, engine.DirectionIn, time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC))
	f.punch(t, engine.DirectionOut, time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC))

	report, err := f.svc.DayReport(context.Background(), employee, "2024-03-09")
	require.NoError(t, err)
	assert.False(t, report.Workday)
	assert.Equal(t, 6, report.Weekday)
	assert.Equal(t, 2.0, report.TotalHours)
	assert.Zero(t, report.MinutesLate)
}

func TestDayReport_BucketsInConfiguredTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	cfg := service.DefaultConfig()
	cfg.Location = loc

	store := repository.NewMemoryStore()
	pub := testutil.NewMockPublisher()
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	svc := service.NewTimesheetService(store, store, store, events.NewWithSink(pub, logger.Nop()), cfg,
		func() time.Time { return now }, logger.Nop())

	ctx := context.Background()
	// 23:00 UTC on the 4th is 01:00 local on the 5th
	_, err := svc.RecordPunch(ctx, employee, service.RecordPunchInput{
		Timestamp: time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC), Direction: engine.DirectionIn,
	})
	require.NoError(t, err)
	_, err = svc.RecordPunch(ctx, employee, service.RecordPunchInput{
		Timestamp: time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC), Direction: engine.DirectionOut,
	})
	require.NoError(t, err)

	fourth, err := svc.DayReport(ctx, employee, "2024-03-04")
	require.NoError(t, err)
	assert.Empty(t, fourth.Intervals)

	fifth, err := svc.DayReport(ctx, employee, "2024-03-05")
	require.NoError(t, err)
	require.Len(t, fifth.Intervals, 1)
	assert.Equal(t, 4.0, fifth.TotalHours)
}

func TestDayReport_InvalidDate(t *testing.T) {
	f := newFixture(t, tuesdayMorning)

	for _, date := range []string{"2024-3-4", "04/03/2024", "2024-02-30", ""} {
		_, err := f.svc.DayReport(context.Background(), employee, date)
		requireAppError(t, err, "INVALID_FORMAT")
	}
}

// ============================================================================
// PERIOD REPORT
// ============================================================================

func TestPeriodReport_Week(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC))
	f.officeHours(t)

	for _, day := range []int{4, 5} {
		f.punch(t, engine.DirectionIn, time.Date(2024, 3, day, 9, 0, 0, 0, time.UTC))
		f.punch(t, engine.DirectionOut, time.Date(2024, 3, day, 17, 0, 0, 0, time.UTC))
	}
	f.punch(t, engine.DirectionIn, time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC))
	f.pub.Reset()

	report, err := f.svc.PeriodReport(context.Background(), employee, "2024-03-04", "2024-03-10")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-04", report.From)
	assert.Equal(t, "2024-03-10", report.To)
	require.Len(t, report.Days, 7)
	assert.Equal(t, "2024-03-06", report.Days[2].Date)
	assert.Equal(t, 15, report.Days[2].MinutesLate)
	assert.Equal(t, 16.0, report.TotalHours)
	assert.Equal(t, 2.3, report.AverageDailyHours)

	assert.Equal(t, 5, report.Stats.TotalPunches)
	assert.Equal(t, 3, report.Stats.TotalClockIns)
	assert.Equal(t, 2, report.Stats.TotalClockOuts)
	assert.Equal(t, 3, report.Stats.UniqueWorkedDays)
	assert.Equal(t, 1, report.Stats.CountByStatus.Late)
	assert.Equal(t, 1, report.Stats.CountByStatus.Incomplete)
	assert.Equal(t, 2, report.Stats.CountByStatus.Normal)

	f.pub.AssertNoEventsPublished(t)
}

func TestPeriodReport_SingleDay(t *testing.T) {
	f := newFixture(t, tuesdayMorning)
	f.punch(t, engine.DirectionIn, monday(9, 0))
	f.punch(t, engine.DirectionOut, monday(15, 0))

	report, err := f.svc.PeriodReport(context.Background(), employee, "2024-03-04", "2024-03-04")
	require.NoError(t, err)
	assert.Len(t, report.Days, 1)
	assert.Equal(t, 6.0, report.TotalHours)
	assert.Equal(t, 6.0, report.AverageDailyHours)
}

func TestPeriodReport_Errors(t *testing.T) {
	f := newFixture(t, tuesdayMorning)
	ctx := context.Background()

	_, err := f.svc.PeriodReport(ctx, employee, "2024-03-10", "2024-03-04")
	requireAppError(t, err, "VALIDATION_ERROR")

	_, err = f.svc.PeriodReport(ctx, employee, "2024-01-01", "2024-03-31")
	requireAppError(t, err, "VALIDATION_ERROR")

	_, err = f.svc.PeriodReport(ctx, employee, "yesterday", "2024-03-31")
	requireAppError(t, err, "INVALID_FORMAT")

	_, err = f.svc.PeriodReport(ctx, employee, "2024-03-01", "soon")
	requireAppError(t, err, "INVALID_FORMAT")
}

func TestPeriodReport_HugeRangeRejectedUpFront(t *testing.T) {
	f := newFixture(t, tuesdayMorning)

	start := time.Now()
	_, err := f.svc.PeriodReport(context.Background(), employee, "0001-01-01", "9999-12-31")
	appErr := requireAppError(t, err, "VALIDATION_ERROR")
	assert.Contains(t, appErr.Details["to"], "62 days")
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
