package service

import (
	"context"
	"fmt"
	"time"

	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/pkg/errors"
)

// IntervalView is a reconciled interval placed on the day axis
type IntervalView struct {
	Start         engine.Punch   `json:"start"`
	End           *engine.Punch  `json:"end,omitempty"`
	DurationHours float64        `json:"duration_hours"`
	Anomaly       engine.Anomaly `json:"anomaly,omitempty"`
	Position      engine.Window  `json:"position"`
}

// OrphanView is an unpaired punch placed on the day axis
type OrphanView struct {
	Punch      engine.Punch        `json:"punch"`
	Reason     engine.OrphanReason `json:"reason"`
	Percent    float64             `json:"percent"`
	OutOfFrame bool                `json:"out_of_frame,omitempty"`
}

// DayReport is the reconciled timesheet of one employee for one date
type DayReport struct {
	EmployeeID        string         `json:"employee_id"`
	Date              string         `json:"date"`
	Weekday           int            `json:"weekday"`
	Workday           bool           `json:"workday"`
	OnApprovedAbsence bool           `json:"on_approved_absence"`
	TotalHours        float64        `json:"total_hours"`
	MinutesLate       int            `json:"minutes_late"`
	Intervals         []IntervalView `json:"intervals"`
	Orphans           []OrphanView   `json:"orphans"`
	Live              *IntervalView  `json:"live,omitempty"`
	HasAnomalies      bool           `json:"has_anomalies"`
	ScheduleWindow    *engine.Window `json:"schedule_window,omitempty"`
}

// PeriodReport aggregates day reports over an inclusive date range
type PeriodReport struct {
	EmployeeID        string       `json:"employee_id"`
	From              string       `json:"from"`
	To                string       `json:"to"`
	Days              []DayReport  `json:"days"`
	TotalHours        float64      `json:"total_hours"`
	AverageDailyHours float64      `json:"average_daily_hours"`
	Stats             engine.Stats `json:"stats"`
}

// dayContext is the data shared by every day of a report
type dayContext struct {
	employeeID string
	schedule   *engine.Schedule
	absences   []engine.Absence
	now        time.Time
}

// ============================================================================
// DAY REPORT
// ============================================================================

// DayReport reconciles the punches of one calendar date. Days with unresolved
// punches or corrupt durations are published as anomalies.
func (s *TimesheetService) DayReport(ctx context.Context, employeeID, date string) (*DayReport, error) {
	if err := requireID("employee_id", employeeID); err != nil {
		return nil, err
	}
	day, err := engine.ParseDay(date, s.cfg.Location)
	if err != nil {
		return nil, errors.InvalidFormat("date", err)
	}

	r := engine.NewDateRange(day, day, s.cfg.Location)
	dc, err := s.loadDayContext(ctx, employeeID, r)
	if err != nil {
		return nil, err
	}

	punches, err := s.punches.ListPunches(ctx, employeeID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	rec := engine.Pair(punches, dc.now, s.cfg.Location)
	report := s.buildDay(dc, day, rec)

	if report.HasAnomalies {
		s.logAnomalies(employeeID, report)
		s.publisher.PublishAnomalyDetected(ctx, employeeID, report.Date, rec)
	}

	return &report, nil
}

// ============================================================================
// PERIOD REPORT
// ============================================================================

// PeriodReport reconciles every date of [from, to]. The average divides by
// calendar days, non-working days included.
func (s *TimesheetService) PeriodReport(ctx context.Context, employeeID, from, to string) (*PeriodReport, error) {
	if err := requireID("employee_id", employeeID); err != nil {
		return nil, err
	}
	start, err := engine.ParseDay(from, s.cfg.Location)
	if err != nil {
		return nil, errors.InvalidFormat("from", err)
	}
	end, err := engine.ParseDay(to, s.cfg.Location)
	if err != nil {
		return nil, errors.InvalidFormat("to", err)
	}

	r := engine.NewDateRange(start, end, s.cfg.Location)
	if !r.Valid() {
		return nil, errors.Validation(map[string]string{"to": "must not be before from"})
	}
	if s.cfg.MaxReportDays > 0 && r.NumDays() > s.cfg.MaxReportDays {
		return nil, errors.Validation(map[string]string{
			"to": fmt.Sprintf("range must not exceed %d days", s.cfg.MaxReportDays),
		})
	}

	dc, err := s.loadDayContext(ctx, employeeID, r)
	if err != nil {
		return nil, err
	}

	punches, err := s.punches.ListPunches(ctx, employeeID, r.Start, r.End.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	buckets := engine.BucketByDay(punches, s.cfg.Location)
	byDay := make(map[string]engine.Reconciliation, len(buckets))
	report := &PeriodReport{
		EmployeeID: employeeID,
		From:       engine.DayKey(r.Start, s.cfg.Location),
		To:         engine.DayKey(r.End, s.cfg.Location),
		Days:       make([]DayReport, 0, r.NumDays()),
	}

	for _, day := range r.Days() {
		key := engine.DayKey(day, s.cfg.Location)
		rec := engine.Pair(buckets[key], dc.now, s.cfg.Location)
		byDay[key] = rec

		dr := s.buildDay(dc, day, rec)
		if dr.HasAnomalies {
			s.logAnomalies(employeeID, dr)
		}
		report.Days = append(report.Days, dr)
	}

	total := engine.PeriodHours(byDay, r, dc.now, s.cfg.Location)
	report.TotalHours = engine.RoundHours(total)
	report.AverageDailyHours = engine.RoundHours(engine.AverageDailyHours(total, r))
	report.Stats = engine.ComputeStats(punches, r, dc.now, s.cfg.Location)

	return report, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *TimesheetService) loadDayContext(ctx context.Context, employeeID string, r engine.DateRange) (dayContext, error) {
	schedule, err := s.ResolveSchedule(ctx, employeeID)
	if err != nil {
		return dayContext{}, err
	}
	absences, err := s.approvedAbsences(ctx, employeeID, r)
	if err != nil {
		return dayContext{}, err
	}
	return dayContext{
		employeeID: employeeID,
		schedule:   schedule,
		absences:   absences,
		now:        s.now(),
	}, nil
}

func (s *TimesheetService) buildDay(dc dayContext, day time.Time, rec engine.Reconciliation) DayReport {
	loc := s.cfg.Location
	report := DayReport{
		EmployeeID:        dc.employeeID,
		Date:              engine.DayKey(day, loc),
		Weekday:           engine.ISOWeekday(day),
		Workday:           engine.IsActiveWorkday(day, dc.schedule),
		OnApprovedAbsence: engine.OverlapsApprovedAbsence(day, dc.absences),
		TotalHours:        engine.RoundHours(engine.DailyHours(rec, day, dc.now, loc)),
		Intervals:         make([]IntervalView, 0, len(rec.Intervals)),
		Orphans:           make([]OrphanView, 0, len(rec.Orphans)),
		HasAnomalies:      rec.HasAnomalies(),
	}

	if !report.OnApprovedAbsence {
		report.MinutesLate = engine.DayLateness(rec, dc.schedule, s.cfg.GracePeriodMinutes, loc)
	}
	if dc.schedule != nil {
		w := engine.ScheduleWindow(dc.schedule, s.cfg.Axis)
		report.ScheduleWindow = &w
	}

	for _, iv := range rec.Intervals {
		report.Intervals = append(report.Intervals, s.intervalView(iv, dc.now))
	}
	for _, o := range rec.Orphans {
		percent, out := engine.AxisPosition(engine.TimeOfDayOf(o.Punch.Timestamp.In(loc)), s.cfg.Axis)
		report.Orphans = append(report.Orphans, OrphanView{
			Punch:      o.Punch,
			Reason:     o.Reason,
			Percent:    percent,
			OutOfFrame: out,
		})
	}

	if engine.SameDay(day, dc.now, loc) {
		if live, ok := rec.LiveOrphan(); ok {
			view := s.intervalView(engine.OpenInterval(live, dc.now), dc.now)
			report.Live = &view
		}
	}

	return report
}

// intervalView places iv on the axis. An interval running past midnight ends
// at the right edge; clamped intervals without another anomaly are flagged
// OUT_OF_FRAME.
func (s *TimesheetService) intervalView(iv engine.Interval, now time.Time) IntervalView {
	loc := s.cfg.Location
	start := iv.Start.Timestamp.In(loc)
	end := now.In(loc)
	if iv.End != nil {
		end = iv.End.Timestamp.In(loc)
	}

	startPct, startOut := engine.AxisPosition(engine.TimeOfDayOf(start), s.cfg.Axis)
	endPct, endOut := engine.AxisPosition(engine.TimeOfDayOf(end), s.cfg.Axis)
	if !engine.SameDay(start, end, loc) {
		endPct, endOut = 100, true
	}

	view := IntervalView{
		Start:         iv.Start,
		End:           iv.End,
		DurationHours: engine.RoundHours(iv.DurationHours),
		Anomaly:       iv.Anomaly,
		Position: engine.Window{
			StartPercent: startPct,
			EndPercent:   endPct,
			OutOfFrame:   startOut || endOut,
		},
	}
	if view.Anomaly == engine.AnomalyNone && view.Position.OutOfFrame {
		view.Anomaly = engine.AnomalyOutOfFrame
	}
	return view
}

func (s *TimesheetService) logAnomalies(employeeID string, report DayReport) {
	anomalous := 0
	for _, iv := range report.Intervals {
		if iv.Anomaly != engine.AnomalyNone && iv.Anomaly != engine.AnomalyOutOfFrame {
			anomalous++
		}
	}
	orphans := 0
	for _, o := range report.Orphans {
		if o.Reason != engine.OrphanStillOpen {
			orphans++
		}
	}

	s.logger.Warn().
		Str("employee_id", employeeID).
		Str("date", report.Date).
		Int("orphans", orphans).
		Int("anomalous_intervals", anomalous).
		Msg("timesheet anomalies detected")
}
