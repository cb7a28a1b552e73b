package service

import (
	"context"
	"time"

	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
	"github.com/workclock/timesheet-backend/pkg/errors"
)

// ScheduleInput is an unparsed schedule record
type ScheduleInput struct {
	StartTime      string
	EndTime        string
	ActiveWeekdays []int
}

// PresenceReport tells whether an employee is expected at work right now
type PresenceReport struct {
	EmployeeID string    `json:"employee_id"`
	At         time.Time `json:"at"`
	ClockedIn  bool      `json:"clocked_in"`
	engine.PresenceCheck
}

// ScheduleWindowReport is the resolved schedule mapped onto the day axis
type ScheduleWindowReport struct {
	EmployeeID string          `json:"employee_id"`
	Schedule   engine.Schedule `json:"schedule"`
	Axis       engine.Axis     `json:"axis"`
	Window     engine.Window   `json:"window"`
}

// ============================================================================
// PRESENCE
// ============================================================================

// Presence checks the employee against the resolved schedule at the current
// instant. An approved absence on an active workday reports ABSENT.
func (s *TimesheetService) Presence(ctx context.Context, employeeID string) (*PresenceReport, error) {
	if err := requireID("employee_id", employeeID); err != nil {
		return nil, err
	}

	now := s.now().In(s.cfg.Location)
	schedule, err := s.ResolveSchedule(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	report := &PresenceReport{EmployeeID: employeeID, At: now}

	today := engine.StartOfDay(now, s.cfg.Location)
	punches, err := s.punches.ListPunches(ctx, employeeID, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	_, report.ClockedIn = engine.Pair(punches, now, s.cfg.Location).LiveOrphan()

	if engine.IsActiveWorkday(now, schedule) {
		absences, err := s.approvedAbsences(ctx, employeeID, engine.NewDateRange(now, now, s.cfg.Location))
		if err != nil {
			return nil, err
		}
		if engine.OverlapsApprovedAbsence(now, absences) {
			report.PresenceCheck = engine.PresenceCheck{Status: engine.PresenceAbsent}
			return report, nil
		}
	}

	report.PresenceCheck = engine.CheckPresence(schedule, now, s.cfg.GracePeriodMinutes)
	return report, nil
}

// ScheduleWindow maps the employee's resolved schedule onto the configured axis
func (s *TimesheetService) ScheduleWindow(ctx context.Context, employeeID string) (*ScheduleWindowReport, error) {
	if err := requireID("employee_id", employeeID); err != nil {
		return nil, err
	}

	schedule, err := s.ResolveSchedule(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, errors.NotFound("schedule")
	}

	return &ScheduleWindowReport{
		EmployeeID: employeeID,
		Schedule:   *schedule,
		Axis:       s.cfg.Axis,
		Window:     engine.ScheduleWindow(schedule, s.cfg.Axis),
	}, nil
}

// ============================================================================
// SCHEDULE MANAGEMENT
// ============================================================================

// SetEmployeeSchedule stores an individual schedule that overrides the team one
func (s *TimesheetService) SetEmployeeSchedule(ctx context.Context, employeeID string, in ScheduleInput) (*engine.Schedule, error) {
	if err := requireID("employee_id", employeeID); err != nil {
		return nil, err
	}
	schedule, err := engine.NewSchedule(in.StartTime, in.EndTime, in.ActiveWeekdays)
	if err != nil {
		return nil, scheduleError(err)
	}
	if err := s.schedules.SetEmployeeSchedule(ctx, employeeID, schedule); err != nil {
		return nil, err
	}

	s.logger.Info().Str("employee_id", employeeID).Msg("individual schedule set")
	return schedule, nil
}

// ClearEmployeeSchedule removes the individual override
func (s *TimesheetService) ClearEmployeeSchedule(ctx context.Context, employeeID string) error {
	if err := requireID("employee_id", employeeID); err != nil {
		return err
	}
	if err := s.schedules.ClearEmployeeSchedule(ctx, employeeID); err != nil {
		return err
	}

	s.logger.Info().Str("employee_id", employeeID).Msg("individual schedule cleared")
	return nil
}

// SetTeamSchedule stores the schedule shared by a team
func (s *TimesheetService) SetTeamSchedule(ctx context.Context, teamID string, in ScheduleInput) (*engine.Schedule, error) {
	if err := requireID("team_id", teamID); err != nil {
		return nil, err
	}
	schedule, err := engine.NewSchedule(in.StartTime, in.EndTime, in.ActiveWeekdays)
	if err != nil {
		return nil, scheduleError(err)
	}
	if err := s.schedules.SetTeamSchedule(ctx, teamID, schedule); err != nil {
		return nil, err
	}

	s.logger.Info().Str("team_id", teamID).Msg("team schedule set")
	return schedule, nil
}

// AssignTeam moves an employee into a team
func (s *TimesheetService) AssignTeam(ctx context.Context, employeeID, teamID string) error {
	if err := requireID("employee_id", employeeID); err != nil {
		return err
	}
	if err := requireID("team_id", teamID); err != nil {
		return err
	}
	return s.schedules.AssignTeam(ctx, employeeID, teamID)
}

// ============================================================================
// ABSENCES
// ============================================================================

// SyncAbsence stores an absence decision received from the staff service.
// Every status is kept; only APPROVED ones affect reports.
func (s *TimesheetService) SyncAbsence(ctx context.Context, rec repository.AbsenceRecord) error {
	if err := requireID("absence_id", rec.ID); err != nil {
		return err
	}
	if err := requireID("employee_id", rec.EmployeeID); err != nil {
		return err
	}

	switch engine.AbsenceStatus(rec.Status) {
	case engine.AbsencePending, engine.AbsenceApproved, engine.AbsenceRejected, engine.AbsenceCancelled:
	default:
		return errors.Validation(map[string]string{"status": "must be one of PENDING APPROVED REJECTED CANCELLED"})
	}

	start, err := engine.ParseDay(rec.StartDate, s.cfg.Location)
	if err != nil {
		return errors.InvalidFormat("start_date", err)
	}
	end, err := engine.ParseDay(rec.EndDate, s.cfg.Location)
	if err != nil {
		return errors.InvalidFormat("end_date", err)
	}
	if end.Before(start) {
		return errors.Validation(map[string]string{"end_date": "must not be before start_date"})
	}

	if err := s.absences.UpsertAbsence(ctx, &rec); err != nil {
		return err
	}

	s.logger.Info().
		Str("absence_id", rec.ID).
		Str("employee_id", rec.EmployeeID).
		Str("status", rec.Status).
		Msg("absence synchronized")
	return nil
}
