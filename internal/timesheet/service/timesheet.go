package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
	"github.com/workclock/timesheet-backend/pkg/config"
	"github.com/workclock/timesheet-backend/pkg/errors"
	"github.com/workclock/timesheet-backend/pkg/logger"
)

// PunchStore persists raw clock events
type PunchStore interface {
	CreatePunch(ctx context.Context, p *engine.Punch) (bool, error)
	GetPunch(ctx context.Context, id string) (*engine.Punch, error)
	UpdatePunch(ctx context.Context, p *engine.Punch) error
	ListPunches(ctx context.Context, employeeID string, from, to time.Time) ([]engine.Punch, error)
}

// ScheduleStore persists team and individual schedules
type ScheduleStore interface {
	GetEmployeeSchedule(ctx context.Context, employeeID string) (*engine.Schedule, error)
	SetEmployeeSchedule(ctx context.Context, employeeID string, s *engine.Schedule) error
	ClearEmployeeSchedule(ctx context.Context, employeeID string) error
	GetTeamScheduleForEmployee(ctx context.Context, employeeID string) (*engine.Schedule, error)
	SetTeamSchedule(ctx context.Context, teamID string, s *engine.Schedule) error
	AssignTeam(ctx context.Context, employeeID, teamID string) error
}

// AbsenceStore persists absences synchronized from the staff service
type AbsenceStore interface {
	ListAbsences(ctx context.Context, employeeID, from, to string) ([]repository.AbsenceRecord, error)
	UpsertAbsence(ctx context.Context, a *repository.AbsenceRecord) error
}

// EventPublisher publishes timesheet events. Implementations log failures.
type EventPublisher interface {
	PublishPunchRecorded(ctx context.Context, p engine.Punch)
	PublishPunchCorrected(ctx context.Context, previous, p engine.Punch)
	PublishAnomalyDetected(ctx context.Context, employeeID, day string, rec engine.Reconciliation)
}

// Clock returns the current instant
type Clock func() time.Time

// Config holds the parsed reconciliation settings
type Config struct {
	GracePeriodMinutes int
	Axis               engine.Axis
	Location           *time.Location
	MaxReportDays      int
}

// DefaultConfig returns the built-in reconciliation settings in UTC
func DefaultConfig() Config {
	return Config{
		GracePeriodMinutes: engine.DefaultGracePeriodMinutes,
		Axis:               engine.DefaultAxis,
		Location:           time.UTC,
		MaxReportDays:      62,
	}
}

// NewConfig parses the timesheet section of the service configuration
func NewConfig(cfg config.TimesheetConfig) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return Config{}, err
	}
	start, err := engine.ParseTimeOfDay(cfg.AxisStart)
	if err != nil {
		return Config{}, fmt.Errorf("axis_start: %w", err)
	}
	end, err := engine.ParseTimeOfDay(cfg.AxisEnd)
	if err != nil {
		return Config{}, fmt.Errorf("axis_end: %w", err)
	}
	if !start.Before(end) {
		return Config{}, fmt.Errorf("axis_start %s must be before axis_end %s", start, end)
	}

	return Config{
		GracePeriodMinutes: cfg.GracePeriodMinutes,
		Axis:               engine.Axis{Start: start, End: end},
		Location:           loc,
		MaxReportDays:      cfg.MaxReportDays,
	}, nil
}

// TimesheetService reconciles punches against schedules and absences
type TimesheetService struct {
	punches   PunchStore
	schedules ScheduleStore
	absences  AbsenceStore
	publisher EventPublisher
	cfg       Config
	now       Clock
	logger    *logger.Logger
}

// NewTimesheetService creates a new timesheet service. A nil clock uses time.Now.
func NewTimesheetService(
	punches PunchStore,
	schedules ScheduleStore,
	absences AbsenceStore,
	publisher EventPublisher,
	cfg Config,
	now Clock,
	log *logger.Logger,
) *TimesheetService {
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &TimesheetService{
		punches:   punches,
		schedules: schedules,
		absences:  absences,
		publisher: publisher,
		cfg:       cfg,
		now:       now,
		logger:    log.WithComponent("timesheet-service"),
	}
}

// Location returns the timezone used to bucket punches into days
func (s *TimesheetService) Location() *time.Location {
	return s.cfg.Location
}

// ResolveSchedule returns the schedule that applies to the employee: the
// individual override when set, the team schedule otherwise, or nil.
func (s *TimesheetService) ResolveSchedule(ctx context.Context, employeeID string) (*engine.Schedule, error) {
	individual, err := s.schedules.GetEmployeeSchedule(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if individual != nil {
		return individual, nil
	}
	return s.schedules.GetTeamScheduleForEmployee(ctx, employeeID)
}

// approvedAbsences loads the employee's absences overlapping r as engine values.
// Rows with unreadable dates are skipped.
func (s *TimesheetService) approvedAbsences(ctx context.Context, employeeID string, r engine.DateRange) ([]engine.Absence, error) {
	from := engine.DayKey(r.Start, s.cfg.Location)
	to := engine.DayKey(r.End, s.cfg.Location)
	records, err := s.absences.ListAbsences(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	absences := make([]engine.Absence, 0, len(records))
	for _, rec := range records {
		a, err := toAbsence(rec, s.cfg.Location)
		if err != nil {
			s.logger.Warn().Err(err).Str("absence_id", rec.ID).Msg("skipping absence with invalid dates")
			continue
		}
		absences = append(absences, a)
	}
	return absences, nil
}

func toAbsence(rec repository.AbsenceRecord, loc *time.Location) (engine.Absence, error) {
	start, err := engine.ParseDay(rec.StartDate, loc)
	if err != nil {
		return engine.Absence{}, err
	}
	end, err := engine.ParseDay(rec.EndDate, loc)
	if err != nil {
		return engine.Absence{}, err
	}
	return engine.Absence{StartDate: start, EndDate: end, Status: engine.AbsenceStatus(rec.Status)}, nil
}

// scheduleError turns schedule parsing failures into client errors
func scheduleError(err error) error {
	var formatErr *engine.FormatError
	if stderrors.As(err, &formatErr) {
		return errors.InvalidFormat("schedule", err)
	}
	if stderrors.Is(err, engine.ErrInvalidSchedule) {
		return errors.Validation(map[string]string{"schedule": err.Error()})
	}
	return err
}

// maxIDLength matches the width of the stored key columns
const maxIDLength = 64

// requireID checks an identifier that is stored as a key column
func requireID(field, value string) error {
	if value == "" {
		return errors.Validation(map[string]string{field: "is required"})
	}
	if len(value) > maxIDLength {
		return errors.Validation(map[string]string{field: fmt.Sprintf("must be at most %d characters", maxIDLength)})
	}
	return nil
}
