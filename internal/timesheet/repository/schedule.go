package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/pkg/database"
)

type scheduleRow struct {
	StartTime      string        `db:"start_time"`
	EndTime        string        `db:"end_time"`
	ActiveWeekdays pq.Int64Array `db:"active_weekdays"`
}

func (r scheduleRow) toSchedule() (*engine.Schedule, error) {
	weekdays := make([]int, len(r.ActiveWeekdays))
	for i, d := range r.ActiveWeekdays {
		weekdays[i] = int(d)
	}
	s, err := engine.NewSchedule(r.StartTime, r.EndTime, weekdays)
	if err != nil {
		return nil, fmt.Errorf("stored schedule is invalid: %w", err)
	}
	return s, nil
}

func weekdayArray(s *engine.Schedule) pq.Int64Array {
	arr := make(pq.Int64Array, len(s.ActiveWeekdays))
	for i, d := range s.ActiveWeekdays {
		arr[i] = int64(d)
	}
	return arr
}

// ScheduleRepository handles team and individual schedules
type ScheduleRepository struct {
	db *database.DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *database.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ============================================================================
// INDIVIDUAL SCHEDULES
// ============================================================================

// GetEmployeeSchedule returns the employee's individual schedule, or nil
func (r *ScheduleRepository) GetEmployeeSchedule(ctx context.Context, employeeID string) (*engine.Schedule, error) {
	query := `
		SELECT start_time::text AS start_time, end_time::text AS end_time, active_weekdays
		FROM employee_schedules
		WHERE employee_id = $1
	`
	return r.getSchedule(ctx, query, employeeID)
}

// SetEmployeeSchedule creates or replaces the employee's individual schedule
func (r *ScheduleRepository) SetEmployeeSchedule(ctx context.Context, employeeID string, s *engine.Schedule) error {
	query := `
		INSERT INTO employee_schedules (employee_id, start_time, end_time, active_weekdays)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (employee_id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			active_weekdays = EXCLUDED.active_weekdays,
			updated_at = NOW()
	`
	return r.exec(ctx, query, employeeID, s.StartTime.String(), s.EndTime.String(), weekdayArray(s))
}

// ClearEmployeeSchedule removes the individual schedule so the team one applies again
func (r *ScheduleRepository) ClearEmployeeSchedule(ctx context.Context, employeeID string) error {
	return r.exec(ctx, `DELETE FROM employee_schedules WHERE employee_id = $1`, employeeID)
}

// ============================================================================
// TEAM SCHEDULES
// ============================================================================

// GetTeamScheduleForEmployee returns the schedule of the employee's team, or nil
func (r *ScheduleRepository) GetTeamScheduleForEmployee(ctx context.Context, employeeID string) (*engine.Schedule, error) {
	query := `
		SELECT ts.start_time::text AS start_time, ts.end_time::text AS end_time, ts.active_weekdays
		FROM employee_teams et
		JOIN team_schedules ts ON ts.team_id = et.team_id
		WHERE et.employee_id = $1
	`
	return r.getSchedule(ctx, query, employeeID)
}

// SetTeamSchedule creates or replaces a team schedule
func (r *ScheduleRepository) SetTeamSchedule(ctx context.Context, teamID string, s *engine.Schedule) error {
	query := `
		INSERT INTO team_schedules (team_id, start_time, end_time, active_weekdays)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			active_weekdays = EXCLUDED.active_weekdays,
			updated_at = NOW()
	`
	return r.exec(ctx, query, teamID, s.StartTime.String(), s.EndTime.String(), weekdayArray(s))
}

// AssignTeam moves the employee into a team
func (r *ScheduleRepository) AssignTeam(ctx context.Context, employeeID, teamID string) error {
	query := `
		INSERT INTO employee_teams (employee_id, team_id)
		VALUES ($1, $2)
		ON CONFLICT (employee_id) DO UPDATE SET team_id = EXCLUDED.team_id, updated_at = NOW()
	`
	return r.exec(ctx, query, employeeID, teamID)
}

func (r *ScheduleRepository) getSchedule(ctx context.Context, query string, args ...interface{}) (*engine.Schedule, error) {
	var row scheduleRow
	err := r.db.Conn(ctx).GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toSchedule()
}

func (r *ScheduleRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}
