package repository

import (
	"context"

	"github.com/workclock/timesheet-backend/pkg/database"
)

// AbsenceRecord is an absence as synchronized from the staff service.
// Dates are calendar days formatted as YYYY-MM-DD.
type AbsenceRecord struct {
	ID         string `db:"id" json:"id"`
	EmployeeID string `db:"employee_id" json:"employee_id"`
	StartDate  string `db:"start_date" json:"start_date"`
	EndDate    string `db:"end_date" json:"end_date"`
	Status     string `db:"status" json:"status"`
}

// AbsenceRepository handles absence persistence
type AbsenceRepository struct {
	db *database.DB
}

// NewAbsenceRepository creates a new absence repository
func NewAbsenceRepository(db *database.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

// ListAbsences returns the employee's absences overlapping [from, to], any status
func (r *AbsenceRepository) ListAbsences(ctx context.Context, employeeID, from, to string) ([]AbsenceRecord, error) {
	query := `
		SELECT id, employee_id, start_date::text AS start_date, end_date::text AS end_date, status
		FROM absences
		WHERE employee_id = $1 AND start_date <= $3 AND end_date >= $2
		ORDER BY start_date, id
	`
	var absences []AbsenceRecord
	if err := r.db.Conn(ctx).SelectContext(ctx, &absences, query, employeeID, from, to); err != nil {
		return nil, err
	}
	return absences, nil
}

// UpsertAbsence inserts or updates an absence by ID
func (r *AbsenceRepository) UpsertAbsence(ctx context.Context, a *AbsenceRecord) error {
	query := `
		INSERT INTO absences (id, employee_id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			employee_id = EXCLUDED.employee_id,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			status = EXCLUDED.status,
			updated_at = NOW()
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, a.ID, a.EmployeeID, a.StartDate, a.EndDate, a.Status)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}
