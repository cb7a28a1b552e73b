package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/workclock/timesheet-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// check_violation
	case "23514":
		return mapCheckConstraint(pqErr)

	// unique_violation
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// foreign_key_violation
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// not_null_violation
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "direction_valid"):
		return errors.Validation(map[string]string{
			"direction": "must be one of: IN, OUT",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: NORMAL, LATE, ABSENCE, INCOMPLETE",
		})

	case strings.Contains(constraint, "time_order"):
		return errors.Validation(map[string]string{
			"end_time": "must be after start_time",
		})

	case strings.Contains(constraint, "weekdays_valid"):
		return errors.Validation(map[string]string{
			"active_weekdays": "must contain ISO weekdays 1-7",
		})

	case strings.Contains(constraint, "date_order"):
		return errors.Validation(map[string]string{
			"end_date": "must not be before start_date",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "punches_pkey"):
		return "a punch with this id already exists"
	case strings.Contains(pqErr.Constraint, "employee_instant"):
		return "a punch in this direction already exists at this instant"
	default:
		return "a record with these values already exists"
	}
}
