package repository

import (
	"context"
	"fmt"

	"github.com/workclock/timesheet-backend/pkg/database"
)

// Migrations returns the DDL statements for the timesheet schema, in order.
// Every statement is idempotent.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS punches (
			id UUID PRIMARY KEY,
			employee_id VARCHAR(64) NOT NULL,
			punched_at TIMESTAMPTZ NOT NULL,
			direction VARCHAR(3) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'NORMAL',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT punches_direction_valid CHECK (direction IN ('IN', 'OUT')),
			CONSTRAINT punches_status_valid CHECK (status IN ('NORMAL', 'LATE', 'ABSENCE', 'INCOMPLETE'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_punches_employee_time ON punches (employee_id, punched_at)`,
		`ALTER TABLE punches ADD COLUMN IF NOT EXISTS corrected_at TIMESTAMPTZ`,

		`CREATE TABLE IF NOT EXISTS team_schedules (
			team_id VARCHAR(64) PRIMARY KEY,
			start_time TIME NOT NULL,
			end_time TIME NOT NULL,
			active_weekdays SMALLINT[] NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT team_schedules_time_order CHECK (start_time < end_time),
			CONSTRAINT team_schedules_weekdays_valid CHECK (
				cardinality(active_weekdays) > 0 AND active_weekdays <@ ARRAY[1,2,3,4,5,6,7]::SMALLINT[]
			)
		)`,
		`CREATE TABLE IF NOT EXISTS employee_schedules (
			employee_id VARCHAR(64) PRIMARY KEY,
			start_time TIME NOT NULL,
			end_time TIME NOT NULL,
			active_weekdays SMALLINT[] NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT employee_schedules_time_order CHECK (start_time < end_time),
			CONSTRAINT employee_schedules_weekdays_valid CHECK (
				cardinality(active_weekdays) > 0 AND active_weekdays <@ ARRAY[1,2,3,4,5,6,7]::SMALLINT[]
			)
		)`,
		`CREATE TABLE IF NOT EXISTS employee_teams (
			employee_id VARCHAR(64) PRIMARY KEY,
			team_id VARCHAR(64) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS absences (
			id VARCHAR(64) PRIMARY KEY,
			employee_id VARCHAR(64) NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			status VARCHAR(20) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT absences_date_order CHECK (start_date <= end_date),
			CONSTRAINT absences_status_valid CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED', 'CANCELLED'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_absences_employee_dates ON absences (employee_id, start_date, end_date)`,
	}
}

// Migrate applies the schema in a single transaction
func Migrate(ctx context.Context, db *database.DB) error {
	return db.Transaction(ctx, func(ctx context.Context) error {
		for i, stmt := range Migrations() {
			if _, err := db.Conn(ctx).ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
		}
		return nil
	})
}
