package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/pkg/database"
	"github.com/workclock/timesheet-backend/pkg/errors"
)

// punchRow is the punches table layout
type punchRow struct {
	ID         string    `db:"id"`
	EmployeeID string    `db:"employee_id"`
	PunchedAt  time.Time `db:"punched_at"`
	Direction  string    `db:"direction"`
	Status     string    `db:"status"`
}

func (r punchRow) toPunch() engine.Punch {
	return engine.Punch{
		ID:        r.ID,
		SubjectID: r.EmployeeID,
		Timestamp: r.PunchedAt.UTC(),
		Direction: engine.Direction(r.Direction),
		Status:    engine.PunchStatus(r.Status),
	}
}

// PunchRepository handles punch persistence
type PunchRepository struct {
	db *database.DB
}

// NewPunchRepository creates a new punch repository
func NewPunchRepository(db *database.DB) *PunchRepository {
	return &PunchRepository{db: db}
}

// CreatePunch stores p, assigning an ID when it has none. Replaying a punch
// with an existing ID is a no-op and reports created=false.
func (r *PunchRepository) CreatePunch(ctx context.Context, p *engine.Punch) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO punches (id, employee_id, punched_at, direction, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query,
		p.ID, p.SubjectID, p.Timestamp.UTC(), string(p.Direction), string(p.Status),
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return false, appErr
		}
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetPunch returns the punch with id, or nil when there is none
func (r *PunchRepository) GetPunch(ctx context.Context, id string) (*engine.Punch, error) {
	query := `
		SELECT id, employee_id, punched_at, direction, status
		FROM punches
		WHERE id = $1
	`
	var row punchRow
	if err := r.db.Conn(ctx).GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p := row.toPunch()
	return &p, nil
}

// UpdatePunch replaces the timestamp, direction and status of an existing punch
func (r *PunchRepository) UpdatePunch(ctx context.Context, p *engine.Punch) error {
	query := `
		UPDATE punches
		SET punched_at = $3, direction = $4, status = $5, corrected_at = NOW()
		WHERE id = $1 AND employee_id = $2
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query,
		p.ID, p.SubjectID, p.Timestamp.UTC(), string(p.Direction), string(p.Status),
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("punch")
	}
	return nil
}

// ListPunches returns the employee's punches in [from, to), oldest first
func (r *PunchRepository) ListPunches(ctx context.Context, employeeID string, from, to time.Time) ([]engine.Punch, error) {
	query := `
		SELECT id, employee_id, punched_at, direction, status
		FROM punches
		WHERE employee_id = $1 AND punched_at >= $2 AND punched_at < $3
		ORDER BY punched_at, created_at, id
	`
	var rows []punchRow
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, employeeID, from.UTC(), to.UTC()); err != nil {
		return nil, err
	}

	punches := make([]engine.Punch, len(rows))
	for i, row := range rows {
		punches[i] = row.toPunch()
	}
	return punches, nil
}
