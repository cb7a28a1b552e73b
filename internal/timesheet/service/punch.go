package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/pkg/errors"
)

// terminalNamespace derives stable punch IDs from terminal-assigned identifiers
var terminalNamespace = uuid.MustParse("6f1f4f0e-3b0a-4d43-9a55-5c1b8f3a9e21")

// RecordPunchInput is a punch as reported by a terminal or a manual entry
type RecordPunchInput struct {
	// ID is optional. Non-UUID identifiers are mapped to a stable UUID so a
	// replayed punch is stored once.
	ID        string
	Timestamp time.Time
	Direction engine.Direction
}

// RecordPunchResult is the stored punch and how the call changed it
type RecordPunchResult struct {
	Punch     engine.Punch `json:"punch"`
	Created   bool         `json:"created"`
	Corrected bool         `json:"corrected"`
}

// CorrectPunchInput replaces the timestamp or direction of a stored punch.
// Zero fields keep the stored value.
type CorrectPunchInput struct {
	Timestamp time.Time
	Direction engine.Direction
}

// RecordPunch stores a punch with its status recomputed against the
// employee's schedule. Resending a stored punch ID returns the stored punch;
// when the timestamp or direction differ the stored punch is replaced.
func (s *TimesheetService) RecordPunch(ctx context.Context, employeeID string, in RecordPunchInput) (*RecordPunchResult, error) {
	if err := requireID("employee_id", employeeID); err != nil {
		return nil, err
	}
	if !in.Direction.Valid() {
		return nil, errors.Validation(map[string]string{"direction": "must be IN or OUT"})
	}

	at := in.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	punch := engine.Punch{
		ID:        punchID(employeeID, in.ID),
		SubjectID: employeeID,
		Timestamp: storedInstant(at),
		Direction: in.Direction,
		Status:    engine.StatusNormal,
	}

	status, err := s.classify(ctx, punch)
	if err != nil {
		return nil, err
	}
	punch.Status = status

	created, err := s.punches.CreatePunch(ctx, &punch)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.resend(ctx, punch)
	}

	s.logger.WithEmployeeID(employeeID).Info().
		Str("punch_id", punch.ID).
		Str("direction", string(punch.Direction)).
		Str("status", string(punch.Status)).
		Msg("punch recorded")
	s.publisher.PublishPunchRecorded(ctx, punch)

	return &RecordPunchResult{Punch: punch, Created: true}, nil
}

// resend handles a punch whose ID is already stored
func (s *TimesheetService) resend(ctx context.Context, punch engine.Punch) (*RecordPunchResult, error) {
	stored, err := s.punches.GetPunch(ctx, punch.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.SubjectID != punch.SubjectID {
		return nil, errors.Conflict("punch id is already used by another employee")
	}

	if stored.Timestamp.Equal(punch.Timestamp) && stored.Direction == punch.Direction {
		s.logger.WithEmployeeID(punch.SubjectID).Info().Str("punch_id", punch.ID).Msg("punch already recorded")
		return &RecordPunchResult{Punch: *stored}, nil
	}
	return s.replace(ctx, *stored, punch)
}

// CorrectPunch replaces the timestamp or direction of a stored punch and
// recomputes its status
func (s *TimesheetService) CorrectPunch(ctx context.Context, employeeID, id string, in CorrectPunchInput) (*RecordPunchResult, error) {
	if err := requireID("employee_id", employeeID); err != nil {
		return nil, err
	}
	// terminal ids are hashed into the stored id, so only presence matters
	if id == "" {
		return nil, errors.Validation(map[string]string{"punch_id": "is required"})
	}
	if in.Direction != "" && !in.Direction.Valid() {
		return nil, errors.Validation(map[string]string{"direction": "must be IN or OUT"})
	}

	stored, err := s.punches.GetPunch(ctx, punchID(employeeID, id))
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.SubjectID != employeeID {
		return nil, errors.NotFound("punch")
	}

	punch := *stored
	if !in.Timestamp.IsZero() {
		punch.Timestamp = storedInstant(in.Timestamp)
	}
	if in.Direction != "" {
		punch.Direction = in.Direction
	}

	status, err := s.classify(ctx, punch)
	if err != nil {
		return nil, err
	}
	punch.Status = status

	return s.replace(ctx, *stored, punch)
}

func (s *TimesheetService) replace(ctx context.Context, previous, punch engine.Punch) (*RecordPunchResult, error) {
	if err := s.punches.UpdatePunch(ctx, &punch); err != nil {
		return nil, err
	}

	s.logger.WithEmployeeID(punch.SubjectID).Info().
		Str("punch_id", punch.ID).
		Time("previous_timestamp", previous.Timestamp).
		Time("timestamp", punch.Timestamp).
		Str("direction", string(punch.Direction)).
		Str("status", string(punch.Status)).
		Msg("punch corrected")
	s.publisher.PublishPunchCorrected(ctx, previous, punch)

	return &RecordPunchResult{Punch: punch, Corrected: true}, nil
}

// storedInstant is t as the stores keep it: UTC at microsecond precision
func storedInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// classify computes the advisory status of an IN punch. Lateness is not
// recorded on a day covered by an approved absence.
func (s *TimesheetService) classify(ctx context.Context, p engine.Punch) (engine.PunchStatus, error) {
	if p.Direction != engine.DirectionIn {
		return engine.StatusNormal, nil
	}

	schedule, err := s.ResolveSchedule(ctx, p.SubjectID)
	if err != nil {
		return "", err
	}

	local := p
	local.Timestamp = p.Timestamp.In(s.cfg.Location)
	status := engine.ClassifyPunch(local, schedule, s.cfg.GracePeriodMinutes)
	if status != engine.StatusLate {
		return status, nil
	}

	day := engine.NewDateRange(local.Timestamp, local.Timestamp, s.cfg.Location)
	absences, err := s.approvedAbsences(ctx, p.SubjectID, day)
	if err != nil {
		return "", err
	}
	if engine.OverlapsApprovedAbsence(local.Timestamp, absences) {
		return engine.StatusNormal, nil
	}
	return status, nil
}

func punchID(employeeID, id string) string {
	if id == "" {
		return uuid.New().String()
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(terminalNamespace, []byte(employeeID+"/"+id)).String()
}
