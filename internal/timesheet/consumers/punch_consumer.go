package consumers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
	"github.com/workclock/timesheet-backend/internal/timesheet/service"
	"github.com/workclock/timesheet-backend/pkg/errors"
	"github.com/workclock/timesheet-backend/pkg/logger"
	"github.com/workclock/timesheet-backend/pkg/messaging"
)

// Recorder is the part of the timesheet service fed by events
type Recorder interface {
	RecordPunch(ctx context.Context, employeeID string, in service.RecordPunchInput) (*service.RecordPunchResult, error)
	SyncAbsence(ctx context.Context, rec repository.AbsenceRecord) error
}

// PunchEventConsumer ingests terminal punches and absence decisions
type PunchEventConsumer struct {
	consumer *messaging.Consumer
	recorder Recorder
	logger   *logger.Logger
}

// NewPunchEventConsumer creates a consumer on queue bound to the clock and
// staff exchanges
func NewPunchEventConsumer(rmq *messaging.RabbitMQ, queue string, recorder Recorder, log *logger.Logger) (*PunchEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, queue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeClockEvents, "clock.punch.*"); err != nil {
		return nil, err
	}
	if err := consumer.Subscribe(messaging.ExchangeStaffEvents, "staff.absence.*"); err != nil {
		return nil, err
	}

	c := newPunchEventConsumer(recorder, log)
	c.consumer = consumer

	consumer.RegisterHandler(messaging.EventClockPunchIn, c.handleClockPunch)
	consumer.RegisterHandler(messaging.EventClockPunchOut, c.handleClockPunch)
	consumer.RegisterHandler(messaging.EventAbsenceApproved, c.handleAbsenceChanged)
	consumer.RegisterHandler(messaging.EventAbsenceRejected, c.handleAbsenceChanged)
	consumer.RegisterHandler(messaging.EventAbsenceCancelled, c.handleAbsenceChanged)

	return c, nil
}

func newPunchEventConsumer(recorder Recorder, log *logger.Logger) *PunchEventConsumer {
	return &PunchEventConsumer{
		recorder: recorder,
		logger:   log.WithComponent("punch-consumer"),
	}
}

// Start starts consuming messages
func (c *PunchEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *PunchEventConsumer) handleClockPunch(ctx context.Context, event *messaging.Event) error {
	var data messaging.ClockPunchEvent
	if err := event.UnmarshalData(&data); err != nil {
		return messaging.Permanent(fmt.Errorf("malformed punch payload: %w", err))
	}
	if data.Timestamp.IsZero() {
		return messaging.Permanent(fmt.Errorf("punch %s has no timestamp", event.ID))
	}

	direction := engine.Direction(strings.ToUpper(data.Direction))
	if direction == "" {
		direction = directionOf(event.Type)
	}

	// Redeliveries of one event carry the same ID and are stored once
	punchID := data.PunchID
	if punchID == "" {
		punchID = event.ID
	}

	result, err := c.recorder.RecordPunch(ctx, data.EmployeeID, service.RecordPunchInput{
		ID:        punchID,
		Timestamp: data.Timestamp,
		Direction: direction,
	})
	if err != nil {
		return classify(err)
	}

	c.logger.Info().
		Str("employee_id", data.EmployeeID).
		Str("punch_id", result.Punch.ID).
		Str("terminal_id", data.TerminalID).
		Bool("created", result.Created).
		Bool("corrected", result.Corrected).
		Msg("received clock punch")
	return nil
}

func (c *PunchEventConsumer) handleAbsenceChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.AbsenceChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return messaging.Permanent(fmt.Errorf("malformed absence payload: %w", err))
	}

	status := strings.ToUpper(data.Status)
	if status == "" {
		status = statusOf(event.Type)
	}

	err := c.recorder.SyncAbsence(ctx, repository.AbsenceRecord{
		ID:         data.AbsenceID,
		EmployeeID: data.EmployeeID,
		StartDate:  data.StartDate,
		EndDate:    data.EndDate,
		Status:     status,
	})
	if err != nil {
		return classify(err)
	}

	c.logger.Info().
		Str("absence_id", data.AbsenceID).
		Str("employee_id", data.EmployeeID).
		Str("status", status).
		Msg("received absence decision")
	return nil
}

// classify marks client errors as permanent; everything else is retried
func classify(err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.StatusCode >= http.StatusBadRequest && appErr.StatusCode < http.StatusInternalServerError {
		return messaging.Permanent(err)
	}
	return err
}

func directionOf(eventType string) engine.Direction {
	switch eventType {
	case messaging.EventClockPunchIn:
		return engine.DirectionIn
	case messaging.EventClockPunchOut:
		return engine.DirectionOut
	default:
		return ""
	}
}

func statusOf(eventType string) string {
	switch eventType {
	case messaging.EventAbsenceApproved:
		return string(engine.AbsenceApproved)
	case messaging.EventAbsenceRejected:
		return string(engine.AbsenceRejected)
	case messaging.EventAbsenceCancelled:
		return string(engine.AbsenceCancelled)
	default:
		return ""
	}
}
