package events

import (
	"context"

	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/pkg/config"
	"github.com/workclock/timesheet-backend/pkg/logger"
	"github.com/workclock/timesheet-backend/pkg/messaging"
)

// Sink accepts typed event payloads. *messaging.Publisher is the production sink.
type Sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// TimesheetEventPublisher publishes timesheet events. Failures are logged,
// never returned.
type TimesheetEventPublisher struct {
	sink   Sink
	logger *logger.Logger
}

// NewTimesheetEventPublisher creates a publisher on the timesheet exchange
func NewTimesheetEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*TimesheetEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeTimesheetEvents, config.ServiceName, log)
	if err != nil {
		return nil, err
	}

	return NewWithSink(publisher, log), nil
}

// NewWithSink creates a publisher writing to sink
func NewWithSink(sink Sink, log *logger.Logger) *TimesheetEventPublisher {
	return &TimesheetEventPublisher{
		sink:   sink,
		logger: log,
	}
}

// NewNop creates a publisher that drops every event, for runs without a broker
func NewNop(log *logger.Logger) *TimesheetEventPublisher {
	return NewWithSink(nopSink{}, log)
}

type nopSink struct{}

func (nopSink) Publish(context.Context, string, interface{}) error { return nil }

func recorded(punch engine.Punch) messaging.PunchRecordedEvent {
	return messaging.PunchRecordedEvent{
		PunchID:    punch.ID,
		EmployeeID: punch.SubjectID,
		Timestamp:  punch.Timestamp.UTC(),
		Direction:  string(punch.Direction),
		Status:     string(punch.Status),
	}
}

// PublishPunchRecorded publishes a punch recorded event
func (p *TimesheetEventPublisher) PublishPunchRecorded(ctx context.Context, punch engine.Punch) {
	data := recorded(punch)

	if err := p.sink.Publish(ctx, messaging.EventPunchRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("punch_id", punch.ID).Msg("failed to publish punch recorded event")
	}
}

// PublishPunchCorrected publishes the replacement of previous by punch
func (p *TimesheetEventPublisher) PublishPunchCorrected(ctx context.Context, previous, punch engine.Punch) {
	data := messaging.PunchCorrectedEvent{
		PunchRecordedEvent: recorded(punch),
		PreviousTimestamp:  previous.Timestamp.UTC(),
		PreviousDirection:  string(previous.Direction),
		PreviousStatus:     string(previous.Status),
	}

	if err := p.sink.Publish(ctx, messaging.EventPunchCorrected, data); err != nil {
		p.logger.Error().Err(err).Str("punch_id", punch.ID).Msg("failed to publish punch corrected event")
	}
}

// PublishAnomalyDetected publishes the unresolved punches of one day. Days
// without anomalies are skipped.
func (p *TimesheetEventPublisher) PublishAnomalyDetected(ctx context.Context, employeeID, day string, rec engine.Reconciliation) {
	if !rec.HasAnomalies() {
		return
	}

	data := messaging.AnomalyDetectedEvent{
		EmployeeID: employeeID,
		Date:       day,
	}
	for _, o := range rec.Orphans {
		if o.Live() {
			continue
		}
		data.Orphans = append(data.Orphans, messaging.OrphanSummary{
			PunchID:   o.Punch.ID,
			Direction: string(o.Punch.Direction),
			Timestamp: o.Punch.Timestamp.UTC(),
			Reason:    string(o.Reason),
		})
	}
	for _, iv := range rec.Intervals {
		if iv.Anomaly != engine.AnomalyNone {
			data.AnomalousIntervals++
		}
	}

	if err := p.sink.Publish(ctx, messaging.EventAnomalyDetected, data); err != nil {
		p.logger.Error().Err(err).Str("employee_id", employeeID).Str("date", day).Msg("failed to publish anomaly detected event")
	}
}
