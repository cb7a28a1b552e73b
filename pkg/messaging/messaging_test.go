package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workclock/timesheet-backend/pkg/logger"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

type ackRecorder struct {
	acked, nacked, rejected, requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}
func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.rejected, a.requeued = true, requeue
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, ExchangeTimesheetEvents, "timesheet-service", logger.Nop())

	ctx := WithCorrelationID(context.Background(), "req-1")
	payload := PunchRecordedEvent{PunchID: "p-1", EmployeeID: "emp-1", Direction: "IN", Status: "LATE"}
	require.NoError(t, p.Publish(ctx, EventPunchRecorded, payload))

	assert.Equal(t, ExchangeTimesheetEvents, ch.exchange)
	assert.Equal(t, EventPunchRecorded, ch.key)
	assert.Equal(t, "req-1", ch.msg.CorrelationId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var event Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &event))
	assert.Equal(t, EventPunchRecorded, event.Type)
	assert.Equal(t, "timesheet-service", event.Source)
	assert.Equal(t, ch.msg.MessageId, event.ID)

	var got PunchRecordedEvent
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, payload, got)
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := newPublisher(ch, ExchangeTimesheetEvents, "timesheet-service", logger.Nop())

	err := p.Publish(context.Background(), EventAnomalyDetected, AnomalyDetectedEvent{EmployeeID: "emp-1"})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func delivery(t *testing.T, ack *ackRecorder, eventType string, data interface{}, headers amqp.Table) amqp.Delivery {
	t.Helper()
	event, err := NewEvent(eventType, "clock-terminal", "corr-9", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Headers: headers}
}

func TestConsumer_HandleMessage(t *testing.T) {
	punch := ClockPunchEvent{EmployeeID: "emp-1", Timestamp: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}

	t.Run("success acks and carries correlation id", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		var seen ClockPunchEvent
		var corr string
		c.RegisterHandler(EventClockPunchIn, func(ctx context.Context, e *Event) error {
			corr = CorrelationID(ctx)
			return e.UnmarshalData(&seen)
		})

		ack := &ackRecorder{}
		c.handleMessage(context.Background(), delivery(t, ack, EventClockPunchIn, punch, nil))

		assert.True(t, ack.acked)
		assert.Equal(t, "corr-9", corr)
		assert.Equal(t, "emp-1", seen.EmployeeID)
	})

	t.Run("unknown type is acked", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		ack := &ackRecorder{}
		c.handleMessage(context.Background(), delivery(t, ack, "clock.heartbeat", struct{}{}, nil))
		assert.True(t, ack.acked)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		ack := &ackRecorder{}
		c.handleMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})
		assert.True(t, ack.rejected)
		assert.False(t, ack.requeued)
	})

	t.Run("transient failure is requeued", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		c.RegisterHandler(EventClockPunchIn, func(context.Context, *Event) error { return errors.New("db down") })
		ack := &ackRecorder{}
		c.handleMessage(context.Background(), delivery(t, ack, EventClockPunchIn, punch, nil))
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeued)
	})

	t.Run("permanent failure is rejected", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		c.RegisterHandler(EventClockPunchIn, func(context.Context, *Event) error {
			return Permanent(errors.New("unknown direction"))
		})
		ack := &ackRecorder{}
		c.handleMessage(context.Background(), delivery(t, ack, EventClockPunchIn, punch, nil))
		assert.True(t, ack.rejected)
		assert.False(t, ack.requeued)
	})

	t.Run("retries exhausted goes to DLQ", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		c.RegisterHandler(EventClockPunchIn, func(context.Context, *Event) error { return errors.New("db down") })
		headers := amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(MaxDeliveries)}}}
		ack := &ackRecorder{}
		c.handleMessage(context.Background(), delivery(t, ack, EventClockPunchIn, punch, headers))
		assert.True(t, ack.rejected)
		assert.False(t, ack.requeued)
	})
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	inner := errors.New("bad payload")
	err := Permanent(inner)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "bad payload", err.Error())
}
