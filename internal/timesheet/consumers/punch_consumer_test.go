package consumers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/internal/timesheet/events"
	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
	"github.com/workclock/timesheet-backend/internal/timesheet/service"
	"github.com/workclock/timesheet-backend/pkg/logger"
	"github.com/workclock/timesheet-backend/pkg/messaging"
	"github.com/workclock/timesheet-backend/pkg/testutil"
)

var punchedAt = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newTestConsumer(t *testing.T) (*PunchEventConsumer, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	svc := service.NewTimesheetService(
		store, store, store,
		events.NewWithSink(testutil.NewMockPublisher(), logger.Nop()),
		service.DefaultConfig(),
		func() time.Time { return punchedAt.Add(time.Hour) },
		logger.Nop(),
	)
	return newPunchEventConsumer(svc, logger.Nop()), store
}

func newEvent(t *testing.T, eventType string, data interface{}) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(eventType, "clock-terminal", "corr-1", data)
	require.NoError(t, err)
	return event
}

func isPermanent(err error) bool {
	var permanent *messaging.PermanentError
	return errors.As(err, &permanent)
}

func TestHandleClockPunch(t *testing.T) {
	ctx := context.Background()
	c, store := newTestConsumer(t)

	event := newEvent(t, messaging.EventClockPunchIn, messaging.ClockPunchEvent{
		EmployeeID: "emp-1",
		Timestamp:  punchedAt,
		TerminalID: "T-1",
	})
	require.NoError(t, c.handleClockPunch(ctx, event))

	punches, err := store.ListPunches(ctx, "emp-1", punchedAt.Add(-time.Hour), punchedAt.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, punches, 1)
	assert.Equal(t, engine.DirectionIn, punches[0].Direction)

	// redelivery of the same event is stored once
	require.NoError(t, c.handleClockPunch(ctx, event))
	punches, err = store.ListPunches(ctx, "emp-1", punchedAt.Add(-time.Hour), punchedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, punches, 1)
}

func TestHandleClockPunch_ExplicitDirectionWins(t *testing.T) {
	ctx := context.Background()
	c, store := newTestConsumer(t)

	event := newEvent(t, messaging.EventClockPunchIn, messaging.ClockPunchEvent{
		PunchID:    "T-1/991",
		EmployeeID: "emp-1",
		Timestamp:  punchedAt,
		Direction:  "out",
	})
	require.NoError(t, c.handleClockPunch(ctx, event))

	punches, err := store.ListPunches(ctx, "emp-1", punchedAt, punchedAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, punches, 1)
	assert.Equal(t, engine.DirectionOut, punches[0].Direction)
}

func TestHandleClockPunch_PermanentFailures(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConsumer(t)

	tests := []struct {
		name  string
		event *messaging.Event
	}{
		{"missing employee", newEvent(t, messaging.EventClockPunchIn, messaging.ClockPunchEvent{Timestamp: punchedAt})},
		{"missing timestamp", newEvent(t, messaging.EventClockPunchIn, messaging.ClockPunchEvent{EmployeeID: "emp-1"})},
		{"bad direction", newEvent(t, messaging.EventClockPunchIn, messaging.ClockPunchEvent{EmployeeID: "emp-1", Timestamp: punchedAt, Direction: "up"})},
		{"malformed payload", &messaging.Event{ID: "e-1", Type: messaging.EventClockPunchIn, Data: []byte(`"nope"`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.handleClockPunch(ctx, tt.event)
			require.Error(t, err)
			assert.True(t, isPermanent(err), "expected permanent error, got %v", err)
		})
	}
}

func TestHandleAbsenceChanged(t *testing.T) {
	ctx := context.Background()
	c, store := newTestConsumer(t)

	event := newEvent(t, messaging.EventAbsenceApproved, messaging.AbsenceChangedEvent{
		AbsenceID:  "abs-1",
		EmployeeID: "emp-1",
		StartDate:  "2024-03-04",
		EndDate:    "2024-03-08",
	})
	require.NoError(t, c.handleAbsenceChanged(ctx, event))

	stored, err := store.ListAbsences(ctx, "emp-1", "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "APPROVED", stored[0].Status)

	cancel := newEvent(t, messaging.EventAbsenceCancelled, messaging.AbsenceChangedEvent{
		AbsenceID:  "abs-1",
		EmployeeID: "emp-1",
		StartDate:  "2024-03-04",
		EndDate:    "2024-03-08",
	})
	require.NoError(t, c.handleAbsenceChanged(ctx, cancel))

	stored, err = store.ListAbsences(ctx, "emp-1", "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "CANCELLED", stored[0].Status)
}

func TestHandleAbsenceChanged_BadDatesArePermanent(t *testing.T) {
	c, _ := newTestConsumer(t)

	event := newEvent(t, messaging.EventAbsenceApproved, messaging.AbsenceChangedEvent{
		AbsenceID:  "abs-1",
		EmployeeID: "emp-1",
		StartDate:  "08.03.2024",
		EndDate:    "2024-03-08",
	})
	err := c.handleAbsenceChanged(context.Background(), event)
	require.Error(t, err)
	assert.True(t, isPermanent(err))
}

func TestClassify(t *testing.T) {
	assert.False(t, isPermanent(classify(errors.New("connection reset"))))
}
