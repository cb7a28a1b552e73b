package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Inbound punches from clock terminals
	EventClockPunchIn  = "clock.punch.in"
	EventClockPunchOut = "clock.punch.out"

	// Absence decisions from the staff service
	EventAbsenceApproved  = "staff.absence.approved"
	EventAbsenceRejected  = "staff.absence.rejected"
	EventAbsenceCancelled = "staff.absence.cancelled"

	// Timesheet events
	EventPunchRecorded   = "timesheet.punch.recorded"
	EventPunchCorrected  = "timesheet.punch.corrected"
	EventAnomalyDetected = "timesheet.anomaly.detected"
)

// Exchange names
const (
	ExchangeClockEvents     = "clock.events"
	ExchangeStaffEvents     = "staff.events"
	ExchangeTimesheetEvents = "timesheet.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// GenerateEventID returns a new random event ID
func GenerateEventID() string {
	return uuid.New().String()
}

// Clock Events

// ClockPunchEvent is emitted by a clock terminal for every badge swipe.
// Direction is implied by the event type when empty.
type ClockPunchEvent struct {
	PunchID    string    `json:"punch_id,omitempty"`
	EmployeeID string    `json:"employee_id"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  string    `json:"direction,omitempty"`
	TerminalID string    `json:"terminal_id,omitempty"`
}

// Staff Events

// AbsenceChangedEvent carries an absence decision. Dates are calendar days
// formatted as YYYY-MM-DD.
type AbsenceChangedEvent struct {
	AbsenceID  string `json:"absence_id"`
	EmployeeID string `json:"employee_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Status     string `json:"status"`
}

// Timesheet Events

// PunchRecordedEvent is published after a punch has been stored
type PunchRecordedEvent struct {
	PunchID    string    `json:"punch_id"`
	EmployeeID string    `json:"employee_id"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  string    `json:"direction"`
	Status     string    `json:"status"`
}

// PunchCorrectedEvent is published after a stored punch has been replaced
type PunchCorrectedEvent struct {
	PunchRecordedEvent
	PreviousTimestamp time.Time `json:"previous_timestamp"`
	PreviousDirection string    `json:"previous_direction"`
	PreviousStatus    string    `json:"previous_status"`
}

// OrphanSummary describes one punch that could not be paired
type OrphanSummary struct {
	PunchID   string    `json:"punch_id"`
	Direction string    `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// AnomalyDetectedEvent is published when a day contains punches that need a
// manual correction
type AnomalyDetectedEvent struct {
	EmployeeID         string          `json:"employee_id"`
	Date               string          `json:"date"`
	Orphans            []OrphanSummary `json:"orphans,omitempty"`
	AnomalousIntervals int             `json:"anomalous_intervals"`
}
