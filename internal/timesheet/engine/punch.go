package engine

import (
	"time"
)

// Direction of a clock event
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// PunchStatus is the advisory status recorded with a punch. It may be recomputed.
type PunchStatus string

const (
	StatusNormal     PunchStatus = "NORMAL"
	StatusLate       PunchStatus = "LATE"
	StatusAbsence    PunchStatus = "ABSENCE"
	StatusIncomplete PunchStatus = "INCOMPLETE"
)

// Punch is a single raw clock event
type Punch struct {
	ID        string      `json:"id"`
	SubjectID string      `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Direction Direction   `json:"direction"`
	Status    PunchStatus `json:"status"`
}

// Anomaly flags a recovered data problem. Anomalies never abort a computation.
type Anomaly string

const (
	AnomalyNone              Anomaly = ""
	AnomalyNegativeDuration  Anomaly = "NEGATIVE_DURATION"
	AnomalyExcessiveDuration Anomaly = "EXCESSIVE_DURATION"
	AnomalyOutOfFrame        Anomaly = "OUT_OF_FRAME"
)

// Interval is a reconciled IN/OUT pair. End is nil for an interval that is
// still running and measured against "now".
type Interval struct {
	Start         Punch   `json:"start"`
	End           *Punch  `json:"end,omitempty"`
	DurationHours float64 `json:"duration_hours"`
	Anomaly       Anomaly `json:"anomaly,omitempty"`
}

// Open reports whether the interval has no real OUT punch
func (iv Interval) Open() bool {
	return iv.End == nil
}

// OrphanReason explains why a punch could not be paired
type OrphanReason string

const (
	OrphanStillOpen     OrphanReason = "STILL_OPEN"
	OrphanNoMatchingIn  OrphanReason = "NO_MATCHING_IN"
	OrphanNoMatchingOut OrphanReason = "NO_MATCHING_OUT"
)

// Orphan is a punch that could not be paired
type Orphan struct {
	Punch  Punch        `json:"punch"`
	Reason OrphanReason `json:"reason"`
}

// Live reports whether the orphan is the currently clocked-in punch
func (o Orphan) Live() bool {
	return o.Reason == OrphanStillOpen
}
