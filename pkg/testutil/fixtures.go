package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
	day      time.Time
}

// NewFixtureFactory creates a fixture factory whose punches fall on day (UTC)
func NewFixtureFactory(day time.Time) *FixtureFactory {
	return &FixtureFactory{day: engine.StartOfDay(day, time.UTC)}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// ============================================================================
// PUNCHES
// ============================================================================

// Punch creates an IN punch at 09:00 on the factory day
func (f *FixtureFactory) Punch(opts ...func(*engine.Punch)) *engine.Punch {
	f.nextSeq()

	p := &engine.Punch{
		ID:        uuid.New().String(),
		SubjectID: "emp-1",
		Timestamp: f.day.Add(9 * time.Hour),
		Direction: engine.DirectionIn,
		Status:    engine.StatusNormal,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Shift creates a closed IN/OUT pair between two wall-clock times on the factory day
func (f *FixtureFactory) Shift(employeeID, start, end string) []*engine.Punch {
	return []*engine.Punch{
		f.Punch(WithEmployee(employeeID), At(f.At(start))),
		f.Punch(WithEmployee(employeeID), At(f.At(end)), Out()),
	}
}

// At returns the instant of a HH:MM time of day on the factory day
func (f *FixtureFactory) At(clock string) time.Time {
	return engine.MustParseTimeOfDay(clock).On(f.day, time.UTC)
}

// WithEmployee sets the punch subject
func WithEmployee(employeeID string) func(*engine.Punch) {
	return func(p *engine.Punch) {
		p.SubjectID = employeeID
	}
}

// At sets the punch timestamp
func At(ts time.Time) func(*engine.Punch) {
	return func(p *engine.Punch) {
		p.Timestamp = ts
	}
}

// Out makes the punch a clock-out
func Out() func(*engine.Punch) {
	return func(p *engine.Punch) {
		p.Direction = engine.DirectionOut
	}
}

// WithPunchStatus sets the recorded punch status
func WithPunchStatus(status engine.PunchStatus) func(*engine.Punch) {
	return func(p *engine.Punch) {
		p.Status = status
	}
}

// ============================================================================
// SCHEDULES AND ABSENCES
// ============================================================================

// OfficeHours returns a 09:00-17:00 Monday to Friday schedule
func (f *FixtureFactory) OfficeHours() *engine.Schedule {
	s, err := engine.NewSchedule("09:00", "17:00", []int{1, 2, 3, 4, 5})
	if err != nil {
		panic(err)
	}
	return s
}

// Absence creates an approved one-day absence on the factory day
func (f *FixtureFactory) Absence(opts ...func(*repository.AbsenceRecord)) *repository.AbsenceRecord {
	seq := f.nextSeq()
	day := engine.DayKey(f.day, time.UTC)

	a := &repository.AbsenceRecord{
		ID:         fmt.Sprintf("abs-%d", seq),
		EmployeeID: "emp-1",
		StartDate:  day,
		EndDate:    day,
		Status:     string(engine.AbsenceApproved),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Spanning sets the absence dates
func Spanning(start, end string) func(*repository.AbsenceRecord) {
	return func(a *repository.AbsenceRecord) {
		a.StartDate = start
		a.EndDate = end
	}
}

// WithAbsenceStatus sets the absence status
func WithAbsenceStatus(status engine.AbsenceStatus) func(*repository.AbsenceRecord) {
	return func(a *repository.AbsenceRecord) {
		a.Status = string(status)
	}
}
