package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/pkg/errors"
)

// MemoryStore keeps punches, schedules and absences in process. It backs
// local runs without a database and service tests.
type MemoryStore struct {
	mu                sync.RWMutex
	punches           map[string][]engine.Punch
	punchOwners       map[string]string
	employeeSchedules map[string]engine.Schedule
	teamSchedules     map[string]engine.Schedule
	teams             map[string]string
	absences          map[string]AbsenceRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		punches:           make(map[string][]engine.Punch),
		punchOwners:       make(map[string]string),
		employeeSchedules: make(map[string]engine.Schedule),
		teamSchedules:     make(map[string]engine.Schedule),
		teams:             make(map[string]string),
		absences:          make(map[string]AbsenceRecord),
	}
}

// ============================================================================
// PUNCHES
// ============================================================================

func (m *MemoryStore) CreatePunch(_ context.Context, p *engine.Punch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, ok := m.punchOwners[p.ID]; ok {
		return false, nil
	}
	m.punchOwners[p.ID] = p.SubjectID

	stored := *p
	stored.Timestamp = stored.Timestamp.UTC()
	m.punches[p.SubjectID] = append(m.punches[p.SubjectID], stored)
	return true, nil
}

func (m *MemoryStore) GetPunch(_ context.Context, id string) (*engine.Punch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.punchOwners[id]
	if !ok {
		return nil, nil
	}
	for _, p := range m.punches[owner] {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) UpdatePunch(_ context.Context, p *engine.Punch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.punchOwners[p.ID] != p.SubjectID {
		return errors.NotFound("punch")
	}
	punches := m.punches[p.SubjectID]
	for i := range punches {
		if punches[i].ID == p.ID {
			punches[i].Timestamp = p.Timestamp.UTC()
			punches[i].Direction = p.Direction
			punches[i].Status = p.Status
			return nil
		}
	}
	return errors.NotFound("punch")
}

func (m *MemoryStore) ListPunches(_ context.Context, employeeID string, from, to time.Time) ([]engine.Punch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.Punch
	for _, p := range m.punches[employeeID] {
		if !p.Timestamp.Before(from) && p.Timestamp.Before(to) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// ============================================================================
// SCHEDULES
// ============================================================================

func (m *MemoryStore) GetEmployeeSchedule(_ context.Context, employeeID string) (*engine.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSchedule(m.employeeSchedules, employeeID), nil
}

func (m *MemoryStore) SetEmployeeSchedule(_ context.Context, employeeID string, s *engine.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employeeSchedules[employeeID] = copySchedule(s)
	return nil
}

func (m *MemoryStore) ClearEmployeeSchedule(_ context.Context, employeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.employeeSchedules, employeeID)
	return nil
}

func (m *MemoryStore) GetTeamScheduleForEmployee(_ context.Context, employeeID string) (*engine.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	teamID, ok := m.teams[employeeID]
	if !ok {
		return nil, nil
	}
	return cloneSchedule(m.teamSchedules, teamID), nil
}

func (m *MemoryStore) SetTeamSchedule(_ context.Context, teamID string, s *engine.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teamSchedules[teamID] = copySchedule(s)
	return nil
}

func (m *MemoryStore) AssignTeam(_ context.Context, employeeID, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[employeeID] = teamID
	return nil
}

func copySchedule(s *engine.Schedule) engine.Schedule {
	c := *s
	c.ActiveWeekdays = append([]int(nil), s.ActiveWeekdays...)
	return c
}

func cloneSchedule(schedules map[string]engine.Schedule, key string) *engine.Schedule {
	s, ok := schedules[key]
	if !ok {
		return nil
	}
	c := copySchedule(&s)
	return &c
}

// ============================================================================
// ABSENCES
// ============================================================================

func (m *MemoryStore) ListAbsences(_ context.Context, employeeID, from, to string) ([]AbsenceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []AbsenceRecord
	for _, a := range m.absences {
		// YYYY-MM-DD compares correctly as a string
		if a.EmployeeID == employeeID && a.StartDate <= to && a.EndDate >= from {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate < out[j].StartDate
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpsertAbsence(_ context.Context, a *AbsenceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.absences[a.ID] = *a
	return nil
}
