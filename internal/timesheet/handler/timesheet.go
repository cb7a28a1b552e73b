package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/internal/timesheet/service"
	"github.com/workclock/timesheet-backend/pkg/errors"
	"github.com/workclock/timesheet-backend/pkg/httputil"
	"github.com/workclock/timesheet-backend/pkg/logger"
)

var registerOnce sync.Once

// registerValidations adds the timesheet validation tags to the shared validator
func registerValidations(log *logger.Logger) {
	registerOnce.Do(func() {
		err := httputil.RegisterCustomValidation("timeofday", func(fl validator.FieldLevel) bool {
			_, err := engine.ParseTimeOfDay(fl.Field().String())
			return err == nil
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to register timeofday validation")
		}
	})
}

// TimesheetHandler handles timesheet endpoints
type TimesheetHandler struct {
	service *service.TimesheetService
	logger  *logger.Logger
}

// NewTimesheetHandler creates a new timesheet handler
func NewTimesheetHandler(svc *service.TimesheetService, log *logger.Logger) *TimesheetHandler {
	registerValidations(log)
	return &TimesheetHandler{
		service: svc,
		logger:  log,
	}
}

// Register mounts the timesheet routes on r
func (h *TimesheetHandler) Register(r chi.Router) {
	r.Route("/employees/{id}", func(r chi.Router) {
		r.Post("/punches", h.RecordPunch)
		r.Put("/punches/{punchID}", h.CorrectPunch)
		r.Get("/days/{date}", h.GetDay)
		r.Get("/report", h.GetReport)
		r.Get("/presence", h.GetPresence)
		r.Get("/schedule-window", h.GetScheduleWindow)
		r.Put("/schedule", h.SetEmployeeSchedule)
		r.Delete("/schedule", h.ClearEmployeeSchedule)
		r.Put("/team", h.AssignTeam)
	})
	r.Put("/teams/{id}/schedule", h.SetTeamSchedule)
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

// RecordPunchRequest is the body of a manual or terminal punch
type RecordPunchRequest struct {
	ID        string     `json:"id,omitempty" validate:"omitempty,max=128"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Direction string     `json:"direction" validate:"required,oneof=IN OUT"`
}

// CorrectPunchRequest replaces the timestamp or direction of a stored punch
type CorrectPunchRequest struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Direction string     `json:"direction,omitempty" validate:"omitempty,oneof=IN OUT"`
}

// ScheduleRequest is a schedule with wall-clock bounds and ISO weekdays
type ScheduleRequest struct {
	StartTime      string `json:"start_time" validate:"required,timeofday"`
	EndTime        string `json:"end_time" validate:"required,timeofday"`
	ActiveWeekdays []int  `json:"active_weekdays" validate:"required,min=1,max=7,dive,min=1,max=7"`
}

func (r ScheduleRequest) input() service.ScheduleInput {
	return service.ScheduleInput{
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		ActiveWeekdays: r.ActiveWeekdays,
	}
}

// AssignTeamRequest moves an employee into a team
type AssignTeamRequest struct {
	TeamID string `json:"team_id" validate:"required,max=64"`
}

// ============================================================================
// PUNCHES AND REPORTS
// ============================================================================

// RecordPunch stores a punch
// POST /employees/{id}/punches
func (h *TimesheetHandler) RecordPunch(w http.ResponseWriter, r *http.Request) {
	var req RecordPunchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.RecordPunchInput{
		ID:        req.ID,
		Direction: engine.Direction(req.Direction),
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	result, err := h.service.RecordPunch(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if !result.Created {
		httputil.JSON(w, http.StatusOK, result)
		return
	}
	httputil.Created(w, result)
}

// CorrectPunch replaces a stored punch
// PUT /employees/{id}/punches/{punchID}
func (h *TimesheetHandler) CorrectPunch(w http.ResponseWriter, r *http.Request) {
	var req CorrectPunchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.Timestamp == nil && req.Direction == "" {
		httputil.Error(w, errors.Validation(map[string]string{"timestamp": "timestamp or direction is required"}))
		return
	}

	in := service.CorrectPunchInput{Direction: engine.Direction(req.Direction)}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	result, err := h.service.CorrectPunch(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "punchID"), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// GetDay returns the reconciled timesheet of one date
// GET /employees/{id}/days/{date}
func (h *TimesheetHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.DayReport(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "date"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// GetReport returns the period report for ?from=YYYY-MM-DD&to=YYYY-MM-DD
// GET /employees/{id}/report
func (h *TimesheetHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	details := map[string]string{}
	if from == "" {
		details["from"] = "this field is required"
	}
	if to == "" {
		details["to"] = "this field is required"
	}
	if len(details) > 0 {
		httputil.Error(w, errors.Validation(details))
		return
	}

	report, err := h.service.PeriodReport(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, report, &httputil.Meta{
		From: report.From,
		To:   report.To,
		Days: len(report.Days),
	})
}

// GetPresence tells whether the employee is expected at work right now
// GET /employees/{id}/presence
func (h *TimesheetHandler) GetPresence(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Presence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// GetScheduleWindow maps the resolved schedule onto the day axis
// GET /employees/{id}/schedule-window
func (h *TimesheetHandler) GetScheduleWindow(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ScheduleWindow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// ============================================================================
// SCHEDULES
// ============================================================================

// SetEmployeeSchedule stores an individual schedule override
// PUT /employees/{id}/schedule
func (h *TimesheetHandler) SetEmployeeSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	schedule, err := h.service.SetEmployeeSchedule(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, schedule)
}

// ClearEmployeeSchedule removes the individual override
// DELETE /employees/{id}/schedule
func (h *TimesheetHandler) ClearEmployeeSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearEmployeeSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetTeamSchedule stores a team schedule
// PUT /teams/{id}/schedule
func (h *TimesheetHandler) SetTeamSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	schedule, err := h.service.SetTeamSchedule(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, schedule)
}

// AssignTeam moves the employee into a team
// PUT /employees/{id}/team
func (h *TimesheetHandler) AssignTeam(w http.ResponseWriter, r *http.Request) {
	var req AssignTeamRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	employeeID := chi.URLParam(r, "id")
	if err := h.service.AssignTeam(r.Context(), employeeID, req.TeamID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"employee_id": employeeID,
		"team_id":     req.TeamID,
	})
}
