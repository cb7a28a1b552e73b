package engine

import (
	"time"
)

// AbsenceStatus is the review state of an absence request
type AbsenceStatus string

const (
	AbsencePending   AbsenceStatus = "PENDING"
	AbsenceApproved  AbsenceStatus = "APPROVED"
	AbsenceRejected  AbsenceStatus = "REJECTED"
	AbsenceCancelled AbsenceStatus = "CANCELLED"
)

// Absence is a declared absence over an inclusive date range
type Absence struct {
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Status    AbsenceStatus `json:"status"`
}

// Covers reports whether date falls within the absence, both ends inclusive.
// Dates are compared in the absence's own location.
func (a Absence) Covers(date time.Time) bool {
	loc := a.StartDate.Location()
	return NewDateRange(a.StartDate, a.EndDate, loc).Contains(date)
}

// OverlapsApprovedAbsence reports whether any APPROVED absence covers date.
// Pending, rejected and cancelled absences never count.
func OverlapsApprovedAbsence(date time.Time, absences []Absence) bool {
	for _, a := range absences {
		if a.Status == AbsenceApproved && a.Covers(date) {
			return true
		}
	}
	return false
}
