// Package timetracking records the minutes employees spend on projects and
// moves each entry through approval until payroll pays it out.
package timetracking

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusPaid      = "paid"

	MaxDailyMinutes = 24 * 60
)

var (
	ErrNotFound    = apperr.NotFound("time entry not found")
	ErrLocked      = apperr.InvalidState("time entry is locked")
	ErrNotEmployed = apperr.InvalidState("employee is not employed on work_date")
	ErrDailyLimit  = apperr.Invalid("minutes", "employee would log more than 1440 minutes on work_date")
)

type Entry struct {
	ID              string
	EmployeeID      string
	ProjectID       string
	WorkDate        time.Time
	Minutes         int
	CostCode        *string
	Notes           *string
	Status          string
	SubmittedAt     *time.Time
	DecidedBy       *string
	DecidedAt       *time.Time
	RejectionReason *string
	PayrollBatchID  *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var transitions = map[string][]string{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
	StatusRejected:  {StatusDraft, StatusSubmitted},
	StatusApproved:  {StatusPaid},
}

// CanTransition reports whether an entry may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Editable reports whether the entry can still be changed or deleted.
func (e *Entry) Editable() bool {
	return e.Status == StatusDraft || e.Status == StatusRejected
}

func validStatus(s string) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusPaid:
		return true
	}
	return false
}
