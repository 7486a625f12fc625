// Package rfis tracks requests for information raised on a project and the
// drawings or photos attached to them.
package rfis

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	StatusOpen     = "open"
	StatusAnswered = "answered"
	StatusClosed   = "closed"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	ErrNotFound = apperr.NotFound("rfi not found")
	ErrNotOpen  = apperr.InvalidState("rfi is not open")
)

type RFI struct {
	ID          string
	ProjectID   string
	Number      int
	Subject     string
	Question    string
	Priority    string
	AssignedTo  *string
	DueDate     *time.Time
	Status      string
	Answer      *string
	AnsweredBy  *string
	AnsweredAt  *time.Time
	ClosedAt    *time.Time
	Attachments []string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Overdue reports whether an open RFI is past its due date on today.
func (r *RFI) Overdue(today time.Time) bool {
	return r.Status == StatusOpen && r.DueDate != nil && r.DueDate.Before(today)
}

var transitions = map[string][]string{
	StatusOpen:     {StatusAnswered},
	StatusAnswered: {StatusClosed, StatusOpen},
	StatusClosed:   {StatusOpen},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validStatus(s string) bool {
	return s == StatusOpen || s == StatusAnswered || s == StatusClosed
}
