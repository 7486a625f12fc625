package projects

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	StatusPlanning  = "planning"
	StatusActive    = "active"
	StatusOnHold    = "on_hold"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	codePrefix = "prj"
)

var (
	ErrNotFound     = apperr.NotFound("project not found")
	ErrDeleteActive = apperr.InvalidState("an active project cannot be deleted")
	ErrClosed       = apperr.InvalidState("project is closed")
	ErrNotActive    = apperr.InvalidState("project is not active")
)

// Project is a construction job owned by one tenant.
type Project struct {
	ID          string
	Code        string
	Name        string
	ClientName  string
	Address     string
	Status      string
	StartDate   *time.Time
	EndDate     *time.Time
	BudgetCents int64
	BidID       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var transitions = map[string][]string{
	StatusPlanning: {StatusActive, StatusCancelled},
	StatusActive:   {StatusOnHold, StatusCompleted, StatusCancelled},
	StatusOnHold:   {StatusActive, StatusCancelled},
}

// CanTransition reports whether a project may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Open reports whether contracts and other documents may still be attached.
func (p *Project) Open() bool {
	return p.Status == StatusPlanning || p.Status == StatusActive || p.Status == StatusOnHold
}
