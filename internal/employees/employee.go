// Package employees keeps the HR record of every worker on the payroll.
package employees

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	PayHourly = "hourly"
	PaySalary = "salary"

	StatusActive     = "active"
	StatusOnLeave    = "on_leave"
	StatusTerminated = "terminated"
)

var (
	ErrNotFound   = apperr.NotFound("employee not found")
	ErrExists     = apperr.Conflict("employee number already in use")
	ErrTerminated = apperr.InvalidState("employee is terminated")
)

type Employee struct {
	ID                string
	EmployeeNumber    string
	FirstName         string
	LastName          string
	Email             *string
	Phone             *string
	JobTitle          string
	Trade             *string
	PayType           string
	HourlyRateCents   int64
	AnnualSalaryCents int64
	HireDate          time.Time
	TerminationDate   *time.Time
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// EmployedOn reports whether day falls between the hire date and the
// termination date, both inclusive.
func (e *Employee) EmployedOn(day time.Time) bool {
	if day.Before(e.HireDate) {
		return false
	}
	return e.TerminationDate == nil || !day.After(*e.TerminationDate)
}

// DaysEmployed counts the days in [from, to] on which the employee was employed.
func (e *Employee) DaysEmployed(from, to time.Time) int {
	start, end := from, to
	if e.HireDate.After(start) {
		start = e.HireDate
	}
	if e.TerminationDate != nil && e.TerminationDate.Before(end) {
		end = *e.TerminationDate
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}
