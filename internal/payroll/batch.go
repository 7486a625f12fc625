// Package payroll groups approved time and salaries into pay periods and
// carries each batch from calculation to payment.
package payroll

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	StatusDraft      = "draft"
	StatusCalculated = "calculated"
	StatusApproved   = "approved"
	StatusPaid       = "paid"
	StatusVoid       = "void"

	MaxPeriodDays = 31
)

var (
	ErrNotFound = apperr.NotFound("payroll batch not found")
	ErrOverlap  = apperr.Conflict("pay period overlaps another batch")
	ErrNoItems  = apperr.InvalidState("payroll batch has no items")
)

type Batch struct {
	ID            string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	PayDate       time.Time
	Status        string
	GrossCents    int64
	EmployeeCount int
	EntryCount    int
	ApprovedBy    *string
	ApprovedAt    *time.Time
	PaidAt        *time.Time
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is one employee's pay inside a batch.
type Item struct {
	ID               string
	EmployeeID       string
	PayType          string
	RegularMinutes   int
	OvertimeMinutes  int
	RegularPayCents  int64
	OvertimePayCents int64
	SalaryPayCents   int64
	GrossCents       int64
}

var transitions = map[string][]string{
	StatusDraft:      {StatusCalculated, StatusVoid},
	StatusCalculated: {StatusCalculated, StatusApproved, StatusVoid},
	StatusApproved:   {StatusPaid, StatusVoid},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Totals recomputes the header figures from the items.
func (b *Batch) Totals(entries int) {
	b.GrossCents = 0
	for _, it := range b.Items {
		b.GrossCents += it.GrossCents
	}
	b.EmployeeCount = len(b.Items)
	b.EntryCount = entries
}

func validStatus(s string) bool {
	switch s {
	case StatusDraft, StatusCalculated, StatusApproved, StatusPaid, StatusVoid:
		return true
	}
	return false
}
