// Package contracts manages prime contracts, subcontracts and purchase orders
// attached to a project.
package contracts

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	KindPrime         = "prime"
	KindSubcontract   = "subcontract"
	KindPurchaseOrder = "purchase_order"

	StatusDraft      = "draft"
	StatusActive     = "active"
	StatusCompleted  = "completed"
	StatusTerminated = "terminated"

	numberPrefix = "con"
)

var (
	ErrNotFound       = apperr.NotFound("contract not found")
	ErrNotDraft       = apperr.InvalidState("only draft contracts can be edited")
	ErrNotActive      = apperr.InvalidState("contract is not active")
	ErrPendingChanges = apperr.InvalidState("contract has pending change orders")
	ErrNegativeValue  = apperr.InvalidState("revised contract value cannot be negative")
)

type Contract struct {
	ID                   string
	ProjectID            string
	Number               string
	Title                string
	Kind                 string
	Counterparty         string
	OriginalValueCents   int64
	ApprovedChangesCents int64
	RetainageBps         int
	Status               string
	StartDate            *time.Time
	EndDate              *time.Time
	ExecutedAt           *time.Time
	TerminatedReason     *string
	BidID                *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RevisedValueCents is the original value plus approved change orders.
func (c *Contract) RevisedValueCents() int64 {
	return c.OriginalValueCents + c.ApprovedChangesCents
}

// RetainageCents is the amount withheld from the revised value, rounded half up.
func (c *Contract) RetainageCents() int64 {
	return (c.RevisedValueCents()*int64(c.RetainageBps) + 5000) / 10000
}

var transitions = map[string][]string{
	StatusDraft:  {StatusActive, StatusTerminated},
	StatusActive: {StatusCompleted, StatusTerminated},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
