// Package changeorders tracks requested changes to an active contract's value
// and schedule.
package changeorders

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusVoid     = "void"
)

var (
	ErrNotFound   = apperr.NotFound("change order not found")
	ErrNotPending = apperr.InvalidState("change order is not pending")
)

type ChangeOrder struct {
	ID           string
	ContractID   string
	Number       int
	Title        string
	Description  string
	AmountCents  int64
	ScheduleDays int
	Status       string
	RequestedBy  string
	DecidedBy    *string
	DecidedAt    *time.Time
	Reason       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
