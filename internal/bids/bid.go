// Package bids prices work for prospective clients and turns won bids into projects.
package bids

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusWon       = "won"
	StatusLost      = "lost"
	StatusWithdrawn = "withdrawn"
	StatusExpired   = "expired"
	StatusConverted = "converted"

	numberPrefix = "bid"
)

var (
	ErrNotFound         = apperr.NotFound("bid not found")
	ErrNotDraft         = apperr.InvalidState("only draft bids can be changed")
	ErrNoLineItems      = apperr.InvalidState("a bid needs at least one line item before it is submitted")
	ErrZeroTotal        = apperr.InvalidState("a bid with a zero total cannot be submitted")
	ErrAlreadyConverted = apperr.InvalidState("bid has already been converted")
	ErrNotWon           = apperr.InvalidState("only won bids can be converted")
)

type LineItem struct {
	ID            string
	Position      int
	Description   string
	Quantity      Quantity
	UnitCostCents int64
	TotalCents    int64
}

type Bid struct {
	ID            string
	Number        string
	Title         string
	ClientName    string
	ClientEmail   *string
	DueDate       time.Time
	MarkupBps     int
	SubtotalCents int64
	MarkupCents   int64
	TotalCents    int64
	Status        string
	SubmittedAt   *time.Time
	DecidedAt     *time.Time
	ProjectID     *string
	Items         []LineItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Recalculate numbers the line items and derives every total from them.
func (b *Bid) Recalculate() {
	var subtotal int64
	for i := range b.Items {
		it := &b.Items[i]
		it.Position = i + 1
		it.TotalCents = LineTotal(it.Quantity, it.UnitCostCents)
		subtotal += it.TotalCents
	}
	b.SubtotalCents = subtotal
	b.MarkupCents = Markup(subtotal, b.MarkupBps)
	b.TotalCents = subtotal + b.MarkupCents
}

// Markup applies basis points to a non-negative subtotal, rounding half up.
func Markup(subtotalCents int64, bps int) int64 {
	return (subtotalCents*int64(bps) + 5000) / 10000
}

var transitions = map[string][]string{
	StatusDraft:     {StatusSubmitted, StatusWithdrawn, StatusExpired},
	StatusSubmitted: {StatusWon, StatusLost, StatusWithdrawn},
	StatusWon:       {StatusConverted},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
