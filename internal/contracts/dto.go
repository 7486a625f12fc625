package contracts

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type ContractDTO struct {
	ID                   string     `json:"id"`
	ProjectID            string     `json:"project_id"`
	Number               string     `json:"number"`
	Title                string     `json:"title"`
	Kind                 string     `json:"kind"`
	Counterparty         string     `json:"counterparty"`
	OriginalValueCents   int64      `json:"original_value_cents"`
	ApprovedChangesCents int64      `json:"approved_changes_cents"`
	RevisedValueCents    int64      `json:"revised_value_cents"`
	RetainageBps         int        `json:"retainage_bps"`
	RetainageCents       int64      `json:"retainage_cents"`
	Status               string     `json:"status"`
	StartDate            *string    `json:"start_date"`
	EndDate              *string    `json:"end_date"`
	ExecutedAt           *time.Time `json:"executed_at"`
	TerminatedReason     *string    `json:"terminated_reason,omitempty"`
	BidID                *string    `json:"bid_id"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func ToDTO(c *Contract) ContractDTO {
	return ContractDTO{
		ID:                   c.ID,
		ProjectID:            c.ProjectID,
		Number:               c.Number,
		Title:                c.Title,
		Kind:                 c.Kind,
		Counterparty:         c.Counterparty,
		OriginalValueCents:   c.OriginalValueCents,
		ApprovedChangesCents: c.ApprovedChangesCents,
		RevisedValueCents:    c.RevisedValueCents(),
		RetainageBps:         c.RetainageBps,
		RetainageCents:       c.RetainageCents(),
		Status:               c.Status,
		StartDate:            validation.FormatOptionalDate(c.StartDate),
		EndDate:              validation.FormatOptionalDate(c.EndDate),
		ExecutedAt:           c.ExecutedAt,
		TerminatedReason:     c.TerminatedReason,
		BidID:                c.BidID,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}
