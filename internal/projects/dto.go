package projects

import (
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type ProjectDTO struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	ClientName  string    `json:"client_name"`
	Address     string    `json:"address"`
	Status      string    `json:"status"`
	StartDate   *string   `json:"start_date"`
	EndDate     *string   `json:"end_date"`
	BudgetCents int64     `json:"budget_cents"`
	BidID       *string   `json:"bid_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToDTO(p *Project) ProjectDTO {
	return ProjectDTO{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		ClientName:  p.ClientName,
		Address:     p.Address,
		Status:      p.Status,
		StartDate:   validation.FormatOptionalDate(p.StartDate),
		EndDate:     validation.FormatOptionalDate(p.EndDate),
		BudgetCents: p.BudgetCents,
		BidID:       p.BidID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toDTOs(ps []Project) []ProjectDTO {
	out := make([]ProjectDTO, len(ps))
	for i := range ps {
		out[i] = ToDTO(&ps[i])
	}
	return out
}
