package projects

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type store interface {
	Insert(ctx context.Context, q db.Querier, p *Project) error
	Get(ctx context.Context, q db.Querier, id string) (*Project, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*Project, error)
	List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Project, error)
	Update(ctx context.Context, q db.Querier, p *Project) error
	SoftDelete(ctx context.Context, q db.Querier, id string) error
}

type Service struct {
	tx     db.TxRunner
	store  store
	events events.Publisher
}

func NewService(tx db.TxRunner, s store, pub events.Publisher) *Service {
	return &Service{tx: tx, store: s, events: pub}
}

type CreateProjectRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	ClientName  string  `json:"client_name" validate:"max=200"`
	Address     string  `json:"address" validate:"max=500"`
	StartDate   *string `json:"start_date" validate:"omitempty,date"`
	EndDate     *string `json:"end_date" validate:"omitempty,date"`
	BudgetCents int64   `json:"budget_cents" validate:"gte=0"`
}

// UpdateProjectRequest is a partial update; nil fields are left alone.
type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	ClientName  *string `json:"client_name" validate:"omitempty,max=200"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
	Status      *string `json:"status" validate:"omitempty,oneof=planning active on_hold completed cancelled"`
	StartDate   *string `json:"start_date" validate:"omitempty,date"`
	EndDate     *string `json:"end_date" validate:"omitempty,date"`
	BudgetCents *int64  `json:"budget_cents" validate:"omitempty,gte=0"`
}

func (s *Service) Create(ctx context.Context, tenantID string, req CreateProjectRequest) (*Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	start, _ := validation.ParseOptionalDate(req.StartDate)
	end, _ := validation.ParseOptionalDate(req.EndDate)
	if err := checkDates(start, end); err != nil {
		return nil, err
	}

	p := &Project{
		Name:        req.Name,
		ClientName:  strings.TrimSpace(req.ClientName),
		Address:     strings.TrimSpace(req.Address),
		Status:      StatusPlanning,
		StartDate:   start,
		EndDate:     end,
		BudgetCents: req.BudgetCents,
	}
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		return s.store.Insert(ctx, q, p)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithField("project", p.Code).Info("project created")
	s.publish(ctx, tenantID, "project.created", p, nil)
	return p, nil
}

// CreateWith inserts a project on a transaction owned by the caller. Bid
// conversion uses it so the project, contract and bid change commit together.
func (s *Service) CreateWith(ctx context.Context, q db.Querier, p *Project) error {
	if p.Status == "" {
		p.Status = StatusPlanning
	}
	if err := checkDates(p.StartDate, p.EndDate); err != nil {
		return err
	}
	return s.store.Insert(ctx, q, p)
}

// GetWith loads and locks a project on the caller's transaction.
func (s *Service) GetWith(ctx context.Context, q db.Querier, id string) (*Project, error) {
	return s.store.GetForUpdate(ctx, q, id)
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Project, error) {
	var p *Project
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		p, err = s.store.Get(ctx, q, id)
		return err
	})
	return p, err
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter, page paging.Params) ([]Project, error) {
	if f.Status != "" && !knownStatus(f.Status) {
		return nil, apperr.Invalid("status", "unknown project status")
	}
	var out []Project
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		out, err = s.store.List(ctx, q, f, page.Normalize())
		return err
	})
	return out, err
}

func (s *Service) Update(ctx context.Context, tenantID, id string, req UpdateProjectRequest) (*Project, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apperr.Invalid("name", "is required")
	}

	var (
		p    *Project
		from string
	)
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		p, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if !p.Open() {
			return ErrClosed
		}
		from = p.Status

		if err := applyUpdate(p, req); err != nil {
			return err
		}
		return s.store.Update(ctx, q, p)
	})
	if err != nil {
		return nil, err
	}

	if p.Status != from {
		logging.FromContext(ctx).WithFields(log.Fields{
			"project": p.Code, "from": from, "to": p.Status,
		}).Info("project status changed")
		s.publish(ctx, tenantID, "project."+p.Status, p, map[string]any{"from": from})
	}
	return p, nil
}

func applyUpdate(p *Project, req UpdateProjectRequest) error {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.ClientName != nil {
		p.ClientName = strings.TrimSpace(*req.ClientName)
	}
	if req.Address != nil {
		p.Address = strings.TrimSpace(*req.Address)
	}
	if req.BudgetCents != nil {
		p.BudgetCents = *req.BudgetCents
	}
	if req.StartDate != nil {
		p.StartDate, _ = validation.ParseOptionalDate(req.StartDate)
	}
	if req.EndDate != nil {
		p.EndDate, _ = validation.ParseOptionalDate(req.EndDate)
	}
	if err := checkDates(p.StartDate, p.EndDate); err != nil {
		return err
	}

	if req.Status != nil && *req.Status != p.Status {
		if !CanTransition(p.Status, *req.Status) {
			return apperr.InvalidState(fmt.Sprintf("cannot move project from %s to %s", p.Status, *req.Status))
		}
		p.Status = *req.Status
	}
	return nil
}

// Delete soft-deletes a project. Active projects must be put on hold,
// completed or cancelled first.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	return s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		p, err := s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if p.Status == StatusActive {
			return ErrDeleteActive
		}
		return s.store.SoftDelete(ctx, q, id)
	})
}

func (s *Service) publish(ctx context.Context, tenantID, typ string, p *Project, data map[string]any) {
	if s.events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["code"] = p.Code
	s.events.Publish(ctx, events.Event{Type: typ, TenantID: tenantID, EntityID: p.ID, Data: data})
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperr.Invalid("end_date", "must not be before start_date")
	}
	return nil
}

func knownStatus(s string) bool {
	switch s {
	case StatusPlanning, StatusActive, StatusOnHold, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
