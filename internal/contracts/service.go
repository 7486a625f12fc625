package contracts

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
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type store interface {
	Insert(ctx context.Context, q db.Querier, c *Contract) error
	Get(ctx context.Context, q db.Querier, id string) (*Contract, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*Contract, error)
	List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Contract, error)
	Save(ctx context.Context, q db.Querier, c *Contract) error
	CountPendingChangeOrders(ctx context.Context, q db.Querier, contractID string) (int, error)
}

type projectLocker interface {
	GetWith(ctx context.Context, q db.Querier, id string) (*projects.Project, error)
}

type Service struct {
	tx       db.TxRunner
	store    store
	projects projectLocker
	events   events.Publisher
	now      func() time.Time
}

func NewService(tx db.TxRunner, s store, p projectLocker, pub events.Publisher) *Service {
	return &Service{tx: tx, store: s, projects: p, events: pub, now: time.Now}
}

type CreateContractRequest struct {
	ProjectID          string  `json:"project_id" validate:"required,uuid"`
	Title              string  `json:"title" validate:"required,max=200"`
	Kind               string  `json:"kind" validate:"required,oneof=prime subcontract purchase_order"`
	Counterparty       string  `json:"counterparty" validate:"required,max=200"`
	OriginalValueCents int64   `json:"original_value_cents" validate:"gte=0"`
	RetainageBps       int     `json:"retainage_bps" validate:"gte=0,lte=10000"`
	StartDate          *string `json:"start_date" validate:"omitempty,date"`
	EndDate            *string `json:"end_date" validate:"omitempty,date"`
}

type UpdateContractRequest struct {
	Title              *string `json:"title" validate:"omitempty,max=200"`
	Kind               *string `json:"kind" validate:"omitempty,oneof=prime subcontract purchase_order"`
	Counterparty       *string `json:"counterparty" validate:"omitempty,max=200"`
	OriginalValueCents *int64  `json:"original_value_cents" validate:"omitempty,gte=0"`
	RetainageBps       *int    `json:"retainage_bps" validate:"omitempty,gte=0,lte=10000"`
	StartDate          *string `json:"start_date" validate:"omitempty,date"`
	EndDate            *string `json:"end_date" validate:"omitempty,date"`
}

type TerminateRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (s *Service) Create(ctx context.Context, tenantID string, req CreateContractRequest) (*Contract, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Counterparty = strings.TrimSpace(req.Counterparty)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	start, _ := validation.ParseOptionalDate(req.StartDate)
	end, _ := validation.ParseOptionalDate(req.EndDate)

	c := &Contract{
		ProjectID:          req.ProjectID,
		Title:              req.Title,
		Kind:               req.Kind,
		Counterparty:       req.Counterparty,
		OriginalValueCents: req.OriginalValueCents,
		RetainageBps:       req.RetainageBps,
		StartDate:          start,
		EndDate:            end,
	}
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		return s.CreateWith(ctx, q, c)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithField("contract", c.Number).Info("contract created")
	s.publish(ctx, tenantID, "contract.created", c, nil)
	return c, nil
}

// CreateWith inserts a draft contract on the caller's transaction. The
// project must exist and still be open.
func (s *Service) CreateWith(ctx context.Context, q db.Querier, c *Contract) error {
	if err := checkDates(c.StartDate, c.EndDate); err != nil {
		return err
	}
	p, err := s.projects.GetWith(ctx, q, c.ProjectID)
	if err != nil {
		return err
	}
	if !p.Open() {
		return projects.ErrClosed
	}
	c.Status = StatusDraft
	return s.store.Insert(ctx, q, c)
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Contract, error) {
	var c *Contract
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		c, err = s.store.Get(ctx, q, id)
		return err
	})
	return c, err
}

// GetWith loads and locks a contract on the caller's transaction.
func (s *Service) GetWith(ctx context.Context, q db.Querier, id string) (*Contract, error) {
	return s.store.GetForUpdate(ctx, q, id)
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter, page paging.Params) ([]Contract, error) {
	if f.ProjectID != "" && !db.ValidID(f.ProjectID) {
		return nil, apperr.Invalid("project_id", "must be a UUID")
	}
	var out []Contract
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		out, err = s.store.List(ctx, q, f, page.Normalize())
		return err
	})
	return out, err
}

func (s *Service) Update(ctx context.Context, tenantID, id string, req UpdateContractRequest) (*Contract, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	var vErr *apperr.ValidationError
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		vErr = vErr.Add("title", "is required")
	}
	if req.Counterparty != nil && strings.TrimSpace(*req.Counterparty) == "" {
		vErr = vErr.Add("counterparty", "is required")
	}
	if err := vErr.OrNil(); err != nil {
		return nil, err
	}

	var c *Contract
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		c, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if c.Status != StatusDraft {
			return ErrNotDraft
		}

		if req.Title != nil {
			c.Title = strings.TrimSpace(*req.Title)
		}
		if req.Kind != nil {
			c.Kind = *req.Kind
		}
		if req.Counterparty != nil {
			c.Counterparty = strings.TrimSpace(*req.Counterparty)
		}
		if req.OriginalValueCents != nil {
			c.OriginalValueCents = *req.OriginalValueCents
		}
		if req.RetainageBps != nil {
			c.RetainageBps = *req.RetainageBps
		}
		if req.StartDate != nil {
			c.StartDate, _ = validation.ParseOptionalDate(req.StartDate)
		}
		if req.EndDate != nil {
			c.EndDate, _ = validation.ParseOptionalDate(req.EndDate)
		}
		if err := checkDates(c.StartDate, c.EndDate); err != nil {
			return err
		}
		return s.store.Save(ctx, q, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Execute signs a draft contract and makes it active.
func (s *Service) Execute(ctx context.Context, tenantID, id string) (*Contract, error) {
	return s.transition(ctx, tenantID, id, StatusActive, func(q db.Querier, c *Contract) error {
		p, err := s.projects.GetWith(ctx, q, c.ProjectID)
		if err != nil {
			return err
		}
		if !p.Open() {
			return projects.ErrClosed
		}
		now := s.now().UTC()
		c.ExecutedAt = &now
		return nil
	})
}

// Complete closes an active contract once every change order has been decided.
func (s *Service) Complete(ctx context.Context, tenantID, id string) (*Contract, error) {
	return s.transition(ctx, tenantID, id, StatusCompleted, func(q db.Querier, c *Contract) error {
		n, err := s.store.CountPendingChangeOrders(ctx, q, c.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrPendingChanges
		}
		return nil
	})
}

func (s *Service) Terminate(ctx context.Context, tenantID, id string, req TerminateRequest) (*Contract, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, id, StatusTerminated, func(_ db.Querier, c *Contract) error {
		c.TerminatedReason = &req.Reason
		return nil
	})
}

func (s *Service) transition(ctx context.Context, tenantID, id, to string, guard func(q db.Querier, c *Contract) error) (*Contract, error) {
	var (
		c    *Contract
		from string
	)
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		c, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		from = c.Status
		if !CanTransition(c.Status, to) {
			return apperr.InvalidState(fmt.Sprintf("cannot move contract from %s to %s", c.Status, to))
		}
		if guard != nil {
			if err := guard(q, c); err != nil {
				return err
			}
		}
		c.Status = to
		return s.store.Save(ctx, q, c)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"contract": c.Number, "from": from, "to": to,
	}).Info("contract status changed")
	s.publish(ctx, tenantID, "contract."+eventVerb(to), c, map[string]any{"from": from})
	return c, nil
}

// ApplyChangeWith adds delta to the approved changes of an active contract on
// the caller's transaction. Change order approval and voiding go through here.
func (s *Service) ApplyChangeWith(ctx context.Context, q db.Querier, id string, delta int64) (*Contract, error) {
	c, err := s.store.GetForUpdate(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, ErrNotActive
	}
	if c.RevisedValueCents()+delta < 0 {
		return nil, ErrNegativeValue
	}
	c.ApprovedChangesCents += delta
	if err := s.store.Save(ctx, q, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) publish(ctx context.Context, tenantID, typ string, c *Contract, data map[string]any) {
	if s.events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["number"] = c.Number
	data["project_id"] = c.ProjectID
	s.events.Publish(ctx, events.Event{Type: typ, TenantID: tenantID, EntityID: c.ID, Data: data})
}

func eventVerb(status string) string {
	if status == StatusActive {
		return "executed"
	}
	return status
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperr.Invalid("end_date", "must not be before start_date")
	}
	return nil
}
