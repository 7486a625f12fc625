package changeorders

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/contracts"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type store interface {
	Insert(ctx context.Context, q db.Querier, co *ChangeOrder) error
	Get(ctx context.Context, q db.Querier, id string) (*ChangeOrder, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*ChangeOrder, error)
	List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]ChangeOrder, error)
	Save(ctx context.Context, q db.Querier, co *ChangeOrder) error
}

type contractLedger interface {
	GetWith(ctx context.Context, q db.Querier, id string) (*contracts.Contract, error)
	ApplyChangeWith(ctx context.Context, q db.Querier, id string, delta int64) (*contracts.Contract, error)
}

type Service struct {
	tx        db.TxRunner
	store     store
	contracts contractLedger
	events    events.Publisher
	now       func() time.Time
}

func NewService(tx db.TxRunner, s store, c contractLedger, pub events.Publisher) *Service {
	return &Service{tx: tx, store: s, contracts: c, events: pub, now: time.Now}
}

type CreateChangeOrderRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=4000"`
	AmountCents  int64  `json:"amount_cents" validate:"ne=0"`
	ScheduleDays int    `json:"schedule_days"`
}

type UpdateChangeOrderRequest struct {
	Title        *string `json:"title" validate:"omitempty,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=4000"`
	AmountCents  *int64  `json:"amount_cents"`
	ScheduleDays *int    `json:"schedule_days"`
}

type DecisionRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

func (s *Service) Create(ctx context.Context, tenantID, actor, contractID string, req CreateChangeOrderRequest) (*ChangeOrder, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	co := &ChangeOrder{
		ContractID:   contractID,
		Title:        req.Title,
		Description:  strings.TrimSpace(req.Description),
		AmountCents:  req.AmountCents,
		ScheduleDays: req.ScheduleDays,
		Status:       StatusPending,
		RequestedBy:  actor,
	}
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		c, err := s.contracts.GetWith(ctx, q, contractID)
		if err != nil {
			return err
		}
		if c.Status != contracts.StatusActive {
			return contracts.ErrNotActive
		}
		return s.store.Insert(ctx, q, co)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"contract_id": contractID, "number": co.Number,
	}).Info("change order requested")
	s.publish(ctx, tenantID, "change_order.created", co)
	return co, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*ChangeOrder, error) {
	var co *ChangeOrder
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		co, err = s.store.Get(ctx, q, id)
		return err
	})
	return co, err
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter, page paging.Params) ([]ChangeOrder, error) {
	if !db.ValidID(f.ContractID) {
		return nil, contracts.ErrNotFound
	}
	var out []ChangeOrder
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		if _, err := s.contracts.GetWith(ctx, q, f.ContractID); err != nil {
			return err
		}
		var err error
		out, err = s.store.List(ctx, q, f, page.Normalize())
		return err
	})
	return out, err
}

func (s *Service) Update(ctx context.Context, tenantID, id string, req UpdateChangeOrderRequest) (*ChangeOrder, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	var vErr *apperr.ValidationError
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		vErr = vErr.Add("title", "is required")
	}
	if req.AmountCents != nil && *req.AmountCents == 0 {
		vErr = vErr.Add("amount_cents", "must not be 0")
	}
	if err := vErr.OrNil(); err != nil {
		return nil, err
	}

	var co *ChangeOrder
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		co, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if co.Status != StatusPending {
			return ErrNotPending
		}
		if req.Title != nil {
			co.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			co.Description = strings.TrimSpace(*req.Description)
		}
		if req.AmountCents != nil {
			co.AmountCents = *req.AmountCents
		}
		if req.ScheduleDays != nil {
			co.ScheduleDays = *req.ScheduleDays
		}
		return s.store.Save(ctx, q, co)
	})
	if err != nil {
		return nil, err
	}
	return co, nil
}

// Approve adds the change order amount to the contract in the same transaction.
func (s *Service) Approve(ctx context.Context, tenantID, actor, id string) (*ChangeOrder, error) {
	return s.decide(ctx, tenantID, actor, id, StatusApproved, "", func(q db.Querier, co *ChangeOrder) error {
		_, err := s.contracts.ApplyChangeWith(ctx, q, co.ContractID, co.AmountCents)
		return err
	})
}

func (s *Service) Reject(ctx context.Context, tenantID, actor, id string, req DecisionRequest) (*ChangeOrder, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return nil, apperr.Invalid("reason", "is required")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.decide(ctx, tenantID, actor, id, StatusRejected, req.Reason, nil)
}

// Void reverses an approved change order. The contract must still be active.
func (s *Service) Void(ctx context.Context, tenantID, actor, id string, req DecisionRequest) (*ChangeOrder, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.decide(ctx, tenantID, actor, id, StatusVoid, req.Reason, func(q db.Querier, co *ChangeOrder) error {
		_, err := s.contracts.ApplyChangeWith(ctx, q, co.ContractID, -co.AmountCents)
		return err
	})
}

func (s *Service) decide(ctx context.Context, tenantID, actor, id, to, reason string, apply func(q db.Querier, co *ChangeOrder) error) (*ChangeOrder, error) {
	var co *ChangeOrder
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		co, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}

		from := StatusPending
		if to == StatusVoid {
			from = StatusApproved
		}
		if co.Status != from {
			return apperr.InvalidState("change order is " + co.Status)
		}

		if apply != nil {
			if err := apply(q, co); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		co.Status = to
		co.DecidedBy = &actor
		co.DecidedAt = &now
		if reason != "" {
			co.Reason = &reason
		}
		return s.store.Save(ctx, q, co)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"change_order": co.ID, "status": to, "amount_cents": co.AmountCents,
	}).Info("change order decided")
	s.publish(ctx, tenantID, "change_order."+to, co)
	return co, nil
}

func (s *Service) publish(ctx context.Context, tenantID, typ string, co *ChangeOrder) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, events.Event{
		Type:     typ,
		TenantID: tenantID,
		EntityID: co.ID,
		Data: map[string]any{
			"contract_id":  co.ContractID,
			"number":       co.Number,
			"amount_cents": co.AmountCents,
		},
	})
}
