package bids

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/contracts"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type store interface {
	Insert(ctx context.Context, q db.Querier, b *Bid) error
	Get(ctx context.Context, q db.Querier, id string) (*Bid, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*Bid, error)
	List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Bid, error)
	Save(ctx context.Context, q db.Querier, b *Bid) error
	ReplaceItems(ctx context.Context, q db.Querier, b *Bid) error
	Delete(ctx context.Context, q db.Querier, id string) error
	ExpireDue(ctx context.Context, q db.Querier, today time.Time) ([]Bid, error)
}

type projectCreator interface {
	CreateWith(ctx context.Context, q db.Querier, p *projects.Project) error
}

type contractCreator interface {
	CreateWith(ctx context.Context, q db.Querier, c *contracts.Contract) error
}

type Service struct {
	tx        db.TxRunner
	store     store
	projects  projectCreator
	contracts contractCreator
	events    events.Publisher
	now       func() time.Time
}

func NewService(tx db.TxRunner, s store, p projectCreator, c contractCreator, pub events.Publisher) *Service {
	return &Service{tx: tx, store: s, projects: p, contracts: c, events: pub, now: time.Now}
}

type LineItemInput struct {
	Description   string      `json:"description" validate:"required,max=500"`
	Quantity      json.Number `json:"quantity" validate:"required"`
	UnitCostCents int64       `json:"unit_cost_cents" validate:"gte=0"`
}

type CreateBidRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	ClientName  string          `json:"client_name" validate:"required,max=200"`
	ClientEmail *string         `json:"client_email" validate:"omitempty,email"`
	DueDate     string          `json:"due_date" validate:"required,date"`
	MarkupBps   int             `json:"markup_bps" validate:"gte=0,lte=10000"`
	Items       []LineItemInput `json:"items" validate:"max=500,dive"`
}

// UpdateBidRequest changes a draft. A non-nil Items replaces every line item.
type UpdateBidRequest struct {
	Title       *string          `json:"title" validate:"omitempty,max=200"`
	ClientName  *string          `json:"client_name" validate:"omitempty,max=200"`
	ClientEmail *string          `json:"client_email" validate:"omitempty,email"`
	DueDate     *string          `json:"due_date" validate:"omitempty,date"`
	MarkupBps   *int             `json:"markup_bps" validate:"omitempty,gte=0,lte=10000"`
	Items       *[]LineItemInput `json:"items" validate:"omitempty,max=500,dive"`
}

type ConvertBidRequest struct {
	StartDate *string `json:"start_date" validate:"omitempty,date"`
}

// Conversion is everything ConvertBid produced.
type Conversion struct {
	Bid      *Bid
	Project  *projects.Project
	Contract *contracts.Contract
}

func toItems(in []LineItemInput) ([]LineItem, error) {
	var vErr *apperr.ValidationError
	out := make([]LineItem, len(in))
	for i, it := range in {
		q, err := ParseQuantity(it.Quantity.String())
		if err == nil && !lineTotalFits(q, it.UnitCostCents) {
			err = errQuantityRange
		}
		if err != nil {
			vErr = vErr.Add(fmt.Sprintf("items[%d].quantity", i), err.Error())
			continue
		}
		out[i] = LineItem{
			Description:   strings.TrimSpace(it.Description),
			Quantity:      q,
			UnitCostCents: it.UnitCostCents,
		}
	}
	if err := vErr.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, tenantID string, req CreateBidRequest) (*Bid, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.ClientName = strings.TrimSpace(req.ClientName)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	due, _ := validation.ParseDate(req.DueDate)
	items, err := toItems(req.Items)
	if err != nil {
		return nil, err
	}

	b := &Bid{
		Title:       req.Title,
		ClientName:  req.ClientName,
		ClientEmail: blankToNil(req.ClientEmail),
		DueDate:     due,
		MarkupBps:   req.MarkupBps,
		Status:      StatusDraft,
		Items:       items,
	}
	b.Recalculate()

	err = s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		return s.store.Insert(ctx, q, b)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithField("bid", b.Number).Info("bid created")
	s.publish(ctx, tenantID, "bid.created", b, nil)
	return b, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Bid, error) {
	var b *Bid
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		b, err = s.store.Get(ctx, q, id)
		return err
	})
	return b, err
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter, page paging.Params) ([]Bid, error) {
	var out []Bid
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		out, err = s.store.List(ctx, q, f, page.Normalize())
		return err
	})
	return out, err
}

func (s *Service) Update(ctx context.Context, tenantID, id string, req UpdateBidRequest) (*Bid, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	var vErr *apperr.ValidationError
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		vErr = vErr.Add("title", "is required")
	}
	if req.ClientName != nil && strings.TrimSpace(*req.ClientName) == "" {
		vErr = vErr.Add("client_name", "is required")
	}
	if req.DueDate != nil && *req.DueDate == "" {
		vErr = vErr.Add("due_date", "is required")
	}
	if err := vErr.OrNil(); err != nil {
		return nil, err
	}
	var items []LineItem
	if req.Items != nil {
		var err error
		if items, err = toItems(*req.Items); err != nil {
			return nil, err
		}
	}

	var b *Bid
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		b, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if b.Status != StatusDraft {
			return ErrNotDraft
		}

		if req.Title != nil {
			b.Title = strings.TrimSpace(*req.Title)
		}
		if req.ClientName != nil {
			b.ClientName = strings.TrimSpace(*req.ClientName)
		}
		if req.ClientEmail != nil {
			b.ClientEmail = blankToNil(req.ClientEmail)
		}
		if req.DueDate != nil {
			b.DueDate, _ = validation.ParseDate(*req.DueDate)
		}
		if req.MarkupBps != nil {
			b.MarkupBps = *req.MarkupBps
		}
		if req.Items != nil {
			b.Items = items
		}
		b.Recalculate()

		if req.Items != nil {
			if err := s.store.ReplaceItems(ctx, q, b); err != nil {
				return err
			}
		}
		return s.store.Save(ctx, q, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	return s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		b, err := s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if b.Status != StatusDraft {
			return ErrNotDraft
		}
		return s.store.Delete(ctx, q, id)
	})
}

// Submit sends a priced draft to the client.
func (s *Service) Submit(ctx context.Context, tenantID, id string) (*Bid, error) {
	return s.transition(ctx, tenantID, id, StatusSubmitted, func(b *Bid, now time.Time) error {
		if len(b.Items) == 0 {
			return ErrNoLineItems
		}
		if b.TotalCents <= 0 {
			return ErrZeroTotal
		}
		b.SubmittedAt = &now
		return nil
	})
}

func (s *Service) Award(ctx context.Context, tenantID, id string) (*Bid, error) {
	return s.transition(ctx, tenantID, id, StatusWon, decided)
}

func (s *Service) Lose(ctx context.Context, tenantID, id string) (*Bid, error) {
	return s.transition(ctx, tenantID, id, StatusLost, decided)
}

func (s *Service) Withdraw(ctx context.Context, tenantID, id string) (*Bid, error) {
	return s.transition(ctx, tenantID, id, StatusWithdrawn, decided)
}

func decided(b *Bid, now time.Time) error {
	b.DecidedAt = &now
	return nil
}

func (s *Service) transition(ctx context.Context, tenantID, id, to string, guard func(b *Bid, now time.Time) error) (*Bid, error) {
	var (
		b    *Bid
		from string
	)
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		b, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		from = b.Status
		if !CanTransition(b.Status, to) {
			return apperr.InvalidState(fmt.Sprintf("cannot move bid from %s to %s", b.Status, to))
		}
		if err := guard(b, s.now().UTC()); err != nil {
			return err
		}
		b.Status = to
		return s.store.Save(ctx, q, b)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"bid": b.Number, "from": from, "to": to,
	}).Info("bid status changed")
	s.publish(ctx, tenantID, "bid."+to, b, map[string]any{"from": from})
	return b, nil
}

// Convert turns a won bid into a planning project with a draft prime
// contract. All three writes share one tenant transaction.
func (s *Service) Convert(ctx context.Context, tenantID, id string, req ConvertBidRequest) (*Conversion, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	start, _ := validation.ParseOptionalDate(req.StartDate)

	var out Conversion
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		b, err := s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		switch b.Status {
		case StatusWon:
		case StatusConverted:
			return ErrAlreadyConverted
		default:
			return ErrNotWon
		}

		p := &projects.Project{
			Name:        b.Title,
			ClientName:  b.ClientName,
			Status:      projects.StatusPlanning,
			StartDate:   start,
			BudgetCents: b.TotalCents,
			BidID:       &b.ID,
		}
		if err := s.projects.CreateWith(ctx, q, p); err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		c := &contracts.Contract{
			ProjectID:          p.ID,
			Title:              b.Title,
			Kind:               contracts.KindPrime,
			Counterparty:       b.ClientName,
			OriginalValueCents: b.TotalCents,
			StartDate:          start,
			BidID:              &b.ID,
		}
		if err := s.contracts.CreateWith(ctx, q, c); err != nil {
			return fmt.Errorf("create contract: %w", err)
		}

		b.Status = StatusConverted
		b.ProjectID = &p.ID
		if err := s.store.Save(ctx, q, b); err != nil {
			return err
		}

		out = Conversion{Bid: b, Project: p, Contract: c}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"bid": out.Bid.Number, "project": out.Project.Code, "contract": out.Contract.Number,
	}).Info("bid converted")
	s.publish(ctx, tenantID, "bid.converted", out.Bid, map[string]any{
		"project_id":  out.Project.ID,
		"contract_id": out.Contract.ID,
	})
	return &out, nil
}

// ExpireDue expires draft bids whose due date has passed and returns how many
// it touched.
func (s *Service) ExpireDue(ctx context.Context, tenantID string) (int, error) {
	today := validation.Truncate(s.now())

	var expired []Bid
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		expired, err = s.store.ExpireDue(ctx, q, today)
		return err
	})
	if err != nil {
		return 0, err
	}

	for i := range expired {
		s.publish(ctx, tenantID, "bid.expired", &expired[i], map[string]any{"from": StatusDraft})
	}
	return len(expired), nil
}

func (s *Service) publish(ctx context.Context, tenantID, typ string, b *Bid, data map[string]any) {
	if s.events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["number"] = b.Number
	s.events.Publish(ctx, events.Event{Type: typ, TenantID: tenantID, EntityID: b.ID, Data: data})
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
