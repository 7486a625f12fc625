package payroll

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/employees"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/timetracking"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type store interface {
	LockPeriods(ctx context.Context, q db.Querier) error
	Overlapping(ctx context.Context, q db.Querier, from, to time.Time) (bool, error)
	Insert(ctx context.Context, q db.Querier, b *Batch) error
	Get(ctx context.Context, q db.Querier, id string) (*Batch, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*Batch, error)
	List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Batch, error)
	Save(ctx context.Context, q db.Querier, b *Batch) error
	ReplaceItems(ctx context.Context, q db.Querier, b *Batch) error
}

type staffDirectory interface {
	EmployedDuringWith(ctx context.Context, q db.Querier, from, to time.Time) ([]employees.Employee, error)
	GetWith(ctx context.Context, q db.Querier, id string) (*employees.Employee, error)
}

type timeLedger interface {
	ClaimWith(ctx context.Context, q db.Querier, batchID string, from, to time.Time) ([]timetracking.Entry, error)
	ReleaseWith(ctx context.Context, q db.Querier, batchID string) (int64, error)
	MarkPaidWith(ctx context.Context, q db.Querier, batchID string) (int64, error)
}

type Service struct {
	tx     db.TxRunner
	store  store
	staff  staffDirectory
	ledger timeLedger
	events events.Publisher
	now    func() time.Time
}

func NewService(tx db.TxRunner, s store, staff staffDirectory, ledger timeLedger, pub events.Publisher) *Service {
	return &Service{tx: tx, store: s, staff: staff, ledger: ledger, events: pub, now: time.Now}
}

type CreateBatchRequest struct {
	PeriodStart string `json:"period_start" validate:"required,date"`
	PeriodEnd   string `json:"period_end" validate:"required,date"`
	PayDate     string `json:"pay_date" validate:"required,date"`
}

func (s *Service) Create(ctx context.Context, tenantID string, req CreateBatchRequest) (*Batch, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	from, _ := validation.ParseDate(req.PeriodStart)
	to, _ := validation.ParseDate(req.PeriodEnd)
	pay, _ := validation.ParseDate(req.PayDate)

	var vErr *apperr.ValidationError
	switch {
	case to.Before(from):
		vErr = vErr.Add("period_end", "must not be before period_start")
	case int(to.Sub(from).Hours()/24)+1 > MaxPeriodDays:
		vErr = vErr.Add("period_end", fmt.Sprintf("pay period may not exceed %d days", MaxPeriodDays))
	}
	if pay.Before(to) {
		vErr = vErr.Add("pay_date", "must not be before period_end")
	}
	if err := vErr.OrNil(); err != nil {
		return nil, err
	}

	b := &Batch{PeriodStart: from, PeriodEnd: to, PayDate: pay, Status: StatusDraft}
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		if err := s.store.LockPeriods(ctx, q); err != nil {
			return err
		}
		taken, err := s.store.Overlapping(ctx, q, from, to)
		if err != nil {
			return err
		}
		if taken {
			return ErrOverlap
		}
		return s.store.Insert(ctx, q, b)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"batch": b.ID, "period_start": req.PeriodStart, "period_end": req.PeriodEnd,
	}).Info("payroll batch created")
	s.publish(ctx, tenantID, "payroll.created", b)
	return b, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Batch, error) {
	var b *Batch
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		b, err = s.store.Get(ctx, q, id)
		return err
	})
	return b, err
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter, page paging.Params) ([]Batch, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, apperr.Invalid("status", "unknown payroll status")
	}
	var out []Batch
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		out, err = s.store.List(ctx, q, f, page.Normalize())
		return err
	})
	return out, err
}

// Calculate (re)builds the items of a draft or calculated batch. Entries
// claimed by an earlier run are released first so edits since then are picked up.
func (s *Service) Calculate(ctx context.Context, tenantID, id string) (*Batch, error) {
	return s.transition(ctx, tenantID, id, StatusCalculated, func(q db.Querier, b *Batch) error {
		if _, err := s.ledger.ReleaseWith(ctx, q, b.ID); err != nil {
			return err
		}
		entries, err := s.ledger.ClaimWith(ctx, q, b.ID, b.PeriodStart, b.PeriodEnd)
		if err != nil {
			return err
		}
		staff, err := s.staffFor(ctx, q, b, entries)
		if err != nil {
			return err
		}

		b.Items = Compute(b.PeriodStart, b.PeriodEnd, staff, entries)
		b.Totals(len(entries))
		return s.store.ReplaceItems(ctx, q, b)
	})
}

// staffFor returns everyone employed during the period plus anyone whose
// claimed entries fall outside that set.
func (s *Service) staffFor(ctx context.Context, q db.Querier, b *Batch, entries []timetracking.Entry) ([]employees.Employee, error) {
	staff, err := s.staff.EmployedDuringWith(ctx, q, b.PeriodStart, b.PeriodEnd)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(staff))
	for _, e := range staff {
		seen[e.ID] = true
	}
	for _, en := range entries {
		if seen[en.EmployeeID] {
			continue
		}
		e, err := s.staff.GetWith(ctx, q, en.EmployeeID)
		if err != nil {
			return nil, err
		}
		staff = append(staff, *e)
		seen[e.ID] = true
	}
	return staff, nil
}

func (s *Service) Approve(ctx context.Context, tenantID, actor, id string) (*Batch, error) {
	return s.transition(ctx, tenantID, id, StatusApproved, func(_ db.Querier, b *Batch) error {
		if len(b.Items) == 0 {
			return ErrNoItems
		}
		now := s.now().UTC()
		b.ApprovedBy = &actor
		b.ApprovedAt = &now
		return nil
	})
}

// Pay marks the batch and every time entry it holds as paid.
func (s *Service) Pay(ctx context.Context, tenantID, id string) (*Batch, error) {
	return s.transition(ctx, tenantID, id, StatusPaid, func(q db.Querier, b *Batch) error {
		if _, err := s.ledger.MarkPaidWith(ctx, q, b.ID); err != nil {
			return err
		}
		now := s.now().UTC()
		b.PaidAt = &now
		return nil
	})
}

// Void cancels the batch and releases its entries for another batch.
func (s *Service) Void(ctx context.Context, tenantID, id string) (*Batch, error) {
	return s.transition(ctx, tenantID, id, StatusVoid, func(q db.Querier, b *Batch) error {
		_, err := s.ledger.ReleaseWith(ctx, q, b.ID)
		return err
	})
}

func (s *Service) transition(ctx context.Context, tenantID, id, to string, apply func(q db.Querier, b *Batch) error) (*Batch, error) {
	var (
		b    *Batch
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
			return apperr.InvalidState(fmt.Sprintf("cannot move payroll batch from %s to %s", b.Status, to))
		}
		if err := apply(q, b); err != nil {
			return err
		}
		b.Status = to
		return s.store.Save(ctx, q, b)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"batch": b.ID, "from": from, "to": to, "gross_cents": b.GrossCents,
	}).Info("payroll batch status changed")
	s.publish(ctx, tenantID, "payroll."+to, b)
	return b, nil
}

func (s *Service) publish(ctx context.Context, tenantID, typ string, b *Batch) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, events.Event{
		Type:     typ,
		TenantID: tenantID,
		EntityID: b.ID,
		Data: map[string]any{
			"period_start":   validation.FormatDate(b.PeriodStart),
			"period_end":     validation.FormatDate(b.PeriodEnd),
			"gross_cents":    b.GrossCents,
			"employee_count": b.EmployeeCount,
		},
	})
}
