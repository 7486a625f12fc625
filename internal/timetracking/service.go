package timetracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/employees"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type store interface {
	Insert(ctx context.Context, q db.Querier, e *Entry) error
	Get(ctx context.Context, q db.Querier, id string) (*Entry, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*Entry, error)
	List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Entry, error)
	MinutesOn(ctx context.Context, q db.Querier, employeeID string, day time.Time, excludeID string) (int, error)
	Save(ctx context.Context, q db.Querier, e *Entry) error
	Delete(ctx context.Context, q db.Querier, id string) error
	Claim(ctx context.Context, q db.Querier, batchID string, from, to time.Time) ([]Entry, error)
	Release(ctx context.Context, q db.Querier, batchID string) (int64, error)
	MarkPaid(ctx context.Context, q db.Querier, batchID string) (int64, error)
}

type employeeLocker interface {
	GetWith(ctx context.Context, q db.Querier, id string) (*employees.Employee, error)
}

type projectLocker interface {
	GetWith(ctx context.Context, q db.Querier, id string) (*projects.Project, error)
}

type Service struct {
	tx        db.TxRunner
	store     store
	employees employeeLocker
	projects  projectLocker
	events    events.Publisher
	now       func() time.Time
}

func NewService(tx db.TxRunner, s store, emp employeeLocker, prj projectLocker, pub events.Publisher) *Service {
	return &Service{tx: tx, store: s, employees: emp, projects: prj, events: pub, now: time.Now}
}

type CreateTimeEntryRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required,uuid"`
	ProjectID  string  `json:"project_id" validate:"required,uuid"`
	WorkDate   string  `json:"work_date" validate:"required,date"`
	Minutes    int     `json:"minutes" validate:"gte=1,lte=1440"`
	CostCode   *string `json:"cost_code" validate:"omitempty,max=40"`
	Notes      *string `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateTimeEntryRequest is partial. The employee cannot be changed.
type UpdateTimeEntryRequest struct {
	ProjectID *string `json:"project_id" validate:"omitempty,uuid"`
	WorkDate  *string `json:"work_date" validate:"omitempty,date"`
	Minutes   *int    `json:"minutes" validate:"omitempty,gte=1,lte=1440"`
	CostCode  *string `json:"cost_code" validate:"omitempty,max=40"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (s *Service) Create(ctx context.Context, tenantID string, req CreateTimeEntryRequest) (*Entry, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	day, _ := validation.ParseDate(req.WorkDate)

	e := &Entry{
		EmployeeID: req.EmployeeID,
		ProjectID:  req.ProjectID,
		WorkDate:   day,
		Minutes:    req.Minutes,
		CostCode:   trimmed(req.CostCode),
		Notes:      trimmed(req.Notes),
		Status:     StatusDraft,
	}
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		if err := s.check(ctx, q, e); err != nil {
			return err
		}
		return s.store.Insert(ctx, q, e)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"employee_id": e.EmployeeID, "project_id": e.ProjectID, "minutes": e.Minutes,
	}).Debug("time entry created")
	s.publish(ctx, tenantID, "time_entry.created", e)
	return e, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Entry, error) {
	var e *Entry
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		e, err = s.store.Get(ctx, q, id)
		return err
	})
	return e, err
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter, page paging.Params) ([]Entry, error) {
	var vErr *apperr.ValidationError
	if f.Status != "" && !validStatus(f.Status) {
		vErr = vErr.Add("status", "unknown time entry status")
	}
	if f.EmployeeID != "" && !db.ValidID(f.EmployeeID) {
		vErr = vErr.Add("employee_id", "must be a UUID")
	}
	if f.ProjectID != "" && !db.ValidID(f.ProjectID) {
		vErr = vErr.Add("project_id", "must be a UUID")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		vErr = vErr.Add("to", "must not be before from")
	}
	if err := vErr.OrNil(); err != nil {
		return nil, err
	}

	var out []Entry
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		out, err = s.store.List(ctx, q, f, page.Normalize())
		return err
	})
	return out, err
}

// Update edits a draft or rejected entry. A rejected entry goes back to draft.
func (s *Service) Update(ctx context.Context, tenantID, id string, req UpdateTimeEntryRequest) (*Entry, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.WorkDate != nil && *req.WorkDate == "" {
		return nil, apperr.Invalid("work_date", "is required")
	}

	var e *Entry
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		e, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if !e.Editable() {
			return ErrLocked
		}

		if req.ProjectID != nil {
			e.ProjectID = *req.ProjectID
		}
		if req.WorkDate != nil {
			e.WorkDate, _ = validation.ParseDate(*req.WorkDate)
		}
		if req.Minutes != nil {
			e.Minutes = *req.Minutes
		}
		if req.CostCode != nil {
			e.CostCode = trimmed(req.CostCode)
		}
		if req.Notes != nil {
			e.Notes = trimmed(req.Notes)
		}
		if e.Status == StatusRejected {
			e.Status = StatusDraft
			e.RejectionReason = nil
			e.DecidedBy = nil
			e.DecidedAt = nil
		}

		if err := s.check(ctx, q, e); err != nil {
			return err
		}
		return s.store.Save(ctx, q, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	return s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		e, err := s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if !e.Editable() {
			return ErrLocked
		}
		return s.store.Delete(ctx, q, id)
	})
}

func (s *Service) Submit(ctx context.Context, tenantID, id string) (*Entry, error) {
	return s.transition(ctx, tenantID, id, StatusSubmitted, func(q db.Querier, e *Entry) error {
		// The employee or project may have changed since the entry was drafted.
		if err := s.check(ctx, q, e); err != nil {
			return err
		}
		now := s.now().UTC()
		e.SubmittedAt = &now
		e.RejectionReason = nil
		e.DecidedBy = nil
		e.DecidedAt = nil
		return nil
	})
}

func (s *Service) Approve(ctx context.Context, tenantID, actor, id string) (*Entry, error) {
	return s.transition(ctx, tenantID, id, StatusApproved, func(_ db.Querier, e *Entry) error {
		s.decide(e, actor)
		return nil
	})
}

func (s *Service) Reject(ctx context.Context, tenantID, actor, id string, req RejectRequest) (*Entry, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, id, StatusRejected, func(_ db.Querier, e *Entry) error {
		s.decide(e, actor)
		e.RejectionReason = &req.Reason
		return nil
	})
}

func (s *Service) decide(e *Entry, actor string) {
	now := s.now().UTC()
	e.DecidedBy = &actor
	e.DecidedAt = &now
}

func (s *Service) transition(ctx context.Context, tenantID, id, to string, apply func(q db.Querier, e *Entry) error) (*Entry, error) {
	var (
		e    *Entry
		from string
	)
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		e, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		from = e.Status
		if !CanTransition(e.Status, to) {
			return apperr.InvalidState(fmt.Sprintf("cannot move time entry from %s to %s", e.Status, to))
		}
		if err := apply(q, e); err != nil {
			return err
		}
		e.Status = to
		return s.store.Save(ctx, q, e)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(log.Fields{
		"time_entry": e.ID, "from": from, "to": to,
	}).Info("time entry status changed")
	s.publish(ctx, tenantID, "time_entry."+to, e)
	return e, nil
}

// check enforces the employment, project and daily minute rules.
func (s *Service) check(ctx context.Context, q db.Querier, e *Entry) error {
	emp, err := s.employees.GetWith(ctx, q, e.EmployeeID)
	if err != nil {
		return err
	}
	if emp.Status == employees.StatusTerminated {
		return employees.ErrTerminated
	}
	if !emp.EmployedOn(e.WorkDate) {
		return ErrNotEmployed
	}

	p, err := s.projects.GetWith(ctx, q, e.ProjectID)
	if err != nil {
		return err
	}
	if p.Status != projects.StatusActive {
		return projects.ErrNotActive
	}

	logged, err := s.store.MinutesOn(ctx, q, e.EmployeeID, e.WorkDate, e.ID)
	if err != nil {
		return err
	}
	if logged+e.Minutes > MaxDailyMinutes {
		return ErrDailyLimit
	}
	return nil
}

// ClaimWith attaches approved, unclaimed entries dated inside [from, to] to a
// payroll batch on the caller's transaction.
func (s *Service) ClaimWith(ctx context.Context, q db.Querier, batchID string, from, to time.Time) ([]Entry, error) {
	return s.store.Claim(ctx, q, batchID, from, to)
}

// ReleaseWith detaches the entries a batch still holds so they can be claimed again.
func (s *Service) ReleaseWith(ctx context.Context, q db.Querier, batchID string) (int64, error) {
	return s.store.Release(ctx, q, batchID)
}

// MarkPaidWith moves the entries of a paid batch to paid.
func (s *Service) MarkPaidWith(ctx context.Context, q db.Querier, batchID string) (int64, error) {
	return s.store.MarkPaid(ctx, q, batchID)
}

func (s *Service) publish(ctx context.Context, tenantID, typ string, e *Entry) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, events.Event{
		Type:     typ,
		TenantID: tenantID,
		EntityID: e.ID,
		Data: map[string]any{
			"employee_id": e.EmployeeID,
			"project_id":  e.ProjectID,
			"work_date":   validation.FormatDate(e.WorkDate),
			"minutes":     e.Minutes,
		},
	})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
