package employees

import (
	"context"
	"strings"
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/events"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type store interface {
	Insert(ctx context.Context, q db.Querier, e *Employee) error
	Get(ctx context.Context, q db.Querier, id string) (*Employee, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*Employee, error)
	List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Employee, error)
	EmployedDuring(ctx context.Context, q db.Querier, from, to time.Time) ([]Employee, error)
	Save(ctx context.Context, q db.Querier, e *Employee) error
}

type Service struct {
	tx     db.TxRunner
	store  store
	events events.Publisher
}

func NewService(tx db.TxRunner, s store, pub events.Publisher) *Service {
	return &Service{tx: tx, store: s, events: pub}
}

type CreateEmployeeRequest struct {
	EmployeeNumber    string  `json:"employee_number" validate:"required,max=32"`
	FirstName         string  `json:"first_name" validate:"required,max=100"`
	LastName          string  `json:"last_name" validate:"required,max=100"`
	Email             *string `json:"email" validate:"omitempty,email"`
	Phone             *string `json:"phone" validate:"omitempty,max=40"`
	JobTitle          string  `json:"job_title" validate:"required,max=120"`
	Trade             *string `json:"trade" validate:"omitempty,max=80"`
	PayType           string  `json:"pay_type" validate:"required,oneof=hourly salary"`
	HourlyRateCents   int64   `json:"hourly_rate_cents" validate:"gte=0"`
	AnnualSalaryCents int64   `json:"annual_salary_cents" validate:"gte=0"`
	HireDate          string  `json:"hire_date" validate:"required,date"`
}

// UpdateEmployeeRequest is partial. Status may only move between active and on_leave.
type UpdateEmployeeRequest struct {
	EmployeeNumber    *string `json:"employee_number" validate:"omitempty,max=32"`
	FirstName         *string `json:"first_name" validate:"omitempty,max=100"`
	LastName          *string `json:"last_name" validate:"omitempty,max=100"`
	Email             *string `json:"email" validate:"omitempty,email"`
	Phone             *string `json:"phone" validate:"omitempty,max=40"`
	JobTitle          *string `json:"job_title" validate:"omitempty,max=120"`
	Trade             *string `json:"trade" validate:"omitempty,max=80"`
	PayType           *string `json:"pay_type" validate:"omitempty,oneof=hourly salary"`
	HourlyRateCents   *int64  `json:"hourly_rate_cents" validate:"omitempty,gte=0"`
	AnnualSalaryCents *int64  `json:"annual_salary_cents" validate:"omitempty,gte=0"`
	HireDate          *string `json:"hire_date" validate:"omitempty,date"`
	Status            *string `json:"status" validate:"omitempty,oneof=active on_leave"`
}

type TerminateRequest struct {
	TerminationDate string `json:"termination_date" validate:"required,date"`
}

func (s *Service) Create(ctx context.Context, tenantID string, req CreateEmployeeRequest) (*Employee, error) {
	req.EmployeeNumber = strings.TrimSpace(req.EmployeeNumber)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.JobTitle = strings.TrimSpace(req.JobTitle)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	hire, _ := validation.ParseDate(req.HireDate)

	e := &Employee{
		EmployeeNumber:    req.EmployeeNumber,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             trimmed(req.Email),
		Phone:             trimmed(req.Phone),
		JobTitle:          req.JobTitle,
		Trade:             trimmed(req.Trade),
		PayType:           req.PayType,
		HourlyRateCents:   req.HourlyRateCents,
		AnnualSalaryCents: req.AnnualSalaryCents,
		HireDate:          hire,
		Status:            StatusActive,
	}
	if err := checkPay(e); err != nil {
		return nil, err
	}

	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		return s.store.Insert(ctx, q, e)
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithField("employee", e.EmployeeNumber).Info("employee created")
	s.publish(ctx, tenantID, "employee.created", e)
	return e, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Employee, error) {
	var e *Employee
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		e, err = s.store.Get(ctx, q, id)
		return err
	})
	return e, err
}

// GetWith loads and locks an employee on the caller's transaction.
func (s *Service) GetWith(ctx context.Context, q db.Querier, id string) (*Employee, error) {
	return s.store.GetForUpdate(ctx, q, id)
}

// EmployedDuringWith lists employees on the books at any point in [from, to].
func (s *Service) EmployedDuringWith(ctx context.Context, q db.Querier, from, to time.Time) ([]Employee, error) {
	return s.store.EmployedDuring(ctx, q, from, to)
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter, page paging.Params) ([]Employee, error) {
	switch f.Status {
	case "", StatusActive, StatusOnLeave, StatusTerminated:
	default:
		return nil, apperr.Invalid("status", "unknown employee status")
	}
	var out []Employee
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		out, err = s.store.List(ctx, q, f, page.Normalize())
		return err
	})
	return out, err
}

func (s *Service) Update(ctx context.Context, tenantID, id string, req UpdateEmployeeRequest) (*Employee, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	var vErr *apperr.ValidationError
	for field, v := range map[string]*string{
		"employee_number": req.EmployeeNumber,
		"first_name":      req.FirstName,
		"last_name":       req.LastName,
		"job_title":       req.JobTitle,
		"hire_date":       req.HireDate,
	} {
		if v != nil && strings.TrimSpace(*v) == "" {
			vErr = vErr.Add(field, "is required")
		}
	}
	if err := vErr.OrNil(); err != nil {
		return nil, err
	}

	var e *Employee
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		e, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if e.Status == StatusTerminated {
			return ErrTerminated
		}

		setString(&e.EmployeeNumber, req.EmployeeNumber)
		setString(&e.FirstName, req.FirstName)
		setString(&e.LastName, req.LastName)
		setString(&e.JobTitle, req.JobTitle)
		if req.Email != nil {
			e.Email = trimmed(req.Email)
		}
		if req.Phone != nil {
			e.Phone = trimmed(req.Phone)
		}
		if req.Trade != nil {
			e.Trade = trimmed(req.Trade)
		}
		if req.PayType != nil {
			e.PayType = *req.PayType
		}
		if req.HourlyRateCents != nil {
			e.HourlyRateCents = *req.HourlyRateCents
		}
		if req.AnnualSalaryCents != nil {
			e.AnnualSalaryCents = *req.AnnualSalaryCents
		}
		if req.HireDate != nil {
			e.HireDate, _ = validation.ParseDate(*req.HireDate)
		}
		if req.Status != nil {
			e.Status = *req.Status
		}
		if err := checkPay(e); err != nil {
			return err
		}
		return s.store.Save(ctx, q, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Terminate(ctx context.Context, tenantID, id string, req TerminateRequest) (*Employee, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	day, _ := validation.ParseDate(req.TerminationDate)

	var e *Employee
	err := s.tx.WithTenant(ctx, tenantID, func(q db.Querier) error {
		var err error
		e, err = s.store.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if e.Status == StatusTerminated {
			return ErrTerminated
		}
		if day.Before(e.HireDate) {
			return apperr.Invalid("termination_date", "must not be before hire_date")
		}
		e.TerminationDate = &day
		e.Status = StatusTerminated
		return s.store.Save(ctx, q, e)
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithField("employee", e.EmployeeNumber).Info("employee terminated")
	s.publish(ctx, tenantID, "employee.terminated", e)
	return e, nil
}

func (s *Service) publish(ctx context.Context, tenantID, typ string, e *Employee) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, events.Event{
		Type:     typ,
		TenantID: tenantID,
		EntityID: e.ID,
		Data:     map[string]any{"employee_number": e.EmployeeNumber},
	})
}

func checkPay(e *Employee) error {
	switch {
	case e.PayType == PayHourly && e.HourlyRateCents <= 0:
		return apperr.Invalid("hourly_rate_cents", "must be greater than 0 for hourly employees")
	case e.PayType == PaySalary && e.AnnualSalaryCents <= 0:
		return apperr.Invalid("annual_salary_cents", "must be greater than 0 for salaried employees")
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
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
