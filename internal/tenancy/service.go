package tenancy

import (
	"context"
	"strings"

	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/validation"
)

type store interface {
	lookup
	Create(ctx context.Context, slug, name string) (*Tenant, error)
	List(ctx context.Context, status string) ([]Tenant, error)
	SetStatus(ctx context.Context, id, status string) (*Tenant, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, t *Tenant)
}

// Service implements the admin operations on tenants.
type Service struct {
	store store
	cache cacheInvalidator
}

func NewService(s store, cache cacheInvalidator) *Service {
	return &Service{store: s, cache: cache}
}

type CreateTenantRequest struct {
	Slug string `json:"slug" validate:"required,slug"`
	Name string `json:"name" validate:"required,max=200"`
}

func (s *Service) Create(ctx context.Context, req CreateTenantRequest) (*Tenant, error) {
	req.Slug = normalizeSlug(req.Slug)
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	t, err := s.store.Create(ctx, req.Slug, req.Name)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithField("tenant", t.Slug).Info("tenant created")
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status string) ([]Tenant, error) {
	return s.store.List(ctx, status)
}

// ListActive is used by background jobs.
func (s *Service) ListActive(ctx context.Context) ([]Tenant, error) {
	return s.store.List(ctx, StatusActive)
}

func (s *Service) Suspend(ctx context.Context, id string) (*Tenant, error) {
	return s.setStatus(ctx, id, StatusSuspended)
}

func (s *Service) Activate(ctx context.Context, id string) (*Tenant, error) {
	return s.setStatus(ctx, id, StatusActive)
}

func (s *Service) setStatus(ctx context.Context, id, status string) (*Tenant, error) {
	t, err := s.store.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, t)
	}
	logging.FromContext(ctx).WithField("tenant", t.Slug).WithField("status", status).Info("tenant status changed")
	return t, nil
}
