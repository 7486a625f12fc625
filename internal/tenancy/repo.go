package tenancy

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
)

// Repo reads and writes the tenants table.
type Repo struct {
	db db.Querier
}

func NewRepo(q db.Querier) *Repo {
	return &Repo{db: q}
}

const tenantColumns = `id, slug, name, status, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (*Tenant, error) {
	var t Tenant
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) Create(ctx context.Context, slug, name string) (*Tenant, error) {
	const q = `
INSERT INTO tenants (id, slug, name, status)
VALUES ($1, $2, $3, 'active')
RETURNING ` + tenantColumns

	t, err := scanTenant(r.db.QueryRowContext(ctx, q, uuid.New().String(), slug, name))
	if err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, ErrTenantExists
		}
		return nil, err
	}
	return t, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Tenant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTenantNotFound
	}
	t, err := scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	return t, err
}

func (r *Repo) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	t, err := scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	return t, err
}

// List returns tenants ordered by slug. An empty status lists all.
func (r *Repo) List(ctx context.Context, status string) ([]Tenant, error) {
	const q = `
SELECT ` + tenantColumns + `
FROM tenants
WHERE ($1 = '' OR status = $1)
ORDER BY slug`

	rows, err := r.db.QueryContext(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Tenant, 0, 16)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *Repo) SetStatus(ctx context.Context, id, status string) (*Tenant, error) {
	const q = `
UPDATE tenants
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + tenantColumns

	t, err := scanTenant(r.db.QueryRowContext(ctx, q, id, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	return t, err
}
