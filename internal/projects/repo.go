package projects

import (
	"context"
	"database/sql"
	"errors"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/publicid"
)

// Repo persists projects. Tenant isolation comes from row level security on
// the transaction each call receives, so queries never filter by tenant.
type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

type ListFilter struct {
	Status string
	Search string
}

const projectColumns = `id, code, name, client_name, address, status, start_date, end_date, budget_cents, bid_id, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.ClientName, &p.Address, &p.Status,
		&p.StartDate, &p.EndDate, &p.BudgetCents, &p.BidID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert stores p with a freshly generated code and fills id, code and timestamps.
func (r *Repo) Insert(ctx context.Context, q db.Querier, p *Project) error {
	return publicid.Insert(ctx, codePrefix, func(code string) error {
		const stmt = `
INSERT INTO projects (code, name, client_name, address, status, start_date, end_date, budget_cents, bid_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (tenant_id, code) DO NOTHING
RETURNING ` + projectColumns

		saved, err := scanProject(q.QueryRowContext(ctx, stmt, code, p.Name, p.ClientName, p.Address,
			p.Status, p.StartDate, p.EndDate, p.BudgetCents, p.BidID))
		if errors.Is(err, sql.ErrNoRows) {
			return publicid.ErrTaken
		}
		if err != nil {
			return err
		}
		*p = *saved
		return nil
	})
}

func (r *Repo) Get(ctx context.Context, q db.Querier, id string) (*Project, error) {
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	const stmt = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND deleted_at IS NULL`

	p, err := scanProject(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetForUpdate locks the row for the rest of the transaction.
func (r *Repo) GetForUpdate(ctx context.Context, q db.Querier, id string) (*Project, error) {
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	const stmt = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	p, err := scanProject(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *Repo) List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Project, error) {
	const stmt = `
SELECT ` + projectColumns + `
FROM projects
WHERE deleted_at IS NULL
  AND ($1 = '' OR status = $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR code ILIKE '%' || $2 || '%')
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

	rows, err := q.QueryContext(ctx, stmt, f.Status, f.Search, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Project, 0, page.Limit)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, q db.Querier, p *Project) error {
	const stmt = `
UPDATE projects
SET name = $2, client_name = $3, address = $4, status = $5, start_date = $6, end_date = $7,
    budget_cents = $8, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + projectColumns

	saved, err := scanProject(q.QueryRowContext(ctx, stmt, p.ID, p.Name, p.ClientName, p.Address,
		p.Status, p.StartDate, p.EndDate, p.BudgetCents))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	*p = *saved
	return nil
}

func (r *Repo) SoftDelete(ctx context.Context, q db.Querier, id string) error {
	if !db.ValidID(id) {
		return ErrNotFound
	}
	const stmt = `
UPDATE projects
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`

	res, err := q.ExecContext(ctx, stmt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
