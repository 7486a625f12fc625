package changeorders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
)

type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

type ListFilter struct {
	ContractID string
	Status     string
}

const columns = `id, contract_id, number, title, description, amount_cents, schedule_days, status,
	requested_by, decided_by, decided_at, reason, created_at, updated_at`

func scan(row interface{ Scan(...any) error }) (*ChangeOrder, error) {
	var co ChangeOrder
	err := row.Scan(&co.ID, &co.ContractID, &co.Number, &co.Title, &co.Description, &co.AmountCents,
		&co.ScheduleDays, &co.Status, &co.RequestedBy, &co.DecidedBy, &co.DecidedAt, &co.Reason,
		&co.CreatedAt, &co.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &co, nil
}

// Insert numbers the change order after the highest existing one on the
// contract. Callers hold a lock on the contract row so numbers cannot race.
func (r *Repo) Insert(ctx context.Context, q db.Querier, co *ChangeOrder) error {
	const stmt = `
INSERT INTO change_orders (contract_id, number, title, description, amount_cents, schedule_days, status, requested_by)
SELECT $1, COALESCE(MAX(number), 0) + 1, $2, $3, $4, $5, $6, $7
FROM change_orders
WHERE contract_id = $1
RETURNING ` + columns

	saved, err := scan(q.QueryRowContext(ctx, stmt, co.ContractID, co.Title, co.Description,
		co.AmountCents, co.ScheduleDays, co.Status, co.RequestedBy))
	if err != nil {
		return err
	}
	*co = *saved
	return nil
}

func (r *Repo) Get(ctx context.Context, q db.Querier, id string) (*ChangeOrder, error) {
	return r.get(ctx, q, `SELECT `+columns+` FROM change_orders WHERE id = $1`, id)
}

func (r *Repo) GetForUpdate(ctx context.Context, q db.Querier, id string) (*ChangeOrder, error) {
	return r.get(ctx, q, `SELECT `+columns+` FROM change_orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repo) get(ctx context.Context, q db.Querier, stmt, id string) (*ChangeOrder, error) {
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	co, err := scan(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return co, err
}

func (r *Repo) List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]ChangeOrder, error) {
	const stmt = `
SELECT ` + columns + `
FROM change_orders
WHERE contract_id = $1
  AND ($2 = '' OR status = $2)
ORDER BY number
LIMIT $3 OFFSET $4`

	rows, err := q.QueryContext(ctx, stmt, f.ContractID, f.Status, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ChangeOrder, 0, page.Limit)
	for rows.Next() {
		co, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *co)
	}
	return out, rows.Err()
}

func (r *Repo) Save(ctx context.Context, q db.Querier, co *ChangeOrder) error {
	const stmt = `
UPDATE change_orders
SET title = $2, description = $3, amount_cents = $4, schedule_days = $5, status = $6,
    decided_by = $7, decided_at = $8, reason = $9, updated_at = now()
WHERE id = $1
RETURNING ` + columns

	saved, err := scan(q.QueryRowContext(ctx, stmt, co.ID, co.Title, co.Description, co.AmountCents,
		co.ScheduleDays, co.Status, co.DecidedBy, co.DecidedAt, co.Reason))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	*co = *saved
	return nil
}
