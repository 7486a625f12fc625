package contracts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/publicid"
)

type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

type ListFilter struct {
	ProjectID string
	Status    string
}

const contractColumns = `id, project_id, number, title, kind, counterparty, original_value_cents,
	approved_changes_cents, retainage_bps, status, start_date, end_date, executed_at,
	terminated_reason, bid_id, created_at, updated_at`

func scanContract(row interface{ Scan(...any) error }) (*Contract, error) {
	var c Contract
	err := row.Scan(&c.ID, &c.ProjectID, &c.Number, &c.Title, &c.Kind, &c.Counterparty,
		&c.OriginalValueCents, &c.ApprovedChangesCents, &c.RetainageBps, &c.Status,
		&c.StartDate, &c.EndDate, &c.ExecutedAt, &c.TerminatedReason, &c.BidID,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) Insert(ctx context.Context, q db.Querier, c *Contract) error {
	return publicid.Insert(ctx, numberPrefix, func(number string) error {
		const stmt = `
INSERT INTO contracts (project_id, number, title, kind, counterparty, original_value_cents,
                       retainage_bps, status, start_date, end_date, bid_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (tenant_id, number) DO NOTHING
RETURNING ` + contractColumns

		saved, err := scanContract(q.QueryRowContext(ctx, stmt, c.ProjectID, number, c.Title, c.Kind,
			c.Counterparty, c.OriginalValueCents, c.RetainageBps, c.Status, c.StartDate, c.EndDate, c.BidID))
		if errors.Is(err, sql.ErrNoRows) {
			return publicid.ErrTaken
		}
		if err != nil {
			return err
		}
		*c = *saved
		return nil
	})
}

func (r *Repo) Get(ctx context.Context, q db.Querier, id string) (*Contract, error) {
	return r.get(ctx, q, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
}

func (r *Repo) GetForUpdate(ctx context.Context, q db.Querier, id string) (*Contract, error) {
	return r.get(ctx, q, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repo) get(ctx context.Context, q db.Querier, stmt, id string) (*Contract, error) {
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	c, err := scanContract(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *Repo) List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Contract, error) {
	const stmt = `
SELECT ` + contractColumns + `
FROM contracts
WHERE ($1 = '' OR project_id::text = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

	rows, err := q.QueryContext(ctx, stmt, f.ProjectID, f.Status, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Contract, 0, page.Limit)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Save writes every mutable column of c.
func (r *Repo) Save(ctx context.Context, q db.Querier, c *Contract) error {
	const stmt = `
UPDATE contracts
SET title = $2, kind = $3, counterparty = $4, original_value_cents = $5, approved_changes_cents = $6,
    retainage_bps = $7, status = $8, start_date = $9, end_date = $10, executed_at = $11,
    terminated_reason = $12, updated_at = now()
WHERE id = $1
RETURNING ` + contractColumns

	saved, err := scanContract(q.QueryRowContext(ctx, stmt, c.ID, c.Title, c.Kind, c.Counterparty,
		c.OriginalValueCents, c.ApprovedChangesCents, c.RetainageBps, c.Status, c.StartDate, c.EndDate,
		c.ExecutedAt, c.TerminatedReason))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	*c = *saved
	return nil
}

func (r *Repo) CountPendingChangeOrders(ctx context.Context, q db.Querier, contractID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM change_orders WHERE contract_id = $1 AND status = 'pending'`, contractID).Scan(&n)
	return n, err
}
