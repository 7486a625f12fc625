package bids

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/publicid"
)

type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

type ListFilter struct {
	Status string
	Search string
}

const bidColumns = `id, number, title, client_name, client_email, due_date, markup_bps, subtotal_cents,
	markup_cents, total_cents, status, submitted_at, decided_at, project_id, created_at, updated_at`

func scanBid(row interface{ Scan(...any) error }) (*Bid, error) {
	var b Bid
	err := row.Scan(&b.ID, &b.Number, &b.Title, &b.ClientName, &b.ClientEmail, &b.DueDate, &b.MarkupBps,
		&b.SubtotalCents, &b.MarkupCents, &b.TotalCents, &b.Status, &b.SubmittedAt, &b.DecidedAt,
		&b.ProjectID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Insert stores the bid header and its line items.
func (r *Repo) Insert(ctx context.Context, q db.Querier, b *Bid) error {
	items := b.Items
	err := publicid.Insert(ctx, numberPrefix, func(number string) error {
		const stmt = `
INSERT INTO bids (number, title, client_name, client_email, due_date, markup_bps, subtotal_cents,
                  markup_cents, total_cents, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (tenant_id, number) DO NOTHING
RETURNING ` + bidColumns

		saved, err := scanBid(q.QueryRowContext(ctx, stmt, number, b.Title, b.ClientName, b.ClientEmail,
			b.DueDate, b.MarkupBps, b.SubtotalCents, b.MarkupCents, b.TotalCents, b.Status))
		if errors.Is(err, sql.ErrNoRows) {
			return publicid.ErrTaken
		}
		if err != nil {
			return err
		}
		*b = *saved
		return nil
	})
	if err != nil {
		return err
	}

	b.Items, err = r.insertItems(ctx, q, b.ID, items)
	return err
}

func (r *Repo) insertItems(ctx context.Context, q db.Querier, bidID string, items []LineItem) ([]LineItem, error) {
	const stmt = `
INSERT INTO bid_line_items (bid_id, position, description, quantity, unit_cost_cents, total_cents)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

	out := make([]LineItem, len(items))
	for i, it := range items {
		if err := q.QueryRowContext(ctx, stmt, bidID, it.Position, it.Description, it.Quantity,
			it.UnitCostCents, it.TotalCents).Scan(&it.ID); err != nil {
			return nil, err
		}
		out[i] = it
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, q db.Querier, id string) (*Bid, error) {
	return r.get(ctx, q, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id)
}

func (r *Repo) GetForUpdate(ctx context.Context, q db.Querier, id string) (*Bid, error) {
	return r.get(ctx, q, `SELECT `+bidColumns+` FROM bids WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repo) get(ctx context.Context, q db.Querier, stmt, id string) (*Bid, error) {
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	b, err := scanBid(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.Items, err = r.items(ctx, q, b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Repo) items(ctx context.Context, q db.Querier, bidID string) ([]LineItem, error) {
	const stmt = `
SELECT id, position, description, quantity, unit_cost_cents, total_cents
FROM bid_line_items
WHERE bid_id = $1
ORDER BY position`

	rows, err := q.QueryContext(ctx, stmt, bidID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.Position, &it.Description, &it.Quantity, &it.UnitCostCents, &it.TotalCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// List returns bid headers without line items.
func (r *Repo) List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Bid, error) {
	const stmt = `
SELECT ` + bidColumns + `
FROM bids
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR title ILIKE '%' || $2 || '%' OR client_name ILIKE '%' || $2 || '%' OR number ILIKE '%' || $2 || '%')
ORDER BY due_date, created_at
LIMIT $3 OFFSET $4`

	rows, err := q.QueryContext(ctx, stmt, f.Status, f.Search, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Bid, 0, page.Limit)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Save writes the header columns. Line items are untouched.
func (r *Repo) Save(ctx context.Context, q db.Querier, b *Bid) error {
	const stmt = `
UPDATE bids
SET title = $2, client_name = $3, client_email = $4, due_date = $5, markup_bps = $6, subtotal_cents = $7,
    markup_cents = $8, total_cents = $9, status = $10, submitted_at = $11, decided_at = $12,
    project_id = $13, updated_at = now()
WHERE id = $1
RETURNING ` + bidColumns

	items := b.Items
	saved, err := scanBid(q.QueryRowContext(ctx, stmt, b.ID, b.Title, b.ClientName, b.ClientEmail, b.DueDate,
		b.MarkupBps, b.SubtotalCents, b.MarkupCents, b.TotalCents, b.Status, b.SubmittedAt, b.DecidedAt, b.ProjectID))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	*b = *saved
	b.Items = items
	return nil
}

func (r *Repo) ReplaceItems(ctx context.Context, q db.Querier, b *Bid) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM bid_line_items WHERE bid_id = $1`, b.ID); err != nil {
		return err
	}
	items, err := r.insertItems(ctx, q, b.ID, b.Items)
	if err != nil {
		return err
	}
	b.Items = items
	return nil
}

func (r *Repo) Delete(ctx context.Context, q db.Querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM bids WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireDue moves draft bids whose due date is before today to expired and
// returns the ids and numbers it touched.
func (r *Repo) ExpireDue(ctx context.Context, q db.Querier, today time.Time) ([]Bid, error) {
	const stmt = `
UPDATE bids
SET status = 'expired', updated_at = now()
WHERE status = 'draft' AND due_date < $1
RETURNING id, number`

	rows, err := q.QueryContext(ctx, stmt, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bid
	for rows.Next() {
		b := Bid{Status: StatusExpired}
		if err := rows.Scan(&b.ID, &b.Number); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
