package payroll

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
)

type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

type ListFilter struct {
	Status string
}

const batchColumns = `id, period_start, period_end, pay_date, status, gross_cents, employee_count, entry_count,
	approved_by, approved_at, paid_at, created_at, updated_at`

func scanBatch(row interface{ Scan(...any) error }) (*Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.PeriodStart, &b.PeriodEnd, &b.PayDate, &b.Status, &b.GrossCents, &b.EmployeeCount,
		&b.EntryCount, &b.ApprovedBy, &b.ApprovedAt, &b.PaidAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// LockPeriods serializes batch creation per tenant so overlap checks hold.
func (r *Repo) LockPeriods(ctx context.Context, q db.Querier) error {
	_, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('payroll:' || current_tenant()::text))`)
	return err
}

// Overlapping reports whether a non-void batch shares a day with [from, to].
func (r *Repo) Overlapping(ctx context.Context, q db.Querier, from, to time.Time) (bool, error) {
	const stmt = `
SELECT EXISTS (
    SELECT 1 FROM payroll_batches
    WHERE status <> 'void' AND period_start <= $2 AND period_end >= $1
)`
	var found bool
	err := q.QueryRowContext(ctx, stmt, from, to).Scan(&found)
	return found, err
}

func (r *Repo) Insert(ctx context.Context, q db.Querier, b *Batch) error {
	const stmt = `
INSERT INTO payroll_batches (period_start, period_end, pay_date, status)
VALUES ($1, $2, $3, $4)
RETURNING ` + batchColumns

	saved, err := scanBatch(q.QueryRowContext(ctx, stmt, b.PeriodStart, b.PeriodEnd, b.PayDate, b.Status))
	if err != nil {
		return err
	}
	*b = *saved
	return nil
}

func (r *Repo) Get(ctx context.Context, q db.Querier, id string) (*Batch, error) {
	return r.get(ctx, q, `SELECT `+batchColumns+` FROM payroll_batches WHERE id = $1`, id)
}

func (r *Repo) GetForUpdate(ctx context.Context, q db.Querier, id string) (*Batch, error) {
	return r.get(ctx, q, `SELECT `+batchColumns+` FROM payroll_batches WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repo) get(ctx context.Context, q db.Querier, stmt, id string) (*Batch, error) {
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	b, err := scanBatch(q.QueryRowContext(ctx, stmt, id))
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

func (r *Repo) items(ctx context.Context, q db.Querier, batchID string) ([]Item, error) {
	const stmt = `
SELECT id, employee_id, pay_type, regular_minutes, overtime_minutes, regular_pay_cents,
       overtime_pay_cents, salary_pay_cents, gross_cents
FROM payroll_items
WHERE batch_id = $1
ORDER BY employee_id`

	rows, err := q.QueryContext(ctx, stmt, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.EmployeeID, &it.PayType, &it.RegularMinutes, &it.OvertimeMinutes,
			&it.RegularPayCents, &it.OvertimePayCents, &it.SalaryPayCents, &it.GrossCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// List returns batch headers without items, newest period first.
func (r *Repo) List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Batch, error) {
	const stmt = `
SELECT ` + batchColumns + `
FROM payroll_batches
WHERE ($1 = '' OR status = $1)
ORDER BY period_start DESC, created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := q.QueryContext(ctx, stmt, f.Status, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Save writes the header. Items are left untouched.
func (r *Repo) Save(ctx context.Context, q db.Querier, b *Batch) error {
	const stmt = `
UPDATE payroll_batches
SET status = $2, gross_cents = $3, employee_count = $4, entry_count = $5, approved_by = $6,
    approved_at = $7, paid_at = $8, updated_at = now()
WHERE id = $1
RETURNING ` + batchColumns

	saved, err := scanBatch(q.QueryRowContext(ctx, stmt, b.ID, b.Status, b.GrossCents, b.EmployeeCount,
		b.EntryCount, b.ApprovedBy, b.ApprovedAt, b.PaidAt))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	saved.Items = b.Items
	*b = *saved
	return nil
}

func (r *Repo) ReplaceItems(ctx context.Context, q db.Querier, b *Batch) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM payroll_items WHERE batch_id = $1`, b.ID); err != nil {
		return err
	}

	const stmt = `
INSERT INTO payroll_items (batch_id, employee_id, pay_type, regular_minutes, overtime_minutes,
                           regular_pay_cents, overtime_pay_cents, salary_pay_cents, gross_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`

	for i := range b.Items {
		it := &b.Items[i]
		if err := q.QueryRowContext(ctx, stmt, b.ID, it.EmployeeID, it.PayType, it.RegularMinutes,
			it.OvertimeMinutes, it.RegularPayCents, it.OvertimePayCents, it.SalaryPayCents,
			it.GrossCents).Scan(&it.ID); err != nil {
			return err
		}
	}
	return nil
}
