package timetracking

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
	EmployeeID string
	ProjectID  string
	Status     string
	From       *time.Time
	To         *time.Time
}

const entryColumns = `id, employee_id, project_id, work_date, minutes, cost_code, notes, status, submitted_at,
	decided_by, decided_at, rejection_reason, payroll_batch_id, created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.EmployeeID, &e.ProjectID, &e.WorkDate, &e.Minutes, &e.CostCode, &e.Notes,
		&e.Status, &e.SubmittedAt, &e.DecidedBy, &e.DecidedAt, &e.RejectionReason, &e.PayrollBatchID,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repo) Insert(ctx context.Context, q db.Querier, e *Entry) error {
	const stmt = `
INSERT INTO time_entries (employee_id, project_id, work_date, minutes, cost_code, notes, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + entryColumns

	saved, err := scanEntry(q.QueryRowContext(ctx, stmt, e.EmployeeID, e.ProjectID, e.WorkDate, e.Minutes,
		e.CostCode, e.Notes, e.Status))
	if err != nil {
		return err
	}
	*e = *saved
	return nil
}

func (r *Repo) Get(ctx context.Context, q db.Querier, id string) (*Entry, error) {
	return r.get(ctx, q, `SELECT `+entryColumns+` FROM time_entries WHERE id = $1`, id)
}

func (r *Repo) GetForUpdate(ctx context.Context, q db.Querier, id string) (*Entry, error) {
	return r.get(ctx, q, `SELECT `+entryColumns+` FROM time_entries WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repo) get(ctx context.Context, q db.Querier, stmt, id string) (*Entry, error) {
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	e, err := scanEntry(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *Repo) List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Entry, error) {
	const stmt = `
SELECT ` + entryColumns + `
FROM time_entries
WHERE ($1 = '' OR employee_id::text = $1)
  AND ($2 = '' OR project_id::text = $2)
  AND ($3 = '' OR status = $3)
  AND ($4::date IS NULL OR work_date >= $4)
  AND ($5::date IS NULL OR work_date <= $5)
ORDER BY work_date DESC, created_at DESC
LIMIT $6 OFFSET $7`

	return r.query(ctx, q, stmt, f.EmployeeID, f.ProjectID, f.Status, f.From, f.To, page.Limit, page.Offset)
}

// MinutesOn sums the employee's non-rejected minutes on day, leaving out excludeID.
func (r *Repo) MinutesOn(ctx context.Context, q db.Querier, employeeID string, day time.Time, excludeID string) (int, error) {
	const stmt = `
SELECT COALESCE(SUM(minutes), 0)
FROM time_entries
WHERE employee_id = $1 AND work_date = $2 AND status <> 'rejected' AND id::text <> $3`

	var n int
	err := q.QueryRowContext(ctx, stmt, employeeID, day, excludeID).Scan(&n)
	return n, err
}

func (r *Repo) Save(ctx context.Context, q db.Querier, e *Entry) error {
	const stmt = `
UPDATE time_entries
SET project_id = $2, work_date = $3, minutes = $4, cost_code = $5, notes = $6, status = $7,
    submitted_at = $8, decided_by = $9, decided_at = $10, rejection_reason = $11, updated_at = now()
WHERE id = $1
RETURNING ` + entryColumns

	saved, err := scanEntry(q.QueryRowContext(ctx, stmt, e.ID, e.ProjectID, e.WorkDate, e.Minutes, e.CostCode,
		e.Notes, e.Status, e.SubmittedAt, e.DecidedBy, e.DecidedAt, e.RejectionReason))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	*e = *saved
	return nil
}

func (r *Repo) Delete(ctx context.Context, q db.Querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim attaches every approved, unclaimed entry dated inside [from, to] to batchID.
func (r *Repo) Claim(ctx context.Context, q db.Querier, batchID string, from, to time.Time) ([]Entry, error) {
	const stmt = `
UPDATE time_entries
SET payroll_batch_id = $1, updated_at = now()
WHERE status = 'approved'
  AND payroll_batch_id IS NULL
  AND work_date BETWEEN $2 AND $3
RETURNING ` + entryColumns

	return r.query(ctx, q, stmt, batchID, from, to)
}

// Release detaches the approved entries held by batchID.
func (r *Repo) Release(ctx context.Context, q db.Querier, batchID string) (int64, error) {
	res, err := q.ExecContext(ctx, `
UPDATE time_entries
SET payroll_batch_id = NULL, updated_at = now()
WHERE payroll_batch_id = $1 AND status = 'approved'`, batchID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkPaid moves every entry held by batchID to paid.
func (r *Repo) MarkPaid(ctx context.Context, q db.Querier, batchID string) (int64, error) {
	res, err := q.ExecContext(ctx, `
UPDATE time_entries
SET status = 'paid', updated_at = now()
WHERE payroll_batch_id = $1 AND status = 'approved'`, batchID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) query(ctx context.Context, q db.Querier, stmt string, args ...any) ([]Entry, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
