package rfis

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
)

type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

// ListFilter narrows a listing. Overdue matches open RFIs due before Today.
type ListFilter struct {
	ProjectID string
	Status    string
	Overdue   bool
	Today     time.Time
}

const columns = `id, project_id, number, subject, question, priority, assigned_to, due_date, status, answer,
	answered_by, answered_at, closed_at, attachments, created_by, created_at, updated_at`

func scan(row interface{ Scan(...any) error }) (*RFI, error) {
	var r RFI
	err := row.Scan(&r.ID, &r.ProjectID, &r.Number, &r.Subject, &r.Question, &r.Priority, &r.AssignedTo,
		&r.DueDate, &r.Status, &r.Answer, &r.AnsweredBy, &r.AnsweredAt, &r.ClosedAt,
		pq.Array(&r.Attachments), &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Insert numbers the RFI after the highest one on the project. Callers lock
// the project row first.
func (r *Repo) Insert(ctx context.Context, q db.Querier, rfi *RFI) error {
	const stmt = `
INSERT INTO rfis (project_id, number, subject, question, priority, assigned_to, due_date, status, created_by)
SELECT $1, COALESCE(MAX(number), 0) + 1, $2, $3, $4, $5, $6, $7, $8
FROM rfis
WHERE project_id = $1
RETURNING ` + columns

	saved, err := scan(q.QueryRowContext(ctx, stmt, rfi.ProjectID, rfi.Subject, rfi.Question, rfi.Priority,
		rfi.AssignedTo, rfi.DueDate, rfi.Status, rfi.CreatedBy))
	if err != nil {
		return err
	}
	*rfi = *saved
	return nil
}

func (r *Repo) Get(ctx context.Context, q db.Querier, id string) (*RFI, error) {
	return r.get(ctx, q, `SELECT `+columns+` FROM rfis WHERE id = $1`, id)
}

func (r *Repo) GetForUpdate(ctx context.Context, q db.Querier, id string) (*RFI, error) {
	return r.get(ctx, q, `SELECT `+columns+` FROM rfis WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repo) get(ctx context.Context, q db.Querier, stmt, id string) (*RFI, error) {
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	rfi, err := scan(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rfi, err
}

func (r *Repo) List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]RFI, error) {
	const stmt = `
SELECT ` + columns + `
FROM rfis
WHERE ($1 = '' OR project_id::text = $1)
  AND ($2 = '' OR status = $2)
  AND (NOT $3 OR (status = 'open' AND due_date < $4))
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`

	return r.query(ctx, q, stmt, f.ProjectID, f.Status, f.Overdue, f.Today, page.Limit, page.Offset)
}

// OverdueOpen lists every open RFI due before today.
func (r *Repo) OverdueOpen(ctx context.Context, q db.Querier, today time.Time) ([]RFI, error) {
	const stmt = `
SELECT ` + columns + `
FROM rfis
WHERE status = 'open' AND due_date < $1
ORDER BY due_date, number`

	return r.query(ctx, q, stmt, today)
}

func (r *Repo) Save(ctx context.Context, q db.Querier, rfi *RFI) error {
	const stmt = `
UPDATE rfis
SET subject = $2, question = $3, priority = $4, assigned_to = $5, due_date = $6, status = $7, answer = $8,
    answered_by = $9, answered_at = $10, closed_at = $11, attachments = $12, updated_at = now()
WHERE id = $1
RETURNING ` + columns

	keys := rfi.Attachments
	if keys == nil {
		keys = []string{}
	}
	saved, err := scan(q.QueryRowContext(ctx, stmt, rfi.ID, rfi.Subject, rfi.Question, rfi.Priority,
		rfi.AssignedTo, rfi.DueDate, rfi.Status, rfi.Answer, rfi.AnsweredBy, rfi.AnsweredAt, rfi.ClosedAt,
		pq.Array(keys)))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	*rfi = *saved
	return nil
}

func (r *Repo) query(ctx context.Context, q db.Querier, stmt string, args ...any) ([]RFI, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RFI
	for rows.Next() {
		rfi, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rfi)
	}
	return out, rows.Err()
}
