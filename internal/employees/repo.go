package employees

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
)

type Repo struct{}

func NewRepo() *Repo {
	return &Repo{}
}

type ListFilter struct {
	Status string
	Trade  string
	Search string
}

const employeeColumns = `id, employee_number, first_name, last_name, email, phone, job_title, trade, pay_type,
	hourly_rate_cents, annual_salary_cents, hire_date, termination_date, status, created_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (*Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.EmployeeNumber, &e.FirstName, &e.LastName, &e.Email, &e.Phone, &e.JobTitle,
		&e.Trade, &e.PayType, &e.HourlyRateCents, &e.AnnualSalaryCents, &e.HireDate, &e.TerminationDate,
		&e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repo) Insert(ctx context.Context, q db.Querier, e *Employee) error {
	const stmt = `
INSERT INTO employees (employee_number, first_name, last_name, email, phone, job_title, trade, pay_type,
                       hourly_rate_cents, annual_salary_cents, hire_date, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + employeeColumns

	saved, err := scanEmployee(q.QueryRowContext(ctx, stmt, e.EmployeeNumber, e.FirstName, e.LastName, e.Email,
		e.Phone, e.JobTitle, e.Trade, e.PayType, e.HourlyRateCents, e.AnnualSalaryCents, e.HireDate, e.Status))
	if apperr.IsUniqueViolation(err) {
		return ErrExists
	}
	if err != nil {
		return err
	}
	*e = *saved
	return nil
}

func (r *Repo) Get(ctx context.Context, q db.Querier, id string) (*Employee, error) {
	return r.get(ctx, q, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
}

func (r *Repo) GetForUpdate(ctx context.Context, q db.Querier, id string) (*Employee, error) {
	return r.get(ctx, q, `SELECT `+employeeColumns+` FROM employees WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repo) get(ctx context.Context, q db.Querier, stmt, id string) (*Employee, error) {
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	e, err := scanEmployee(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *Repo) List(ctx context.Context, q db.Querier, f ListFilter, page paging.Params) ([]Employee, error) {
	const stmt = `
SELECT ` + employeeColumns + `
FROM employees
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR trade = $2)
  AND ($3 = '' OR first_name || ' ' || last_name ILIKE '%' || $3 || '%' OR employee_number = $3)
ORDER BY last_name, first_name, employee_number
LIMIT $4 OFFSET $5`

	return r.query(ctx, q, stmt, f.Status, f.Trade, f.Search, page.Limit, page.Offset)
}

// EmployedDuring returns everyone hired on or before to and not terminated before from.
func (r *Repo) EmployedDuring(ctx context.Context, q db.Querier, from, to time.Time) ([]Employee, error) {
	const stmt = `
SELECT ` + employeeColumns + `
FROM employees
WHERE hire_date <= $2
  AND (termination_date IS NULL OR termination_date >= $1)
ORDER BY employee_number`

	return r.query(ctx, q, stmt, from, to)
}

func (r *Repo) query(ctx context.Context, q db.Querier, stmt string, args ...any) ([]Employee, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *Repo) Save(ctx context.Context, q db.Querier, e *Employee) error {
	const stmt = `
UPDATE employees
SET employee_number = $2, first_name = $3, last_name = $4, email = $5, phone = $6, job_title = $7,
    trade = $8, pay_type = $9, hourly_rate_cents = $10, annual_salary_cents = $11, hire_date = $12,
    termination_date = $13, status = $14, updated_at = now()
WHERE id = $1
RETURNING ` + employeeColumns

	saved, err := scanEmployee(q.QueryRowContext(ctx, stmt, e.ID, e.EmployeeNumber, e.FirstName, e.LastName,
		e.Email, e.Phone, e.JobTitle, e.Trade, e.PayType, e.HourlyRateCents, e.AnnualSalaryCents, e.HireDate,
		e.TerminationDate, e.Status))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case apperr.IsUniqueViolation(err):
		return ErrExists
	case err != nil:
		return err
	}
	*e = *saved
	return nil
}
