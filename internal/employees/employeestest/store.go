// Package employeestest holds an in-memory employee store for service tests.
package employeestest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/employees"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
)

type Store struct {
	mu   sync.Mutex
	Rows map[string]*employees.Employee
	seq  int
}

func NewStore() *Store {
	return &Store{Rows: map[string]*employees.Employee{}}
}

// Put stores e as-is, assigning an id when missing.
func (m *Store) Put(e employees.Employee) *employees.Employee {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		m.seq++
		e.ID = fmt.Sprintf("00000000-0000-4000-c000-%012d", m.seq)
	}
	if e.Status == "" {
		e.Status = employees.StatusActive
	}
	m.Rows[e.ID] = &e
	cp := e
	return &cp
}

func (m *Store) Insert(_ context.Context, _ db.Querier, e *employees.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.Rows {
		if other.EmployeeNumber == e.EmployeeNumber {
			return employees.ErrExists
		}
	}
	m.seq++
	e.ID = fmt.Sprintf("00000000-0000-4000-c000-%012d", m.seq)
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.Rows[e.ID] = &cp
	return nil
}

func (m *Store) Get(_ context.Context, _ db.Querier, id string) (*employees.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Rows[id]
	if !ok {
		return nil, employees.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Store) GetForUpdate(ctx context.Context, q db.Querier, id string) (*employees.Employee, error) {
	return m.Get(ctx, q, id)
}

func (m *Store) List(_ context.Context, _ db.Querier, f employees.ListFilter, _ paging.Params) ([]employees.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []employees.Employee
	for _, e := range m.Rows {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.Trade != "" && (e.Trade == nil || *e.Trade != f.Trade) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeNumber < out[j].EmployeeNumber })
	return out, nil
}

func (m *Store) EmployedDuring(_ context.Context, _ db.Querier, from, to time.Time) ([]employees.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []employees.Employee
	for _, e := range m.Rows {
		if e.HireDate.After(to) {
			continue
		}
		if e.TerminationDate != nil && e.TerminationDate.Before(from) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeNumber < out[j].EmployeeNumber })
	return out, nil
}

func (m *Store) Save(_ context.Context, _ db.Querier, e *employees.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Rows[e.ID]; !ok {
		return employees.ErrNotFound
	}
	for id, other := range m.Rows {
		if id != e.ID && other.EmployeeNumber == e.EmployeeNumber {
			return employees.ErrExists
		}
	}
	cp := *e
	m.Rows[e.ID] = &cp
	return nil
}
