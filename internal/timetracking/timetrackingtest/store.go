// Package timetrackingtest holds an in-memory time entry store for service tests.
package timetrackingtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/timetracking"
)

type Store struct {
	mu   sync.Mutex
	Rows map[string]*timetracking.Entry
	seq  int
}

func NewStore() *Store {
	return &Store{Rows: map[string]*timetracking.Entry{}}
}

// Put stores e as-is, assigning an id when missing.
func (m *Store) Put(e timetracking.Entry) *timetracking.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		m.seq++
		e.ID = fmt.Sprintf("00000000-0000-4000-d000-%012d", m.seq)
	}
	m.Rows[e.ID] = &e
	cp := e
	return &cp
}

func (m *Store) Insert(_ context.Context, _ db.Querier, e *timetracking.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e.ID = fmt.Sprintf("00000000-0000-4000-d000-%012d", m.seq)
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.Rows[e.ID] = &cp
	return nil
}

func (m *Store) Get(_ context.Context, _ db.Querier, id string) (*timetracking.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Rows[id]
	if !ok {
		return nil, timetracking.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Store) GetForUpdate(ctx context.Context, q db.Querier, id string) (*timetracking.Entry, error) {
	return m.Get(ctx, q, id)
}

func (m *Store) List(_ context.Context, _ db.Querier, f timetracking.ListFilter, _ paging.Params) ([]timetracking.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []timetracking.Entry
	for _, e := range m.Rows {
		switch {
		case f.EmployeeID != "" && e.EmployeeID != f.EmployeeID,
			f.ProjectID != "" && e.ProjectID != f.ProjectID,
			f.Status != "" && e.Status != f.Status,
			f.From != nil && e.WorkDate.Before(*f.From),
			f.To != nil && e.WorkDate.After(*f.To):
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) MinutesOn(_ context.Context, _ db.Querier, employeeID string, day time.Time, excludeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.Rows {
		if id == excludeID || e.EmployeeID != employeeID || !e.WorkDate.Equal(day) || e.Status == timetracking.StatusRejected {
			continue
		}
		n += e.Minutes
	}
	return n, nil
}

func (m *Store) Save(_ context.Context, _ db.Querier, e *timetracking.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Rows[e.ID]; !ok {
		return timetracking.ErrNotFound
	}
	cp := *e
	m.Rows[e.ID] = &cp
	return nil
}

func (m *Store) Delete(_ context.Context, _ db.Querier, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Rows[id]; !ok {
		return timetracking.ErrNotFound
	}
	delete(m.Rows, id)
	return nil
}

func (m *Store) Claim(_ context.Context, _ db.Querier, batchID string, from, to time.Time) ([]timetracking.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []timetracking.Entry
	for _, e := range m.Rows {
		if e.Status != timetracking.StatusApproved || e.PayrollBatchID != nil ||
			e.WorkDate.Before(from) || e.WorkDate.After(to) {
			continue
		}
		id := batchID
		e.PayrollBatchID = &id
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out, nil
}

func (m *Store) Release(_ context.Context, _ db.Querier, batchID string) (int64, error) {
	return m.update(batchID, func(e *timetracking.Entry) { e.PayrollBatchID = nil }), nil
}

func (m *Store) MarkPaid(_ context.Context, _ db.Querier, batchID string) (int64, error) {
	return m.update(batchID, func(e *timetracking.Entry) { e.Status = timetracking.StatusPaid }), nil
}

func (m *Store) update(batchID string, fn func(e *timetracking.Entry)) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.Rows {
		if e.Status == timetracking.StatusApproved && e.PayrollBatchID != nil && *e.PayrollBatchID == batchID {
			fn(e)
			n++
		}
	}
	return n
}
