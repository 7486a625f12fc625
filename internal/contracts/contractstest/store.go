// Package contractstest holds an in-memory contract store for service tests.
package contractstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/contracts"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
)

type Store struct {
	mu   sync.Mutex
	Rows map[string]*contracts.Contract
	// Pending is returned by CountPendingChangeOrders, keyed by contract id.
	Pending map[string]int
	seq     int
}

func NewStore() *Store {
	return &Store{Rows: map[string]*contracts.Contract{}, Pending: map[string]int{}}
}

// Put stores c as-is, assigning an id when missing.
func (m *Store) Put(c contracts.Contract) *contracts.Contract {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		m.seq++
		c.ID = fmt.Sprintf("00000000-0000-4000-9000-%012d", m.seq)
	}
	m.Rows[c.ID] = &c
	cp := c
	return &cp
}

func (m *Store) Insert(_ context.Context, _ db.Querier, c *contracts.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = fmt.Sprintf("00000000-0000-4000-9000-%012d", m.seq)
	c.Number = fmt.Sprintf("con-%05d-0001", 10000+m.seq)
	c.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Millisecond)
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.Rows[c.ID] = &cp
	return nil
}

func (m *Store) Get(_ context.Context, _ db.Querier, id string) (*contracts.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Rows[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Store) GetForUpdate(ctx context.Context, q db.Querier, id string) (*contracts.Contract, error) {
	return m.Get(ctx, q, id)
}

func (m *Store) List(_ context.Context, _ db.Querier, f contracts.ListFilter, page paging.Params) ([]contracts.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []contracts.Contract
	for _, c := range m.Rows {
		if (f.ProjectID == "" || c.ProjectID == f.ProjectID) && (f.Status == "" || c.Status == f.Status) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if page.Offset >= len(out) {
		return nil, nil
	}
	out = out[page.Offset:]
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (m *Store) Save(_ context.Context, _ db.Querier, c *contracts.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Rows[c.ID]; !ok {
		return contracts.ErrNotFound
	}
	cp := *c
	m.Rows[c.ID] = &cp
	return nil
}

func (m *Store) CountPendingChangeOrders(_ context.Context, _ db.Querier, contractID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Pending[contractID], nil
}
