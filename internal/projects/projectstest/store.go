// Package projectstest holds an in-memory project store for service tests.
package projectstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/paging"
	"github.com/groundwork-cm/groundwork-backend/internal/projects"
)

// Store satisfies the projects service store. Deleted rows are dropped.
type Store struct {
	mu   sync.Mutex
	Rows map[string]*projects.Project
	seq  int
}

func NewStore() *Store {
	return &Store{Rows: map[string]*projects.Project{}}
}

// Put stores p as-is, assigning an id when missing.
func (m *Store) Put(p projects.Project) *projects.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		m.seq++
		p.ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", m.seq)
	}
	m.Rows[p.ID] = &p
	cp := p
	return &cp
}

func (m *Store) Insert(_ context.Context, _ db.Querier, p *projects.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", m.seq)
	p.Code = fmt.Sprintf("prj-%05d-0001", 10000+m.seq)
	p.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Millisecond)
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.Rows[p.ID] = &cp
	return nil
}

func (m *Store) Get(_ context.Context, _ db.Querier, id string) (*projects.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Rows[id]
	if !ok {
		return nil, projects.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Store) GetForUpdate(ctx context.Context, q db.Querier, id string) (*projects.Project, error) {
	return m.Get(ctx, q, id)
}

func (m *Store) List(_ context.Context, _ db.Querier, f projects.ListFilter, page paging.Params) ([]projects.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []projects.Project
	for _, p := range m.Rows {
		if f.Status == "" || p.Status == f.Status {
			out = append(out, *p)
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

func (m *Store) Update(_ context.Context, _ db.Querier, p *projects.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Rows[p.ID]; !ok {
		return projects.ErrNotFound
	}
	cp := *p
	m.Rows[p.ID] = &cp
	return nil
}

func (m *Store) SoftDelete(_ context.Context, _ db.Querier, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Rows[id]; !ok {
		return projects.ErrNotFound
	}
	delete(m.Rows, id)
	return nil
}
