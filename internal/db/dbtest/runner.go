// Package dbtest provides a db.TxRunner for service tests backed by in-memory stores.
package dbtest

import (
	"context"
	"sync"

	"github.com/groundwork-cm/groundwork-backend/internal/db"
)

// Runner calls fn with a nil Querier and records the tenants it was asked to scope to.
// Set Err to make every call fail before fn runs.
type Runner struct {
	mu      sync.Mutex
	Tenants []string
	Err     error
}

func (r *Runner) WithTenant(ctx context.Context, tenantID string, fn func(q db.Querier) error) error {
	r.mu.Lock()
	r.Tenants = append(r.Tenants, tenantID)
	err := r.Err
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(nil)
}

// Calls returns how many transactions were opened.
func (r *Runner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Tenants)
}
