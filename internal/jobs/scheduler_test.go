package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwork-cm/groundwork-backend/config"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

type fakeTenants struct {
	list []tenancy.Tenant
	err  error
}

func (f *fakeTenants) ListActive(context.Context) ([]tenancy.Tenant, error) { return f.list, f.err }

type fakeSweep struct {
	mu     sync.Mutex
	counts map[string]int
	fail   map[string]bool
	seen   []string
}

func (f *fakeSweep) run(_ context.Context, tenantID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, tenantID)
	if f.fail[tenantID] {
		return 0, errors.New("boom")
	}
	return f.counts[tenantID], nil
}

func (f *fakeSweep) ExpireDue(ctx context.Context, tenantID string) (int, error) {
	return f.run(ctx, tenantID)
}

func (f *fakeSweep) SweepOverdue(ctx context.Context, tenantID string) (int, error) {
	return f.run(ctx, tenantID)
}

func tenants(ids ...string) []tenancy.Tenant {
	out := make([]tenancy.Tenant, 0, len(ids))
	for _, id := range ids {
		out = append(out, tenancy.Tenant{ID: id, Slug: "t-" + id, Status: tenancy.StatusActive})
	}
	return out
}

func TestExpireBids_SumsAcrossTenants(t *testing.T) {
	bids := &fakeSweep{counts: map[string]int{"a": 2, "b": 3}}
	s := NewScheduler(&fakeTenants{list: tenants("a", "b")}, bids, &fakeSweep{})

	assert.Equal(t, 5, s.ExpireBids(context.Background()))
	assert.Equal(t, []string{"a", "b"}, bids.seen)
}

func TestSweepRFIs_ContinuesAfterTenantFailure(t *testing.T) {
	rfis := &fakeSweep{counts: map[string]int{"a": 1, "c": 4}, fail: map[string]bool{"b": true}}
	s := NewScheduler(&fakeTenants{list: tenants("a", "b", "c")}, &fakeSweep{}, rfis)

	assert.Equal(t, 5, s.SweepRFIs(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, rfis.seen)
}

func TestForEachTenant_ListError(t *testing.T) {
	bids := &fakeSweep{}
	s := NewScheduler(&fakeTenants{err: errors.New("db down")}, bids, &fakeSweep{})

	assert.Zero(t, s.ExpireBids(context.Background()))
	assert.Empty(t, bids.seen)
}

func TestRegister(t *testing.T) {
	s := NewScheduler(&fakeTenants{}, &fakeSweep{}, &fakeSweep{})
	require.NoError(t, s.Register(config.JobsConfig{RFISweepSpec: "0 0 * * * *", BidSweepSpec: "0 15 0 * * *"}))
	assert.Len(t, s.cron.Entries(), 2)

	s = NewScheduler(&fakeTenants{}, &fakeSweep{}, &fakeSweep{})
	err := s.Register(config.JobsConfig{RFISweepSpec: "0 0 * * * *", BidSweepSpec: "every day"})
	assert.ErrorContains(t, err, "bid sweep")
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&fakeTenants{}, &fakeSweep{}, &fakeSweep{})
	require.NoError(t, s.Register(config.JobsConfig{RFISweepSpec: "0 0 * * * *", BidSweepSpec: "0 15 0 * * *"}))
	s.Start()
	s.Stop(context.Background())
}
