// Package jobs runs the periodic sweeps that no request triggers.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/config"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

type tenantLister interface {
	ListActive(ctx context.Context) ([]tenancy.Tenant, error)
}

type bidExpirer interface {
	ExpireDue(ctx context.Context, tenantID string) (int, error)
}

type rfiSweeper interface {
	SweepOverdue(ctx context.Context, tenantID string) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	tenants tenantLister
	bids    bidExpirer
	rfis    rfiSweeper
	timeout time.Duration
}

func NewScheduler(tenants tenantLister, bids bidExpirer, rfis rfiSweeper) *Scheduler {
	logger := cron.PrintfLogger(log.StandardLogger())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger))),
		tenants: tenants,
		bids:    bids,
		rfis:    rfis,
		timeout: 10 * time.Minute,
	}
}

// Register adds the sweeps using six-field specs (seconds first).
func (s *Scheduler) Register(cfg config.JobsConfig) error {
	if _, err := s.cron.AddFunc(cfg.BidSweepSpec, func() { s.ExpireBids(context.Background()) }); err != nil {
		return fmt.Errorf("bid sweep %q: %w", cfg.BidSweepSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.RFISweepSpec, func() { s.SweepRFIs(context.Background()) }); err != nil {
		return fmt.Errorf("rfi sweep %q: %w", cfg.RFISweepSpec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.WithField("jobs", len(s.cron.Entries())).Info("cron scheduler started")
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		log.Warn("cron jobs still running at shutdown")
	}
}

// ExpireBids expires overdue draft bids in every active tenant.
func (s *Scheduler) ExpireBids(ctx context.Context) int {
	return s.forEachTenant(ctx, "bid_expiry", s.bids.ExpireDue)
}

// SweepRFIs flags overdue RFIs in every active tenant.
func (s *Scheduler) SweepRFIs(ctx context.Context) int {
	return s.forEachTenant(ctx, "rfi_overdue", s.rfis.SweepOverdue)
}

// forEachTenant runs fn once per active tenant. A failing tenant is logged and
// skipped so the rest still run. It returns the summed count.
func (s *Scheduler) forEachTenant(ctx context.Context, job string, fn func(ctx context.Context, tenantID string) (int, error)) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger := log.WithField("job", job)
	start := time.Now()
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		logger.WithError(err).Error("list tenants")
		return 0
	}

	total := 0
	for _, t := range tenants {
		tctx := logging.WithTenantID(ctx, t.ID)
		n, err := fn(tctx, t.ID)
		if err != nil {
			logger.WithError(err).WithField("tenant", t.Slug).Error("job failed for tenant")
			continue
		}
		total += n
	}
	logger.WithFields(log.Fields{
		"tenants": len(tenants), "affected": total, "duration": time.Since(start).String(),
	}).Info("job finished")
	return total
}
