// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"tradedesk-ledger/internal/metrics"
	"tradedesk-ledger/internal/service"
)

// Expirer is the part of the settlement engine the sweeper drives.
type Expirer interface {
	ExpireDue(ctx context.Context) ([]service.SettlementResult, error)
}

// Scheduler runs the periodic signal expiry sweep.
type Scheduler struct {
	cron    *cron.Cron
	expirer Expirer
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration
}

// NewScheduler creates a Scheduler. Specs use the six-field form with seconds.
func NewScheduler(expirer Expirer, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		expirer: expirer,
		metrics: m,
		logger:  logger,
		timeout: 5 * time.Minute,
	}
}

// Register adds the expiry sweep on schedule.
func (s *Scheduler) Register(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.SweepNow); err != nil {
		return fmt.Errorf("register expiry sweep %q: %w", schedule, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Expiry scheduler started")
}

// Stop stops scheduling and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Expiry scheduler stop timed out", "error", ctx.Err())
	}
	s.logger.Info("Expiry scheduler stopped")
}

// SweepNow expires every due signal immediately.
func (s *Scheduler) SweepNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	results, err := s.expirer.ExpireDue(ctx)
	s.metrics.ExpirySweep(err)
	if err != nil {
		s.logger.Error("Expiry sweep failed", "expired", len(results), "error", err)
		return
	}
	if len(results) > 0 {
		s.logger.Info("Expiry sweep finished", "expired", len(results))
	}
}
