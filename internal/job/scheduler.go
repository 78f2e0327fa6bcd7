package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"hypeledger/internal/repository"
)

// RequeueSpec is when FAILED outbox messages get a fresh retry budget.
const RequeueSpec = "@every 10m"

// RevenueSyncer reloads the sustainability revenue total from storage.
type RevenueSyncer interface {
	SyncRevenue(ctx context.Context) error
}

// Scheduler runs the periodic ledger maintenance jobs on UTC.
type Scheduler struct {
	cron        *cron.Cron
	revenue     RevenueSyncer
	outboxRepo  *repository.OutboxRepository // nil when no outbox is used
	revenueSpec string
}

func NewScheduler(revenue RevenueSyncer, outboxRepo *repository.OutboxRepository, revenueSpec string) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(time.UTC)),
		revenue:     revenue,
		outboxRepo:  outboxRepo,
		revenueSpec: revenueSpec,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.revenueSpec, func() { s.syncRevenue(ctx) }); err != nil {
		return fmt.Errorf("schedule revenue sync %q: %w", s.revenueSpec, err)
	}
	if s.outboxRepo != nil {
		if _, err := s.cron.AddFunc(RequeueSpec, func() { s.requeueFailed(ctx) }); err != nil {
			return fmt.Errorf("schedule outbox requeue: %w", err)
		}
	}

	s.cron.Start()
	log.WithField("revenue_sync", s.revenueSpec).Info("[CRON] scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("[CRON] scheduler stopped")
}

func (s *Scheduler) syncRevenue(ctx context.Context) {
	if err := s.revenue.SyncRevenue(ctx); err != nil {
		log.WithError(err).Error("[CRON] revenue sync failed")
		return
	}
	log.Debug("[CRON] revenue synced")
}

func (s *Scheduler) requeueFailed(ctx context.Context) {
	n, err := s.outboxRepo.RequeueFailed(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] outbox requeue failed")
		return
	}
	if n > 0 {
		log.WithField("count", n).Info("[CRON] failed outbox messages requeued")
	}
}
