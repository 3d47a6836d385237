package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// RetentionScheduler prunes the routing log on a cron schedule.
type RetentionScheduler struct {
	store         *Store
	retentionDays int
	schedule      string
	cron          *cron.Cron
	mu            sync.Mutex
	running       bool
	logger        *slog.Logger
}

func NewRetentionScheduler(s *Store, retentionDays int, schedule string, logger *slog.Logger) *RetentionScheduler {
	return &RetentionScheduler{
		store:         s,
		retentionDays: retentionDays,
		schedule:      schedule,
		cron:          cron.New(),
		logger:        logger,
	}
}

// Start begins scheduled pruning. An empty schedule disables it.
func (rs *RetentionScheduler) Start(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.schedule == "" || rs.running {
		return nil
	}

	if _, err := cron.ParseStandard(rs.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", rs.schedule, err)
	}

	_, err := rs.cron.AddFunc(rs.schedule, func() {
		deleted, err := rs.store.Prune(ctx, rs.retentionDays)
		if err != nil {
			rs.logger.Error("retention prune failed", "error", err)
			return
		}
		if deleted > 0 {
			rs.logger.Info("pruned routing log", "deleted", deleted, "retention_days", rs.retentionDays)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule prune job: %w", err)
	}

	rs.cron.Start()
	rs.running = true
	rs.logger.Info("retention scheduler started", "schedule", rs.schedule, "retention_days", rs.retentionDays)
	return nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (rs *RetentionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.running {
		return
	}
	<-rs.cron.Stop().Done()
	rs.running = false
}
