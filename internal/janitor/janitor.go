// Package janitor runs the scheduled cleanup sweeps: expiring stale pending
// clarifications and pruning idle sessions.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// TrafficSweeper flips stale pending clarifications to expired.
type TrafficSweeper interface {
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionPruner drops idle session turns. Optional; the in-memory store
// sweeps itself.
type SessionPruner interface {
	PruneIdle(ctx context.Context) (int64, error)
}

type Service struct {
	cron       *cron.Cron
	traffic    TrafficSweeper
	sessions   SessionPruner
	pendingTTL time.Duration
	schedule   string
	logger     *slog.Logger
}

func New(traffic TrafficSweeper, sessions SessionPruner, pendingTTL time.Duration, schedule string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = "@every 1h"
	}
	if pendingTTL <= 0 {
		pendingTTL = 7 * 24 * time.Hour
	}
	return &Service{
		cron:       cron.New(),
		traffic:    traffic,
		sessions:   sessions,
		pendingTTL: pendingTTL,
		schedule:   schedule,
		logger:     logger.With("component", "janitor"),
	}
}

// Run schedules the sweep and blocks until ctx is done. One sweep fires
// immediately so a restart doesn't postpone overdue cleanup by a full
// interval.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	s.Sweep(ctx)
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

// Sweep runs one cleanup pass.
func (s *Service) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.pendingTTL)
	expired, err := s.traffic.ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("pending sweep failed", "error", err)
	} else if expired > 0 {
		s.logger.Info("expired stale clarifications", "count", expired)
	}

	if s.sessions != nil {
		pruned, err := s.sessions.PruneIdle(ctx)
		if err != nil {
			s.logger.Error("session prune failed", "error", err)
		} else if pruned > 0 {
			s.logger.Info("pruned idle session turns", "count", pruned)
		}
	}
}
