package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/store"
)

// StatsUpdater refreshes the posts-by-status gauge on a fixed interval.
type StatsUpdater struct {
	monitoring *MonitoringService
	posts      store.PostStore
	logger     *zap.Logger
	interval   time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewStatsUpdater(monitoring *MonitoringService, posts store.PostStore, logger *zap.Logger, interval time.Duration) *StatsUpdater {
	return &StatsUpdater{
		monitoring: monitoring,
		posts:      posts,
		logger:     logger,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start refreshes once right away, then on every interval until Stop or ctx
// cancellation.
func (s *StatsUpdater) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("Starting stats updater", zap.Duration("interval", s.interval))
		s.refresh(ctx)

		for {
			select {
			case <-ticker.C:
				s.refresh(ctx)
			case <-s.stopCh:
				s.logger.Info("Stats updater stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Stats updater stopped due to context cancellation")
				return
			}
		}
	}()
}

// Stop is safe to call more than once, and before Start.
func (s *StatsUpdater) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *StatsUpdater) refresh(ctx context.Context) {
	if err := s.monitoring.UpdatePostStats(ctx, s.posts); err != nil {
		s.logger.Error("Failed to update post stats", zap.Error(err))
		return
	}
	s.logger.Debug("Post stats refreshed")
}
