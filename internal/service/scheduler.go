package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ifuryst/agripost/internal/config"
	"github.com/ifuryst/agripost/internal/models"
)

// Scheduler periodically publishes due posts. Every due post runs as its own
// task in an errgroup with its own timeout; max_concurrent bounds how many run
// at once.
type Scheduler struct {
	config         *config.SchedulerConfig
	logger         *zap.Logger
	posts          *PostService
	publishTimeout time.Duration
	ticker         *time.Ticker
	stopCh         chan struct{}
	stopOnce       sync.Once

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopped  bool
	tasks    errgroup.Group
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, posts *PostService) *Scheduler {
	s := &Scheduler{
		config:   cfg,
		logger:   logger,
		posts:    posts,
		stopCh:   make(chan struct{}),
		inFlight: make(map[string]struct{}),
	}
	if d, err := time.ParseDuration(cfg.PublishTimeout); err == nil && d > 0 {
		s.publishTimeout = d
	}
	if cfg.MaxConcurrent > 0 {
		s.tasks.SetLimit(cfg.MaxConcurrent)
	}
	return s
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.IsEnabled() {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.TickInterval)
	if err != nil || interval <= 0 {
		s.logger.Error("Invalid tick interval", zap.String("interval", s.config.TickInterval), zap.Error(err))
		return fmt.Errorf("invalid tick interval %q", s.config.TickInterval)
	}
	timeout, err := time.ParseDuration(s.config.PublishTimeout)
	if err != nil || timeout <= 0 {
		s.logger.Error("Invalid publish timeout", zap.String("timeout", s.config.PublishTimeout), zap.Error(err))
		return fmt.Errorf("invalid publish timeout %q", s.config.PublishTimeout)
	}
	s.publishTimeout = timeout

	s.logger.Info("Starting scheduler",
		zap.String("tick_interval", s.config.TickInterval),
		zap.String("publish_timeout", s.config.PublishTimeout))

	s.ticker = time.NewTicker(interval)

	go func() {
		s.logger.Info("Running initial tick")
		s.Tick(ctx)

		for {
			select {
			case <-s.ticker.C:
				s.Tick(ctx)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker and waits for in-flight publishes to record their
// outcome.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
	_ = s.tasks.Wait()
	s.logger.Info("Scheduler shutdown completed")
}

// Tick launches a publish task for every due post that is not already being
// published and returns how many were launched. It does not wait for them.
// Posts left over when the concurrency limit is reached wait for a later tick.
func (s *Scheduler) Tick(ctx context.Context) int {
	start := time.Now()
	due, err := s.posts.ListDue(ctx, s.posts.now())
	if err != nil {
		s.logger.Error("Failed to list due posts", zap.Error(err))
		return 0
	}

	launched := 0
	for _, post := range due {
		if !s.launch(post.ID) {
			s.logger.Debug("Post not launched this tick", zap.String("post_id", post.ID))
			continue
		}
		launched++
	}

	if len(due) > 0 {
		s.logger.Info("Tick completed",
			zap.Int("due", len(due)),
			zap.Int("launched", launched),
			zap.Duration("duration", time.Since(start)))
	}
	return launched
}

// Wait blocks until every launched publish task has finished.
func (s *Scheduler) Wait() {
	_ = s.tasks.Wait()
}

// publish runs detached from the tick context so shutdown never interrupts a
// transition halfway.
func (s *Scheduler) publish(id string) error {
	defer s.release(id)

	timeout := s.publishTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ok, err := s.posts.PublishPost(ctx, id)
	switch {
	case ok:
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrNotFound):
		s.logger.Info("Post no longer publishable", zap.String("post_id", id), zap.Error(err))
	default:
		s.logger.Error("Scheduled publish failed", zap.String("post_id", id), zap.Error(err))
	}
	// Failures are recorded on the post; the group only tracks completion.
	return nil
}

// launch starts the publish task for id unless the post is already in flight,
// the concurrency limit is reached or the scheduler is stopping. Holding mu
// while starting the task orders it before Stop's Wait.
func (s *Scheduler) launch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	if !s.tasks.TryGo(func() error { return s.publish(id) }) {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}
