package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/store"
)

var ErrNoPublisher = errors.New("no publisher registered")

// Manager routes posts to the publisher registered for each platform and
// resolves the delivery account for every attempt.
type Manager struct {
	mu         sync.RWMutex
	publishers map[models.PlatformType]Publisher
	limiters   map[models.PlatformType]ratelimit.Limiter
	accounts   store.AccountRegistry
	rate       int
	logger     *zap.Logger
	now        func() time.Time
}

type ManagerOption func(*Manager)

// WithRateLimit caps deliveries per platform per second. Zero or less
// disables throttling.
func WithRateLimit(perSecond int) ManagerOption {
	return func(m *Manager) {
		m.rate = perSecond
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewPublishManager(logger *zap.Logger, accounts store.AccountRegistry, opts ...ManagerOption) *Manager {
	m := &Manager{
		publishers: make(map[models.PlatformType]Publisher),
		limiters:   make(map[models.PlatformType]ratelimit.Limiter),
		accounts:   accounts,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) RegisterPublisher(publisher Publisher) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	platform := publisher.Platform()
	if !platform.IsKnown() {
		return fmt.Errorf("%w: unknown platform %q", models.ErrValidation, platform)
	}
	if _, exists := m.publishers[platform]; exists {
		return fmt.Errorf("publisher for platform %s already registered", platform)
	}

	m.publishers[platform] = publisher
	if m.rate > 0 {
		m.limiters[platform] = ratelimit.New(m.rate)
	} else {
		m.limiters[platform] = ratelimit.NewUnlimited()
	}
	m.logger.Info("Publisher registered", zap.String("platform", string(platform)))
	return nil
}

func (m *Manager) GetPublisher(platform models.PlatformType) (Publisher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	publisher, exists := m.publishers[platform]
	if !exists {
		return nil, fmt.Errorf("%w for platform %s", ErrNoPublisher, platform)
	}
	return publisher, nil
}

// Platforms lists the platforms with a registered publisher.
func (m *Manager) Platforms() []models.PlatformType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.PlatformType, 0, len(m.publishers))
	for p := range m.publishers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch publishes post to every platform that has no remote reference
// yet. Platforms already delivered are skipped so a retry never posts twice.
// Pending platforms are published concurrently, so a stalled platform only
// costs its own attempt. Every attempted platform gets a result; failures are
// reported in the result rather than as an error.
func (m *Manager) Dispatch(ctx context.Context, post *models.ContentPost) map[models.PlatformType]*PublishResult {
	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[models.PlatformType]*PublishResult)
	)

	for _, platform := range post.Platforms {
		if ref := post.RemoteRefs[platform]; ref != "" {
			m.logger.Info("Platform already completed, skipping",
				zap.String("post_id", post.ID),
				zap.String("platform", string(platform)),
				zap.String("publish_id", ref))
			continue
		}

		g.Go(func() error {
			result := m.publishOne(ctx, post, platform)
			mu.Lock()
			results[platform] = result
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (m *Manager) publishOne(ctx context.Context, post *models.ContentPost, platform models.PlatformType) *PublishResult {
	failed := func(err error) *PublishResult {
		m.logger.Error("Failed to publish content",
			zap.String("post_id", post.ID),
			zap.String("platform", string(platform)),
			zap.Error(err))
		return &PublishResult{Platform: platform, Success: false, Error: err}
	}

	publisher, err := m.GetPublisher(platform)
	if err != nil {
		return failed(err)
	}

	account, err := m.resolveAccount(ctx, post, platform)
	if err != nil {
		return failed(err)
	}

	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	m.limiter(platform).Take()

	start := m.now()
	result, err := publisher.Publish(ctx, post, account)
	elapsed := m.now().Sub(start)

	if err != nil {
		r := failed(err)
		r.AccountID = account.AccountID
		r.Duration = elapsed
		return r
	}
	if result == nil {
		result = &PublishResult{}
	}
	result.Platform = platform
	result.AccountID = account.AccountID
	result.Duration = elapsed

	if result.Success && result.PublishID == "" {
		result.Success = false
		result.Error = fmt.Errorf("publisher for %s returned no remote reference", platform)
	}
	if !result.Success {
		if result.Error == nil {
			result.Error = fmt.Errorf("publisher for %s reported failure", platform)
		}
		m.logger.Error("Failed to publish content",
			zap.String("post_id", post.ID),
			zap.String("platform", string(platform)),
			zap.Error(result.Error))
		return result
	}
	if result.PublishedAt.IsZero() {
		result.PublishedAt = m.now().UTC()
	}

	m.logger.Info("Publishing completed",
		zap.String("post_id", post.ID),
		zap.String("platform", string(platform)),
		zap.String("account_id", account.AccountID),
		zap.String("publish_id", result.PublishID))
	return result
}

// resolveAccount picks the account pinned on the post for platform, or the
// registry's default for it.
func (m *Manager) resolveAccount(ctx context.Context, post *models.ContentPost, platform models.PlatformType) (*models.SocialAccount, error) {
	if m.accounts == nil {
		return nil, fmt.Errorf("no account registry configured")
	}

	if accountID := post.Accounts[platform]; accountID != "" {
		account, err := m.accounts.Lookup(ctx, platform, accountID)
		if err != nil {
			return nil, err
		}
		if !account.Active {
			return nil, fmt.Errorf("account %s/%s is inactive", platform, accountID)
		}
		return account, nil
	}

	return m.accounts.Default(ctx, platform)
}

func (m *Manager) limiter(platform models.PlatformType) ratelimit.Limiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limiters[platform]
}
