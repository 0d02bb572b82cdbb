package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/content"
	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/service/publisher"
	"github.com/ifuryst/agripost/internal/store"
	"github.com/ifuryst/agripost/pkg/util"
)

// PostService is the entry point for every post lifecycle operation. All
// state lives in the stores it was built with, so independent instances do
// not share anything.
type PostService struct {
	posts      store.PostStore
	accounts   store.AccountRegistry
	engine     *content.Engine
	manager    *publisher.Manager
	analyzer   *Analyzer
	events     EventSink
	monitoring *MonitoringService
	locks      *util.KeyedMutex
	now        func() time.Time
	logger     *zap.Logger

	engagement EngagementSource
	benchmarks map[models.PlatformType]Benchmark
	strict     bool
}

type Option func(*PostService)

func WithClock(now func() time.Time) Option {
	return func(s *PostService) { s.now = now }
}

func WithEventSink(sink EventSink) Option {
	return func(s *PostService) { s.events = sink }
}

func WithMonitoring(m *MonitoringService) Option {
	return func(s *PostService) { s.monitoring = m }
}

func WithEngagementSource(src EngagementSource) Option {
	return func(s *PostService) { s.engagement = src }
}

func WithBenchmarks(b map[models.PlatformType]Benchmark) Option {
	return func(s *PostService) { s.benchmarks = b }
}

// WithStrictPlatforms makes analytics reject unknown platforms instead of
// returning an empty report.
func WithStrictPlatforms(strict bool) Option {
	return func(s *PostService) { s.strict = strict }
}

func NewPostService(
	logger *zap.Logger,
	posts store.PostStore,
	accounts store.AccountRegistry,
	engine *content.Engine,
	manager *publisher.Manager,
	opts ...Option,
) *PostService {
	s := &PostService{
		posts:    posts,
		accounts: accounts,
		engine:   engine,
		manager:  manager,
		events:   NopSink{},
		locks:    util.NewKeyedMutex(),
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engagement == nil {
		s.engagement = NewMemoryEngagementSource()
	}
	if s.monitoring == nil {
		s.monitoring = NewMonitoringService(logger)
	}
	s.analyzer = NewAnalyzer(posts, s.engagement, s.benchmarks, s.strict, s.now, logger)
	return s
}

// ScheduleRequest describes a post to create. ScheduledTime is RFC 3339; an
// empty value means "now". When Body is empty the copy is rendered from
// Topic for the first platform.
type ScheduleRequest struct {
	Body          string            `json:"body"`
	Topic         string            `json:"topic"`
	Locale        string            `json:"locale"`
	Platforms     []string          `json:"platforms"`
	ScheduledTime string            `json:"scheduled_time"`
	Hashtags      []string          `json:"hashtags"`
	Mentions      []string          `json:"mentions"`
	Accounts      map[string]string `json:"accounts"`
}

type RegisterAccountRequest struct {
	Platform   string `json:"platform"`
	AccountID  string `json:"account_id"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
	Active     *bool  `json:"active"`
}

// GenerateContent renders copy for a topic. Unknown topics, platforms and
// locales fall back rather than fail.
func (s *PostService) GenerateContent(topic, platform, locale string) content.Content {
	p, err := models.ParsePlatform(platform)
	if err != nil {
		p = models.PlatformType(strings.ToLower(strings.TrimSpace(platform)))
	}
	return s.engine.Generate(models.ParseTopic(topic), p, locale)
}

func (s *PostService) SchedulePost(ctx context.Context, req ScheduleRequest) (string, error) {
	post, err := s.buildPost(req, models.PostStatusScheduled)
	if err != nil {
		return "", err
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return "", err
	}

	s.logger.Info("Post scheduled",
		zap.String("post_id", post.ID),
		zap.Time("eligible_at", post.EligibleAt),
		zap.Int("platforms", len(post.Platforms)))
	s.afterTransition(ctx, EventPostScheduled, post)
	return post.ID, nil
}

// SaveDraft stores a post that the scheduler ignores until ScheduleDraft.
func (s *PostService) SaveDraft(ctx context.Context, req ScheduleRequest) (string, error) {
	post, err := s.buildPost(req, models.PostStatusDraft)
	if err != nil {
		return "", err
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return "", err
	}

	s.logger.Info("Draft saved", zap.String("post_id", post.ID))
	s.monitoring.RecordTransition(models.PostStatusDraft)
	return post.ID, nil
}

// ScheduleDraft moves a draft to Scheduled. An empty scheduledTime keeps the
// time stored on the draft.
func (s *PostService) ScheduleDraft(ctx context.Context, id, scheduledTime string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	override, err := parseScheduledTime(scheduledTime)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	post, err := s.posts.Transition(ctx, id, []models.PostStatus{models.PostStatusDraft}, func(p *models.ContentPost) error {
		if override != nil {
			p.ScheduledTime = override
		}
		p.Status = models.PostStatusScheduled
		p.EligibleAt = eligibleAt(p.ScheduledTime, now)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Draft scheduled", zap.String("post_id", id), zap.Time("eligible_at", post.EligibleAt))
	s.afterTransition(ctx, EventPostScheduled, post)
	return nil
}

func (s *PostService) CancelPost(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	post, err := s.posts.Transition(ctx, id, []models.PostStatus{models.PostStatusScheduled}, func(p *models.ContentPost) error {
		p.Status = models.PostStatusCancelled
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Post cancelled", zap.String("post_id", id))
	s.afterTransition(ctx, EventPostCancelled, post)
	return nil
}

// RetryPost puts a failed post back in the queue, eligible immediately.
func (s *PostService) RetryPost(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	now := s.now().UTC()
	post, err := s.posts.Transition(ctx, id, []models.PostStatus{models.PostStatusFailed}, func(p *models.ContentPost) error {
		p.Status = models.PostStatusScheduled
		p.EligibleAt = now
		p.LastError = nil
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Post queued for retry", zap.String("post_id", id))
	s.afterTransition(ctx, EventPostRetried, post)
	return nil
}

// PublishPost delivers a Scheduled post to every platform still pending.
// It does not wait for the scheduled time; that only gates Due and the
// scheduler. A post that is already Published reports success without contacting any
// platform. On failure the post moves to Failed and the returned error is a
// *models.PublishError.
func (s *PostService) PublishPost(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return false, err
	}

	switch post.Status {
	case models.PostStatusPublished:
		s.logger.Debug("Post already published, skipping", zap.String("post_id", id))
		return true, nil
	case models.PostStatusScheduled:
	default:
		return false, fmt.Errorf("%w: post %s is %s", models.ErrInvalidState, id, post.Status)
	}

	results := s.manager.Dispatch(ctx, post)

	refs := post.RemoteRefs.Clone()
	failures := make(map[models.PlatformType]error)
	for platform, result := range results {
		s.monitoring.RecordPublish(platform, result.Success, result.Duration)
		if result.Success {
			refs[platform] = result.PublishID
			continue
		}
		failures[platform] = result.Error
	}

	// The outcome is persisted even when ctx expired during delivery so the
	// post never stays half-published.
	persistCtx := context.WithoutCancel(ctx)
	now := s.now().UTC()

	if len(failures) == 0 {
		published, err := s.posts.Transition(persistCtx, id, []models.PostStatus{models.PostStatusScheduled}, func(p *models.ContentPost) error {
			p.Status = models.PostStatusPublished
			p.RemoteRefs = refs
			p.PublishedAt = &now
			p.LastError = nil
			return nil
		})
		if err != nil {
			return false, fmt.Errorf("failed to record publish of %s: %w", id, err)
		}

		s.logger.Info("Post published", zap.String("post_id", id), zap.Any("remote_references", refs))
		s.afterTransition(persistCtx, EventPostPublished, published)
		return true, nil
	}

	publishErr := &models.PublishError{PostID: id, Failures: failures}
	msg := publishErr.Error()
	failed, err := s.posts.Transition(persistCtx, id, []models.PostStatus{models.PostStatusScheduled}, func(p *models.ContentPost) error {
		p.Status = models.PostStatusFailed
		p.RemoteRefs = refs
		p.LastError = &msg
		return nil
	})
	if err != nil {
		return false, errors.Join(publishErr, fmt.Errorf("failed to record failure of %s: %w", id, err))
	}

	s.logger.Warn("Post publish failed", zap.String("post_id", id), zap.Error(publishErr))
	s.afterTransition(persistCtx, EventPostFailed, failed)
	return false, publishErr
}

func (s *PostService) GetPost(ctx context.Context, id string) (*models.ContentPost, error) {
	return s.posts.Get(ctx, id)
}

func (s *PostService) ListDue(ctx context.Context, now time.Time) ([]*models.ContentPost, error) {
	return s.posts.Due(ctx, now)
}

func (s *PostService) ListPosts(ctx context.Context, filter models.PostFilter) ([]*models.ContentPost, error) {
	return s.posts.List(ctx, filter)
}

func (s *PostService) AnalyzePerformance(ctx context.Context, platform, period string) (*models.AnalyticsReport, error) {
	return s.analyzer.Analyze(ctx, platform, period)
}

// RecordEngagement feeds a snapshot for a remote post into the engagement
// source analytics reads from.
func (s *PostService) RecordEngagement(ctx context.Context, platform, ref string, snap models.EngagementSnapshot) error {
	p, err := models.ParsePlatform(platform)
	if err != nil {
		return err
	}
	if ref == "" {
		return fmt.Errorf("%w: remote reference is required", models.ErrValidation)
	}
	return s.engagement.Record(ctx, p, ref, snap)
}

func (s *PostService) RegisterAccount(ctx context.Context, req RegisterAccountRequest) (*models.SocialAccount, error) {
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return nil, err
	}

	account := &models.SocialAccount{
		Platform:   platform,
		AccountID:  strings.TrimSpace(req.AccountID),
		Username:   strings.TrimSpace(req.Username),
		Credential: models.Credential(req.Credential),
		Active:     req.Active == nil || *req.Active,
	}
	if err := s.accounts.Register(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Account registered",
		zap.String("platform", string(platform)),
		zap.String("account_id", account.AccountID),
		zap.Bool("active", account.Active))
	return s.accounts.Lookup(ctx, platform, account.AccountID)
}

func (s *PostService) GetAccount(ctx context.Context, platform, accountID string) (*models.SocialAccount, error) {
	p, err := models.ParsePlatform(platform)
	if err != nil {
		return nil, err
	}
	return s.accounts.Lookup(ctx, p, accountID)
}

func (s *PostService) buildPost(req ScheduleRequest, status models.PostStatus) (*models.ContentPost, error) {
	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		return nil, err
	}

	scheduled, err := parseScheduledTime(req.ScheduledTime)
	if err != nil {
		return nil, err
	}

	accounts := models.PlatformMap{}
	for name, accountID := range req.Accounts {
		p, err := models.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		if !platforms.Contains(p) {
			return nil, fmt.Errorf("%w: account given for %s which is not a target platform", models.ErrValidation, p)
		}
		if accountID = strings.TrimSpace(accountID); accountID != "" {
			accounts[p] = accountID
		}
	}

	now := s.now().UTC()
	post := &models.ContentPost{
		ID:            uuid.NewString(),
		Body:          strings.TrimSpace(req.Body),
		Locale:        strings.TrimSpace(req.Locale),
		Platforms:     platforms,
		Accounts:      accounts,
		Hashtags:      util.DedupHashtags(req.Hashtags),
		Mentions:      util.NormalizeMentions(req.Mentions),
		Status:        status,
		ScheduledTime: scheduled,
		EligibleAt:    eligibleAt(scheduled, now),
		RemoteRefs:    models.PlatformMap{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Topic != "" {
		post.Topic = models.ParseTopic(req.Topic)
	}

	if post.Body == "" {
		if req.Topic == "" {
			return nil, fmt.Errorf("%w: body or topic is required", models.ErrValidation)
		}
		rendered := s.engine.Generate(post.Topic, platforms[0], req.Locale)
		post.Body = rendered.Text
		post.Locale = rendered.Locale
		post.Hashtags = util.DedupHashtags(rendered.Hashtags, req.Hashtags)
	}

	return post, nil
}

// afterTransition records metrics and emits the lifecycle event. Event
// delivery failures are logged only.
func (s *PostService) afterTransition(ctx context.Context, eventType string, post *models.ContentPost) {
	s.monitoring.RecordTransition(post.Status)

	if err := s.events.Emit(context.WithoutCancel(ctx), newPostEvent(eventType, post, s.now().UTC())); err != nil {
		s.logger.Warn("Failed to emit post event",
			zap.String("event", eventType),
			zap.String("post_id", post.ID),
			zap.Error(err))
	}
}

func parsePlatforms(names []string) (models.PlatformList, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one platform is required", models.ErrValidation)
	}
	out := make(models.PlatformList, 0, len(names))
	for _, name := range names {
		p, err := models.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		if !out.Contains(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func parseScheduledTime(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%w: scheduled_time %q is not RFC 3339", models.ErrValidation, value)
	}
	t = t.UTC()
	return &t, nil
}

// eligibleAt is the scheduled time, or now when there is none or it has passed.
func eligibleAt(scheduled *time.Time, now time.Time) time.Time {
	if scheduled == nil || scheduled.Before(now) {
		return now
	}
	return *scheduled
}
