package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/config"
	"github.com/ifuryst/agripost/internal/models"
)

func newTestScheduler(env *testEnv, timeout string) *Scheduler {
	return NewScheduler(&config.SchedulerConfig{TickInterval: "1h", PublishTimeout: timeout}, zap.NewNop(), env.svc)
}

func TestSchedulerTickPublishesDuePosts(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	due, err := env.svc.SchedulePost(ctx, ScheduleRequest{Body: "now", Platforms: []string{"twitter", "facebook"}})
	require.NoError(t, err)
	later, err := env.svc.SchedulePost(ctx, ScheduleRequest{
		Body: "later", Platforms: []string{"twitter"}, ScheduledTime: base.Add(time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	s := newTestScheduler(env, "1s")
	assert.Equal(t, 1, s.Tick(ctx))
	s.Wait()

	post, err := env.svc.GetPost(ctx, due)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, post.Status)

	post, err = env.svc.GetPost(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, post.Status)

	// Nothing left due until the clock moves.
	assert.Equal(t, 0, s.Tick(ctx))

	env.clock.Advance(time.Hour)
	assert.Equal(t, 1, s.Tick(ctx))
	s.Wait()

	post, err = env.svc.GetPost(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, post.Status)
}

func TestSchedulerSkipsInFlightPosts(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	env.publishers[models.PlatformTwitter].delay = 200 * time.Millisecond

	id, err := env.svc.SchedulePost(ctx, ScheduleRequest{Body: "slow", Platforms: []string{"twitter"}})
	require.NoError(t, err)

	s := newTestScheduler(env, "5s")
	assert.Equal(t, 1, s.Tick(ctx))
	assert.Equal(t, 0, s.Tick(ctx))
	s.Wait()

	assert.Equal(t, int32(1), env.publishers[models.PlatformTwitter].calls.Load())
	post, err := env.svc.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, post.Status)
}

func TestSchedulerFailedPostLeavesQueue(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	env.publishers[models.PlatformInstagram].fail.Store(true)

	id, err := env.svc.SchedulePost(ctx, ScheduleRequest{Body: "x", Platforms: []string{"instagram"}})
	require.NoError(t, err)

	s := newTestScheduler(env, "1s")
	assert.Equal(t, 1, s.Tick(ctx))
	s.Wait()

	post, err := env.svc.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, post.Status)
	assert.Equal(t, 0, s.Tick(ctx))
}

func TestSchedulerConcurrencyLimit(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	env.publishers[models.PlatformTwitter].delay = 100 * time.Millisecond

	first, err := env.svc.SchedulePost(ctx, ScheduleRequest{Body: "one", Platforms: []string{"twitter"}})
	require.NoError(t, err)
	second, err := env.svc.SchedulePost(ctx, ScheduleRequest{Body: "two", Platforms: []string{"twitter"}})
	require.NoError(t, err)

	s := NewScheduler(&config.SchedulerConfig{TickInterval: "1h", PublishTimeout: "5s", MaxConcurrent: 1}, zap.NewNop(), env.svc)
	published := func() int {
		n := 0
		for _, id := range []string{first, second} {
			post, err := env.svc.GetPost(ctx, id)
			require.NoError(t, err)
			if post.Status == models.PostStatusPublished {
				n++
			}
		}
		return n
	}

	assert.Equal(t, 1, s.Tick(ctx))
	s.Wait()
	assert.Equal(t, 1, published())

	// The leftover goes out on the next tick.
	assert.Equal(t, 1, s.Tick(ctx))
	s.Wait()
	assert.Equal(t, 2, published())
}

func TestSchedulerPublishTimeout(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	env.publishers[models.PlatformLinkedIn].delay = time.Second

	id, err := env.svc.SchedulePost(ctx, ScheduleRequest{Body: "x", Platforms: []string{"linkedin"}})
	require.NoError(t, err)

	s := newTestScheduler(env, "50ms")
	assert.Equal(t, 1, s.Tick(ctx))
	s.Wait()

	post, err := env.svc.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, post.Status)
	require.NotNil(t, post.LastError)
}

func TestSchedulerStopWaitsAndRefusesWork(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	env.publishers[models.PlatformFacebook].delay = 100 * time.Millisecond

	id, err := env.svc.SchedulePost(ctx, ScheduleRequest{Body: "x", Platforms: []string{"facebook"}})
	require.NoError(t, err)

	s := newTestScheduler(env, "1s")
	require.Equal(t, 1, s.Tick(ctx))
	s.Stop()

	post, err := env.svc.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, post.Status)

	_, err = env.svc.SchedulePost(ctx, ScheduleRequest{Body: "y", Platforms: []string{"facebook"}})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Tick(ctx))
}

func TestSchedulerStart(t *testing.T) {
	env := setupService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disabled := false
	s := NewScheduler(&config.SchedulerConfig{Enabled: &disabled, TickInterval: "bogus"}, zap.NewNop(), env.svc)
	assert.NoError(t, s.Start(ctx))

	s = NewScheduler(&config.SchedulerConfig{TickInterval: "bogus", PublishTimeout: "1s"}, zap.NewNop(), env.svc)
	assert.Error(t, s.Start(ctx))

	s = NewScheduler(&config.SchedulerConfig{TickInterval: "1m", PublishTimeout: "0s"}, zap.NewNop(), env.svc)
	assert.Error(t, s.Start(ctx))

	id, err := env.svc.SchedulePost(ctx, ScheduleRequest{Body: "x", Platforms: []string{"twitter"}})
	require.NoError(t, err)

	s = newTestScheduler(env, "1s")
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		post, err := env.svc.GetPost(ctx, id)
		return err == nil && post.Status == models.PostStatusPublished
	}, 2*time.Second, 10*time.Millisecond)
}
