package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifuryst/agripost/internal/config"
	"github.com/ifuryst/agripost/internal/models"
)

// publishAt schedules and publishes a post with the clock set to at, then
// restores the clock.
func publishAt(t *testing.T, env *testEnv, at time.Time, topic string, platforms ...string) *models.ContentPost {
	t.Helper()
	ctx := context.Background()
	saved := env.clock.Now()
	defer env.clock.Set(saved)

	env.clock.Set(at)
	id, err := env.svc.SchedulePost(ctx, ScheduleRequest{Body: "copy", Topic: topic, Platforms: platforms})
	require.NoError(t, err)
	ok, err := env.svc.PublishPost(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	post, err := env.svc.GetPost(ctx, id)
	require.NoError(t, err)
	return post
}

func TestAnalyzeNoPosts(t *testing.T) {
	env := setupService(t)

	report, err := env.svc.AnalyzePerformance(context.Background(), "twitter", "7d")
	require.NoError(t, err)
	assert.Equal(t, "twitter", report.Platform)
	assert.Equal(t, "7d", report.TimePeriod)
	assert.Equal(t, 0, report.TotalPosts)
	assert.Equal(t, 0.0, report.AvgEngagementRate)
	require.Len(t, report.Recommendations, 1)
	assert.Contains(t, report.Recommendations[0], "start a regular posting cadence")
	assert.True(t, report.WindowEnd.Equal(base))
	assert.True(t, report.WindowStart.Equal(base.Add(-7*24*time.Hour)))
}

func TestAnalyzeUnknownPlatform(t *testing.T) {
	env := setupService(t)

	report, err := env.svc.AnalyzePerformance(context.Background(), "MySpace", "30d")
	require.NoError(t, err)
	assert.Equal(t, "MySpace", report.Platform)
	assert.Equal(t, "30d", report.TimePeriod)
	assert.Equal(t, 0, report.TotalPosts)
	assert.Equal(t, 0.0, report.AvgEngagementRate)
	assert.NotNil(t, report.Recommendations)
	assert.Empty(t, report.Recommendations)

	_, err = env.svc.AnalyzePerformance(context.Background(), "MySpace", "200000d")
	assert.True(t, errors.Is(err, models.ErrValidation))

	strict := setupService(t, WithStrictPlatforms(true))
	_, err = strict.svc.AnalyzePerformance(context.Background(), "MySpace", "30d")
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestAnalyzeInvalidPeriod(t *testing.T) {
	env := setupService(t)

	for _, period := range []string{"", "abc", "0d", "-3d", "d", "7x", "200000d", "20000w"} {
		t.Run(period, func(t *testing.T) {
			_, err := env.svc.AnalyzePerformance(context.Background(), "twitter", period)
			assert.True(t, errors.Is(err, models.ErrValidation), "got %v", err)
		})
	}
}

func TestAnalyzeAggregates(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	weather := publishAt(t, env, base.Add(-24*time.Hour), "weather", "twitter")
	market := publishAt(t, env, base.Add(-48*time.Hour), "market", "twitter", "facebook")
	publishAt(t, env, base.Add(-72*time.Hour), "harvest", "twitter")
	old := publishAt(t, env, base.Add(-10*24*time.Hour), "weather", "twitter")
	publishAt(t, env, base.Add(-time.Hour), "tips", "facebook")

	require.NoError(t, env.svc.RecordEngagement(ctx, "twitter", weather.RemoteRefs[models.PlatformTwitter],
		models.EngagementSnapshot{Likes: 30, Shares: 10, Comments: 10, Views: 1000}))
	require.NoError(t, env.svc.RecordEngagement(ctx, "twitter", market.RemoteRefs[models.PlatformTwitter],
		models.EngagementSnapshot{Likes: 1, Views: 1000}))
	require.NoError(t, env.svc.RecordEngagement(ctx, "twitter", old.RemoteRefs[models.PlatformTwitter],
		models.EngagementSnapshot{Likes: 900, Views: 1000}))

	report, err := env.svc.AnalyzePerformance(ctx, "x", "7d")
	require.NoError(t, err)

	assert.Equal(t, "twitter", report.Platform)
	assert.Equal(t, 3, report.TotalPosts)
	assert.InDelta(t, 2.55, report.AvgEngagementRate, 1e-9)
	assert.Equal(t, int64(31), report.TotalLikes)
	assert.Equal(t, int64(10), report.TotalShares)
	assert.Equal(t, int64(10), report.TotalComments)
	assert.Equal(t, int64(2000), report.TotalViews)
	assert.Equal(t, models.TopicWeather, report.TopTopic)

	require.Len(t, report.Recommendations, 3)
	assert.Contains(t, report.Recommendations[0], "target of 14")
	assert.Contains(t, report.Recommendations[1], "more than double the benchmark")
	assert.Contains(t, report.Recommendations[2], "weather posts perform best")

	again, err := env.svc.AnalyzePerformance(ctx, "twitter", "7d")
	require.NoError(t, err)
	assert.Equal(t, report.Recommendations, again.Recommendations)
}

func TestAnalyzeBelowBenchmark(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	post := publishAt(t, env, base.Add(-time.Hour), "community", "instagram")
	require.NoError(t, env.svc.RecordEngagement(ctx, "ig", post.RemoteRefs[models.PlatformInstagram],
		models.EngagementSnapshot{Likes: 5, Comments: 5, Views: 1000}))

	report, err := env.svc.AnalyzePerformance(ctx, "instagram", "1w")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.AvgEngagementRate, 1e-9)
	require.Len(t, report.Recommendations, 3)
	assert.Contains(t, report.Recommendations[0], "visual content")
	assert.Contains(t, report.Recommendations[1], "increase posting frequency")
	assert.Contains(t, report.Recommendations[2], "community posts perform best")
}

func TestAnalyzeClampsRate(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	post := publishAt(t, env, base.Add(-time.Hour), "", "linkedin")
	require.NoError(t, env.svc.RecordEngagement(ctx, "linkedin", post.RemoteRefs[models.PlatformLinkedIn],
		models.EngagementSnapshot{Likes: 500, Shares: 500, Views: 10}))

	report, err := env.svc.AnalyzePerformance(ctx, "linkedin", "24h")
	require.NoError(t, err)
	assert.Equal(t, 100.0, report.AvgEngagementRate)
	assert.Equal(t, models.ContentTopic(""), report.TopTopic)
}

func TestAnalyzePostsWithoutSnapshot(t *testing.T) {
	env := setupService(t)

	publishAt(t, env, base.Add(-time.Hour), "tips", "facebook")

	report, err := env.svc.AnalyzePerformance(context.Background(), "facebook", "24h")
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalPosts)
	assert.Equal(t, 0.0, report.AvgEngagementRate)
	assert.GreaterOrEqual(t, report.AvgEngagementRate, 0.0)
	assert.LessOrEqual(t, report.AvgEngagementRate, 100.0)
	assert.Equal(t, []string{"Performance on Facebook is on track; keep the current schedule."}, report.Recommendations)
}

func TestScaledTarget(t *testing.T) {
	assert.Equal(t, 14, scaledTarget(14, week))
	assert.Equal(t, 60, scaledTarget(14, 30*24*time.Hour))
	assert.Equal(t, 1, scaledTarget(3, time.Hour))
	assert.Equal(t, 0, scaledTarget(0, week))
}

func TestBenchmarksFromConfig(t *testing.T) {
	b := BenchmarksFromConfig(map[string]config.BenchmarkConfig{
		"x":       {EngagementRate: 2, WeeklyPosts: 10},
		"myspace": {EngagementRate: 9},
	})
	assert.Equal(t, map[models.PlatformType]Benchmark{
		models.PlatformTwitter: {EngagementRate: 2, WeeklyPosts: 10},
	}, b)
}
