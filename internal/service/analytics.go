package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/config"
	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/store"
	"github.com/ifuryst/agripost/pkg/util"
)

const week = 7 * 24 * time.Hour

// Benchmark is the reference engagement rate (percent) and weekly posting
// target for one platform.
type Benchmark struct {
	EngagementRate float64
	WeeklyPosts    int
}

// BenchmarksFromConfig keys the configured benchmarks by platform, skipping
// names that are not platforms.
func BenchmarksFromConfig(cfg map[string]config.BenchmarkConfig) map[models.PlatformType]Benchmark {
	out := make(map[models.PlatformType]Benchmark, len(cfg))
	for name, b := range cfg {
		platform, err := models.ParsePlatform(name)
		if err != nil {
			continue
		}
		out[platform] = Benchmark{EngagementRate: b.EngagementRate, WeeklyPosts: b.WeeklyPosts}
	}
	return out
}

// Analyzer rolls published posts and their engagement into reports. It only
// reads, so it never contends with publish dispatch beyond store reads.
type Analyzer struct {
	posts      store.PostStore
	engagement EngagementSource
	benchmarks map[models.PlatformType]Benchmark
	strict     bool
	now        func() time.Time
	logger     *zap.Logger
}

func NewAnalyzer(posts store.PostStore, engagement EngagementSource, benchmarks map[models.PlatformType]Benchmark, strict bool, now func() time.Time, logger *zap.Logger) *Analyzer {
	if benchmarks == nil {
		benchmarks = BenchmarksFromConfig(config.DefaultBenchmarks())
	}
	return &Analyzer{
		posts:      posts,
		engagement: engagement,
		benchmarks: benchmarks,
		strict:     strict,
		now:        now,
		logger:     logger,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, platformName, period string) (*models.AnalyticsReport, error) {
	lookback, err := util.ParseLookback(period)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	end := a.now().UTC()
	start := end.Add(-lookback)
	report := &models.AnalyticsReport{
		Platform:        platformName,
		TimePeriod:      period,
		Recommendations: []string{},
		WindowStart:     start,
		WindowEnd:       end,
	}

	platform, err := models.ParsePlatform(platformName)
	if err != nil {
		if a.strict {
			return nil, err
		}
		a.logger.Debug("Analytics requested for unknown platform",
			zap.String("platform", platformName))
		return report, nil
	}
	report.Platform = string(platform)

	posts, err := a.posts.PublishedSince(ctx, platform, start, end)
	if err != nil {
		return nil, err
	}
	report.TotalPosts = len(posts)

	var (
		rates      []float64
		topicRates = make(map[models.ContentTopic][]float64)
	)
	for _, post := range posts {
		ref := post.RemoteRefs[platform]
		if ref == "" || a.engagement == nil {
			continue
		}
		snap, found, err := a.engagement.Snapshot(ctx, platform, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read engagement for post %s: %w", post.ID, err)
		}
		if !found {
			continue
		}

		report.TotalLikes += snap.Likes
		report.TotalShares += snap.Shares
		report.TotalComments += snap.Comments
		report.TotalViews += snap.Views

		rate := snap.EngagementRate()
		rates = append(rates, rate)
		if post.Topic != "" {
			topicRates[post.Topic] = append(topicRates[post.Topic], rate)
		}
	}

	report.AvgEngagementRate = clamp(mean(rates), 0, 100)
	report.TopTopic = topTopic(topicRates)
	report.Recommendations = a.recommend(platform, lookback, report, len(rates) > 0)

	return report, nil
}

func (a *Analyzer) recommend(platform models.PlatformType, lookback time.Duration, r *models.AnalyticsReport, measured bool) []string {
	name := platform.DisplayName()
	if r.TotalPosts == 0 {
		return []string{fmt.Sprintf("No posts were published on %s in the last %s; start a regular posting cadence.", name, r.TimePeriod)}
	}

	var out []string
	bench := a.benchmarks[platform]

	if measured && bench.EngagementRate > 0 && r.AvgEngagementRate < bench.EngagementRate {
		out = append(out, fmt.Sprintf("Average engagement of %.2f%% is below the %.2f%% benchmark for %s; add more visual content such as field photos and short videos.",
			r.AvgEngagementRate, bench.EngagementRate, name))
	}

	if target := scaledTarget(bench.WeeklyPosts, lookback); r.TotalPosts < target {
		out = append(out, fmt.Sprintf("Only %d posts in the last %s against a target of %d; increase posting frequency on %s.",
			r.TotalPosts, r.TimePeriod, target, name))
	}

	if measured && bench.EngagementRate > 0 && r.AvgEngagementRate >= 2*bench.EngagementRate {
		out = append(out, fmt.Sprintf("Engagement on %s is more than double the benchmark; keep the current content mix and consider boosting top posts.", name))
	}

	if r.TopTopic != "" {
		out = append(out, fmt.Sprintf("%s posts perform best on %s; publish more of them.", r.TopTopic, name))
	}

	if len(out) == 0 {
		out = append(out, fmt.Sprintf("Performance on %s is on track; keep the current schedule.", name))
	}
	return out
}

// scaledTarget is the weekly target prorated to the window, rounded up.
func scaledTarget(weekly int, lookback time.Duration) int {
	if weekly <= 0 {
		return 0
	}
	return int(math.Ceil(float64(weekly) * float64(lookback) / float64(week)))
}

// topTopic picks the topic with the highest mean rate; ties go to the
// alphabetically first topic.
func topTopic(rates map[models.ContentTopic][]float64) models.ContentTopic {
	topics := make([]models.ContentTopic, 0, len(rates))
	for t := range rates {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })

	var (
		best     models.ContentTopic
		bestRate = -1.0
	)
	for _, t := range topics {
		if m := mean(rates[t]); m > bestRate {
			best, bestRate = t, m
		}
	}
	return best
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
