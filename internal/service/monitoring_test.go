package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/config"
	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/service/publisher/dryrun"
	"github.com/ifuryst/agripost/internal/service/publisher/webhook"
	"github.com/ifuryst/agripost/internal/store"
)

func TestUpdatePostStats(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	posts := store.NewMemoryPostStore()

	for i := 0; i < 2; i++ {
		require.NoError(t, posts.Create(ctx, &models.ContentPost{
			ID: string(rune('a' + i)), Body: "x", Status: models.PostStatusScheduled,
			Platforms: models.PlatformList{models.PlatformTwitter}, EligibleAt: base,
		}))
	}
	require.NoError(t, posts.Create(ctx, &models.ContentPost{
		ID: "d", Body: "x", Status: models.PostStatusDraft,
		Platforms: models.PlatformList{models.PlatformTwitter}, EligibleAt: base,
	}))

	m := env.monitoring
	require.NoError(t, m.UpdatePostStats(ctx, posts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Posts.WithLabelValues("scheduled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Posts.WithLabelValues("draft")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Posts.WithLabelValues("published")))
}

func TestStatsUpdater(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitoringService(zap.NewNop())
	posts := store.NewMemoryPostStore()
	require.NoError(t, posts.Create(ctx, &models.ContentPost{
		ID: "c", Body: "x", Status: models.PostStatusCancelled,
		Platforms: models.PlatformList{models.PlatformFacebook}, EligibleAt: base,
	}))

	u := NewStatsUpdater(m, posts, zap.NewNop(), time.Hour)
	u.Start(ctx)
	defer u.Stop()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Posts.WithLabelValues("cancelled")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMonitoringService(zap.NewNop())
	m.RecordPublish(models.PlatformTwitter, true, 20*time.Millisecond)
	m.RecordPublish(models.PlatformTwitter, false, time.Second)

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/metrics", m.Handler())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/ping", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `agripost_publish_total{platform="twitter",result="success"} 1`)
	assert.Contains(t, body, `agripost_publish_total{platform="twitter",result="failure"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNewPublisherManager(t *testing.T) {
	accounts := store.NewMemoryAccountRegistry()
	cfg := &config.PublisherConfig{
		Platforms: map[string]config.PlatformConfig{
			"twitter":   {Enabled: true, Endpoint: "http://gateway.local/twitter", Timeout: "5s"},
			"facebook":  {Enabled: true},
			"instagram": {Enabled: false},
		},
	}

	manager, err := NewPublisherManager(cfg, accounts, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []models.PlatformType{models.PlatformFacebook, models.PlatformTwitter}, manager.Platforms())

	tw, err := manager.GetPublisher(models.PlatformTwitter)
	require.NoError(t, err)
	assert.IsType(t, &webhook.WebhookPublisher{}, tw)
	fb, err := manager.GetPublisher(models.PlatformFacebook)
	require.NoError(t, err)
	assert.IsType(t, &dryrun.DryRunPublisher{}, fb)

	cfg.DryRun = true
	manager, err = NewPublisherManager(cfg, accounts, zap.NewNop())
	require.NoError(t, err)
	tw, err = manager.GetPublisher(models.PlatformTwitter)
	require.NoError(t, err)
	assert.IsType(t, &dryrun.DryRunPublisher{}, tw)

	_, err = NewPublisherManager(&config.PublisherConfig{Platforms: map[string]config.PlatformConfig{
		"twitter": {Enabled: true}, "x": {Enabled: true},
	}}, accounts, zap.NewNop())
	assert.Error(t, err)

	_, err = NewPublisherManager(&config.PublisherConfig{Platforms: map[string]config.PlatformConfig{
		"myspace": {Enabled: true},
	}}, accounts, zap.NewNop())
	assert.Error(t, err)

	_, err = NewPublisherManager(&config.PublisherConfig{Platforms: map[string]config.PlatformConfig{
		"twitter": {Enabled: true, Endpoint: "http://gateway.local", Timeout: "soon"},
	}}, accounts, zap.NewNop())
	assert.Error(t, err)
}

func TestNewStoresMemoryAndSQLite(t *testing.T) {
	posts, accounts, closeFn, err := NewStores(&config.DatabaseConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryPostStore{}, posts)
	assert.IsType(t, &store.MemoryAccountRegistry{}, accounts)
	assert.NoError(t, closeFn())

	posts, _, closeFn, err = NewStores(&config.DatabaseConfig{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &store.GormPostStore{}, posts)

	_, _, _, err = NewStores(&config.DatabaseConfig{Type: "mongo"})
	assert.Error(t, err)
}
