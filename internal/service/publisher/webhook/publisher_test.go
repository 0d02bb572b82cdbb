package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/service/publisher"
)

func testPost() *models.ContentPost {
	return &models.ContentPost{
		ID:        "post-1",
		Body:      "Frost tonight, cover seedlings",
		Platforms: models.PlatformList{models.PlatformTwitter},
		Hashtags:  models.StringArray{"#Agriculture", "#Weather"},
		Mentions:  models.StringArray{"@coop"},
		Topic:     models.TopicWeather,
		Status:    models.PostStatusScheduled,
	}
}

func testAccount() *models.SocialAccount {
	return &models.SocialAccount{
		Platform:   models.PlatformTwitter,
		AccountID:  "acct1",
		Username:   "farmer1",
		Credential: "s3cr3t",
		Active:     true,
	}
}

func TestWebhookPublishSuccess(t *testing.T) {
	published := time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer s3cr3t", r.Header.Get("Authorization"))
		assert.Equal(t, "post-1:twitter", r.Header.Get("Idempotency-Key"))

		var payload publisher.Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "post-1", payload.PostID)
		assert.Equal(t, "acct1", payload.AccountID)
		assert.Equal(t, "farmer1", payload.Username)
		assert.Equal(t, []string{"#Agriculture", "#Weather"}, payload.Hashtags)
		assert.Equal(t, "weather", payload.Topic)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":           "tw-987",
			"url":          "https://x.example/status/987",
			"published_at": published,
		})
	}))
	defer server.Close()

	p, err := NewWebhookPublisher(zap.NewNop(), models.PlatformTwitter, server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformTwitter, p.Platform())

	result, err := p.Publish(context.Background(), testPost(), testAccount())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "tw-987", result.PublishID)
	assert.Equal(t, "https://x.example/status/987", result.URL)
	assert.True(t, result.PublishedAt.Equal(published))
}

func TestWebhookPublishGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	p, err := NewWebhookPublisher(zap.NewNop(), models.PlatformTwitter, server.URL, time.Second)
	require.NoError(t, err)

	result, err := p.Publish(context.Background(), testPost(), testAccount())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error.Error(), "status 429")
	assert.Contains(t, result.Error.Error(), "rate limited")
}

func TestWebhookPublishMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url":"https://x.example"}`))
	}))
	defer server.Close()

	p, err := NewWebhookPublisher(zap.NewNop(), models.PlatformTwitter, server.URL, time.Second)
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), testPost(), testAccount())
	assert.Error(t, err)
}

func TestWebhookPublishTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p, err := NewWebhookPublisher(zap.NewNop(), models.PlatformTwitter, server.URL, 50*time.Millisecond)
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), testPost(), testAccount())
	assert.Error(t, err)
}

func TestNewWebhookPublisherRequiresEndpoint(t *testing.T) {
	_, err := NewWebhookPublisher(zap.NewNop(), models.PlatformTwitter, "", 0)
	assert.Error(t, err)
}
