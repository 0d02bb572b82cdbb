package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/service/publisher"
)

const maxErrorBody = 512

// WebhookPublisher hands posts to a delivery gateway over HTTP. The gateway
// owns the platform API details; this side only speaks the Payload contract.
type WebhookPublisher struct {
	logger   *zap.Logger
	client   *http.Client
	platform models.PlatformType
	endpoint string
}

type publishResponse struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

func NewWebhookPublisher(logger *zap.Logger, platform models.PlatformType, endpoint string, timeout time.Duration) (*WebhookPublisher, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("missing required config: endpoint for %s", platform)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &WebhookPublisher{
		logger:   logger,
		platform: platform,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (p *WebhookPublisher) Platform() models.PlatformType {
	return p.platform
}

func (p *WebhookPublisher) Publish(ctx context.Context, post *models.ContentPost, account *models.SocialAccount) (*publisher.PublishResult, error) {
	jsonData, err := json.Marshal(publisher.NewPayload(post, p.platform, account))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	p.logger.Debug("Sending post to delivery gateway",
		zap.String("url", p.endpoint),
		zap.String("post_id", post.ID),
		zap.String("platform", string(p.platform)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", fmt.Sprintf("%s:%s", post.ID, p.platform))
	if account != nil && account.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+account.Credential.Reveal())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := string(body)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return &publisher.PublishResult{
			Success: false,
			Error:   fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, excerpt),
		}, nil
	}

	var out publishResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("gateway response has no id")
	}

	return &publisher.PublishResult{
		Success:     true,
		PublishID:   out.ID,
		URL:         out.URL,
		PublishedAt: out.PublishedAt,
	}, nil
}
