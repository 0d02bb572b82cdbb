package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/config"
	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/service/publisher"
	"github.com/ifuryst/agripost/internal/service/publisher/dryrun"
	"github.com/ifuryst/agripost/internal/service/publisher/webhook"
	"github.com/ifuryst/agripost/internal/store"
)

// NewPublisherManager builds the manager and registers one publisher per
// enabled platform: the webhook publisher when an endpoint is configured,
// otherwise (or in dry-run mode) the dry-run publisher.
func NewPublisherManager(cfg *config.PublisherConfig, accounts store.AccountRegistry, logger *zap.Logger) (*publisher.Manager, error) {
	manager := publisher.NewPublishManager(logger, accounts, publisher.WithRateLimit(cfg.RatePerSecond))

	for name, pc := range cfg.Platforms {
		if !pc.Enabled {
			logger.Info("Platform disabled, skipping", zap.String("platform", name))
			continue
		}

		platform, err := models.ParsePlatform(name)
		if err != nil {
			return nil, fmt.Errorf("publisher config: %w", err)
		}

		var p publisher.Publisher
		if cfg.DryRun || pc.Endpoint == "" {
			p = dryrun.NewDryRunPublisher(logger, platform)
		} else {
			timeout := 30 * time.Second
			if pc.Timeout != "" {
				if timeout, err = time.ParseDuration(pc.Timeout); err != nil {
					return nil, fmt.Errorf("publisher config: invalid timeout for %s: %w", name, err)
				}
			}
			if p, err = webhook.NewWebhookPublisher(logger, platform, pc.Endpoint, timeout); err != nil {
				return nil, err
			}
		}

		if err := manager.RegisterPublisher(p); err != nil {
			return nil, err
		}
	}

	return manager, nil
}
