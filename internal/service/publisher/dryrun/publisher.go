package dryrun

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/service/publisher"
)

// DryRunPublisher accepts every post without contacting any platform.
type DryRunPublisher struct {
	logger   *zap.Logger
	platform models.PlatformType
}

func NewDryRunPublisher(logger *zap.Logger, platform models.PlatformType) *DryRunPublisher {
	return &DryRunPublisher{logger: logger, platform: platform}
}

func (p *DryRunPublisher) Platform() models.PlatformType {
	return p.platform
}

func (p *DryRunPublisher) Publish(ctx context.Context, post *models.ContentPost, account *models.SocialAccount) (*publisher.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	accountID := ""
	if account != nil {
		accountID = account.AccountID
	}

	id := fmt.Sprintf("dryrun-%s-%s", p.platform, uuid.NewString())
	p.logger.Info("Dry run publish",
		zap.String("post_id", post.ID),
		zap.String("platform", string(p.platform)),
		zap.String("account_id", accountID),
		zap.String("publish_id", id))

	return &publisher.PublishResult{
		Success:   true,
		PublishID: id,
	}, nil
}
