package dryrun

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/models"
)

func TestDryRunPublish(t *testing.T) {
	p := NewDryRunPublisher(zap.NewNop(), models.PlatformInstagram)
	post := &models.ContentPost{ID: "post-1", Body: "x", Platforms: models.PlatformList{models.PlatformInstagram}}

	first, err := p.Publish(context.Background(), post, &models.SocialAccount{AccountID: "ig-1"})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.True(t, strings.HasPrefix(first.PublishID, "dryrun-instagram-"))

	second, err := p.Publish(context.Background(), post, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.PublishID, second.PublishID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Publish(ctx, post, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
