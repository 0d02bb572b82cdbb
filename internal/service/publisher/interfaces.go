package publisher

import (
	"context"
	"time"

	"github.com/ifuryst/agripost/internal/models"
)

// PublishResult represents the result of a publish operation on one platform
type PublishResult struct {
	Platform    models.PlatformType `json:"platform"`
	Success     bool                `json:"success"`
	PublishID   string              `json:"publish_id,omitempty"`
	URL         string              `json:"url,omitempty"`
	AccountID   string              `json:"account_id,omitempty"`
	Error       error               `json:"-"`
	PublishedAt time.Time           `json:"published_at"`
	Duration    time.Duration       `json:"-"`
}

// Publisher delivers a post to one platform on behalf of one account.
// Implementations must not retry on their own; a failed delivery is retried
// only when the caller asks for it.
type Publisher interface {
	Platform() models.PlatformType
	Publish(ctx context.Context, post *models.ContentPost, account *models.SocialAccount) (*PublishResult, error)
}

// Payload is the wire form of a post handed to a delivery endpoint.
type Payload struct {
	PostID    string   `json:"post_id"`
	Platform  string   `json:"platform"`
	AccountID string   `json:"account_id"`
	Username  string   `json:"username"`
	Body      string   `json:"body"`
	Hashtags  []string `json:"hashtags"`
	Mentions  []string `json:"mentions"`
	Topic     string   `json:"topic,omitempty"`
	Locale    string   `json:"locale,omitempty"`
}

// NewPayload converts a post into the payload for one platform.
func NewPayload(post *models.ContentPost, platform models.PlatformType, account *models.SocialAccount) Payload {
	p := Payload{
		PostID:   post.ID,
		Platform: string(platform),
		Body:     post.Body,
		Hashtags: append([]string{}, post.Hashtags...),
		Mentions: append([]string{}, post.Mentions...),
		Topic:    string(post.Topic),
		Locale:   post.Locale,
	}
	if account != nil {
		p.AccountID = account.AccountID
		p.Username = account.Username
	}
	return p
}
