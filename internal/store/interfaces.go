package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ifuryst/agripost/internal/models"
)

// MutateFunc edits a post inside a transition. Returning an error aborts the
// transition and leaves the stored post untouched.
type MutateFunc func(post *models.ContentPost) error

// PostStore owns ContentPost records. Implementations hand out copies; the
// only way to change a stored post is Transition.
type PostStore interface {
	// Create stores a new post and assigns its creation sequence.
	Create(ctx context.Context, post *models.ContentPost) error
	Get(ctx context.Context, id string) (*models.ContentPost, error)
	List(ctx context.Context, filter models.PostFilter) ([]*models.ContentPost, error)

	// Due returns Scheduled posts eligible at now, oldest eligibility first,
	// ties broken by creation order.
	Due(ctx context.Context, now time.Time) ([]*models.ContentPost, error)

	// Transition atomically checks that the stored status is one of from,
	// applies mutate and persists the result. A status outside from yields
	// models.ErrInvalidState.
	Transition(ctx context.Context, id string, from []models.PostStatus, mutate MutateFunc) (*models.ContentPost, error)

	// PublishedSince returns Published posts for platform with
	// since <= published_at <= until.
	PublishedSince(ctx context.Context, platform models.PlatformType, since, until time.Time) ([]*models.ContentPost, error)

	CountByStatus(ctx context.Context) (map[models.PostStatus]int, error)
}

// AccountRegistry stores delivery accounts keyed by (platform, account id).
type AccountRegistry interface {
	// Register inserts or replaces the account for its key.
	Register(ctx context.Context, account *models.SocialAccount) error
	Lookup(ctx context.Context, platform models.PlatformType, accountID string) (*models.SocialAccount, error)
	// Default returns the active account with the smallest account id.
	Default(ctx context.Context, platform models.PlatformType) (*models.SocialAccount, error)
	List(ctx context.Context, platform models.PlatformType) ([]*models.SocialAccount, error)
}

func statusAllowed(status models.PostStatus, from []models.PostStatus) bool {
	for _, s := range from {
		if s == status {
			return true
		}
	}
	return false
}

// checkLifecycle rejects mutations of terminal posts and status changes the
// lifecycle does not allow.
func checkLifecycle(current, next *models.ContentPost) error {
	if current.Status.IsTerminal() {
		return fmt.Errorf("%w: post %s is %s", models.ErrInvalidState, current.ID, current.Status)
	}
	if next.Status != current.Status && !current.Status.CanTransitionTo(next.Status) {
		return fmt.Errorf("%w: post %s cannot move from %s to %s", models.ErrInvalidState, current.ID, current.Status, next.Status)
	}
	return nil
}
