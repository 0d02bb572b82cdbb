package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ifuryst/agripost/internal/models"
)

// Migrate creates or updates the tables used by the gorm stores.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ContentPost{},
		&models.SocialAccount{},
	)
}

// GormPostStore persists posts through gorm. Transitions are guarded by a
// conditional UPDATE on the previous status, so two writers racing on the
// same post cannot both succeed.
type GormPostStore struct {
	db *gorm.DB
}

func NewGormPostStore(db *gorm.DB) *GormPostStore {
	return &GormPostStore{db: db}
}

func (s *GormPostStore) Create(ctx context.Context, post *models.ContentPost) error {
	if err := post.Validate(); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&models.ContentPost{}).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("failed to read sequence: %w", err)
		}
		post.Seq = maxSeq + 1
		if err := tx.Create(post).Error; err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		return nil
	})
}

func (s *GormPostStore) Get(ctx context.Context, id string) (*models.ContentPost, error) {
	var post models.ContentPost
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: post %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

func (s *GormPostStore) List(ctx context.Context, filter models.PostFilter) ([]*models.ContentPost, error) {
	query := s.db.WithContext(ctx).Order("seq ASC")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var rows []*models.ContentPost
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	out := make([]*models.ContentPost, 0, len(rows))
	for _, post := range rows {
		if filter.Matches(post) {
			out = append(out, post)
		}
	}
	return out, nil
}

func (s *GormPostStore) Due(ctx context.Context, now time.Time) ([]*models.ContentPost, error) {
	var posts []*models.ContentPost
	err := s.db.WithContext(ctx).
		Where("status = ? AND eligible_at <= ?", models.PostStatusScheduled, now.UTC()).
		Order("eligible_at ASC, seq ASC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due posts: %w", err)
	}
	return posts, nil
}

func (s *GormPostStore) Transition(ctx context.Context, id string, from []models.PostStatus, mutate MutateFunc) (*models.ContentPost, error) {
	var out *models.ContentPost

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.ContentPost
		if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: post %s", models.ErrNotFound, id)
			}
			return fmt.Errorf("failed to load post: %w", err)
		}
		if !statusAllowed(current.Status, from) {
			return fmt.Errorf("%w: post %s is %s", models.ErrInvalidState, id, current.Status)
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		if err := checkLifecycle(&current, next); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		next.ID = current.ID
		next.Seq = current.Seq

		res := tx.Model(&models.ContentPost{}).
			Where("id = ? AND status = ?", id, current.Status).
			Select("*").
			Updates(next)
		if res.Error != nil {
			return fmt.Errorf("failed to update post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: post %s changed concurrently", models.ErrInvalidState, id)
		}

		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormPostStore) PublishedSince(ctx context.Context, platform models.PlatformType, since, until time.Time) ([]*models.ContentPost, error) {
	var rows []*models.ContentPost
	err := s.db.WithContext(ctx).
		Where("status = ? AND published_at >= ? AND published_at <= ?", models.PostStatusPublished, since.UTC(), until.UTC()).
		Order("published_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query published posts: %w", err)
	}

	out := make([]*models.ContentPost, 0, len(rows))
	for _, post := range rows {
		if post.Platforms.Contains(platform) {
			out = append(out, post)
		}
	}
	return out, nil
}

func (s *GormPostStore) CountByStatus(ctx context.Context) (map[models.PostStatus]int, error) {
	var rows []struct {
		Status models.PostStatus
		Count  int
	}
	err := s.db.WithContext(ctx).
		Model(&models.ContentPost{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	counts := make(map[models.PostStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// GormAccountRegistry persists accounts; Register is an upsert on the
// (platform, account_id) primary key.
type GormAccountRegistry struct {
	db *gorm.DB
}

func NewGormAccountRegistry(db *gorm.DB) *GormAccountRegistry {
	return &GormAccountRegistry{db: db}
}

func (r *GormAccountRegistry) Register(ctx context.Context, account *models.SocialAccount) error {
	if err := account.Validate(); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "credential", "active", "updated_at"}),
	}).Create(account).Error
	if err != nil {
		return fmt.Errorf("failed to register account: %w", err)
	}
	return nil
}

func (r *GormAccountRegistry) Lookup(ctx context.Context, platform models.PlatformType, accountID string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("platform = ? AND account_id = ?", platform, accountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: account %s/%s", models.ErrNotFound, platform, accountID)
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	return &account, nil
}

func (r *GormAccountRegistry) Default(ctx context.Context, platform models.PlatformType) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("platform = ? AND active = ?", platform, true).
		Order("account_id ASC").
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no active account for %s", models.ErrNotFound, platform)
		}
		return nil, fmt.Errorf("failed to look up default account: %w", err)
	}
	return &account, nil
}

func (r *GormAccountRegistry) List(ctx context.Context, platform models.PlatformType) ([]*models.SocialAccount, error) {
	query := r.db.WithContext(ctx).Order("platform ASC, account_id ASC")
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}

	var accounts []*models.SocialAccount
	if err := query.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}
