package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ifuryst/agripost/internal/models"
)

// MemoryPostStore is the reference PostStore. All state sits behind one
// RWMutex, so Transition is a plain critical section.
type MemoryPostStore struct {
	mu    sync.RWMutex
	posts map[string]*models.ContentPost
	seq   int64
}

func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{posts: make(map[string]*models.ContentPost)}
}

func (s *MemoryPostStore) Create(_ context.Context, post *models.ContentPost) error {
	if err := post.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ID]; exists {
		return fmt.Errorf("%w: post %s already exists", models.ErrValidation, post.ID)
	}
	s.seq++
	post.Seq = s.seq
	s.posts[post.ID] = post.Clone()
	return nil
}

func (s *MemoryPostStore) Get(_ context.Context, id string) (*models.ContentPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("%w: post %s", models.ErrNotFound, id)
	}
	return post.Clone(), nil
}

func (s *MemoryPostStore) List(_ context.Context, filter models.PostFilter) ([]*models.ContentPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ContentPost, 0)
	for _, post := range s.posts {
		if filter.Matches(post) {
			out = append(out, post.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryPostStore) Due(_ context.Context, now time.Time) ([]*models.ContentPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ContentPost, 0)
	for _, post := range s.posts {
		if post.IsDue(now) {
			out = append(out, post.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EligibleAt.Equal(out[j].EligibleAt) {
			return out[i].EligibleAt.Before(out[j].EligibleAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (s *MemoryPostStore) Transition(_ context.Context, id string, from []models.PostStatus, mutate MutateFunc) (*models.ContentPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("%w: post %s", models.ErrNotFound, id)
	}
	if !statusAllowed(current.Status, from) {
		return nil, fmt.Errorf("%w: post %s is %s", models.ErrInvalidState, id, current.Status)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := checkLifecycle(current, next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Seq = current.Seq
	s.posts[id] = next
	return next.Clone(), nil
}

func (s *MemoryPostStore) PublishedSince(_ context.Context, platform models.PlatformType, since, until time.Time) ([]*models.ContentPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ContentPost, 0)
	for _, post := range s.posts {
		if post.Status != models.PostStatusPublished || post.PublishedAt == nil {
			continue
		}
		if !post.Platforms.Contains(platform) {
			continue
		}
		if post.PublishedAt.Before(since) || post.PublishedAt.After(until) {
			continue
		}
		out = append(out, post.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(*out[j].PublishedAt) })
	return out, nil
}

func (s *MemoryPostStore) CountByStatus(_ context.Context) (map[models.PostStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.PostStatus]int)
	for _, post := range s.posts {
		counts[post.Status]++
	}
	return counts, nil
}

type accountKey struct {
	platform  models.PlatformType
	accountID string
}

// MemoryAccountRegistry keeps accounts in a map; last write for a key wins.
type MemoryAccountRegistry struct {
	mu       sync.RWMutex
	accounts map[accountKey]*models.SocialAccount
	now      func() time.Time
}

func NewMemoryAccountRegistry() *MemoryAccountRegistry {
	return &MemoryAccountRegistry{
		accounts: make(map[accountKey]*models.SocialAccount),
		now:      time.Now,
	}
}

func (r *MemoryAccountRegistry) Register(_ context.Context, account *models.SocialAccount) error {
	if err := account.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := accountKey{platform: account.Platform, accountID: account.AccountID}
	stored := *account
	now := r.now().UTC()
	stored.UpdatedAt = now
	if prev, ok := r.accounts[key]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	r.accounts[key] = &stored
	return nil
}

func (r *MemoryAccountRegistry) Lookup(_ context.Context, platform models.PlatformType, accountID string) (*models.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[accountKey{platform: platform, accountID: accountID}]
	if !ok {
		return nil, fmt.Errorf("%w: account %s/%s", models.ErrNotFound, platform, accountID)
	}
	out := *account
	return &out, nil
}

func (r *MemoryAccountRegistry) Default(ctx context.Context, platform models.PlatformType) (*models.SocialAccount, error) {
	accounts, err := r.List(ctx, platform)
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		if account.Active {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: no active account for %s", models.ErrNotFound, platform)
}

func (r *MemoryAccountRegistry) List(_ context.Context, platform models.PlatformType) ([]*models.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.SocialAccount, 0)
	for key, account := range r.accounts {
		if platform != "" && key.platform != platform {
			continue
		}
		copied := *account
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out, nil
}
