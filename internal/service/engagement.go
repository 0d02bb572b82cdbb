package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ifuryst/agripost/internal/models"
)

// EngagementSource supplies the latest engagement reading for a remote post.
// found is false when the feed has nothing for ref yet.
type EngagementSource interface {
	Snapshot(ctx context.Context, platform models.PlatformType, ref string) (snap models.EngagementSnapshot, found bool, err error)
	Record(ctx context.Context, platform models.PlatformType, ref string, snap models.EngagementSnapshot) error
}

// RedisEngagementSource reads snapshots from hashes at
// <prefix>:engagement:<platform>:<ref> with likes, shares, comments, views
// and collected_at fields.
type RedisEngagementSource struct {
	client *redis.Client
	prefix string
}

func NewRedisEngagementSource(client *redis.Client, prefix string) *RedisEngagementSource {
	return &RedisEngagementSource{client: client, prefix: prefix}
}

func (r *RedisEngagementSource) key(platform models.PlatformType, ref string) string {
	return fmt.Sprintf("%s:engagement:%s:%s", r.prefix, platform, ref)
}

func (r *RedisEngagementSource) Snapshot(ctx context.Context, platform models.PlatformType, ref string) (models.EngagementSnapshot, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.key(platform, ref)).Result()
	if err != nil {
		return models.EngagementSnapshot{}, false, fmt.Errorf("failed to read engagement for %s: %w", ref, err)
	}
	if len(fields) == 0 {
		return models.EngagementSnapshot{}, false, nil
	}

	var snap models.EngagementSnapshot
	counters := []struct {
		name string
		dst  *int64
	}{
		{"likes", &snap.Likes},
		{"shares", &snap.Shares},
		{"comments", &snap.Comments},
		{"views", &snap.Views},
	}
	for _, c := range counters {
		raw, ok := fields[c.name]
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.EngagementSnapshot{}, false, fmt.Errorf("invalid %s for %s: %w", c.name, ref, err)
		}
		*c.dst = v
	}
	if raw := fields["collected_at"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			snap.CollectedAt = t
		}
	}

	if err := snap.Validate(); err != nil {
		return models.EngagementSnapshot{}, false, err
	}
	return snap, true, nil
}

func (r *RedisEngagementSource) Record(ctx context.Context, platform models.PlatformType, ref string, snap models.EngagementSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	fields := map[string]interface{}{
		"likes":    snap.Likes,
		"shares":   snap.Shares,
		"comments": snap.Comments,
		"views":    snap.Views,
	}
	if !snap.CollectedAt.IsZero() {
		fields["collected_at"] = snap.CollectedAt.UTC().Format(time.RFC3339)
	}

	if err := r.client.HSet(ctx, r.key(platform, ref), fields).Err(); err != nil {
		return fmt.Errorf("failed to record engagement for %s: %w", ref, err)
	}
	return nil
}

// MemoryEngagementSource is an in-process feed used when no redis is
// configured.
type MemoryEngagementSource struct {
	mu        sync.RWMutex
	snapshots map[string]models.EngagementSnapshot
}

func NewMemoryEngagementSource() *MemoryEngagementSource {
	return &MemoryEngagementSource{snapshots: make(map[string]models.EngagementSnapshot)}
}

func (m *MemoryEngagementSource) Snapshot(_ context.Context, platform models.PlatformType, ref string) (models.EngagementSnapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[string(platform)+":"+ref]
	return snap, ok, nil
}

func (m *MemoryEngagementSource) Record(_ context.Context, platform models.PlatformType, ref string, snap models.EngagementSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[string(platform)+":"+ref] = snap
	return nil
}
