package models

import (
	"fmt"
	"time"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
	PostStatusCancelled PostStatus = "cancelled"
)

var postTransitions = map[PostStatus][]PostStatus{
	PostStatusDraft:     {PostStatusScheduled},
	PostStatusScheduled: {PostStatusPublished, PostStatusFailed, PostStatusCancelled},
	PostStatusFailed:    {PostStatusScheduled},
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next.
func (s PostStatus) CanTransitionTo(next PostStatus) bool {
	for _, allowed := range postTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PostStatus) IsTerminal() bool {
	return s == PostStatusPublished || s == PostStatusCancelled
}

func AllPostStatuses() []PostStatus {
	return []PostStatus{
		PostStatusDraft,
		PostStatusScheduled,
		PostStatusPublished,
		PostStatusFailed,
		PostStatusCancelled,
	}
}

// ContentPost is a piece of copy targeting one or more platforms. Records are
// never removed; cancellation leaves a terminal row behind.
type ContentPost struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	Seq           int64        `gorm:"index" json:"-"`
	Body          string       `gorm:"type:text;not null" json:"body"`
	Topic         ContentTopic `gorm:"size:50" json:"topic,omitempty"`
	Locale        string       `gorm:"size:20" json:"locale,omitempty"`
	Platforms     PlatformList `gorm:"type:text;not null" json:"platforms"`
	Accounts      PlatformMap  `gorm:"type:text" json:"accounts,omitempty"`
	Hashtags      StringArray  `gorm:"type:text" json:"hashtags"`
	Mentions      StringArray  `gorm:"type:text" json:"mentions"`
	Status        PostStatus   `gorm:"size:20;not null;index" json:"status"`
	ScheduledTime *time.Time   `json:"scheduled_time"`
	EligibleAt    time.Time    `gorm:"index" json:"eligible_at"`
	RemoteRefs    PlatformMap  `gorm:"type:text" json:"remote_references,omitempty"`
	LastError     *string      `gorm:"type:text" json:"last_error,omitempty"`
	PublishedAt   *time.Time   `json:"published_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (ContentPost) TableName() string { return "content_posts" }

// Clone returns a deep copy so stores never hand out shared state.
func (p *ContentPost) Clone() *ContentPost {
	if p == nil {
		return nil
	}
	out := *p
	out.Platforms = append(PlatformList(nil), p.Platforms...)
	out.Hashtags = append(StringArray(nil), p.Hashtags...)
	out.Mentions = append(StringArray(nil), p.Mentions...)
	out.Accounts = p.Accounts.Clone()
	out.RemoteRefs = p.RemoteRefs.Clone()
	if p.ScheduledTime != nil {
		t := *p.ScheduledTime
		out.ScheduledTime = &t
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		out.PublishedAt = &t
	}
	if p.LastError != nil {
		e := *p.LastError
		out.LastError = &e
	}
	return &out
}

// IsDue reports whether a Scheduled post may be dispatched at now.
func (p *ContentPost) IsDue(now time.Time) bool {
	return p.Status == PostStatusScheduled && !p.EligibleAt.After(now)
}

// PendingPlatforms returns the targets that have no remote reference yet.
func (p *ContentPost) PendingPlatforms() []PlatformType {
	var pending []PlatformType
	for _, platform := range p.Platforms {
		if p.RemoteRefs[platform] == "" {
			pending = append(pending, platform)
		}
	}
	return pending
}

// Validate checks the invariants every stored post must hold.
func (p *ContentPost) Validate() error {
	if len(p.Platforms) == 0 {
		return fmt.Errorf("%w: at least one platform is required", ErrValidation)
	}
	if p.Body == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if (p.PublishedAt != nil) != (p.Status == PostStatusPublished) {
		return fmt.Errorf("%w: published_at must be set iff status is published", ErrValidation)
	}
	return nil
}

// PostFilter narrows ListPosts results. Zero values match everything.
type PostFilter struct {
	Status   PostStatus
	Platform PlatformType
}

func (f PostFilter) Matches(p *ContentPost) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Platform != "" && !p.Platforms.Contains(f.Platform) {
		return false
	}
	return true
}
