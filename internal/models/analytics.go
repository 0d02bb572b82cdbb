package models

import (
	"fmt"
	"time"
)

// EngagementSnapshot is the latest engagement reading for one remote post.
type EngagementSnapshot struct {
	Likes       int64     `json:"likes"`
	Shares      int64     `json:"shares"`
	Comments    int64     `json:"comments"`
	Views       int64     `json:"views"`
	CollectedAt time.Time `json:"collected_at"`
}

// EngagementRate is (likes+shares+comments)/views*100, or 0 without views.
func (s EngagementSnapshot) EngagementRate() float64 {
	if s.Views <= 0 {
		return 0
	}
	return float64(s.Likes+s.Shares+s.Comments) / float64(s.Views) * 100
}

func (s EngagementSnapshot) Validate() error {
	if s.Likes < 0 || s.Shares < 0 || s.Comments < 0 || s.Views < 0 {
		return fmt.Errorf("%w: engagement counters must be non-negative", ErrValidation)
	}
	return nil
}

// AnalyticsReport is the per-platform rollup for one lookback window.
type AnalyticsReport struct {
	Platform          string       `json:"platform"`
	TimePeriod        string       `json:"time_period"`
	TotalPosts        int          `json:"total_posts"`
	AvgEngagementRate float64      `json:"avg_engagement_rate"`
	Recommendations   []string     `json:"recommendations"`
	TotalLikes        int64        `json:"total_likes"`
	TotalShares       int64        `json:"total_shares"`
	TotalComments     int64        `json:"total_comments"`
	TotalViews        int64        `json:"total_views"`
	TopTopic          ContentTopic `json:"top_topic,omitempty"`
	WindowStart       time.Time    `json:"window_start"`
	WindowEnd         time.Time    `json:"window_end"`
}
