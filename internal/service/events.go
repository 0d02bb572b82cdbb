package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ifuryst/agripost/internal/models"
)

const (
	EventPostScheduled = "post.scheduled"
	EventPostPublished = "post.published"
	EventPostFailed    = "post.failed"
	EventPostCancelled = "post.cancelled"
	EventPostRetried   = "post.retried"
)

// PostEvent is emitted after every successful lifecycle transition.
type PostEvent struct {
	Type       string              `json:"type"`
	PostID     string              `json:"post_id"`
	Status     models.PostStatus   `json:"status"`
	Platforms  models.PlatformList `json:"platforms"`
	RemoteRefs models.PlatformMap  `json:"remote_references,omitempty"`
	Error      string              `json:"error,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func newPostEvent(eventType string, post *models.ContentPost, at time.Time) PostEvent {
	ev := PostEvent{
		Type:       eventType,
		PostID:     post.ID,
		Status:     post.Status,
		Platforms:  post.Platforms,
		RemoteRefs: post.RemoteRefs,
		OccurredAt: at,
	}
	if post.LastError != nil {
		ev.Error = *post.LastError
	}
	return ev
}

// EventSink receives lifecycle events. Delivery is best effort.
type EventSink interface {
	Emit(ctx context.Context, event PostEvent) error
}

type NopSink struct{}

func (NopSink) Emit(context.Context, PostEvent) error { return nil }

// msgPublisher is the subset of *nats.Conn the sink needs.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSSink publishes events as JSON on <prefix>.<event type>.
type NATSSink struct {
	conn   msgPublisher
	prefix string
}

func NewNATSSink(conn msgPublisher, prefix string) *NATSSink {
	return &NATSSink{conn: conn, prefix: prefix}
}

// ConnectNATS dials url and wraps the connection in a sink.
func ConnectNATS(url, prefix string) (*NATSSink, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("agripost"))
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewNATSSink(nc, prefix), nc, nil
}

func (s *NATSSink) Subject(eventType string) string {
	if s.prefix == "" {
		return eventType
	}
	return s.prefix + "." + eventType
}

func (s *NATSSink) Emit(ctx context.Context, event PostEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(s.Subject(event.Type))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("Post-Id", event.PostID)

	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
