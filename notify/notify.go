// Package notify delivers fire-and-forget events to users.
package notify

//go:generate mockgen -source=notify.go -destination=mock_notify/mock_notify.go -package=mock_notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "notifications"

// Event types
const (
	IssueResponded         = "issue.responded"
	IssueDelegated         = "issue.delegated"
	IssueStatusChanged     = "issue.status_changed"
	WorkOrderStatusChanged = "workorder.status_changed"
	ApplicationApproved    = "application.approved"
	ApplicationRejected    = "application.rejected"
)

type Event struct {
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	EntityID string    `json:"entity_id"`
	At       time.Time `json:"at"`
}

// Sink publishes an event for a recipient. Callers never depend on delivery.
type Sink interface {
	Publish(ctx context.Context, userID string, event Event) error
}

type payload struct {
	UserID string `json:"user_id"`
	Event
}

// RedisSink publishes JSON payloads on a Redis channel for the notification
// consumer to fan out.
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Publish(ctx context.Context, userID string, event Event) error {
	data, err := json.Marshal(payload{UserID: userID, Event: event})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// LogSink writes events to a logger. Used when no broker is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, userID string, event Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"user_id", userID,
		"type", event.Type,
		"entity_id", event.EntityID,
		"title", event.Title,
	)
	return nil
}
