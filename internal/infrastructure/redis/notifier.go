package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"points-auction/internal/domain"
)

const notificationChannel = "auction_notifications"

// NotificationSink publishes auction events to a redis pub/sub channel for
// the platform's messaging transport to deliver. Fire-and-forget by design.
type NotificationSink struct {
	client *redis.Client
}

func NewNotificationSink(client *redis.Client) *NotificationSink {
	return &NotificationSink{client: client}
}

type envelope struct {
	UserID string        `json:"user_id"`
	Event  *domain.Event `json:"event"`
}

func (s *NotificationSink) Notify(ctx context.Context, userID string, event *domain.Event) error {
	payload, err := json.Marshal(envelope{UserID: userID, Event: event})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, notificationChannel, payload).Err()
}
