package websocket

import (
	"context"

	"points-auction/internal/domain"
)

// NotificationSink delivers engine events to connected websocket clients.
type NotificationSink struct {
	connManager *ConnectionManager
}

func NewNotificationSink(connManager *ConnectionManager) *NotificationSink {
	return &NotificationSink{connManager: connManager}
}

func (s *NotificationSink) Notify(ctx context.Context, userID string, event *domain.Event) error {
	return s.connManager.NotifyUser(userID, event)
}
