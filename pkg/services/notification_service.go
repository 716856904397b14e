package services

import (
	"context"
	"time"

	"rapport/pkg/models"

	"github.com/google/uuid"
)

type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// NotificationService addresses push notifications to users. Delivery to
// sockets happens wherever the publisher fans them out.
type NotificationService struct {
	pub Publisher
	now func() time.Time
}

func NewNotificationService(pub Publisher) *NotificationService {
	return &NotificationService{pub: pub, now: time.Now}
}

func (s *NotificationService) Notify(ctx context.Context, userID int, kind, title, body string) error {
	return s.pub.Publish(ctx, models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: s.now().UTC(),
	})
}
