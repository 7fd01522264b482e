package service

import (
	"context"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// NotificationService exposes the caller's notification outbox.
type NotificationService interface {
	ListUnread(ctx context.Context, userID uuid.UUID) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}

type NotificationServiceImpl struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(repo repository.NotificationRepository) *NotificationServiceImpl {
	return &NotificationServiceImpl{repo: repo, now: time.Now}
}

func (s *NotificationServiceImpl) ListUnread(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	return s.repo.ListUnread(ctx, userID)
}

func (s *NotificationServiceImpl) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id, s.now())
}
