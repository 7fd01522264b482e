// Package notify delivers user-facing notifications produced by the scheduler.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Notifier delivers one notification. Delivery is fire-and-forget for callers:
// an error is reported but never retried.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Log writes notifications to the structured log.
type Log struct{ log *zap.Logger }

// NewLog constructs a logging notifier.
func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

// Notify logs notification metadata at info level.
func (l *Log) Notify(_ context.Context, n model.Notification) error {
	fields := []zap.Field{
		zap.String("user_id", n.UserID.String()),
		zap.String("tag", n.Tag),
	}
	if n.TaskID != nil {
		fields = append(fields, zap.String("task_id", n.TaskID.String()))
	}
	l.log.Info("notification", fields...)
	return nil
}

// Outbox stores notifications for clients to fetch.
type Outbox struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

// NewOutbox constructs an outbox notifier backed by repo.
func NewOutbox(repo repository.NotificationRepository) *Outbox {
	return &Outbox{repo: repo, now: time.Now}
}

// Notify inserts n; a repeated tag for the same user is ignored by the store.
func (o *Outbox) Notify(ctx context.Context, n model.Notification) error {
	if n.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		n.ID = id
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = o.now()
	}
	return o.repo.Insert(ctx, &n)
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

// Notify calls all notifiers, even after a failure, and joins their errors.
func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var errList []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
