package postgres

import (
	"context"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
)

// NotificationRepo implements NotificationRepository using PostgreSQL.
type NotificationRepo struct{ db *DB }

// NewNotificationRepo constructs the outbox repository.
func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Insert stores n; a second notification with the same tag for the user is ignored.
func (r *NotificationRepo) Insert(ctx context.Context, n *model.Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, task_id, title, body, tag, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, tag) DO NOTHING`
	var task uuid.NullUUID
	if n.TaskID != nil {
		task = uuid.NullUUID{UUID: *n.TaskID, Valid: true}
	}
	_, err := r.db.Pool.Exec(ctx, q, n.ID, n.UserID, task, n.Title, n.Body, n.Tag, n.CreatedAt)
	return err
}

// ListUnread returns unread notifications, newest first.
func (r *NotificationRepo) ListUnread(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	const q = `
SELECT id, user_id, task_id, title, body, tag, created_at
FROM notifications
WHERE user_id=$1 AND read_at IS NULL
ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n    model.Notification
			task uuid.NullUUID
		)
		if err := rows.Scan(&n.ID, &n.UserID, &task, &n.Title, &n.Body, &n.Tag, &n.CreatedAt); err != nil {
			return nil, err
		}
		if task.Valid {
			id := task.UUID
			n.TaskID = &id
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead stamps read_at; already read or foreign notifications yield errs.ErrNotFound.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	return mustAffect(r.db.Pool.Exec(ctx,
		`UPDATE notifications SET read_at=$3 WHERE id=$1 AND user_id=$2 AND read_at IS NULL`, id, userID, at))
}
