package repository

import (
	"context"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProjectRepository stores projects; every call is scoped to the owner.
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Project, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Project, error)
	Rename(ctx context.Context, userID, id uuid.UUID, name string) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// TaskRepository stores tasks. Ownership is resolved through the project.
type TaskRepository interface {
	// Create inserts a task; t.UserID must own t.ProjectID.
	Create(ctx context.Context, t *model.Task) error
	// Get loads one task of the user.
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error)
	// ListByUser lists the user's tasks, optionally within one project.
	ListByUser(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]model.Task, error)
	// Update overwrites the mutable fields of the task.
	Update(ctx context.Context, t *model.Task) error
	// Delete removes one task of the user.
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// Mutate locks the task row, applies fn and writes the result back in one UPDATE.
	Mutate(ctx context.Context, userID, id uuid.UUID, fn func(*model.Task) error) (*model.Task, error)
	// MarkNotificationSent records a reminder key for a task of the user.
	MarkNotificationSent(ctx context.Context, userID, id uuid.UUID, key string, at time.Time) error
	// ListSchedulable returns incomplete tasks with a due date whose owner is active.
	ListSchedulable(ctx context.Context) ([]model.Task, error)
	// MarkNotificationSentIfDue records key only while the due date still equals due.
	MarkNotificationSentIfDue(ctx context.Context, id uuid.UUID, key string, at, due time.Time) error
}

// NotificationRepository is the server-side notification outbox.
type NotificationRepository interface {
	// Insert stores n unless the user already has a notification with the same tag.
	Insert(ctx context.Context, n *model.Notification) error
	ListUnread(ctx context.Context, userID uuid.UUID) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error
}
