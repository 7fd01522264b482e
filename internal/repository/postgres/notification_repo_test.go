package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepo_Insert_IgnoresDuplicateTag(t *testing.T) {
	db, mock := newDB(t)
	r := NewNotificationRepo(db)
	task := uuid.Must(uuid.NewV4())
	n := &model.Notification{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    uuid.Must(uuid.NewV4()),
		TaskID:    &task,
		Title:     "Task Overdue: pay rent",
		Body:      "This task is now overdue.",
		Tag:       task.String() + "overdue",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(`ON CONFLICT \(user_id, tag\) DO NOTHING`).
		WithArgs(n.ID, n.UserID, uuid.NullUUID{UUID: task, Valid: true}, n.Title, n.Body, n.Tag, n.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	require.NoError(t, r.Insert(context.Background(), n))
}

func TestNotificationRepo_ListUnread_MarkRead(t *testing.T) {
	db, mock := newDB(t)
	r := NewNotificationRepo(db)
	ctx := context.Background()
	user := uuid.Must(uuid.NewV4())
	task := uuid.Must(uuid.NewV4())
	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`WHERE user_id=\$1 AND read_at IS NULL`).
		WithArgs(user).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "task_id", "title", "body", "tag", "created_at"}).
			AddRow(a, user, task, "t1", "b1", "tag1", now).
			AddRow(b, user, nil, "t2", "b2", "tag2", now))
	list, err := r.ListUnread(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].TaskID)
	require.Equal(t, task, *list[0].TaskID)
	require.Nil(t, list[1].TaskID)

	mock.ExpectExec(`UPDATE notifications SET read_at=\$3 WHERE id=\$1 AND user_id=\$2 AND read_at IS NULL`).
		WithArgs(a, user, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.MarkRead(ctx, user, a, now))

	mock.ExpectExec(`UPDATE notifications SET read_at`).
		WithArgs(a, user, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.MarkRead(ctx, user, a, now), errs.ErrNotFound)
}
