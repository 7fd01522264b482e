package service

import (
	"context"
	"testing"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAdmin_CreateUser_SyntheticEmailAndDefaultProject(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	projects := newFakeProjects()
	s := NewAdminService(users, projects, zap.NewNop())

	u, err := s.CreateUser(context.Background(), "Ivan", "password1")
	require.NoError(t, err)
	require.Equal(t, "ivan@example.local", u.Email)
	require.False(t, u.IsAdmin)

	list, _ := projects.ListByUser(context.Background(), u.ID)
	require.Len(t, list, 1)
	require.Equal(t, DefaultProjectName, list[0].Name)

	_, err = s.CreateUser(context.Background(), "ivan", "password1")
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = s.CreateUser(context.Background(), "judy", "short")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestAdmin_SetStatus(t *testing.T) {
	t.Parallel()
	admin := uuid.Must(uuid.NewV4())
	target := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "k", Email: "k@x.io", Status: model.StatusActive}
	users := newFakeUsers(target)
	s := NewAdminService(users, newFakeProjects(), zap.NewNop())
	ctx := context.Background()

	require.ErrorIs(t, s.SetStatus(ctx, admin, target.ID, "suspended"), errs.ErrValidation)
	require.ErrorIs(t, s.SetStatus(ctx, admin, admin, model.StatusBanned), errs.ErrValidation)
	require.ErrorIs(t, s.SetStatus(ctx, admin, uuid.Must(uuid.NewV4()), model.StatusBanned), errs.ErrNotFound)

	require.NoError(t, s.SetStatus(ctx, admin, target.ID, model.StatusBanned))
	st, _ := users.GetUserStatus(ctx, target.ID)
	require.Equal(t, model.StatusBanned, st)
}

func TestAdmin_DeleteUser(t *testing.T) {
	t.Parallel()
	admin := uuid.Must(uuid.NewV4())
	target := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "l", Email: "l@x.io"}
	users := newFakeUsers(target)
	s := NewAdminService(users, newFakeProjects(), zap.NewNop())

	require.ErrorIs(t, s.DeleteUser(context.Background(), admin, admin), errs.ErrForbidden)
	require.NoError(t, s.DeleteUser(context.Background(), admin, target.ID))
	_, err := users.GetByID(context.Background(), target.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAdmin_Bootstrap_Idempotent(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	s := NewAdminService(users, newFakeProjects(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Bootstrap(ctx, "root", "password1"))
	require.NoError(t, s.Bootstrap(ctx, "root", "password1"))

	all, _ := s.ListUsers(ctx)
	require.Len(t, all, 1)
	require.True(t, all[0].IsAdmin)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.UserCount)
}
