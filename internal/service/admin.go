package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// syntheticEmailDomain is used for accounts created by an administrator.
const syntheticEmailDomain = "example.local"

// AdminService holds operations reserved for administrators.
type AdminService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	Stats(ctx context.Context) (model.Stats, error)
	CreateUser(ctx context.Context, username, password string) (model.User, error)
	SetStatus(ctx context.Context, actorID, userID uuid.UUID, status model.UserStatus) error
	DeleteUser(ctx context.Context, actorID, userID uuid.UUID) error
	// Bootstrap makes sure an administrator named username exists.
	Bootstrap(ctx context.Context, username, password string) error
}

type AdminServiceImpl struct {
	accounts
	log *zap.Logger
	now func() time.Time
}

// NewAdminService constructs AdminService.
func NewAdminService(users repository.UserRepository, projects repository.ProjectRepository, log *zap.Logger) *AdminServiceImpl {
	return &AdminServiceImpl{accounts: accounts{users: users, projects: projects}, log: log, now: time.Now}
}

func (s *AdminServiceImpl) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *AdminServiceImpl) Stats(ctx context.Context) (model.Stats, error) {
	return s.users.Stats(ctx)
}

// CreateUser adds a regular account with a placeholder address.
func (s *AdminServiceImpl) CreateUser(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	u, err := s.create(ctx, newAccount{
		username: username,
		email:    fmt.Sprintf("%s@%s", strings.ToLower(username), syntheticEmailDomain),
		password: password,
	}, s.now())
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// SetStatus bans, deactivates or reactivates an account other than the caller's.
func (s *AdminServiceImpl) SetStatus(ctx context.Context, actorID, userID uuid.UUID, status model.UserStatus) error {
	if !status.Valid() {
		return invalid("unknown status %q", status)
	}
	if actorID == userID {
		return invalid("cannot change your own status")
	}
	return s.users.SetStatus(ctx, userID, status)
}

// DeleteUser removes an account and everything it owns.
func (s *AdminServiceImpl) DeleteUser(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return fmt.Errorf("cannot delete yourself: %w", errs.ErrForbidden)
	}
	return s.users.Delete(ctx, userID)
}

func (s *AdminServiceImpl) Bootstrap(ctx context.Context, username, password string) error {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	u, err := s.create(ctx, newAccount{
		username: username,
		email:    fmt.Sprintf("%s@%s", strings.ToLower(strings.TrimSpace(username)), syntheticEmailDomain),
		password: password,
		admin:    true,
	}, s.now())
	if err != nil {
		return err
	}
	s.log.Info("administrator created", zap.String("user_id", u.ID.String()))
	return nil
}
