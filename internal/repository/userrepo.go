// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides CRUD access for user accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email, case-insensitively.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByUsername loads a user by username, case-insensitively.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]model.User, error)
	// UpdateEmail changes the user's email.
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	// UpdatePassword replaces the password hash and its salt.
	UpdatePassword(ctx context.Context, id uuid.UUID, pwdHash, salt []byte) error
	// SetStatus changes the account status.
	SetStatus(ctx context.Context, id uuid.UUID, status model.UserStatus) error
	// Delete removes the user and, by cascade, everything they own.
	Delete(ctx context.Context, id uuid.UUID) error
	// TouchLogin records a successful login time.
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// GetUserStatus returns only the account status.
	GetUserStatus(ctx context.Context, id uuid.UUID) (model.UserStatus, error)
	// Stats counts users, projects and tasks.
	Stats(ctx context.Context) (model.Stats, error)
}
