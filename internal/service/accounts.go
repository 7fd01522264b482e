// Package service contains application services: accounts, passkeys, projects, tasks and admin.
package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/jdue/internal/crypto"
	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// DefaultProjectName is created for every new account.
const DefaultProjectName = "My First Project"

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 8

func invalid(format string, args ...any) error {
	return fmt.Errorf("validation: "+format+": %w", append(args, errs.ErrValidation)...)
}

func validEmail(email string) bool {
	a, err := mail.ParseAddress(email)
	return err == nil && a.Address == email
}

type newAccount struct {
	username string
	email    string
	password string
	admin    bool
}

// accounts creates users together with their default project.
type accounts struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
}

func (a accounts) create(ctx context.Context, in newAccount, now time.Time) (*model.User, error) {
	in.username = strings.TrimSpace(in.username)
	in.email = strings.TrimSpace(in.email)
	if in.username == "" {
		return nil, invalid("username is required")
	}
	if !validEmail(in.email) {
		return nil, invalid("invalid email %q", in.email)
	}
	if len(in.password) < MinPasswordLen {
		return nil, invalid("password must be at least %d characters", MinPasswordLen)
	}
	hash, salt, err := pkgcrypto.NewPasswordHash(in.password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:        uuid.Must(uuid.NewV4()),
		Username:  in.username,
		Email:     in.email,
		PwdHash:   hash,
		SaltAuth:  salt,
		IsAdmin:   in.admin,
		Status:    model.StatusActive,
		CreatedAt: now,
	}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, err
	}
	p := &model.Project{ID: uuid.Must(uuid.NewV4()), UserID: u.ID, Name: DefaultProjectName, CreatedAt: now}
	if err := a.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("default project: %w", err)
	}
	return u, nil
}
