package service

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgcrypto "github.com/and161185/jdue/internal/crypto"
	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/session"
	"github.com/and161185/jdue/internal/webauthn"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUser(t *testing.T, username, email, password string) *model.User {
	t.Helper()
	hash, salt, err := pkgcrypto.NewPasswordHash(password)
	require.NoError(t, err)
	return &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Username: username,
		Email:    email,
		PwdHash:  hash,
		SaltAuth: salt,
		Status:   model.StatusActive,
	}
}

func newAuth(users *fakeUsers, projects *fakeProjects, lim *fakeLimiter) (*AuthServiceImpl, *session.Issuer) {
	iss := session.NewIssuer([]byte("secret"), 24*time.Hour)
	return NewAuthService(users, projects, iss, lim, zap.NewNop()), iss
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	projects := newFakeProjects()
	s, iss := newAuth(users, projects, &fakeLimiter{allowOK: true})
	ctx := context.Background()

	if _, _, err := s.Register(ctx, "", "a@x.io", "password1"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on empty username, got %v", err)
	}
	if _, _, err := s.Register(ctx, "alice", "not-an-email", "password1"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on bad email, got %v", err)
	}
	if _, _, err := s.Register(ctx, "alice", "a@x.io", "short"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on short password, got %v", err)
	}

	tok, u, err := s.Register(ctx, "alice", "a@x.io", "password1")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, u.ID)
	require.Equal(t, model.StatusActive, u.Status)
	require.False(t, u.IsAdmin)

	claims, err := iss.Parse(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UserID)

	list, _ := projects.ListByUser(ctx, u.ID)
	require.Len(t, list, 1)
	require.Equal(t, DefaultProjectName, list[0].Name)

	_, _, err = s.Register(ctx, "ALICE", "b@x.io", "password1")
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	users.createErr = errors.New("boom")
	_, _, err = s.Register(ctx, "bob", "b@x.io", "password1")
	require.Error(t, err)
}

func TestAuth_LoginWithIP_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	u := newUser(t, "alice", "alice@x.io", "correct-horse")
	users := newFakeUsers(u)
	lim := &fakeLimiter{allowOK: true}
	s, _ := newAuth(users, newFakeProjects(), lim)
	ctx := context.Background()

	lim.allowErr = errors.New("lim-err")
	if _, _, err := s.LoginWithIP(ctx, "alice", "correct-horse", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, _, err := s.LoginWithIP(ctx, "alice", "correct-horse", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	if _, _, err := s.LoginWithIP(ctx, "nope@x.io", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}

	lim.failBlocked = true
	if _, _, err := s.LoginWithIP(ctx, "alice", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}
	lim.failBlocked = false

	if _, _, err := s.LoginWithIP(ctx, "alice", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	users.getErr = errors.New("db down")
	if _, _, err := s.LoginWithIP(ctx, "alice", "correct-horse", ""); errors.Is(err, errs.ErrUnauthorized) || err == nil {
		t.Fatalf("want storage error, got %v", err)
	}
	users.getErr = nil

	tok, got, err := s.LoginWithIP(ctx, "Alice@X.io", "correct-horse", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.True(t, tok.ExpiresAt.After(time.Now()))
	require.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.LastLoginAt)
	require.Equal(t, 1, lim.successCalls)
	require.Equal(t, 1, users.touched)
	require.Equal(t, "Alice@X.io", lim.lastLogin)
}

func TestAuth_LoginWithIP_InactiveAccount(t *testing.T) {
	t.Parallel()
	u := newUser(t, "bob", "bob@x.io", "password1")
	u.Status = model.StatusBanned
	s, _ := newAuth(newFakeUsers(u), newFakeProjects(), &fakeLimiter{allowOK: true})

	_, _, err := s.LoginWithIP(context.Background(), "bob", "password1", "")
	var inactive *webauthn.AccountInactiveError
	require.ErrorAs(t, err, &inactive)
	require.Equal(t, model.StatusBanned, inactive.Status)
	require.Equal(t, "account has been banned", err.Error())
}

func TestAuth_LoginWithIP_Validation(t *testing.T) {
	t.Parallel()
	lim := &fakeLimiter{allowOK: true}
	s, _ := newAuth(newFakeUsers(), newFakeProjects(), lim)

	_, _, err := s.LoginWithIP(context.Background(), "  ", "x", "")
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Zero(t, lim.allowCalls)
}

func TestAuth_UpdateProfile(t *testing.T) {
	t.Parallel()
	u := newUser(t, "carol", "carol@x.io", "old-password")
	other := newUser(t, "dave", "dave@x.io", "password1")
	users := newFakeUsers(u, other)
	s, _ := newAuth(users, newFakeProjects(), &fakeLimiter{allowOK: true})
	ctx := context.Background()
	str := func(s string) *string { return &s }

	_, err := s.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: str("bad")})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: str("dave@x.io")})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	got, err := s.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: str("carol@new.io")})
	require.NoError(t, err)
	require.Equal(t, "carol@new.io", got.Email)

	_, err = s.UpdateProfile(ctx, u.ID, ProfileUpdate{CurrentPassword: "wrong", NewPassword: str("new-password")})
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = s.UpdateProfile(ctx, u.ID, ProfileUpdate{CurrentPassword: "old-password", NewPassword: str("short")})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.UpdateProfile(ctx, u.ID, ProfileUpdate{CurrentPassword: "old-password", NewPassword: str("new-password")})
	require.NoError(t, err)

	_, _, err = s.LoginWithIP(ctx, "carol", "new-password", "")
	require.NoError(t, err)

	_, err = s.UpdateProfile(ctx, uuid.Must(uuid.NewV4()), ProfileUpdate{})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAuth_UpdateProfile_PasskeyOnlyAccountSetsPassword(t *testing.T) {
	t.Parallel()
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "erin", Email: "erin@x.io", Status: model.StatusActive}
	s, _ := newAuth(newFakeUsers(u), newFakeProjects(), &fakeLimiter{allowOK: true})
	pw := "first-password"

	_, err := s.UpdateProfile(context.Background(), u.ID, ProfileUpdate{NewPassword: &pw})
	require.NoError(t, err)
	_, _, err = s.LoginWithIP(context.Background(), "erin", pw, "")
	require.NoError(t, err)
}

func TestAuth_Me(t *testing.T) {
	t.Parallel()
	u := newUser(t, "frank", "frank@x.io", "password1")
	s, _ := newAuth(newFakeUsers(u), newFakeProjects(), &fakeLimiter{allowOK: true})

	got, err := s.Me(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "frank", got.Username)
}
