package service

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/jdue/internal/crypto"
	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/limiter"
	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/repository"
	"github.com/and161185/jdue/internal/session"
	"github.com/and161185/jdue/internal/webauthn"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// AuthService defines password authentication and profile operations.
type AuthService interface {
	// Register creates an account with a default project and signs it in.
	Register(ctx context.Context, username, email, password string) (model.Tokens, model.User, error)
	// LoginWithIP applies rate-limiting and authenticates by email or username.
	LoginWithIP(ctx context.Context, login, password, ip string) (model.Tokens, model.User, error)
	// Me returns the caller's account.
	Me(ctx context.Context, userID uuid.UUID) (model.User, error)
	// UpdateProfile changes email and/or password.
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (model.User, error)
}

// ProfileUpdate lists requested profile changes; nil fields stay untouched.
type ProfileUpdate struct {
	Email           *string
	CurrentPassword string
	NewPassword     *string
}

type AuthServiceImpl struct {
	accounts
	issuer *session.Issuer
	lim    limiter.Limiter
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, projects repository.ProjectRepository, issuer *session.Issuer, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		accounts: accounts{users: users, projects: projects},
		issuer:   issuer,
		lim:      lim,
		log:      log,
		now:      time.Now,
	}
}

// Register creates a new user with a fresh salt and issues a session.
func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (model.Tokens, model.User, error) {
	u, err := s.create(ctx, newAccount{username: username, email: email, password: password}, s.now())
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	tok, err := s.issuer.Issue(u.ID, session.Claims{Admin: u.IsAdmin})
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, *u, nil
}

func (s *AuthServiceImpl) lookup(ctx context.Context, login string) (*model.User, error) {
	if strings.Contains(login, "@") {
		return s.users.GetByEmail(ctx, login)
	}
	return s.users.GetByUsername(ctx, login)
}

// LoginWithIP authenticates with rate limiting by (login, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, login, password, ip string) (model.Tokens, model.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return model.Tokens{}, model.User{}, invalid("login and password are required")
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, login, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.lookup(ctx, login)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, login, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown user and wrong password look the same
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}
	if u.Status != model.StatusActive {
		return model.Tokens{}, model.User{}, &webauthn.AccountInactiveError{Status: u.Status}
	}

	_ = s.lim.Success(ctx, login, ipHash)
	now := s.now()
	if err := s.users.TouchLogin(ctx, u.ID, now); err != nil {
		s.log.Warn("touch login", zap.String("user_id", u.ID.String()), zap.Error(err))
	} else {
		u.LastLoginAt = &now
	}

	tok, err := s.issuer.Issue(u.ID, session.Claims{Admin: u.IsAdmin})
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, *u, nil
}

// Me returns the account of userID.
func (s *AuthServiceImpl) Me(ctx context.Context, userID uuid.UUID) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// UpdateProfile applies email and password changes. Changing an existing
// password requires the current one.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	if upd.NewPassword != nil {
		if len(*upd.NewPassword) < MinPasswordLen {
			return model.User{}, invalid("password must be at least %d characters", MinPasswordLen)
		}
		if len(u.PwdHash) > 0 && !pkgcrypto.VerifyPassword([]byte(upd.CurrentPassword), u.SaltAuth, u.PwdHash) {
			return model.User{}, errs.ErrForbidden
		}
	}

	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if !validEmail(email) {
			return model.User{}, invalid("invalid email %q", email)
		}
		if email != u.Email {
			if err := s.users.UpdateEmail(ctx, userID, email); err != nil {
				return model.User{}, err
			}
			u.Email = email
		}
	}

	if upd.NewPassword != nil {
		hash, salt, err := pkgcrypto.NewPasswordHash(*upd.NewPassword)
		if err != nil {
			return model.User{}, err
		}
		if err := s.users.UpdatePassword(ctx, userID, hash, salt); err != nil {
			return model.User{}, err
		}
		u.PwdHash, u.SaltAuth = hash, salt
	}
	return *u, nil
}
