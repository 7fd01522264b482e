package service

import (
	"context"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/repository"
	"github.com/and161185/jdue/internal/session"
	"github.com/and161185/jdue/internal/webauthn"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Ceremonies is the part of *webauthn.Verifier used by PasskeyService.
type Ceremonies interface {
	BeginRegistration(ctx context.Context, userID uuid.UUID, userName string) (webauthn.CreationOptions, error)
	BeginAuthentication(ctx context.Context) (webauthn.RequestOptions, error)
	VerifyRegistration(ctx context.Context, in webauthn.RegistrationInput) (model.Credential, error)
	VerifyAuthentication(ctx context.Context, in webauthn.AuthenticationInput) (uuid.UUID, error)
}

// PasskeyService registers passkeys and signs users in with them.
type PasskeyService interface {
	BeginRegistration(ctx context.Context, userID uuid.UUID) (webauthn.CreationOptions, error)
	FinishRegistration(ctx context.Context, in webauthn.RegistrationInput) (model.Credential, error)
	BeginLogin(ctx context.Context) (webauthn.RequestOptions, error)
	FinishLogin(ctx context.Context, in webauthn.AuthenticationInput) (model.Tokens, model.User, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.Credential, error)
	Revoke(ctx context.Context, userID uuid.UUID, credentialID []byte) error
}

type PasskeyServiceImpl struct {
	ceremonies Ceremonies
	creds      repository.CredentialRepository
	users      repository.UserRepository
	issuer     *session.Issuer
	log        *zap.Logger
	now        func() time.Time
}

// NewPasskeyService constructs PasskeyService.
func NewPasskeyService(c Ceremonies, creds repository.CredentialRepository, users repository.UserRepository, issuer *session.Issuer, log *zap.Logger) *PasskeyServiceImpl {
	return &PasskeyServiceImpl{ceremonies: c, creds: creds, users: users, issuer: issuer, log: log, now: time.Now}
}

// BeginRegistration starts adding a passkey to the caller's account.
func (s *PasskeyServiceImpl) BeginRegistration(ctx context.Context, userID uuid.UUID) (webauthn.CreationOptions, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return webauthn.CreationOptions{}, err
	}
	return s.ceremonies.BeginRegistration(ctx, u.ID, u.Username)
}

// FinishRegistration verifies the attestation and stores the credential.
func (s *PasskeyServiceImpl) FinishRegistration(ctx context.Context, in webauthn.RegistrationInput) (model.Credential, error) {
	if in.CeremonyID == uuid.Nil {
		return model.Credential{}, invalid("ceremonyId is required")
	}
	return s.ceremonies.VerifyRegistration(ctx, in)
}

// BeginLogin starts a passkey sign-in.
func (s *PasskeyServiceImpl) BeginLogin(ctx context.Context) (webauthn.RequestOptions, error) {
	return s.ceremonies.BeginAuthentication(ctx)
}

// FinishLogin verifies the assertion and issues a session for the credential owner.
func (s *PasskeyServiceImpl) FinishLogin(ctx context.Context, in webauthn.AuthenticationInput) (model.Tokens, model.User, error) {
	if in.CeremonyID == uuid.Nil {
		return model.Tokens{}, model.User{}, invalid("ceremonyId is required")
	}
	userID, err := s.ceremonies.VerifyAuthentication(ctx, in)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
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

// List returns the caller's passkeys.
func (s *PasskeyServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Credential, error) {
	return s.creds.ListCredentials(ctx, userID)
}

// Revoke deletes one of the caller's passkeys.
func (s *PasskeyServiceImpl) Revoke(ctx context.Context, userID uuid.UUID, credentialID []byte) error {
	if len(credentialID) == 0 {
		return invalid("credential id is required")
	}
	return s.creds.Delete(ctx, userID, credentialID)
}
