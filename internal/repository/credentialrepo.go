package repository

import (
	"context"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
)

// CredentialRepository persists registered passkeys.
type CredentialRepository interface {
	// FindByCredentialID looks a credential up across all users.
	// More than one result means the store is corrupt.
	FindByCredentialID(ctx context.Context, id []byte) ([]model.Credential, error)
	// AddCredential stores a credential for userID; a taken id yields errs.ErrAlreadyExists.
	AddCredential(ctx context.Context, userID uuid.UUID, cred model.Credential) error
	// ListCredentials returns the user's credentials.
	ListCredentials(ctx context.Context, userID uuid.UUID) ([]model.Credential, error)
	// UpdateSignCount stores the latest signature counter and use time.
	UpdateSignCount(ctx context.Context, id []byte, count uint32, usedAt time.Time) error
	// Delete revokes a credential owned by userID.
	Delete(ctx context.Context, userID uuid.UUID, id []byte) error
}

// ChallengeRepository keeps short-lived WebAuthn challenges.
type ChallengeRepository interface {
	// Save stores a new challenge.
	Save(ctx context.Context, c model.Challenge) error
	// Consume returns the challenge and deletes it in the same statement.
	Consume(ctx context.Context, id uuid.UUID) (model.Challenge, error)
	// PurgeExpired drops challenges that expired before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
