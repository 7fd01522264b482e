package postgres

import (
	"context"
	"time"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
)

// CredentialRepo implements CredentialRepository using PostgreSQL.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a passkey repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

const credentialColumns = `credential_id, user_id, public_key, algorithm, sign_count, aaguid, name, created_at, last_used_at`

func scanCredential(row rowScanner) (model.Credential, error) {
	var (
		c     model.Credential
		count int64
	)
	err := row.Scan(&c.ID, &c.UserID, &c.PublicKey, &c.Algorithm, &count, &c.AAGUID, &c.Name, &c.CreatedAt, &c.LastUsedAt)
	c.SignCount = uint32(count)
	return c, err
}

func (r *CredentialRepo) list(ctx context.Context, q string, arg any) ([]model.Credential, error) {
	rows, err := r.db.Pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindByCredentialID returns every row carrying id; the primary key keeps it at most one.
func (r *CredentialRepo) FindByCredentialID(ctx context.Context, id []byte) ([]model.Credential, error) {
	return r.list(ctx, `SELECT `+credentialColumns+` FROM webauthn_credentials WHERE credential_id=$1`, id)
}

// AddCredential inserts a passkey for userID.
func (r *CredentialRepo) AddCredential(ctx context.Context, userID uuid.UUID, c model.Credential) error {
	const q = `
INSERT INTO webauthn_credentials (credential_id, user_id, public_key, algorithm, sign_count, aaguid, name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q, c.ID, userID, c.PublicKey, c.Algorithm, int64(c.SignCount), c.AAGUID, c.Name, c.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// ListCredentials returns the user's passkeys, oldest first.
func (r *CredentialRepo) ListCredentials(ctx context.Context, userID uuid.UUID) ([]model.Credential, error) {
	return r.list(ctx, `SELECT `+credentialColumns+` FROM webauthn_credentials WHERE user_id=$1 ORDER BY created_at ASC`, userID)
}

// UpdateSignCount stores the counter reported by the last assertion.
func (r *CredentialRepo) UpdateSignCount(ctx context.Context, id []byte, count uint32, usedAt time.Time) error {
	return mustAffect(r.db.Pool.Exec(ctx,
		`UPDATE webauthn_credentials SET sign_count=$2, last_used_at=$3 WHERE credential_id=$1`,
		id, int64(count), usedAt))
}

// Delete revokes a passkey owned by userID.
func (r *CredentialRepo) Delete(ctx context.Context, userID uuid.UUID, id []byte) error {
	return mustAffect(r.db.Pool.Exec(ctx,
		`DELETE FROM webauthn_credentials WHERE credential_id=$1 AND user_id=$2`, id, userID))
}

// ChallengeRepo implements ChallengeRepository using PostgreSQL.
type ChallengeRepo struct{ db *DB }

// NewChallengeRepo constructs a challenge store.
func NewChallengeRepo(db *DB) *ChallengeRepo { return &ChallengeRepo{db: db} }

// Save stores a pending challenge.
func (r *ChallengeRepo) Save(ctx context.Context, c model.Challenge) error {
	const q = `
INSERT INTO webauthn_challenges (id, ceremony, user_id, challenge, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	user := uuid.NullUUID{UUID: c.UserID, Valid: c.UserID != uuid.Nil}
	_, err := r.db.Pool.Exec(ctx, q, c.ID, string(c.Ceremony), user, c.Value, c.ExpiresAt)
	return err
}

// Consume deletes and returns the challenge so that it can be used at most once.
func (r *ChallengeRepo) Consume(ctx context.Context, id uuid.UUID) (model.Challenge, error) {
	const q = `
DELETE FROM webauthn_challenges WHERE id=$1
RETURNING ceremony, user_id, challenge, expires_at`
	var (
		c        model.Challenge
		ceremony string
		user     uuid.NullUUID
	)
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&ceremony, &user, &c.Value, &c.ExpiresAt); err != nil {
		return model.Challenge{}, notFound(err)
	}
	c.ID = id
	c.Ceremony = model.CeremonyKind(ceremony)
	if user.Valid {
		c.UserID = user.UUID
	}
	return c, nil
}

// PurgeExpired removes challenges that were never consumed.
func (r *ChallengeRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM webauthn_challenges WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
