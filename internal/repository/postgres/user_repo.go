package postgres

import (
	"context"
	"time"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, email, pwd_hash, salt_auth, is_admin, status, created_at, last_login_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u      model.User
		status string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PwdHash, &u.SaltAuth, &u.IsAdmin, &status, &u.CreatedAt, &u.LastLoginAt); err != nil {
		return nil, err
	}
	u.Status = model.UserStatus(status)
	return &u, nil
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, email, pwd_hash, salt_auth, is_admin, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, u.Email, u.PwdHash, u.SaltAuth, u.IsAdmin, string(u.Status), u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanUser(r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, `id=$1`, id)
}

// GetByEmail selects a user by email, ignoring case.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `lower(email)=lower($1)`, email)
}

// GetByUsername selects a user by username, ignoring case.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `lower(username)=lower($1)`, username)
}

// List returns every user, oldest first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateEmail changes the email; a taken address yields errs.ErrAlreadyExists.
func (r *UserRepo) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE users SET email=$2 WHERE id=$1`, id, email)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return mustAffect(tag, err)
}

// UpdatePassword replaces hash and salt.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, pwdHash, salt []byte) error {
	return mustAffect(r.db.Pool.Exec(ctx, `UPDATE users SET pwd_hash=$2, salt_auth=$3 WHERE id=$1`, id, pwdHash, salt))
}

// SetStatus changes the account status.
func (r *UserRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.UserStatus) error {
	return mustAffect(r.db.Pool.Exec(ctx, `UPDATE users SET status=$2 WHERE id=$1`, id, string(status)))
}

// Delete removes a user; owned rows go with it by cascade.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return mustAffect(r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id))
}

// TouchLogin stamps the last successful login.
func (r *UserRepo) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return mustAffect(r.db.Pool.Exec(ctx, `UPDATE users SET last_login_at=$2 WHERE id=$1`, id, at))
}

// GetUserStatus returns the account status only.
func (r *UserRepo) GetUserStatus(ctx context.Context, id uuid.UUID) (model.UserStatus, error) {
	var status string
	if err := r.db.Pool.QueryRow(ctx, `SELECT status FROM users WHERE id=$1`, id).Scan(&status); err != nil {
		return "", notFound(err)
	}
	return model.UserStatus(status), nil
}

// Stats counts users, projects and tasks in one round trip.
func (r *UserRepo) Stats(ctx context.Context) (model.Stats, error) {
	const q = `
SELECT (SELECT count(*) FROM users), (SELECT count(*) FROM projects), (SELECT count(*) FROM tasks)`
	var s model.Stats
	err := r.db.Pool.QueryRow(ctx, q).Scan(&s.UserCount, &s.ProjectCount, &s.TaskCount)
	return s, err
}
