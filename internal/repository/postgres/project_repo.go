package postgres

import (
	"context"

	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProjectRepo implements ProjectRepository using PostgreSQL.
type ProjectRepo struct{ db *DB }

// NewProjectRepo constructs a project repository.
func NewProjectRepo(db *DB) *ProjectRepo { return &ProjectRepo{db: db} }

// Create inserts a project.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO projects (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.UserID, p.Name, p.CreatedAt)
	return err
}

// Get loads a project owned by userID.
func (r *ProjectRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListByUser returns the user's projects, oldest first.
func (r *ProjectRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Project, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE user_id=$1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Rename changes the project name.
func (r *ProjectRepo) Rename(ctx context.Context, userID, id uuid.UUID, name string) error {
	return mustAffect(r.db.Pool.Exec(ctx, `UPDATE projects SET name=$3 WHERE id=$1 AND user_id=$2`, id, userID, name))
}

// Delete removes a project and its tasks.
func (r *ProjectRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return mustAffect(r.db.Pool.Exec(ctx, `DELETE FROM projects WHERE id=$1 AND user_id=$2`, id, userID))
}
