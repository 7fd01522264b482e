package service

import (
	"context"
	"strings"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// ProjectService manages the caller's projects.
type ProjectService interface {
	List(ctx context.Context, userID uuid.UUID) ([]model.Project, error)
	Create(ctx context.Context, userID uuid.UUID, name string) (model.Project, error)
	Rename(ctx context.Context, userID, id uuid.UUID, name string) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type ProjectServiceImpl struct {
	projects repository.ProjectRepository
	now      func() time.Time
}

// NewProjectService constructs ProjectService.
func NewProjectService(projects repository.ProjectRepository) *ProjectServiceImpl {
	return &ProjectServiceImpl{projects: projects, now: time.Now}
}

func (s *ProjectServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Project, error) {
	return s.projects.ListByUser(ctx, userID)
}

func (s *ProjectServiceImpl) Create(ctx context.Context, userID uuid.UUID, name string) (model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Project{}, invalid("project name is required")
	}
	p := model.Project{ID: uuid.Must(uuid.NewV4()), UserID: userID, Name: name, CreatedAt: s.now()}
	if err := s.projects.Create(ctx, &p); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

func (s *ProjectServiceImpl) Rename(ctx context.Context, userID, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("project name is required")
	}
	return s.projects.Rename(ctx, userID, id, name)
}

// Delete removes the project together with its tasks.
func (s *ProjectServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.projects.Delete(ctx, userID, id)
}
