package service

import (
	"context"
	"strings"
	"time"

	"github.com/and161185/jdue/internal/metrics"
	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/recurrence"
	"github.com/and161185/jdue/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// TaskService manages the caller's tasks.
type TaskService interface {
	List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]model.Task, error)
	Create(ctx context.Context, userID uuid.UUID, in TaskInput) (model.Task, error)
	Update(ctx context.Context, userID, id uuid.UUID, in TaskInput) (model.Task, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// Toggle flips completion. Completing a dated recurring task advances it instead.
	Toggle(ctx context.Context, userID, id uuid.UUID) (model.Task, error)
	MarkNotificationSent(ctx context.Context, userID, id uuid.UUID, key string) error
}

// TaskInput is the client-editable part of a task.
type TaskInput struct {
	ProjectID   uuid.UUID
	Title       string
	Description string
	Priority    model.Priority
	DueDate     *time.Time
	IsComplete  bool
	Recurrence  recurrence.Rule
	Reminders   []model.Reminder
	Labels      []string
}

type TaskServiceImpl struct {
	tasks   repository.TaskRepository
	loc     *time.Location
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTaskService constructs TaskService. Recurrences advance in loc. m may be nil.
func NewTaskService(tasks repository.TaskRepository, loc *time.Location, log *zap.Logger, m *metrics.Metrics) *TaskServiceImpl {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskServiceImpl{tasks: tasks, loc: loc, log: log, metrics: m, now: time.Now}
}

func (s *TaskServiceImpl) normalize(in *TaskInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return invalid("task title is required")
	}
	if in.ProjectID == uuid.Nil {
		return invalid("project id is required")
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if !in.Priority.Valid() {
		return invalid("unknown priority %q", in.Priority)
	}
	for _, r := range in.Reminders {
		if r.Value < 0 {
			return invalid("reminder value must not be negative")
		}
		if !r.Unit.Valid() {
			return invalid("unknown reminder unit %q", r.Unit)
		}
	}
	var labels []string
	for _, l := range in.Labels {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	in.Labels = labels
	if in.Recurrence != nil {
		if err := recurrence.Validate(in.Recurrence); err != nil {
			s.log.Info("recurrence stored with fallback", zap.Error(err))
		}
	}
	return nil
}

func (s *TaskServiceImpl) List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]model.Task, error) {
	return s.tasks.ListByUser(ctx, userID, projectID)
}

func (s *TaskServiceImpl) Create(ctx context.Context, userID uuid.UUID, in TaskInput) (model.Task, error) {
	if err := s.normalize(&in); err != nil {
		return model.Task{}, err
	}
	now := s.now()
	t := model.Task{
		ID:                uuid.Must(uuid.NewV4()),
		ProjectID:         in.ProjectID,
		UserID:            userID,
		Title:             in.Title,
		Description:       in.Description,
		Priority:          in.Priority,
		DueDate:           in.DueDate,
		IsComplete:        in.IsComplete,
		Recurrence:        in.Recurrence,
		Reminders:         in.Reminders,
		NotificationsSent: map[string]int64{},
		Labels:            in.Labels,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// ErrNotFound here means the project is missing or foreign.
	if err := s.tasks.Create(ctx, &t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// Update replaces the editable fields. Moving the due date forgets fired reminders.
func (s *TaskServiceImpl) Update(ctx context.Context, userID, id uuid.UUID, in TaskInput) (model.Task, error) {
	if err := s.normalize(&in); err != nil {
		return model.Task{}, err
	}
	t, err := s.tasks.Get(ctx, userID, id)
	if err != nil {
		return model.Task{}, err
	}
	if !sameInstant(t.DueDate, in.DueDate) {
		t.NotificationsSent = map[string]int64{}
	}
	t.ProjectID = in.ProjectID
	t.Title = in.Title
	t.Description = in.Description
	t.Priority = in.Priority
	t.DueDate = in.DueDate
	t.IsComplete = in.IsComplete
	t.Recurrence = in.Recurrence
	t.Reminders = in.Reminders
	t.Labels = in.Labels
	t.UpdatedAt = s.now()
	if err := s.tasks.Update(ctx, t); err != nil {
		return model.Task{}, err
	}
	return *t, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s *TaskServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.tasks.Delete(ctx, userID, id)
}

// Toggle runs under a row lock so that concurrent toggles advance a recurring
// task only once per completion.
func (s *TaskServiceImpl) Toggle(ctx context.Context, userID, id uuid.UUID) (model.Task, error) {
	var advanced recurrence.Kind
	t, err := s.tasks.Mutate(ctx, userID, id, func(t *model.Task) error {
		advanced = ""
		t.UpdatedAt = s.now()
		switch {
		case t.IsComplete:
			t.IsComplete = false
		case t.Recurrence != nil && t.DueDate != nil:
			if err := recurrence.Validate(t.Recurrence); err != nil {
				s.log.Warn("malformed recurrence, applying fallback",
					zap.String("task_id", t.ID.String()), zap.Error(err))
			}
			next := recurrence.Next(t.DueDate.In(s.loc), t.Recurrence)
			t.DueDate = &next
			t.IsComplete = false
			t.NotificationsSent = map[string]int64{}
			advanced = t.Recurrence.Kind()
		default:
			t.IsComplete = true
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	if advanced != "" {
		s.metrics.RecurrenceAdvanced(string(advanced))
	}
	return *t, nil
}

// MarkNotificationSent records a reminder fired by a client-side scheduler.
func (s *TaskServiceImpl) MarkNotificationSent(ctx context.Context, userID, id uuid.UUID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalid("notification key is required")
	}
	return s.tasks.MarkNotificationSent(ctx, userID, id, key, s.now())
}
