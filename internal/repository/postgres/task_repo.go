package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/recurrence"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// TaskRepo implements TaskRepository using PostgreSQL.
// Tasks carry no user_id; ownership is always checked through projects.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

const taskSelect = `
SELECT t.id, t.project_id, p.user_id, t.title, t.description, t.priority, t.due_date, t.is_complete,
       t.recurrence, t.reminders, t.notifications_sent, t.labels, t.created_at, t.updated_at
FROM tasks t
JOIN projects p ON p.id = t.project_id`

// taskDoc holds the jsonb columns of a task in wire form.
type taskDoc struct {
	recurrence []byte
	reminders  []byte
	sent       []byte
	labels     []byte
}

func encodeTask(t *model.Task) (taskDoc, error) {
	var (
		d   taskDoc
		err error
	)
	if t.Recurrence != nil {
		if d.recurrence, err = recurrence.Marshal(t.Recurrence); err != nil {
			return d, err
		}
	}
	reminders := t.Reminders
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	if d.reminders, err = json.Marshal(reminders); err != nil {
		return d, err
	}
	sent := t.NotificationsSent
	if sent == nil {
		sent = map[string]int64{}
	}
	if d.sent, err = json.Marshal(sent); err != nil {
		return d, err
	}
	labels := t.Labels
	if labels == nil {
		labels = []string{}
	}
	d.labels, err = json.Marshal(labels)
	return d, err
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		t        model.Task
		priority string
		d        taskDoc
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.UserID, &t.Title, &t.Description, &priority, &t.DueDate, &t.IsComplete,
		&d.recurrence, &d.reminders, &d.sent, &d.labels, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Priority = model.Priority(priority)
	if t.Recurrence, err = recurrence.Unmarshal(d.recurrence); err != nil {
		return nil, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if len(d.reminders) > 0 {
		if err := json.Unmarshal(d.reminders, &t.Reminders); err != nil {
			return nil, fmt.Errorf("task %s reminders: %w", t.ID, err)
		}
	}
	if len(d.sent) > 0 {
		if err := json.Unmarshal(d.sent, &t.NotificationsSent); err != nil {
			return nil, fmt.Errorf("task %s notifications: %w", t.ID, err)
		}
	}
	if len(d.labels) > 0 {
		if err := json.Unmarshal(d.labels, &t.Labels); err != nil {
			return nil, fmt.Errorf("task %s labels: %w", t.ID, err)
		}
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]model.Task, error) {
	defer rows.Close()
	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Create inserts t; nothing is written unless t.UserID owns t.ProjectID.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	d, err := encodeTask(t)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO tasks (id, project_id, title, description, priority, due_date, is_complete,
                   recurrence, reminders, notifications_sent, labels, created_at, updated_at)
SELECT $1, p.id, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12
FROM projects p WHERE p.id=$2 AND p.user_id=$13`
	return mustAffect(r.db.Pool.Exec(ctx, q,
		t.ID, t.ProjectID, t.Title, t.Description, string(t.Priority), t.DueDate, t.IsComplete,
		d.recurrence, d.reminders, d.sent, d.labels, t.CreatedAt, t.UserID))
}

// Get loads one task of the user.
func (r *TaskRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	t, err := scanTask(r.db.Pool.QueryRow(ctx, taskSelect+` WHERE t.id=$1 AND p.user_id=$2`, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// ListByUser lists tasks of the user, optionally limited to one project.
func (r *TaskRepo) ListByUser(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]model.Task, error) {
	var project uuid.NullUUID
	if projectID != nil {
		project = uuid.NullUUID{UUID: *projectID, Valid: true}
	}
	rows, err := r.db.Pool.Query(ctx,
		taskSelect+` WHERE p.user_id=$1 AND ($2::uuid IS NULL OR t.project_id=$2) ORDER BY t.created_at ASC`,
		userID, project)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

const taskUpdate = `
UPDATE tasks SET project_id=$2, title=$3, description=$4, priority=$5, due_date=$6, is_complete=$7,
       recurrence=$8, reminders=$9, notifications_sent=$10, labels=$11, updated_at=$12`

func taskUpdateArgs(t *model.Task, d taskDoc) []any {
	return []any{t.ID, t.ProjectID, t.Title, t.Description, string(t.Priority), t.DueDate, t.IsComplete,
		d.recurrence, d.reminders, d.sent, d.labels, t.UpdatedAt}
}

// Update overwrites the task. Both the current and the target project must belong to t.UserID.
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	d, err := encodeTask(t)
	if err != nil {
		return err
	}
	q := taskUpdate + `
WHERE id=$1
  AND project_id IN (SELECT id FROM projects WHERE user_id=$13)
  AND EXISTS (SELECT 1 FROM projects WHERE id=$2 AND user_id=$13)`
	return mustAffect(r.db.Pool.Exec(ctx, q, append(taskUpdateArgs(t, d), t.UserID)...))
}

// Delete removes one task of the user.
func (r *TaskRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return mustAffect(r.db.Pool.Exec(ctx,
		`DELETE FROM tasks WHERE id=$1 AND project_id IN (SELECT id FROM projects WHERE user_id=$2)`, id, userID))
}

// Mutate loads the task under a row lock, lets fn change it and persists all
// fields with a single UPDATE. An error from fn rolls the transaction back.
func (r *TaskRepo) Mutate(ctx context.Context, userID, id uuid.UUID, fn func(*model.Task) error) (_ *model.Task, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	t, err := scanTask(tx.QueryRow(ctx, taskSelect+` WHERE t.id=$1 AND p.user_id=$2 FOR UPDATE OF t`, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	if err = fn(t); err != nil {
		return nil, err
	}
	d, err := encodeTask(t)
	if err != nil {
		return nil, err
	}
	if _, err = tx.Exec(ctx, taskUpdate+` WHERE id=$1`, taskUpdateArgs(t, d)...); err != nil {
		return nil, err
	}
	return t, nil
}

// MarkNotificationSent records key for a task of the user.
func (r *TaskRepo) MarkNotificationSent(ctx context.Context, userID, id uuid.UUID, key string, at time.Time) error {
	const q = `
UPDATE tasks SET notifications_sent = notifications_sent || jsonb_build_object($3::text, $4::bigint)
WHERE id=$1 AND project_id IN (SELECT id FROM projects WHERE user_id=$2)`
	return mustAffect(r.db.Pool.Exec(ctx, q, id, userID, key, at.UnixMilli()))
}

// ListSchedulable returns open, dated tasks of active users.
func (r *TaskRepo) ListSchedulable(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.Pool.Query(ctx, taskSelect+`
JOIN users u ON u.id = p.user_id
WHERE NOT t.is_complete AND t.due_date IS NOT NULL AND u.status='active'
ORDER BY t.due_date ASC`)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// MarkNotificationSentIfDue records key unless the task was rescheduled or
// completed after the scheduler read it. A stale task is not an error.
func (r *TaskRepo) MarkNotificationSentIfDue(ctx context.Context, id uuid.UUID, key string, at, due time.Time) error {
	const q = `
UPDATE tasks SET notifications_sent = notifications_sent || jsonb_build_object($2::text, $3::bigint)
WHERE id=$1 AND due_date=$4 AND NOT is_complete`
	_, err := r.db.Pool.Exec(ctx, q, id, key, at.UnixMilli(), due)
	return err
}
