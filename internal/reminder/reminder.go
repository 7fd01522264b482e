// Package reminder decides which overdue and reminder notifications are due
// for a task, and runs the periodic sweep that delivers them.
package reminder

import (
	"fmt"
	"strconv"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
)

// OverdueKey marks the overdue notification in Task.NotificationsSent.
const OverdueKey = "overdue"

// Kind distinguishes the two notification sources.
type Kind string

const (
	KindOverdue  Kind = "overdue"
	KindReminder Kind = "reminder"
)

// Due is a notification that should be emitted now.
type Due struct {
	TaskID  uuid.UUID
	UserID  uuid.UUID
	Key     string
	Kind    Kind
	Title   string
	Body    string
	Tag     string
	DueDate time.Time
}

// Notification converts d into a deliverable notification.
func (d Due) Notification() model.Notification {
	taskID := d.TaskID
	return model.Notification{
		UserID: d.UserID,
		TaskID: &taskID,
		Title:  d.Title,
		Body:   d.Body,
		Tag:    d.Tag,
	}
}

// Tag is the outbox dedupe key of one notification. It carries the due date
// so every cycle of a recurring task gets its own notifications.
func Tag(taskID uuid.UUID, key string, due time.Time) string {
	return taskID.String() + key + "@" + strconv.FormatInt(due.UnixMilli(), 10)
}

// Key identifies a reminder by its shape, e.g. "before-15-minutes".
func Key(r model.Reminder) string {
	dir := "after"
	if r.IsBefore {
		dir = "before"
	}
	return fmt.Sprintf("%s-%d-%s", dir, r.Value, r.Unit)
}

// Offset is the distance of the reminder from the due date. Unknown units count as days.
func Offset(r model.Reminder) time.Duration {
	var unit time.Duration
	switch r.Unit {
	case model.UnitMinutes:
		unit = time.Minute
	case model.UnitHours:
		unit = time.Hour
	default:
		unit = 24 * time.Hour
	}
	return time.Duration(r.Value) * unit
}

// FireAt returns the moment the reminder becomes due for a task due at due.
func FireAt(r model.Reminder, due time.Time) time.Time {
	if r.IsBefore {
		return due.Add(-Offset(r))
	}
	return due.Add(Offset(r))
}

// Evaluate returns the notifications of task that are due at now and not yet
// recorded in NotificationsSent. Overdue comes first, then reminders in list
// order; reminders with the same key are reported once.
func Evaluate(task model.Task, now time.Time) []Due {
	if task.IsComplete || task.DueDate == nil {
		return nil
	}
	dueDate := *task.DueDate
	sent := task.NotificationsSent

	var out []Due
	if _, ok := sent[OverdueKey]; !ok && !now.Before(dueDate) {
		out = append(out, Due{
			TaskID:  task.ID,
			UserID:  task.UserID,
			Key:     OverdueKey,
			Kind:    KindOverdue,
			Title:   "Task Overdue: " + task.Title,
			Body:    "This task is now overdue.",
			Tag:     Tag(task.ID, OverdueKey, dueDate),
			DueDate: dueDate,
		})
	}

	seen := make(map[string]struct{}, len(task.Reminders))
	for _, r := range task.Reminders {
		key := Key(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := sent[key]; ok {
			continue
		}
		if now.Before(FireAt(r, dueDate)) {
			continue
		}
		body := fmt.Sprintf("%d %s have passed since the due time.", r.Value, r.Unit)
		if r.IsBefore {
			body = fmt.Sprintf("Due in %d %s.", r.Value, r.Unit)
		}
		out = append(out, Due{
			TaskID:  task.ID,
			UserID:  task.UserID,
			Key:     key,
			Kind:    KindReminder,
			Title:   "Reminder: " + task.Title,
			Body:    body,
			Tag:     Tag(task.ID, key, dueDate),
			DueDate: dueDate,
		})
	}
	return out
}
