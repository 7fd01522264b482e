package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/limiter"
	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/repository"
	"github.com/gofrs/uuid/v5"
)

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.User

	createErr error
	getErr    error
	touched   int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[uuid.UUID]*model.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) find(match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, o := range f.byID {
		if strings.EqualFold(o.Username, u.Username) || strings.EqualFold(o.Email, u.Email) {
			return errs.ErrAlreadyExists
		}
	}
	c := *u
	f.byID[u.ID] = &c
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id })
}
func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return strings.EqualFold(u.Email, email) })
}
func (f *fakeUsers) GetByUsername(_ context.Context, name string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return strings.EqualFold(u.Username, name) })
}
func (f *fakeUsers) List(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.byID {
		out = append(out, *u)
	}
	return out, nil
}
func (f *fakeUsers) update(id uuid.UUID, fn func(*model.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	fn(u)
	return nil
}
func (f *fakeUsers) UpdateEmail(_ context.Context, id uuid.UUID, email string) error {
	f.mu.Lock()
	for oid, o := range f.byID {
		if oid != id && strings.EqualFold(o.Email, email) {
			f.mu.Unlock()
			return errs.ErrAlreadyExists
		}
	}
	f.mu.Unlock()
	return f.update(id, func(u *model.User) { u.Email = email })
}
func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash, salt []byte) error {
	return f.update(id, func(u *model.User) { u.PwdHash, u.SaltAuth = hash, salt })
}
func (f *fakeUsers) SetStatus(_ context.Context, id uuid.UUID, st model.UserStatus) error {
	return f.update(id, func(u *model.User) { u.Status = st })
}
func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}
func (f *fakeUsers) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	f.touched++
	return f.update(id, func(u *model.User) { u.LastLoginAt = &at })
}
func (f *fakeUsers) GetUserStatus(_ context.Context, id uuid.UUID) (model.UserStatus, error) {
	u, err := f.find(func(u *model.User) bool { return u.ID == id })
	if err != nil {
		return "", err
	}
	return u.Status, nil
}
func (f *fakeUsers) Stats(context.Context) (model.Stats, error) {
	return model.Stats{UserCount: int64(len(f.byID))}, nil
}

type fakeProjects struct {
	items     map[uuid.UUID]model.Project
	createErr error
}

var _ repository.ProjectRepository = (*fakeProjects)(nil)

func newFakeProjects() *fakeProjects { return &fakeProjects{items: map[uuid.UUID]model.Project{}} }

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.items[p.ID] = *p
	return nil
}
func (f *fakeProjects) Get(_ context.Context, userID, id uuid.UUID) (*model.Project, error) {
	p, ok := f.items[id]
	if !ok || p.UserID != userID {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}
func (f *fakeProjects) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Project, error) {
	var out []model.Project
	for _, p := range f.items {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeProjects) Rename(_ context.Context, userID, id uuid.UUID, name string) error {
	p, ok := f.items[id]
	if !ok || p.UserID != userID {
		return errs.ErrNotFound
	}
	p.Name = name
	f.items[id] = p
	return nil
}
func (f *fakeProjects) Delete(_ context.Context, userID, id uuid.UUID) error {
	p, ok := f.items[id]
	if !ok || p.UserID != userID {
		return errs.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

// fakeTasks checks ownership through fakeProjects like the SQL joins do.
type fakeTasks struct {
	projects *fakeProjects
	items    map[uuid.UUID]model.Task
	mutates  int
}

var _ repository.TaskRepository = (*fakeTasks)(nil)

func newFakeTasks(p *fakeProjects) *fakeTasks {
	return &fakeTasks{projects: p, items: map[uuid.UUID]model.Task{}}
}

func (f *fakeTasks) owned(userID, projectID uuid.UUID) bool {
	p, ok := f.projects.items[projectID]
	return ok && p.UserID == userID
}

func (f *fakeTasks) Create(_ context.Context, t *model.Task) error {
	if !f.owned(t.UserID, t.ProjectID) {
		return errs.ErrNotFound
	}
	f.items[t.ID] = *t
	return nil
}
func (f *fakeTasks) Get(_ context.Context, userID, id uuid.UUID) (*model.Task, error) {
	t, ok := f.items[id]
	if !ok || !f.owned(userID, t.ProjectID) {
		return nil, errs.ErrNotFound
	}
	t.UserID = userID
	return &t, nil
}
func (f *fakeTasks) ListByUser(_ context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]model.Task, error) {
	var out []model.Task
	for _, t := range f.items {
		if f.owned(userID, t.ProjectID) && (projectID == nil || *projectID == t.ProjectID) {
			out = append(out, t)
		}
	}
	return out, nil
}
func (f *fakeTasks) Update(_ context.Context, t *model.Task) error {
	cur, ok := f.items[t.ID]
	if !ok || !f.owned(t.UserID, cur.ProjectID) || !f.owned(t.UserID, t.ProjectID) {
		return errs.ErrNotFound
	}
	f.items[t.ID] = *t
	return nil
}
func (f *fakeTasks) Delete(_ context.Context, userID, id uuid.UUID) error {
	t, ok := f.items[id]
	if !ok || !f.owned(userID, t.ProjectID) {
		return errs.ErrNotFound
	}
	delete(f.items, id)
	return nil
}
func (f *fakeTasks) Mutate(ctx context.Context, userID, id uuid.UUID, fn func(*model.Task) error) (*model.Task, error) {
	f.mutates++
	t, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	f.items[id] = *t
	return t, nil
}
func (f *fakeTasks) MarkNotificationSent(ctx context.Context, userID, id uuid.UUID, key string, at time.Time) error {
	_, err := f.Mutate(ctx, userID, id, func(t *model.Task) error {
		if t.NotificationsSent == nil {
			t.NotificationsSent = map[string]int64{}
		}
		t.NotificationsSent[key] = at.UnixMilli()
		return nil
	})
	return err
}
func (f *fakeTasks) ListSchedulable(context.Context) ([]model.Task, error) {
	var out []model.Task
	for _, t := range f.items {
		if !t.IsComplete && t.DueDate != nil {
			out = append(out, t)
		}
	}
	return out, nil
}
func (f *fakeTasks) MarkNotificationSentIfDue(_ context.Context, id uuid.UUID, key string, at, due time.Time) error {
	t, ok := f.items[id]
	if !ok || t.DueDate == nil || !t.DueDate.Equal(due) {
		return nil
	}
	sent := make(map[string]int64, len(t.NotificationsSent)+1)
	for k, v := range t.NotificationsSent {
		sent[k] = v
	}
	sent[key] = at.UnixMilli()
	t.NotificationsSent = sent
	f.items[id] = t
	return nil
}

// fakeOutbox drops a second notification with the same user and tag, like
// the unique index on notifications.
type fakeOutbox struct {
	items []model.Notification
}

var _ repository.NotificationRepository = (*fakeOutbox)(nil)

func (f *fakeOutbox) Insert(_ context.Context, n *model.Notification) error {
	for _, cur := range f.items {
		if cur.UserID == n.UserID && cur.Tag == n.Tag {
			return nil
		}
	}
	f.items = append(f.items, *n)
	return nil
}
func (f *fakeOutbox) ListUnread(_ context.Context, userID uuid.UUID) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range f.items {
		if n.UserID == userID && n.ReadAt == nil {
			out = append(out, n)
		}
	}
	return out, nil
}
func (f *fakeOutbox) MarkRead(context.Context, uuid.UUID, uuid.UUID, time.Time) error { return nil }

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
	lastLogin    string
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, login string, _ []byte) (bool, time.Duration, error) {
	l.allowCalls++
	l.lastLogin = login
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}
