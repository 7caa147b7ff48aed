package query

import (
	"context"
	"sync"
	"time"

	"taskboard-api/domain"
	"taskboard-api/storage"
)

// fakeStore is an in-memory stand-in for the remote document store.
type fakeStore struct {
	mu            sync.Mutex
	tasks         map[string]domain.Task
	projects      map[string]domain.Project
	notifications map[string]domain.Notification
	settings      map[string]domain.Settings

	listCalls int
	failNext  int // errors to inject before succeeding
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:         make(map[string]domain.Task),
		projects:      make(map[string]domain.Project),
		notifications: make(map[string]domain.Notification),
		settings:      make(map[string]domain.Settings),
	}
}

func (f *fakeStore) injectFailures(n int, err error) {
	f.mu.Lock()
	f.failNext = n
	f.err = err
	f.mu.Unlock()
}

func (f *fakeStore) maybeFail() error {
	if f.failNext > 0 {
		f.failNext--
		return f.err
	}
	return nil
}

func (f *fakeStore) ListTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.maybeFail(); err != nil {
		return nil, err
	}
	out := []domain.Task{}
	for _, t := range f.tasks {
		if t.UserID == userID && filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTask(ctx context.Context, userID, id string) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail(); err != nil {
		return domain.Task{}, err
	}
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return domain.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) InsertTask(ctx context.Context, t domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail(); err != nil {
		return err
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, userID, id string, upd domain.TaskUpdate, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail(); err != nil {
		return err
	}
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return storage.ErrNotFound
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Notes != nil {
		t.Notes = *upd.Notes
	}
	if upd.ProjectID != nil {
		t.ProjectID = *upd.ProjectID
	}
	if upd.DueDate != nil {
		t.DueDate = *upd.DueDate
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Subtasks != nil {
		t.Subtasks = *upd.Subtasks
	}
	if upd.Tags != nil {
		t.Tags = *upd.Tags
	}
	t.UpdatedAt = updatedAt
	f.tasks[id] = t
	return nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail(); err != nil {
		return err
	}
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.tasks, t.ID)
	return nil
}

func (f *fakeStore) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail(); err != nil {
		return nil, err
	}
	out := []domain.Project{}
	for _, p := range f.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProject(ctx context.Context, userID, id string) (domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail(); err != nil {
		return domain.Project{}, err
	}
	p, ok := f.projects[id]
	if !ok || p.UserID != userID {
		return domain.Project{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) InsertProject(ctx context.Context, p domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = p
	return nil
}

func (f *fakeStore) UpdateProject(ctx context.Context, userID, id string, upd domain.ProjectUpdate, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.UserID != userID {
		return storage.ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.DueDate != nil {
		p.DueDate = *upd.DueDate
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.Color != nil {
		p.Color = *upd.Color
	}
	p.UpdatedAt = updatedAt
	f.projects[id] = p
	return nil
}

func (f *fakeStore) DeleteProject(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Notification{}
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeStore) GetNotification(ctx context.Context, userID, id string) (domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return domain.Notification{}, storage.ErrNotFound
	}
	return n, nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications[n.ID] = n
	return nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return storage.ErrNotFound
	}
	n.Read = true
	f.notifications[id] = n
	return nil
}

func (f *fakeStore) DeleteNotification(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.notifications, id)
	return nil
}

func (f *fakeStore) GetSettings(ctx context.Context, userID string) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[userID]
	if !ok {
		return domain.Settings{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) PutSettings(ctx context.Context, userID string, settings domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[userID] = settings
	return nil
}

func (f *fakeStore) taskListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}
