package query

import (
	"context"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/cache"
	"taskboard-api/domain"
)

// TaskStore is the remote-store surface the task hooks need.
type TaskStore interface {
	ListTasks(ctx context.Context, userID string, f domain.TaskFilter) ([]domain.Task, error)
	GetTask(ctx context.Context, userID, id string) (domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, userID, id string, upd domain.TaskUpdate, updatedAt time.Time) error
	DeleteTask(ctx context.Context, userID, id string) error
}

// SettingsSource supplies the owner's saved preferences. The task
// surface reads it for the toggle that gates status inference.
type SettingsSource interface {
	Get(ctx context.Context, owner string) (domain.Settings, error)
}

// Tasks is the task query/mutation surface.
type Tasks struct {
	store    TaskStore
	cache    *cache.Cache
	settings SettingsSource
	log      *log.Logger
	now      func() time.Time
}

// NewTasks creates the task data-access surface.
func NewTasks(store TaskStore, c *cache.Cache, settings SettingsSource, logger *log.Logger) *Tasks {
	return &Tasks{store: store, cache: c, settings: settings, log: logger, now: time.Now}
}

func taskListKey(owner string, f domain.TaskFilter) cache.Key {
	fields := map[string]string{}
	if f.Status != "" {
		fields["status"] = string(f.Status)
	}
	if f.Priority != "" {
		fields["priority"] = string(f.Priority)
	}
	if f.ProjectID != "" {
		fields["project"] = f.ProjectID
	}
	return cache.NewKey("tasks", owner, fields)
}

func taskDetailKey(owner, id string) cache.Key {
	return cache.NewKey("task", owner, map[string]string{"id": id})
}

func sortByDueDate(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].DueDate.Before(tasks[j].DueDate) })
}

// List returns the owner's tasks matching f, due date ascending.
// Structurally equal filters share one cache entry.
func (s *Tasks) List(ctx context.Context, owner string, f domain.TaskFilter) ([]domain.Task, error) {
	payload, err := s.cache.Fetch(ctx, taskListKey(owner, f), defaultListTTL, func(ctx context.Context) ([]byte, error) {
		var tasks []domain.Task
		err := withRetry(ctx, s.log, "tasks.list", func() error {
			var err error
			tasks, err = s.store.ListTasks(ctx, owner, f)
			return err
		})
		if err != nil {
			return nil, err
		}
		sortByDueDate(tasks)
		return sonic.Marshal(tasks)
	})
	if err != nil {
		return nil, err
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(payload, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Get returns one task by id, storage.ErrNotFound when absent.
func (s *Tasks) Get(ctx context.Context, owner, id string) (domain.Task, error) {
	payload, err := s.cache.Fetch(ctx, taskDetailKey(owner, id), defaultDetailTTL, func(ctx context.Context) ([]byte, error) {
		var task domain.Task
		err := withRetry(ctx, s.log, "tasks.get", func() error {
			var err error
			task, err = s.store.GetTask(ctx, owner, id)
			return err
		})
		if err != nil {
			return nil, err
		}
		return sonic.Marshal(task)
	})
	if err != nil {
		return domain.Task{}, err
	}
	var task domain.Task
	if err := sonic.Unmarshal(payload, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// Today returns tasks due within the current calendar day. A task can
// be both due today and overdue; the predicates are independent.
func (s *Tasks) Today(ctx context.Context, owner string) ([]domain.Task, error) {
	all, err := s.List(ctx, owner, domain.TaskFilter{})
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	start, end := domain.StartOfDay(now), domain.EndOfDay(now)
	out := []domain.Task{}
	for _, t := range all {
		if !t.DueDate.Before(start) && !t.DueDate.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Upcoming returns unfinished-or-not tasks due within the next days
// starting from today's midnight.
func (s *Tasks) Upcoming(ctx context.Context, owner string, days int) ([]domain.Task, error) {
	all, err := s.List(ctx, owner, domain.TaskFilter{})
	if err != nil {
		return nil, err
	}
	start := domain.StartOfDay(s.now().UTC())
	end := start.AddDate(0, 0, days)
	out := []domain.Task{}
	for _, t := range all {
		if !t.DueDate.Before(start) && t.DueDate.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Overdue returns tasks strictly past due and not done.
func (s *Tasks) Overdue(ctx context.Context, owner string) ([]domain.Task, error) {
	all, err := s.List(ctx, owner, domain.TaskFilter{})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := []domain.Task{}
	for _, t := range all {
		if domain.IsOverdue(t, now) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ForProject returns the project's task list, sharing its cache entry
// with the equivalent filtered List call.
func (s *Tasks) ForProject(ctx context.Context, owner, projectID string) ([]domain.Task, error) {
	return s.List(ctx, owner, domain.TaskFilter{ProjectID: projectID})
}

func validateNewTask(t domain.Task) error {
	if t.Title == "" {
		return ValidationError("title is required")
	}
	if t.DueDate.IsZero() {
		return ValidationError("due date is required")
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return ValidationError("unknown priority")
	}
	if t.Status != "" && !t.Status.Valid() {
		return ValidationError("unknown status")
	}
	return nil
}

// Create validates and persists a new task, then re-reads it so the
// caller gets the stored timestamps back.
func (s *Tasks) Create(ctx context.Context, owner string, t domain.Task) (domain.Task, error) {
	if err := validateNewTask(t); err != nil {
		return domain.Task{}, err
	}
	now := s.now().UTC()
	t.ID = uuid.NewString()
	t.UserID = owner
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if t.Status == "" {
		t.Status = domain.StatusTodo
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == "" {
			t.Subtasks[i].ID = uuid.NewString()
		}
		t.Subtasks[i].Order = i
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := withRetry(ctx, s.log, "tasks.create", func() error {
		return s.store.InsertTask(ctx, t)
	}); err != nil {
		return domain.Task{}, err
	}
	persisted, err := s.reread(ctx, owner, t.ID)
	if err != nil {
		return domain.Task{}, err
	}
	s.invalidate(owner, persisted)
	return persisted, nil
}

func validateTaskUpdate(upd domain.TaskUpdate) error {
	if upd.Title != nil && *upd.Title == "" {
		return ValidationError("title cannot be empty")
	}
	if upd.DueDate != nil && upd.DueDate.IsZero() {
		return ValidationError("due date cannot be cleared")
	}
	if upd.Priority != nil && !upd.Priority.Valid() {
		return ValidationError("unknown priority")
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return ValidationError("unknown status")
	}
	return nil
}

// Update merges a partial change into the task and returns the re-read
// result. Any update that touches subtasks reapplies the status
// inference rule; an explicit status in the same update wins.
func (s *Tasks) Update(ctx context.Context, owner, id string, upd domain.TaskUpdate) (domain.Task, error) {
	if err := validateTaskUpdate(upd); err != nil {
		return domain.Task{}, err
	}
	if upd.Subtasks != nil {
		subtasks := append([]domain.Subtask(nil), *upd.Subtasks...)
		for i := range subtasks {
			if subtasks[i].ID == "" {
				subtasks[i].ID = uuid.NewString()
			}
			subtasks[i].Order = i
		}
		upd.Subtasks = &subtasks
		if upd.Status == nil {
			current, err := s.reread(ctx, owner, id)
			if err != nil {
				return domain.Task{}, err
			}
			if next := domain.InferStatus(current.Status, subtasks, s.advancedStatus(ctx, owner)); next != current.Status {
				upd.Status = &next
			}
		}
	}
	if err := withRetry(ctx, s.log, "tasks.update", func() error {
		return s.store.UpdateTask(ctx, owner, id, upd, s.now().UTC())
	}); err != nil {
		return domain.Task{}, err
	}
	persisted, err := s.reread(ctx, owner, id)
	if err != nil {
		return domain.Task{}, err
	}
	s.invalidate(owner, persisted)
	return persisted, nil
}

// SetSubtasks replaces the task's subtask list. Inference runs inside
// Update, which handles every subtask-bearing mutation the same way.
func (s *Tasks) SetSubtasks(ctx context.Context, owner, id string, subtasks []domain.Subtask) (domain.Task, error) {
	return s.Update(ctx, owner, id, domain.TaskUpdate{Subtasks: &subtasks})
}

// advancedStatus resolves the owner's inference toggle, defaulting on
// when preferences are unavailable.
func (s *Tasks) advancedStatus(ctx context.Context, owner string) bool {
	if s.settings == nil {
		return domain.DefaultSettings().AdvancedStatus
	}
	prefs, err := s.settings.Get(ctx, owner)
	if err != nil {
		s.log.WithFields(log.Fields{"user": owner, "error": err.Error()}).
			Warn("settings fetch failed; using defaults")
		return domain.DefaultSettings().AdvancedStatus
	}
	return prefs.AdvancedStatus
}

// Delete reads the task first so the invalidation knows its project,
// removes it and returns the pre-delete snapshot.
func (s *Tasks) Delete(ctx context.Context, owner, id string) (domain.Task, error) {
	snapshot, err := s.reread(ctx, owner, id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := withRetry(ctx, s.log, "tasks.delete", func() error {
		return s.store.DeleteTask(ctx, owner, id)
	}); err != nil {
		return domain.Task{}, err
	}
	s.invalidate(owner, snapshot)
	return snapshot, nil
}

// reread fetches the task straight from the store, bypassing the cache.
func (s *Tasks) reread(ctx context.Context, owner, id string) (domain.Task, error) {
	var task domain.Task
	err := withRetry(ctx, s.log, "tasks.reread", func() error {
		var err error
		task, err = s.store.GetTask(ctx, owner, id)
		return err
	})
	return task, err
}

// invalidate applies the mutation invalidation topology: the task's own
// detail key, every task list regardless of filter, every dashboard
// aggregate, and the parent project's task list when one is set.
func (s *Tasks) invalidate(owner string, t domain.Task) {
	s.cache.Invalidate(taskDetailKey(owner, t.ID))
	s.cache.Invalidate(cache.NewPrefix("tasks", owner))
	s.cache.Invalidate(cache.NewPrefix("dashboard", owner))
	if t.ProjectID != "" {
		s.cache.Invalidate(taskListKey(owner, domain.TaskFilter{ProjectID: t.ProjectID}))
	}
}
