// Package notify produces reminder, overdue and summary notifications
// from a user's task set. Generation runs as a background job at
// session start and must never block anything: failures are logged and
// swallowed.
package notify

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

const reminderWindow = 24 * time.Hour

// TaskSource supplies a user's tasks.
type TaskSource interface {
	List(ctx context.Context, owner string, f domain.TaskFilter) ([]domain.Task, error)
}

// NotificationAccess reads and inserts a user's notifications.
type NotificationAccess interface {
	List(ctx context.Context, owner string, unreadOnly bool) ([]domain.Notification, error)
	Create(ctx context.Context, owner string, n domain.Notification) (domain.Notification, error)
}

// Deduper guards against double-inserting the same (task, type) pair
// across instances.
type Deduper interface {
	Add(ctx context.Context, userID, taskID string, kind domain.NotificationType) (bool, error)
	Remove(ctx context.Context, userID, taskID string, kind domain.NotificationType) error
}

// Generator scans a user's tasks and inserts reminder and overdue
// notifications.
type Generator struct {
	tasks         TaskSource
	notifications NotificationAccess
	deduper       Deduper
	log           *log.Logger
	now           func() time.Time
}

// NewGenerator creates a Generator.
func NewGenerator(tasks TaskSource, notifications NotificationAccess, deduper Deduper, logger *log.Logger) *Generator {
	return &Generator{tasks: tasks, notifications: notifications, deduper: deduper, log: logger, now: time.Now}
}

// Run generates notifications for one user's session start. Reminders
// cover tasks due within the next 24 hours, overdue alerts cover tasks
// already past due; both skip tasks that already carry an unread
// notification of the same type. Individual insert failures are logged
// and do not stop the scan.
func (g *Generator) Run(ctx context.Context, userID string) error {
	unread, err := g.notifications.List(ctx, userID, true)
	if err != nil {
		return fmt.Errorf("fetch unread notifications: %w", err)
	}
	seen := make(map[string]struct{}, len(unread))
	for _, n := range unread {
		if n.TaskID != "" {
			seen[dedupeKey(n.TaskID, n.Type)] = struct{}{}
		}
	}

	tasks, err := g.tasks.List(ctx, userID, domain.TaskFilter{})
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}

	now := g.now()
	for _, t := range tasks {
		if t.Status == domain.StatusDone {
			continue
		}
		if !t.DueDate.Before(now) && t.DueDate.Before(now.Add(reminderWindow)) {
			g.insert(ctx, userID, seen, domain.Notification{
				Type:    domain.NotifyReminder,
				Title:   "Task due soon",
				Message: fmt.Sprintf("%q is due %s", t.Title, t.DueDate.Format("Jan 2 15:04")),
				Link:    "/tasks/" + t.ID,
				TaskID:  t.ID,
			})
		}
		if t.DueDate.Before(now) {
			g.insert(ctx, userID, seen, domain.Notification{
				Type:    domain.NotifyOverdue,
				Title:   "Task overdue",
				Message: fmt.Sprintf("%q was due %s", t.Title, t.DueDate.Format("Jan 2 15:04")),
				Link:    "/tasks/" + t.ID,
				TaskID:  t.ID,
			})
		}
	}
	return nil
}

func dedupeKey(taskID string, kind domain.NotificationType) string {
	return taskID + ":" + string(kind)
}

func (g *Generator) insert(ctx context.Context, userID string, seen map[string]struct{}, n domain.Notification) {
	key := dedupeKey(n.TaskID, n.Type)
	if _, ok := seen[key]; ok {
		return
	}
	added, err := g.deduper.Add(ctx, userID, n.TaskID, n.Type)
	if err != nil {
		g.log.WithFields(log.Fields{"user": userID, "task": n.TaskID, "type": n.Type, "error": err.Error()}).
			Warn("notification dedup check failed; skipping")
		return
	}
	if !added {
		return
	}
	if _, err := g.notifications.Create(ctx, userID, n); err != nil {
		g.log.WithFields(log.Fields{"user": userID, "task": n.TaskID, "type": n.Type, "error": err.Error()}).
			Error("notification insert failed")
		if rmErr := g.deduper.Remove(ctx, userID, n.TaskID, n.Type); rmErr != nil {
			g.log.WithField("error", rmErr.Error()).Warn("dedup rollback failed")
		}
		return
	}
	seen[key] = struct{}{}
}

// Summary inserts a user-requested digest: tasks completed in the
// trailing week and tasks due in the leading week.
func (g *Generator) Summary(ctx context.Context, userID string) (domain.Notification, error) {
	tasks, err := g.tasks.List(ctx, userID, domain.TaskFilter{})
	if err != nil {
		return domain.Notification{}, fmt.Errorf("fetch tasks: %w", err)
	}

	now := g.now()
	weekAgo := now.AddDate(0, 0, -7)
	weekAhead := now.AddDate(0, 0, 7)
	completed, upcoming := 0, 0
	for _, t := range tasks {
		if t.Status == domain.StatusDone && t.UpdatedAt.After(weekAgo) && !t.UpdatedAt.After(now) {
			completed++
		}
		if t.Status != domain.StatusDone && !t.DueDate.Before(now) && t.DueDate.Before(weekAhead) {
			upcoming++
		}
	}

	return g.notifications.Create(ctx, userID, domain.Notification{
		Type:    domain.NotifySummary,
		Title:   "Weekly summary",
		Message: fmt.Sprintf("You completed %d tasks in the last 7 days. %d tasks are due in the next 7 days.", completed, upcoming),
	})
}
